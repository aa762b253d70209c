package address

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores addresses in the addresses table, keyed by id
// and scoped by user_id on every statement.
type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	addressColumns = `id, user_id, label, full_name, line1, line2, city, state, zip, country, phone, created_at, updated_at`

	listAddressesQuery = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY created_at`
	getAddressQuery    = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND id = $2`
	insertAddressQuery = `
		INSERT INTO addresses (id, user_id, label, full_name, line1, line2, city, state, zip, country, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	updateAddressQuery = `
		UPDATE addresses
		SET label = $3, full_name = $4, line1 = $5, line2 = $6, city = $7, state = $8,
			zip = $9, country = $10, phone = $11, updated_at = $12
		WHERE user_id = $1 AND id = $2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM addresses WHERE user_id = $1 AND id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (Address, error) {
	a, err := scanAddress(r.db.QueryRowContext(ctx, getAddressQuery, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) Add(ctx context.Context, a Address) (Address, error) {
	_, err := r.db.ExecContext(ctx, insertAddressQuery,
		a.ID, a.UserID, a.Label,
		a.FullName, a.Line1, a.Line2, a.City, a.State, a.Zip, a.Country, a.Phone,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a Address) (Address, error) {
	updated, err := scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		a.UserID, a.ID, a.Label,
		a.FullName, a.Line1, a.Line2, a.City, a.State, a.Zip, a.Country, a.Phone,
		a.UpdatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return updated, err
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, deleteAddressQuery, userID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAddress(s rowScanner) (Address, error) {
	var a Address
	err := s.Scan(
		&a.ID, &a.UserID, &a.Label,
		&a.FullName, &a.Line1, &a.Line2, &a.City, &a.State, &a.Zip, &a.Country, &a.Phone,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Address{}, err
	}
	return a, nil
}
