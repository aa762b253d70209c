package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
)

// PostgresRepository keeps order headers in orders and the item snapshot
// in order_items.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

type rowScanner interface {
	Scan(dest ...any) error
}

var orderColumns = []string{
	"id", "user_id", "status", "subtotal", "tax", "shipping", "total", "currency",
	"shipping_address", "payment_session_id", "payment_reference", "created_at", "updated_at",
}

var itemColumns = []string{
	"order_id", "position", "item_id", "name", "size", "paper", "quantity",
	"unit_price", "image_url", "file_url", "product_type",
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Create inserts the order and its items in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Insert("orders").Columns(orderColumns...).
		Values(o.ID, o.UserID, string(o.Status), o.Subtotal, o.Tax, o.Shipping, o.Total, o.Currency,
			addr, o.PaymentSessionID, o.PaymentReference, o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	items := r.sb.Insert("order_items").Columns(itemColumns...)
	for i, it := range o.Items {
		items = items.Values(o.ID, i, it.ID, it.Name, it.Size, it.Paper, it.Quantity,
			it.UnitPrice, it.ImageURL, it.FileURL, string(it.ProductType))
	}
	query, args, err = items.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Order, error) {
	query, args, err := r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Order{}, err
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	orders := []Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.List(ctx, Filter{UserID: userID})
}

// List returns matching orders newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Order, error) {
	q := r.sb.Select(orderColumns...).From("orders").OrderBy("created_at DESC")
	if f.UserID != "" {
		q = q.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return r.query(ctx, q)
}

func (r *PostgresRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Order, error) {
	q := r.sb.Select(orderColumns...).From("orders").
		Where(sq.Eq{"status": string(StatusPending)}).
		Where(sq.Lt{"created_at": cutoff}).
		OrderBy("created_at")
	return r.query(ctx, q)
}

// UpdateStatus is a single UPDATE ... WHERE status IN (from). When nothing
// matched, a follow-up read tells a missing order from a status conflict.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, t Transition) (Order, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	u := r.sb.Update("orders").
		Set("status", string(t.To)).
		Set("updated_at", t.At).
		Where(sq.Eq{"id": t.OrderID, "status": from})
	if t.PaymentReference != "" {
		u = u.Set("payment_reference", t.PaymentReference)
	}
	if t.RequireNoSession {
		u = u.Where(sq.Eq{"payment_session_id": ""})
	}
	return r.conditionalUpdate(ctx, t.OrderID, u)
}

func (r *PostgresRepository) SetPaymentSession(ctx context.Context, id, sessionID string, at time.Time) (Order, error) {
	u := r.sb.Update("orders").
		Set("payment_session_id", sessionID).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": string(StatusPending), "payment_session_id": ""})
	return r.conditionalUpdate(ctx, id, u)
}

func (r *PostgresRepository) conditionalUpdate(ctx context.Context, id string, u sq.UpdateBuilder) (Order, error) {
	query, args, err := u.ToSql()
	if err != nil {
		return Order{}, err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Order{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Order{}, err
	}

	o, err := r.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if affected == 0 {
		return Order{}, ErrStatusConflict
	}
	return o, nil
}

func (r *PostgresRepository) query(ctx context.Context, q sq.SelectBuilder) ([]Order, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items for every order with one query.
func (r *PostgresRepository) loadItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []lineitem.LineItem{}
	}

	query, args, err := r.sb.Select(itemColumns...).From("order_items").
		Where(sq.Expr("order_id = ANY(?)", pq.Array(ids))).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID  string
			position int
			it       lineitem.LineItem
			pt       string
		)
		if err := rows.Scan(&orderID, &position, &it.ID, &it.Name, &it.Size, &it.Paper, &it.Quantity,
			&it.UnitPrice, &it.ImageURL, &it.FileURL, &pt); err != nil {
			return err
		}
		it.ProductType = lineitem.ProductType(pt)
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(s rowScanner) (Order, error) {
	var (
		o      Order
		status string
		addr   []byte
	)
	if err := s.Scan(&o.ID, &o.UserID, &status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &o.Currency,
		&addr, &o.PaymentSessionID, &o.PaymentReference, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return o, nil
}
