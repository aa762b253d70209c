package address

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var addressRowColumns = []string{"id", "user_id", "label", "full_name", "line1", "line2", "city", "state", "zip", "country", "phone", "created_at", "updated_at"}

func TestPostgresList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(addressRowColumns).
		AddRow("a-1", "u-1", "Home", "Asha Rao", "12 MG Road", "", "Bengaluru", "KA", "560001", "IN", "123", now, now).
		AddRow("a-2", "u-1", "Office", "Asha Rao", "7 Brigade Road", "Floor 3", "Bengaluru", "KA", "560025", "IN", "123", now, now)
	mock.ExpectQuery("FROM addresses WHERE user_id").WithArgs("u-1").WillReturnRows(rows)

	addrs, err := repo.List(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 2 || addrs[1].Line2 != "Floor 3" {
		t.Fatalf("unexpected addresses %+v", addrs)
	}
	if !addrs[0].Complete() {
		t.Fatalf("expected scanned address to be complete")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM addresses WHERE user_id").WithArgs("u-1", "a-9").WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "u-1", "a-9"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM addresses").WithArgs("u-1", "a-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM addresses").WithArgs("u-1", "a-1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "u-1", "a-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(context.Background(), "u-1", "a-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
