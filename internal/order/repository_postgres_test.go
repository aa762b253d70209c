package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func orderRows(id, status string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns).AddRow(
		id, "u-1", status, "52.25", "4.18", "4.99", "61.42", "INR",
		[]byte(`{"fullName":"Asha Rao","line1":"12 MG Road","city":"Bengaluru","state":"KA","zip":"560001","country":"IN","phone":"123"}`),
		"", "", now, now,
	)
}

func itemRows(orderID string) *sqlmock.Rows {
	return sqlmock.NewRows(itemColumns).
		AddRow(orderID, 0, "i-1", "Premium Photo Prints", "5×7″", "Premium Glossy", 3, "0.75", "https://cdn.example.com/a.jpg", "", "photo").
		AddRow(orderID, 1, "i-2", "Posters", "11×14″", "Professional", 10, "5.00", "https://cdn.example.com/b.jpg", "", "photo")
}

func TestPostgresCreate_Transaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	o := Order{ID: "o-1", UserID: "u-1", Status: StatusPending, Items: testItems(), Currency: "INR",
		Subtotal: decimal.RequireFromString("52.25"), Tax: decimal.RequireFromString("4.18"),
		Shipping: decimal.RequireFromString("4.99"), Total: decimal.RequireFromString("61.42"),
		ShippingAddress: testAddress(), CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs("o-1", "u-1", "pending", "52.25", "4.18", "4.99", "61.42", "INR", sqlmock.AnyArg(), "", "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreate_RollsBackOnItemFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	o := Order{ID: "o-1", UserID: "u-1", Status: StatusPending, Items: testItems(), ShippingAddress: testAddress()}
	if err := repo.Create(context.Background(), o); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o-1").WillReturnRows(orderRows("o-1", "pending", now))
	mock.ExpectQuery("FROM order_items WHERE order_id = ANY").WillReturnRows(itemRows("o-1"))

	o, err := repo.GetByID(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(o.Items) != 2 || o.Items[1].Quantity != 10 {
		t.Fatalf("unexpected items %+v", o.Items)
	}
	if !o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)) {
		t.Fatalf("total does not add up: %s", o.Total)
	}
	if o.ShippingAddress.City != "Bengaluru" {
		t.Fatalf("unexpected address %+v", o.ShippingAddress)
	}

	mock.ExpectQuery("FROM orders WHERE id").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateStatus_Conditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	tr := Transition{OrderID: "o-1", From: []Status{StatusPending}, To: StatusConfirmed, PaymentReference: "pay_1", At: now}

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs("confirmed", now, "pay_1", "o-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o-1").WillReturnRows(orderRows("o-1", "confirmed", now))
	mock.ExpectQuery("FROM order_items").WillReturnRows(itemRows("o-1"))

	o, err := repo.UpdateStatus(context.Background(), tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusConfirmed {
		t.Fatalf("unexpected status %s", o.Status)
	}

	// lost race: nothing updated, order exists in another status
	mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o-1").WillReturnRows(orderRows("o-1", "confirmed", now))
	mock.ExpectQuery("FROM order_items").WillReturnRows(itemRows("o-1"))
	if _, err := repo.UpdateStatus(context.Background(), tr); err != ErrStatusConflict {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o-9").WillReturnError(sql.ErrNoRows)
	if _, err := repo.UpdateStatus(context.Background(), Transition{OrderID: "o-9", From: []Status{StatusPending}, To: StatusCancelled, At: now}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateStatus_RequireNoSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE orders SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status IN \(\$4\) AND payment_session_id = \$5`).
		WithArgs("cancelled", now, "o-1", "pending", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o-1").WillReturnRows(orderRows("o-1", "pending", now))
	mock.ExpectQuery("FROM order_items").WillReturnRows(itemRows("o-1"))

	tr := Transition{OrderID: "o-1", From: []Status{StatusPending}, To: StatusCancelled, RequireNoSession: true, At: now}
	if _, err := repo.UpdateStatus(context.Background(), tr); err != ErrStatusConflict {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresListPendingBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM orders WHERE status = .+ AND created_at <").
		WithArgs("pending", now).
		WillReturnRows(orderRows("o-1", "pending", now.Add(-48*time.Hour)))
	mock.ExpectQuery("FROM order_items").WillReturnRows(itemRows("o-1"))

	orders, err := repo.ListPendingBefore(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
