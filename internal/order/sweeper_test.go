package order

import (
	"context"
	"testing"
	"time"

	"github.com/printpoint/print-shop-backend/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpirePending(t *testing.T) {
	ctx := context.Background()
	m, pub := newTestManager(NewInMemoryRepository(nil))
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	now := start
	m.now = func() time.Time { return now }

	abandoned := createPending(t, m, "u-1")
	withSession := createPending(t, m, "u-2")
	_, err := m.AttachPaymentSession(ctx, withSession.ID, "order_rzp_1")
	require.NoError(t, err)
	paid := createPending(t, m, "u-3")
	_, err = m.MarkConfirmed(ctx, paid.ID, "pay_1")
	require.NoError(t, err)

	now = start.Add(2 * time.Hour)
	fresh := createPending(t, m, "u-4")

	res, err := m.ExpirePending(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Cancelled: 1, Flagged: 1}, res)

	got, _ := m.Get(ctx, abandoned.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	got, _ = m.Get(ctx, withSession.ID)
	assert.Equal(t, StatusPending, got.Status, "orders with a payment session are never auto-cancelled")
	got, _ = m.Get(ctx, paid.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	got, _ = m.Get(ctx, fresh.ID)
	assert.Equal(t, StatusPending, got.Status)

	assert.Contains(t, pub.types(), events.OrderStalePaymentSession)
}

// lateSessionRepository attaches a payment session to every order it lists,
// as a checkout retry landing between the listing and the cancel would.
type lateSessionRepository struct {
	*InMemoryRepository
}

func (r lateSessionRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Order, error) {
	orders, err := r.InMemoryRepository.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if _, err := r.SetPaymentSession(ctx, o.ID, "order_rzp_late", time.Now()); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func TestExpirePending_KeepsOrdersThatGotASession(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(lateSessionRepository{NewInMemoryRepository(nil)})
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	o := createPending(t, m, "u-1")

	res, err := m.ExpirePending(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	got, err := m.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "order_rzp_late", got.PaymentSessionID)
}

func TestSweeper_StopsWithContext(t *testing.T) {
	m, _ := newTestManager(NewInMemoryRepository(nil))
	s := NewSweeper(m, time.Hour, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
