package order

import (
	"context"
	"errors"
	"time"

	"github.com/printpoint/print-shop-backend/internal/events"
	"go.uber.org/zap"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Cancelled int
	Flagged   int
}

// ExpirePending cancels pending orders created before cutoff that never got
// a payment session. Pending orders with a session may have been paid, so
// they are only reported for review.
func (m *Manager) ExpirePending(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	var res SweepResult

	stale, err := m.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}

	for _, o := range stale {
		if o.PaymentSessionID != "" {
			res.Flagged++
			m.publish(ctx, events.Event{
				Type:       events.OrderStalePaymentSession,
				OrderID:    o.ID,
				UserID:     o.UserID,
				Attributes: map[string]string{"payment_session_id": o.PaymentSessionID},
				OccurredAt: m.now().UTC(),
			})
			continue
		}

		// the session may have been attached since the listing
		_, err := m.transition(ctx, Transition{
			OrderID:          o.ID,
			From:             []Status{StatusPending},
			To:               StatusCancelled,
			RequireNoSession: true,
		})
		switch {
		case err == nil:
			res.Cancelled++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
			// moved on since it was listed
		default:
			return res, err
		}
	}
	return res, nil
}

// Sweeper periodically expires abandoned pending orders.
type Sweeper struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(m *Manager, ttl, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{manager: m, ttl: ttl, interval: interval, log: log}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("pending order sweeper started", zap.Duration("interval", s.interval), zap.Duration("ttl", s.ttl))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("pending order sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.manager.ExpirePending(ctx, s.manager.now().Add(-s.ttl))
	if err != nil {
		s.log.Error("sweep pending orders", zap.Error(err))
		return
	}
	if res.Cancelled > 0 || res.Flagged > 0 {
		s.log.Info("swept pending orders", zap.Int("cancelled", res.Cancelled), zap.Int("flagged", res.Flagged))
	}
}
