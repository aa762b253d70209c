package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/printpoint/print-shop-backend/internal/pricing"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Razorpay creates gateway orders over the REST API. Every call goes
// through a circuit breaker; declines do not count as breaker failures.
type Razorpay struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
}

func NewRazorpay(cfg Config, log *zap.Logger) *Razorpay {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "PaymentGateway",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Razorpay{cfg: cfg, cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateSession opens a gateway order for req. The receipt is the order id,
// so the gateway can recognise repeated requests for one order.
func (r *Razorpay) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	body := createOrderRequest{
		Amount:   pricing.MinorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.OrderID,
		Notes:    map[string]string{"order_id": req.OrderID},
	}
	if body.Amount <= 0 {
		return Session{}, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	res, err := execute(r.cb, func() (createOrderResponse, error) {
		return r.createOrder(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.log.Warn("payment gateway circuit open", zap.String("order_id", req.OrderID))
		return Session{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		ID:       res.ID,
		KeyID:    r.cfg.KeyID,
		OrderID:  req.OrderID,
		Amount:   res.Amount,
		Currency: res.Currency,
	}, nil
}

func (r *Razorpay) createOrder(ctx context.Context, body createOrderRequest) (createOrderResponse, error) {
	timeout := r.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil || timeout <= 0 {
		return createOrderResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, context.DeadlineExceeded)
	}

	agent := fiber.Post(r.cfg.BaseURL + "/v1/orders")
	agent.BasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	agent.JSON(body)
	agent.Timeout(timeout)

	code, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return createOrderResponse{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	}

	switch {
	case code >= 500 || code == fiber.StatusTooManyRequests:
		return createOrderResponse{}, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, code)
	case code >= 400:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return createOrderResponse{}, fmt.Errorf("%w: %d %s %s", ErrDeclined, code, e.Error.Code, e.Error.Description)
	}

	var res createOrderResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return createOrderResponse{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	if res.ID == "" {
		return createOrderResponse{}, fmt.Errorf("%w: response has no order id", ErrUnavailable)
	}
	if res.Amount != body.Amount || !strings.EqualFold(res.Currency, body.Currency) {
		return createOrderResponse{}, fmt.Errorf("%w: gateway order is %d %s, requested %d %s",
			ErrUnavailable, res.Amount, res.Currency, body.Amount, body.Currency)
	}
	return res, nil
}

// Verify checks the callback signature, HMAC-SHA256 of
// "<session id>|<payment id>" keyed with the API secret.
func (r *Razorpay) Verify(cb Callback) error {
	if cb.SessionID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return ErrMissingField
	}
	if r.cfg.KeySecret == "" {
		return fmt.Errorf("%w: no signing secret configured", ErrInvalidSignature)
	}
	want := Sign(r.cfg.KeySecret, cb.SessionID, cb.PaymentID)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(cb.Signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature the gateway attaches to a payment.
func Sign(secret, sessionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}
