package checkout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/printpoint/print-shop-backend/internal/address"
	"github.com/printpoint/print-shop-backend/internal/cart"
	"github.com/printpoint/print-shop-backend/internal/order"
	"github.com/printpoint/print-shop-backend/internal/payment"
	"github.com/printpoint/print-shop-backend/internal/user"
	"github.com/printpoint/print-shop-backend/internal/validation"
)

type Handler struct {
	service *Service
	carts   *cart.Service
}

func NewHandler(s *Service, carts *cart.Service) *Handler {
	return &Handler{service: s, carts: carts}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/checkout", h.begin)
	app.Post("/api/v1/checkout/:id/session", h.openSession)
	app.Post("/api/v1/checkout/:id/confirm", h.confirm)
	app.Post("/api/v1/checkout/:id/dismiss", h.dismiss)
}

type beginRequest struct {
	AddressID       string                   `json:"addressId"`
	ShippingAddress *address.ShippingAddress `json:"shippingAddress"`
}

// userID is empty for anonymous callers; the service answers that with
// ErrAuthRequired.
func userID(c *fiber.Ctx) string {
	id, _ := user.GetUserIDFromCtx(c)
	return id
}

func (h *Handler) begin(c *fiber.Ctx) error {
	payload := new(beginRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	pending, err := h.service.Begin(c.UserContext(), Request{
		UserID:    userID(c),
		Cart:      h.carts.Open(cart.SessionID(c)),
		AddressID: payload.AddressID,
		Address:   payload.ShippingAddress,
	})
	if errors.Is(err, ErrPaymentInitFailed) && pending.Order.ID != "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": ErrPaymentInitFailed.Error(),
			"code":    "payment_init_failed",
			"retry":   true,
			"orderId": pending.Order.ID,
		})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pending)
}

func (h *Handler) openSession(c *fiber.Ctx) error {
	session, err := h.service.OpenSession(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"payment": session})
}

func (h *Handler) confirm(c *fiber.Ctx) error {
	payload := new(payment.Callback)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	out, err := h.service.Confirm(c.UserContext(), Confirmation{
		UserID:   userID(c),
		OrderID:  c.Params("id"),
		Callback: *payload,
		Cart:     h.carts.Open(cart.SessionID(c)),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func (h *Handler) dismiss(c *fiber.Ctx) error {
	out, err := h.service.Dismiss(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func writeError(c *fiber.Ctx, err error) error {
	var rerr *ReconciliationError
	switch {
	case errors.As(err, &rerr):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message":          "payment received; your order is being confirmed by our team",
			"code":             "reconciliation_required",
			"supportReference": rerr.SupportReference(),
		})
	case errors.Is(err, ErrAuthRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": err.Error(), "code": "auth_required"})
	case errors.Is(err, ErrEmptyCart):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error(), "code": "empty_cart"})
	case errors.Is(err, ErrIncompleteAddress):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": ErrIncompleteAddress.Error(),
			"code":    "incomplete_address",
			"fields":  validation.Fields(err),
		})
	case errors.Is(err, ErrPaymentVerification):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "code": "payment_verification"})
	case errors.Is(err, ErrPaymentInitFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": ErrPaymentInitFailed.Error(), "code": "payment_init_failed", "retry": true})
	default:
		return order.WriteError(c, err)
	}
}
