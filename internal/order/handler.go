package order

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/printpoint/print-shop-backend/internal/user"
)

// Handler exposes orders to their owners and to admins. Orders are created
// through checkout, not here.
type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/orders", h.getOrders)
	app.Get("/api/v1/orders/:id", h.getOrder)
	app.Post("/api/v1/orders/:id/cancel", h.cancelOrder)

	admin := app.Group("/api/v1/admin/orders", user.RequireAdmin)
	admin.Get("/", h.adminListOrders)
	admin.Get("/:id", h.adminGetOrder)
	admin.Patch("/:id/status", h.adminUpdateStatus)
}

type deliveryWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

type orderResponse struct {
	Order
	EstimatedDelivery *deliveryWindow `json:"estimatedDelivery,omitempty"`
}

func toResponse(o Order) orderResponse {
	resp := orderResponse{Order: o}
	if o.Status != StatusCancelled && o.Status != StatusDelivered {
		earliest, latest := o.DeliveryWindow()
		resp.EstimatedDelivery = &deliveryWindow{Earliest: earliest, Latest: latest}
	}
	return resp
}

func toResponses(orders []Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	return out
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.manager.ListForUser(c.UserContext(), userID)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponses(orders))
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	o, err := h.manager.GetByID(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponse(o))
}

// cancelOrder lets a customer cancel their own order while it is still
// cancellable.
func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	if _, err := h.manager.GetByID(c.UserContext(), c.Params("id"), userID); err != nil {
		return WriteError(c, err)
	}
	o, err := h.manager.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponse(o))
}

func (h *Handler) adminListOrders(c *fiber.Ctx) error {
	f := Filter{
		Status: Status(c.Query("status")),
		UserID: c.Query("userId"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	orders, err := h.manager.List(c.UserContext(), f)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponses(orders))
}

func (h *Handler) adminGetOrder(c *fiber.Ctx) error {
	o, err := h.manager.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponse(o))
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) adminUpdateStatus(c *fiber.Ctx) error {
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	o, err := h.manager.Advance(c.UserContext(), c.Params("id"), payload.Status)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(toResponse(o))
}

// WriteError maps order error kinds to HTTP responses.
func WriteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error(), "code": "validation"})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found", "code": "not_found"})
	case errors.Is(err, ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "forbidden", "code": "not_authorized"})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error(), "code": "invalid_transition"})
	case errors.Is(err, ErrPersistence):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "orders are temporarily unavailable", "code": "persistence", "retry": true})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
