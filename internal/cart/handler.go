package cart

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/printpoint/print-shop-backend/internal/catalog"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/printpoint/print-shop-backend/internal/pricing"
)

const (
	SessionHeader = "X-Cart-Session"
	SessionCookie = "cart_session"
)

// Quoter prices a product configuration from the trusted catalog.
type Quoter interface {
	Quote(pt lineitem.ProductType, size, paper string) (catalog.Plan, error)
}

// Handler exposes the session cart. Carts are not tied to an account, so
// these routes are public.
type Handler struct {
	service *Service
	quoter  Quoter
}

func NewHandler(s *Service, q Quoter) *Handler {
	return &Handler{service: s, quoter: q}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Get("/api/v1/cart/count", h.getCount)
	app.Post("/api/v1/cart/items", h.addItem)
	app.Patch("/api/v1/cart/items/:id", h.updateQuantity)
	app.Delete("/api/v1/cart/items/:id", h.removeItem)
	app.Delete("/api/v1/cart", h.clearCart)
}

// SessionID returns the caller's cart session, issuing a new one (echoed
// in both header and cookie) when none or an invalid one was sent.
func SessionID(c *fiber.Ctx) string {
	id := c.Get(SessionHeader)
	if id == "" {
		id = c.Cookies(SessionCookie)
	}
	if _, err := uuid.Parse(id); err == nil {
		return id
	}

	id = uuid.NewString()
	c.Set(SessionHeader, id)
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}

type cartResponse struct {
	Items  []lineitem.LineItem `json:"items"`
	Count  int                 `json:"count"`
	Totals pricing.Breakdown   `json:"totals"`
}

func (h *Handler) store(c *fiber.Ctx) *Store {
	return h.service.Open(SessionID(c))
}

func (h *Handler) respondCart(c *fiber.Ctx, st *Store) error {
	items := st.Items(c.UserContext())
	return c.JSON(cartResponse{
		Items:  items,
		Count:  count(items),
		Totals: pricing.Calculate(items).Rounded(),
	})
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	return h.respondCart(c, h.store(c))
}

func (h *Handler) getCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"count": h.store(c).Count(c.UserContext())})
}

type addItemRequest struct {
	Name        string `json:"name"`
	ProductType string `json:"productType"`
	Size        string `json:"size"`
	Paper       string `json:"paper"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"imageUrl"`
	FileURL     string `json:"fileUrl"`
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}

	pt := lineitem.ProductType(payload.ProductType)
	plan, err := h.quoter.Quote(pt, payload.Size, payload.Paper)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error()})
	}
	name := payload.Name
	if name == "" {
		name = plan.Name
	}

	item, err := h.store(c).Add(c.UserContext(), lineitem.LineItem{
		Name:        name,
		Size:        plan.Size,
		Paper:       plan.Paper,
		Quantity:    payload.Quantity,
		UnitPrice:   plan.Price,
		ImageURL:    payload.ImageURL,
		FileURL:     payload.FileURL,
		ProductType: pt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateQuantity(c *fiber.Ctx) error {
	payload := new(quantityRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	st := h.store(c)
	if err := st.UpdateQuantity(c.UserContext(), c.Params("id"), payload.Quantity); err != nil {
		return writeError(c, err)
	}
	return h.respondCart(c, st)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	st := h.store(c)
	if err := st.Remove(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return h.respondCart(c, st)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	if err := h.store(c).Clear(c.UserContext()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidItem):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "cart is temporarily unavailable", "retry": true})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
