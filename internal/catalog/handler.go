package catalog

import (
	"github.com/gofiber/fiber/v2"
	"github.com/printpoint/print-shop-backend/internal/lineitem"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/catalog", h.getCatalog)
	app.Get("/api/v1/catalog/quote", h.getQuote)
}

func (h *Handler) getCatalog(c *fiber.Ctx) error {
	return c.JSON(h.catalog)
}

// getQuote prices a configuration, e.g. ?productType=photo&size=size-3&paper=Luster
func (h *Handler) getQuote(c *fiber.Ctx) error {
	plan, err := h.catalog.Quote(lineitem.ProductType(c.Query("productType")), c.Query("size"), c.Query("paper"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(plan)
}
