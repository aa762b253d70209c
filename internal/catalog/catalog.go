package catalog

import (
	"errors"
	"strings"

	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/shopspring/decimal"
)

var ErrUnknownOption = errors.New("unknown print option")

// Plan is a fixed size/paper combination sold at one unit price.
type Plan struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	ProductType lineitem.ProductType `json:"productType"`
	Size        string               `json:"size"`
	Paper       string               `json:"paper"`
	Price       decimal.Decimal      `json:"price"`
}

// Option is one entry of the custom photo option matrix. For sizes Price is
// the base price; for papers it is a surcharge.
type Option struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Catalog is the read-only price list used to quote cart items.
type Catalog struct {
	Plans  []Plan   `json:"plans"`
	Sizes  []Option `json:"sizes"`
	Papers []Option `json:"papers"`
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Default is the storefront's published price list.
func Default() *Catalog {
	return &Catalog{
		Plans: []Plan{
			{Name: "Standard Photo Prints", Description: "Perfect for everyday memories", Category: "photos", ProductType: lineitem.Photo, Size: "4×6″", Paper: "Glossy", Price: price("0.25")},
			{Name: "Premium Photo Prints", Description: "Enhanced quality for special moments", Category: "photos", ProductType: lineitem.Photo, Size: "5×7″", Paper: "Premium Glossy", Price: price("0.75")},
			{Name: "Large Format Prints", Description: "Gallery-quality large prints", Category: "photos", ProductType: lineitem.Photo, Size: "11×14″", Paper: "Professional", Price: price("3.50")},
			{Name: "Black & White", Description: "Standard document printing", Category: "documents", ProductType: lineitem.Document, Size: "A4", Paper: "Standard", Price: price("0.10")},
			{Name: "Color Documents", Description: "Vibrant color printing", Category: "documents", ProductType: lineitem.Document, Size: "A4", Paper: "Premium", Price: price("0.50")},
			{Name: "Business Documents", Description: "Professional business printing", Category: "documents", ProductType: lineitem.Document, Size: "A4", Paper: "Business", Price: price("1.00")},
			// canvas is fulfilled through the document pipeline
			{Name: "Small Canvas", Description: "Ready-to-hang canvas", Category: "canvas", ProductType: lineitem.Document, Size: "8×10″", Paper: "Cotton Canvas", Price: price("999")},
			{Name: "Medium Canvas", Description: "Statement canvas", Category: "canvas", ProductType: lineitem.Document, Size: "16×20″", Paper: "Premium Canvas", Price: price("1999")},
			{Name: "Large Canvas", Description: "Museum-grade canvas", Category: "canvas", ProductType: lineitem.Document, Size: "24×36″", Paper: "Museum Canvas", Price: price("3499")},
		},
		Sizes: []Option{
			{ID: "size-1", Name: "4×6″", Price: price("0.25")},
			{ID: "size-2", Name: "5×7″", Price: price("0.50")},
			{ID: "size-3", Name: "8×10″", Price: price("1.25")},
			{ID: "size-4", Name: "11×14″", Price: price("3.50")},
			{ID: "size-5", Name: "16×20″", Price: price("7.99")},
		},
		Papers: []Option{
			{ID: "paper-1", Name: "Glossy", Price: decimal.Zero},
			{ID: "paper-2", Name: "Matte", Price: decimal.Zero},
			{ID: "paper-3", Name: "Luster", Price: price("0.25")},
			{ID: "paper-4", Name: "Metallic", Price: price("0.50")},
			{ID: "paper-5", Name: "Deep Matte", Price: price("0.35")},
		},
	}
}

// Quote returns the unit price for a product configuration. A published
// plan wins; otherwise photos are priced from the size and paper matrix.
func (c *Catalog) Quote(pt lineitem.ProductType, size, paper string) (Plan, error) {
	for _, p := range c.Plans {
		if p.ProductType == pt && sameOption(p.Size, size) && sameOption(p.Paper, paper) {
			return p, nil
		}
	}
	if pt != lineitem.Photo {
		return Plan{}, ErrUnknownOption
	}

	s, ok := findOption(c.Sizes, size)
	if !ok {
		return Plan{}, ErrUnknownOption
	}
	pp, ok := findOption(c.Papers, paper)
	if !ok {
		return Plan{}, ErrUnknownOption
	}
	return Plan{
		Name:        "Custom Photo Print",
		Category:    "photos",
		ProductType: lineitem.Photo,
		Size:        s.Name,
		Paper:       pp.Name,
		Price:       s.Price.Add(pp.Price),
	}, nil
}

// findOption accepts either the option id or its display name.
func findOption(opts []Option, key string) (Option, bool) {
	for _, o := range opts {
		if o.ID == key || sameOption(o.Name, key) {
			return o, true
		}
	}
	return Option{}, false
}

func sameOption(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
