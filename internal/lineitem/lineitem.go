// Package lineitem defines the configured printable product shared by carts
// and orders.
package lineitem

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	Photo    ProductType = "photo"
	Document ProductType = "document"
)

func (t ProductType) Valid() bool {
	return t == Photo || t == Document
}

var (
	ErrQuantity    = errors.New("quantity must be at least 1")
	ErrUnitPrice   = errors.New("unit price must not be negative")
	ErrProductType = errors.New("product type must be photo or document")
	ErrOptions     = errors.New("size and paper are required")
	ErrAttachment  = errors.New("attachment does not match product type")
)

// LineItem is one configured product and quantity. ImageURL belongs to
// photos and FileURL to documents.
type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Size        string          `json:"size"`
	Paper       string          `json:"paper"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	FileURL     string          `json:"fileUrl,omitempty"`
	ProductType ProductType     `json:"productType"`
}

// Validate checks the invariants every cart or order item must hold.
func (li LineItem) Validate() error {
	if li.Quantity < 1 {
		return ErrQuantity
	}
	if li.UnitPrice.IsNegative() {
		return ErrUnitPrice
	}
	if !li.ProductType.Valid() {
		return ErrProductType
	}
	if strings.TrimSpace(li.Size) == "" || strings.TrimSpace(li.Paper) == "" {
		return ErrOptions
	}
	if li.ProductType == Photo && li.FileURL != "" {
		return ErrAttachment
	}
	if li.ProductType == Document && li.ImageURL != "" {
		return ErrAttachment
	}
	return nil
}

// LineTotal is UnitPrice × Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
