package address

import (
	"time"

	"github.com/printpoint/print-shop-backend/internal/validation"
)

// ShippingAddress is where an order is delivered. Every field except Line2
// must be non-blank.
type ShippingAddress struct {
	FullName string `json:"fullName" validate:"required,notblank"`
	Line1    string `json:"line1" validate:"required,notblank"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city" validate:"required,notblank"`
	State    string `json:"state" validate:"required,notblank"`
	Zip      string `json:"zip" validate:"required,notblank"`
	Country  string `json:"country" validate:"required,notblank"`
	Phone    string `json:"phone" validate:"required,notblank"`
}

// Validate returns the validator error describing the missing fields.
func (a ShippingAddress) Validate() error {
	return validation.Struct(a)
}

func (a ShippingAddress) Complete() bool {
	return a.Validate() == nil
}

// Address is a saved, labelled shipping address owned by one user.
type Address struct {
	ID     string `json:"addressId"`
	UserID string `json:"userId"`
	Label  string `json:"label"`
	ShippingAddress
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
