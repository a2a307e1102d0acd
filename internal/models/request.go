package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IngredientHalf assigns an added ingredient to one half of a split item.
type IngredientHalf string

const (
	HalfFirst  IngredientHalf = "first"
	HalfSecond IngredientHalf = "second"
)

// AddedIngredient is an ingredient the customer added to a line item.
type AddedIngredient struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Quantity int            `json:"quantity"`
	Half     IngredientHalf `json:"half,omitempty"`
}

// ItemVariants encodes a line item's customizations: selected size,
// added/removed ingredients and, for split items, the second half product.
// The per-ingredient half tag is authoritative when present; legacy clients
// instead label second-half ingredients with a ": <second item name>" name
// suffix, which is still honored.
type ItemVariants struct {
	SizeID         *uuid.UUID        `json:"size_id,omitempty"`
	SizeName       string            `json:"size_name,omitempty"`
	Added          []AddedIngredient `json:"added_ingredients,omitempty"`
	Removed        []string          `json:"removed_ingredients,omitempty"`
	SecondItemID   *uuid.UUID        `json:"second_item_id,omitempty"`
	SecondItemName string            `json:"second_item_name,omitempty"`
}

// IsSplit reports whether the item is composed of two half-products.
func (v *ItemVariants) IsSplit() bool {
	return v != nil && v.SecondItemID != nil
}

// ProposedItem is an untrusted client line item. The unit price and subtotal
// are advisory only and are always recomputed server-side.
type ProposedItem struct {
	MenuItemID uuid.UUID     `json:"menu_item_id"`
	Name       string        `json:"name"`
	Quantity   int           `json:"quantity"`
	UnitPrice  float64       `json:"unit_price"`
	Subtotal   float64       `json:"subtotal"`
	Note       string        `json:"note,omitempty"`
	Variants   *ItemVariants `json:"variants,omitempty"`
}

// PlaceOrderRequest is the body of POST /orders. When OrderID is set the
// request switches into update mode (staff only).
type PlaceOrderRequest struct {
	OrganizationID    *uuid.UUID     `json:"organization_id,omitempty"`
	OrderID           *uuid.UUID     `json:"order_id,omitempty"`
	Items             []ProposedItem `json:"items"`
	OrderType         string         `json:"order_type"`
	PaymentMethod     string         `json:"payment_method"`
	Status            string         `json:"status,omitempty"`
	CustomerName      string         `json:"customer_name,omitempty"`
	CustomerPhone     string         `json:"customer_phone,omitempty"`
	CustomerEmail     string         `json:"customer_email,omitempty"`
	Address           string         `json:"address,omitempty"`
	City              string         `json:"city,omitempty"`
	Latitude          *float64       `json:"latitude,omitempty"`
	Longitude         *float64       `json:"longitude,omitempty"`
	ScheduledSlot     *time.Time     `json:"scheduled_slot,omitempty"`
	CashierCustomerID *uuid.UUID     `json:"cashier_customer_id,omitempty"`
	Note              string         `json:"note,omitempty"`
	// Delivery fee and discount are trusted as sent; subtotal and total are
	// recomputed from reconciled items.
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

// IsUpdate reports whether the request edits an existing order.
func (r *PlaceOrderRequest) IsUpdate() bool {
	return r.OrderID != nil
}

// Validate checks the request shape before any data access.
func (r *PlaceOrderRequest) Validate() error {
	switch OrderType(r.OrderType) {
	case OrderTypeDelivery, OrderTypeTakeaway, OrderTypeDineIn:
	default:
		return fmt.Errorf("order_type must be one of: delivery, takeaway, dine_in")
	}

	switch PaymentMethod(r.PaymentMethod) {
	case PaymentCash, PaymentCard, PaymentOnline:
	default:
		return fmt.Errorf("payment_method must be one of: cash, card, online")
	}

	if OrderType(r.OrderType) == OrderTypeDelivery && r.Address == "" {
		return fmt.Errorf("address is required for delivery orders")
	}

	if err := validateItems(r.Items); err != nil {
		return err
	}

	if r.DeliveryFee < 0 {
		return fmt.Errorf("delivery_fee must not be negative")
	}
	if r.Discount < 0 {
		return fmt.Errorf("discount must not be negative")
	}

	return nil
}

func validateItems(items []ProposedItem) error {
	if len(items) == 0 {
		return fmt.Errorf("items array cannot be empty")
	}
	if len(items) > 50 {
		return fmt.Errorf("items array cannot contain more than 50 items")
	}

	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.MenuItemID == uuid.Nil {
			return fmt.Errorf("%s.menu_item_id is required", prefix)
		}
		if item.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if item.Quantity < 1 || item.Quantity > 50 {
			return fmt.Errorf("%s.quantity must be between 1 and 50", prefix)
		}
		if item.Variants != nil {
			for j, add := range item.Variants.Added {
				if add.Quantity < 1 {
					return fmt.Errorf("%s.variants.added_ingredients[%d].quantity must be positive", prefix, j)
				}
				switch add.Half {
				case "", HalfFirst, HalfSecond:
				default:
					return fmt.Errorf("%s.variants.added_ingredients[%d].half must be first or second", prefix, j)
				}
			}
			if item.Variants.SecondItemID != nil && item.Variants.SecondItemName == "" {
				return fmt.Errorf("%s.variants.second_item_name is required for split items", prefix)
			}
		}
	}

	return nil
}

// PlaceOrderResponse is the success envelope for order placement.
type PlaceOrderResponse struct {
	Success     bool      `json:"success"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	Corrected   bool      `json:"corrected,omitempty"`
	// Present only when a card authorization was opened.
	PaymentContinuationToken string `json:"payment_continuation_token,omitempty"`
	AuthorizationID          string `json:"authorization_id,omitempty"`
}

// ErrorResponse is the failure envelope: a machine-readable code plus a
// human-readable message. Rate-limit rejections carry retry metadata.
type ErrorResponse struct {
	Success           bool       `json:"success"`
	Code              string     `json:"code"`
	Message           string     `json:"message"`
	RequestID         string     `json:"request_id,omitempty"`
	RetryAfterSeconds *int64     `json:"retry_after_seconds,omitempty"`
	ResetAt           *time.Time `json:"reset_at,omitempty"`
}
