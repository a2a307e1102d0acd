package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderType represents how an order is fulfilled.
type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDineIn   OrderType = "dine_in"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod represents how the customer pays.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

// Role is a member's role within an organization.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleKitchen  Role = "kitchen"
	RoleDelivery Role = "delivery"
	RoleCustomer Role = "customer"
)

// IsStaff reports whether the role may act on behalf of the organization.
func (r Role) IsStaff() bool {
	switch r {
	case RoleOwner, RoleManager, RoleKitchen, RoleDelivery:
		return true
	}
	return false
}

// Membership links a user to an organization with a role.
type Membership struct {
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	Active         bool      `json:"active" db:"active"`
}

// OrderItem is a reconciled line item: the engine-computed unit price and
// subtotal supersede whatever the client proposed.
type OrderItem struct {
	ID         uuid.UUID     `json:"id,omitempty" db:"id"`
	OrderID    uuid.UUID     `json:"order_id,omitempty" db:"order_id"`
	MenuItemID uuid.UUID     `json:"menu_item_id" db:"menu_item_id"`
	Name       string        `json:"name" db:"name"`
	Quantity   int           `json:"quantity" db:"quantity"`
	UnitPrice  float64       `json:"unit_price" db:"unit_price"`
	Subtotal   float64       `json:"subtotal" db:"subtotal"`
	Note       string        `json:"note,omitempty" db:"note"`
	Variants   *ItemVariants `json:"variants,omitempty" db:"variants"`
	// Corrected records that the client-sent figures disagreed with the
	// authoritative price beyond tolerance. Not persisted.
	Corrected bool `json:"corrected,omitempty" db:"-"`
}

// Order is the aggregate root owned by exactly one organization.
type Order struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	OrganizationID    uuid.UUID     `json:"organization_id" db:"organization_id"`
	OrderNumber       string        `json:"order_number" db:"order_number"`
	CustomerID        *uuid.UUID    `json:"customer_id,omitempty" db:"customer_id"`
	CashierCustomerID *uuid.UUID    `json:"cashier_customer_id,omitempty" db:"cashier_customer_id"`
	Status            OrderStatus   `json:"status" db:"status"`
	Type              OrderType     `json:"order_type" db:"type"`
	CustomerName      string        `json:"customer_name,omitempty" db:"customer_name"`
	CustomerPhone     string        `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerEmail     string        `json:"customer_email,omitempty" db:"customer_email"`
	Address           string        `json:"address,omitempty" db:"address"`
	City              string        `json:"city,omitempty" db:"city"`
	Latitude          *float64      `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64      `json:"longitude,omitempty" db:"longitude"`
	Subtotal          float64       `json:"subtotal" db:"subtotal"`
	DeliveryFee       float64       `json:"delivery_fee" db:"delivery_fee"`
	Discount          float64       `json:"discount" db:"discount"`
	Total             float64       `json:"total" db:"total"`
	PaymentMethod     PaymentMethod `json:"payment_method" db:"payment_method"`
	Paid              bool          `json:"paid" db:"paid"`
	Note              string        `json:"note,omitempty" db:"note"`
	ScheduledSlot     *time.Time    `json:"scheduled_slot,omitempty" db:"scheduled_slot"`
	CreatedAt         time.Time     `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at,omitempty" db:"updated_at"`
	Items             []OrderItem   `json:"items"`
}
