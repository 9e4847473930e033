package models

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the statuses reachable from each status. Every
// non-terminal status may be cancelled.
// completed and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  nil,
	OrderStatusCancelled:  nil,
}

// ParseOrderStatus maps user input to a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := orderTransitions[status]
	return status, ok
}

// CanTransitionTo reports whether next may follow s. Re-applying the same status is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ShippingAddress is a snapshot copied onto the order, not a live address-book reference.
type ShippingAddress struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Address   string `json:"address" binding:"required"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode" binding:"required"`
	Country   string `json:"country" binding:"required"`
}

// Order is the model for the 'orders' table.
// Everything except Status is frozen at creation.
type Order struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	Status          OrderStatus     `json:"status" db:"status"`
	Subtotal        Money           `json:"subtotal" db:"subtotal"`
	Tax             Money           `json:"tax" db:"tax"`
	Shipping        Money           `json:"shipping" db:"shipping"`
	Total           Money           `json:"total" db:"total"`
	ShippingAddress ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	PaymentIntentID string          `json:"paymentIntentId" db:"payment_intent_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderLineRecord is the model for the 'order_items' table.
// Price and Options are copies taken at purchase time.
type OrderLineRecord struct {
	ID        string    `json:"id" db:"id"`
	OrderID   string    `json:"orderId" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Price     Money     `json:"price" db:"price"`
	Options   Options   `json:"options" db:"options"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Display only, joined from products.
	Product *ProductSummary `json:"product,omitempty" db:"-"`
}

// OrderDetail is an order together with its lines.
type OrderDetail struct {
	Order
	Items []OrderLineRecord `json:"orderItems"`
}

type UpdateOrderStatusInput struct {
	Status string `json:"status" binding:"required"`
}
