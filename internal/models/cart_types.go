package models

import "time"

// Options are the selected product options of a line (color, lens type, ...).
type Options map[string]string

// CartItem defines the struct for the 'cart_items' table.
// It holds a product reference only, never a price copy.
type CartItem struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Options   Options   `json:"options" db:"options"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CartLineView is a cart item joined with the live catalog row.
// It is re-priced from Product on every read.
type CartLineView struct {
	CartItem
	Product Product `json:"product"`
}

// UnitPrice is the current catalog price of the line.
func (l CartLineView) UnitPrice() Money {
	return l.Product.Price
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Options   Options `json:"options"`
}

// UpdateCartItemInput defines the JSON for updating an item's quantity.
// Zero is rejected here; removing a line is a DELETE.
type UpdateCartItemInput struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}
