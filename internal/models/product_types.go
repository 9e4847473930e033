package models

import (
	"time"
)

// Product is the model for the 'products' table.
// Nullable columns are pointers so they serialise cleanly.
type Product struct {
	ID          string `json:"id" db:"id"`
	Slug        string `json:"slug" db:"slug"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// --- Pricing & Stock ---
	Price         Money   `json:"price" db:"price"`
	OriginalPrice *Money  `json:"originalPrice,omitempty" db:"original_price"`
	CategoryID    *string `json:"categoryId,omitempty" db:"category_id"`
	Brand         string  `json:"brand" db:"brand"`
	Stock         int     `json:"stock" db:"stock"`

	// --- Media & Content (JSON columns) ---
	Images         []string          `json:"images" db:"images"`
	Images360      []string          `json:"images360,omitempty" db:"images_360"`
	Features       []string          `json:"features" db:"features"`
	Specifications map[string]string `json:"specifications" db:"specifications"`

	// IsActive is the soft-delete flag. Inactive products stay referenced by old orders.
	IsActive bool `json:"isActive" db:"is_active"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProductSummary is the display-only slice of a product attached to order lines.
type ProductSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Slug   string   `json:"slug"`
	Images []string `json:"images"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategoryID string
	Search     string
}

// ProductInput is the admin create payload.
type ProductInput struct {
	Slug           string            `json:"slug"`
	Name           string            `json:"name" binding:"required"`
	Description    string            `json:"description"`
	Price          Money             `json:"price"`
	OriginalPrice  *Money            `json:"originalPrice"`
	CategoryID     *string           `json:"categoryId"`
	Brand          string            `json:"brand"`
	Stock          int               `json:"stock" binding:"gte=0"`
	Images         []string          `json:"images"`
	Images360      []string          `json:"images360"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	IsActive       *bool             `json:"isActive"`
}

// ProductPatch is the admin partial-update payload. Nil fields are left untouched.
type ProductPatch struct {
	Slug           *string            `json:"slug"`
	Name           *string            `json:"name"`
	Description    *string            `json:"description"`
	Price          *Money             `json:"price"`
	OriginalPrice  *Money             `json:"originalPrice"`
	CategoryID     *string            `json:"categoryId"`
	Brand          *string            `json:"brand"`
	Stock          *int               `json:"stock" binding:"omitempty,gte=0"`
	Images         *[]string          `json:"images"`
	Images360      *[]string          `json:"images360"`
	Features       *[]string          `json:"features"`
	Specifications *map[string]string `json:"specifications"`
	IsActive       *bool              `json:"isActive"`
}
