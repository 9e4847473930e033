package models

import "time"

// Category defines the struct for the 'categories' table
type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	ImageURL    *string   `json:"imageUrl,omitempty" db:"image_url"` // Use pointer for NULL
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type CreateCategoryInput struct {
	Name        string  `json:"name" binding:"required"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}
