package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, slug, description, image_url, created_at FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var (
			c           models.Category
			description sql.NullString
			imageURL    sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &description, &imageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Description = description.String
		if imageURL.Valid {
			c.ImageURL = &imageURL.String
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) Create(ctx context.Context, in models.CreateCategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Category name is required")
	}
	c := models.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        in.Slug,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if c.Slug == "" {
		c.Slug = name
	}
	c.Slug = slug.Make(c.Slug)

	query := "INSERT INTO categories (id, name, slug, description, image_url, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Slug, c.Description, c.ImageURL, c.CreatedAt); err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.Conflictf("A category with slug %q already exists", c.Slug)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}
