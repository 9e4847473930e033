package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

// productColumns is shared by every query that scans a full product; keep it in
// sync with scanProduct.
const productColumns = `p.id, p.slug, p.name, p.description, p.price, p.original_price,
	p.category_id, p.brand, p.stock, p.images, p.images_360, p.features,
	p.specifications, p.is_active, p.created_at, p.updated_at`

func scanProduct(row rowScanner, extra ...interface{}) (*models.Product, error) {
	var (
		p                                  models.Product
		description                        sql.NullString
		originalPrice                      decimal.NullDecimal
		categoryID                         sql.NullString
		images, images360, features, specs []byte
	)

	dest := []interface{}{
		&p.ID, &p.Slug, &p.Name, &description, &p.Price, &originalPrice,
		&categoryID, &p.Brand, &p.Stock, &images, &images360, &features,
		&specs, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.Description = description.String
	if originalPrice.Valid {
		op := models.NewMoney(originalPrice.Decimal)
		p.OriginalPrice = &op
	}
	if categoryID.Valid {
		id := categoryID.String
		p.CategoryID = &id
	}

	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{images, &p.Images},
		{images360, &p.Images360},
		{features, &p.Features},
		{specs, &p.Specifications},
	} {
		if err := unmarshalJSON(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode product %s: %w", p.ID, err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return &p, nil
}

// ProductStore is the catalog's source of truth for price, stock and the active flag.
type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns active products, newest first.
func (s *ProductStore) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products p WHERE p.is_active = TRUE"
	var args []interface{}

	if filter.CategoryID != "" {
		query += " AND p.category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query += " AND (p.name LIKE ? OR p.description LIKE ? OR p.brand LIKE ?)"
		like := "%" + search + "%"
		args = append(args, like, like, like)
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.getBy(ctx, s.db, "p.id = ?", id)
}

func (s *ProductStore) GetBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	return s.getBy(ctx, s.db, "p.slug = ?", productSlug)
}

func (s *ProductStore) getBy(ctx context.Context, q Querier, where string, arg interface{}) (*models.Product, error) {
	row := q.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products p WHERE "+where, arg)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// Create inserts a product. An empty slug is derived from the name.
func (s *ProductStore) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := validatePrice(in.Price, in.OriginalPrice); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, apperr.Validation("Stock cannot be negative")
	}

	p := models.Product{
		ID:             uuid.NewString(),
		Slug:           in.Slug,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Price:          models.NewMoney(in.Price.Decimal),
		OriginalPrice:  in.OriginalPrice,
		CategoryID:     in.CategoryID,
		Brand:          in.Brand,
		Stock:          in.Stock,
		Images:         in.Images,
		Images360:      in.Images360,
		Features:       in.Features,
		Specifications: in.Specifications,
		IsActive:       true,
	}
	if p.Name == "" {
		return nil, apperr.Validation("Product name is required")
	}
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	} else {
		p.Slug = slug.Make(p.Slug)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt, p.UpdatedAt = now, now

	args, err := productWriteArgs(&p)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO products
		(id, slug, name, description, price, original_price, category_id, brand, stock,
		 images, images_360, features, specifications, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args = append([]interface{}{p.ID}, args...)
	args = append(args, p.CreatedAt, p.UpdatedAt)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.Conflictf("A product with slug %q already exists", p.Slug)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &p, nil
}

// Update applies a partial patch. Order history is unaffected because order
// lines carry their own price copy.
func (s *ProductStore) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	var updated *models.Product
	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		p, err := s.getBy(ctx, tx, "p.id = ? FOR UPDATE", id)
		if err != nil {
			return err
		}
		applyProductPatch(p, patch)

		if err := validatePrice(p.Price, p.OriginalPrice); err != nil {
			return err
		}
		if p.Stock < 0 {
			return apperr.Validation("Stock cannot be negative")
		}
		if strings.TrimSpace(p.Name) == "" {
			return apperr.Validation("Product name is required")
		}
		p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

		args, err := productWriteArgs(p)
		if err != nil {
			return err
		}
		query := `
			UPDATE products SET
				slug = ?, name = ?, description = ?, price = ?, original_price = ?, category_id = ?,
				brand = ?, stock = ?, images = ?, images_360 = ?, features = ?, specifications = ?,
				is_active = ?, updated_at = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, append(args, p.UpdatedAt, p.ID)...); err != nil {
			if isDuplicateKey(err) {
				return apperr.Conflictf("A product with slug %q already exists", p.Slug)
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyProductPatch(p *models.Product, patch models.ProductPatch) {
	if patch.Slug != nil {
		p.Slug = slug.Make(*patch.Slug)
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = models.NewMoney(patch.Price.Decimal)
	}
	if patch.OriginalPrice != nil {
		p.OriginalPrice = patch.OriginalPrice
	}
	if patch.CategoryID != nil {
		p.CategoryID = patch.CategoryID
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
	if patch.Images360 != nil {
		p.Images360 = *patch.Images360
	}
	if patch.Features != nil {
		p.Features = *patch.Features
	}
	if patch.Specifications != nil {
		p.Specifications = *patch.Specifications
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
}

// productWriteArgs returns the column values from slug through is_active.
func productWriteArgs(p *models.Product) ([]interface{}, error) {
	images, err := marshalJSON(p.Images, "[]")
	if err != nil {
		return nil, err
	}
	images360, err := marshalJSON(p.Images360, "[]")
	if err != nil {
		return nil, err
	}
	features, err := marshalJSON(p.Features, "[]")
	if err != nil {
		return nil, err
	}
	specs, err := marshalJSON(p.Specifications, "{}")
	if err != nil {
		return nil, err
	}

	var originalPrice interface{}
	if p.OriginalPrice != nil {
		originalPrice = p.OriginalPrice.String()
	}
	var categoryID interface{}
	if p.CategoryID != nil && *p.CategoryID != "" {
		categoryID = *p.CategoryID
	}

	return []interface{}{
		p.Slug, p.Name, p.Description, p.Price.String(), originalPrice, categoryID,
		p.Brand, p.Stock, images, images360, features, specs, p.IsActive,
	}, nil
}

func validatePrice(price models.Money, original *models.Money) error {
	if !price.IsPositive() {
		return apperr.Validation("Price must be greater than zero")
	}
	if original != nil && original.IsNegative() {
		return apperr.Validation("Original price cannot be negative")
	}
	return nil
}
