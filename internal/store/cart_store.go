package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

const cartItemColumns = "ci.id, ci.user_id, ci.product_id, ci.quantity, ci.options, ci.created_at"

// CartStore keeps per-user cart lines. A line references a product and never
// stores a price; prices come from the live catalog row on every read.
type CartStore struct {
	db *sql.DB
}

func NewCartStore(db *sql.DB) *CartStore {
	return &CartStore{db: db}
}

// AddItem merges into an existing line with the same product and options,
// or inserts a new one.
func (s *CartStore) AddItem(ctx context.Context, userID, productID string, quantity int, opts models.Options) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperr.Validation("Quantity must be at least 1")
	}
	optionsJSON, optionsKey, err := canonicalOptions(opts)
	if err != nil {
		return nil, apperr.Validation("Invalid options")
	}

	var item *models.CartItem
	err = withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx, "SELECT is_active FROM products WHERE id = ?", productID).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return apperr.NotFound("Product not found or not active")
		}
		if err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}

		// Upsert on (user_id, product_id, options_key).
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, quantity, options, options_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
			uuid.NewString(), userID, productID, quantity, optionsJSON, optionsKey, time.Now().UTC().Truncate(time.Second))
		if err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			"SELECT "+cartItemColumns+" FROM cart_items ci WHERE ci.user_id = ? AND ci.product_id = ? AND ci.options_key = ?",
			userID, productID, optionsKey)
		item, err = scanCartItem(row)
		if err != nil {
			return fmt.Errorf("failed to reload cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateQuantity sets the quantity of one of userID's lines. Zero is rejected;
// removing a line is RemoveItem's job.
func (s *CartStore) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("Quantity must be greater than zero")
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?", quantity, itemID, userID); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+cartItemColumns+" FROM cart_items ci WHERE ci.id = ? AND ci.user_id = ?", itemID, userID)
	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Cart item not found")
		}
		return nil, fmt.Errorf("failed to reload cart item: %w", err)
	}
	return item, nil
}

// RemoveItem is idempotent: removing an absent line is not an error.
func (s *CartStore) RemoveItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = ? AND user_id = ?", itemID, userID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// ListItems returns the user's lines joined with their live product rows.
func (s *CartStore) ListItems(ctx context.Context, userID string) ([]models.CartLineView, error) {
	return listCartLines(ctx, s.db, userID, false)
}

func (s *CartStore) Clear(ctx context.Context, userID string) error {
	return clearCart(ctx, s.db, userID)
}

// listCartLines is shared with order placement, which passes lock=true to hold
// the product rows until commit.
func listCartLines(ctx context.Context, q Querier, userID string, lock bool) ([]models.CartLineView, error) {
	query := "SELECT " + productColumns + ", " + cartItemColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at ASC, ci.id ASC`
	if lock {
		query += " FOR UPDATE"
	}

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLineView{}
	for rows.Next() {
		var (
			line    models.CartLineView
			options []byte
		)
		p, err := scanProduct(rows,
			&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &options, &line.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		line.Product = *p
		if line.Options, err = decodeOptions(options); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func clearCart(ctx context.Context, q Querier, userID string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func scanCartItem(row rowScanner) (*models.CartItem, error) {
	var (
		item    models.CartItem
		options []byte
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &options, &item.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if item.Options, err = decodeOptions(options); err != nil {
		return nil, err
	}
	return &item, nil
}

func decodeOptions(raw []byte) (models.Options, error) {
	opts := models.Options{}
	if err := unmarshalJSON(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return opts, nil
}
