package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/visioncraft/storefront/internal/apperr"
)

const (
	msgProductHasOrders = "Cannot delete product: it has been ordered by customers. Deactivate it instead of deleting."
	msgUserHasOrders    = "Cannot delete user with existing orders. Please contact support for account closure."
)

// Guard performs hard deletes that must not break order history.
// Cart lines are ephemeral and are removed along the way; orders are not.
type Guard struct {
	db *sql.DB
}

func NewGuard(db *sql.DB) *Guard {
	return &Guard{db: db}
}

// DeleteProduct refuses to remove a product that any order line references.
func (g *Guard) DeleteProduct(ctx context.Context, id string) error {
	return withTx(ctx, g.db, nil, func(tx *sql.Tx) error {
		var exists string
		err := tx.QueryRowContext(ctx, "SELECT id FROM products WHERE id = ? FOR UPDATE", id).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("Product not found")
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		var ordered int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_items WHERE product_id = ?", id).Scan(&ordered); err != nil {
			return fmt.Errorf("failed to count order items: %w", err)
		}
		if ordered > 0 {
			return apperr.Conflict(msgProductHasOrders)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE product_id = ?", id); err != nil {
			return fmt.Errorf("failed to remove cart items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id); err != nil {
			if isForeignKeyViolation(err) {
				return apperr.Conflict(msgProductHasOrders)
			}
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
}

// DeleteUser clears the user's cart, then removes the user unless orders exist.
// The cart removal commits even when the user row stays.
func (g *Guard) DeleteUser(ctx context.Context, id string) error {
	if _, err := g.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove cart items: %w", err)
	}

	return withTx(ctx, g.db, nil, func(tx *sql.Tx) error {
		var orders int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE user_id = ?", id).Scan(&orders); err != nil {
			return fmt.Errorf("failed to count orders: %w", err)
		}
		if orders > 0 {
			return apperr.Conflict(msgUserHasOrders)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperr.Conflict(msgUserHasOrders)
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("User not found")
		}
		return nil
	})
}
