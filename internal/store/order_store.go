package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
	"github.com/visioncraft/storefront/internal/pricing"
)

const orderColumns = `o.id, o.user_id, o.status, o.subtotal, o.tax, o.shipping, o.total,
	o.shipping_address, o.payment_intent_id, o.created_at, o.updated_at`

// OrderStore persists orders and their lines. After creation only the status
// column is ever written.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// PlaceOrderRequest carries what the checkout knows once payment is settled.
type PlaceOrderRequest struct {
	UserID          string
	PaymentIntentID string
	ShippingAddress models.ShippingAddress
	Status          models.OrderStatus
	// ExpectedTotal is the amount already captured. When set, placement fails
	// if the cart no longer prices to it.
	ExpectedTotal   *models.Money
}

// PlaceFromCart converts the user's cart into an order in one serializable
// transaction: lock the user row, price the cart at live prices, decrement
// stock, write the order with copied prices and empty the cart.
//
// created is false when an order for the intent already existed; in that case
// the existing order is returned and nothing is written.
func (s *OrderStore) PlaceFromCart(ctx context.Context, req PlaceOrderRequest) (detail *models.OrderDetail, created bool, err error) {
	err = withTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *sql.Tx) error {
		// 1. --- Per-user exclusion ---
		var lockedID string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id = ? FOR UPDATE", req.UserID).Scan(&lockedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("User not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		// 2. --- Idempotency ---
		existing, err := findByPaymentIntent(ctx, tx, req.PaymentIntentID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.UserID != req.UserID {
				return apperr.Conflict("Payment has already been used for another order")
			}
			detail = existing
			return nil
		}

		// 3. --- Load cart & lock products ---
		lines, err := listCartLines(ctx, tx, req.UserID, true)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.EmptyCart()
		}
		for _, l := range lines {
			if !l.Product.IsActive {
				return apperr.Conflictf("%s is no longer available", l.Product.Name)
			}
		}

		// 4. --- Freeze prices ---
		subtotal, tax, shipping, total := pricing.Compute(pricing.FromCart(lines)).Money()
		if req.ExpectedTotal != nil && !total.Equal(req.ExpectedTotal.Decimal) {
			return apperr.Conflictf("Order total changed during checkout (paid %s, now %s)", *req.ExpectedTotal, total)
		}

		// 5. --- Decrement stock ---
		for _, l := range lines {
			res, err := tx.ExecContext(ctx,
				"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?",
				l.Quantity, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			} else if n == 0 {
				return apperr.Conflictf("Not enough stock for %s", l.Product.Name)
			}
		}

		// 6. --- Write order + lines ---
		now := time.Now().UTC().Truncate(time.Second)
		d := &models.OrderDetail{
			Order: models.Order{
				ID:              uuid.NewString(),
				UserID:          req.UserID,
				Status:          req.Status,
				Subtotal:        subtotal,
				Tax:             tax,
				Shipping:        shipping,
				Total:           total,
				ShippingAddress: req.ShippingAddress,
				PaymentIntentID: req.PaymentIntentID,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			Items: make([]models.OrderLineRecord, 0, len(lines)),
		}
		for _, l := range lines {
			d.Items = append(d.Items, models.OrderLineRecord{
				ID:        uuid.NewString(),
				OrderID:   d.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.UnitPrice(),
				Options:   l.Options,
				CreatedAt: now,
				Product: &models.ProductSummary{
					ID:     l.Product.ID,
					Name:   l.Product.Name,
					Slug:   l.Product.Slug,
					Images: l.Product.Images,
				},
			})
		}
		if err := s.CreateOrder(ctx, tx, d); err != nil {
			return err
		}

		// 7. --- Clear the cart ---
		if err := clearCart(ctx, tx, req.UserID); err != nil {
			return err
		}

		detail, created = d, true
		return nil
	})

	if err != nil {
		// A concurrent confirm for the same intent won the insert.
		if isDuplicateKey(err) {
			existing, findErr := s.FindByPaymentIntent(ctx, req.PaymentIntentID)
			if findErr == nil && existing != nil && existing.UserID == req.UserID {
				return existing, false, nil
			}
			return nil, false, apperr.Conflict("Payment has already been used for another order")
		}
		return nil, false, err
	}
	return detail, created, nil
}

// CreateOrder writes the header and every line through q. Callers run it inside
// a transaction so a failure on any line leaves no order behind.
func (s *OrderStore) CreateOrder(ctx context.Context, q Querier, d *models.OrderDetail) error {
	if len(d.Items) == 0 {
		return apperr.EmptyCart()
	}
	address, err := json.Marshal(d.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO orders
		(id, user_id, status, subtotal, tax, shipping, total, shipping_address, payment_intent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, string(d.Status), d.Subtotal.String(), d.Tax.String(), d.Shipping.String(), d.Total.String(),
		string(address), d.PaymentIntentID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, item := range d.Items {
		options, err := marshalJSON(item.Options, "{}")
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		if _, err := q.ExecContext(ctx, itemQuery,
			item.ID, d.ID, item.ProductID, item.Quantity, item.Price.String(), options, item.CreatedAt); err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
	}
	return nil
}

// CreateOrderTx is CreateOrder in its own transaction.
func (s *OrderStore) CreateOrderTx(ctx context.Context, d *models.OrderDetail) error {
	return withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return s.CreateOrder(ctx, tx, d)
	})
}

// UpdateStatus is the only mutation allowed on an existing order.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID, status string) (*models.OrderDetail, error) {
	next, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, apperr.Validationf("Invalid status %q. Must be one of: %s", status, statusList())
	}

	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var current models.OrderStatus
		err := tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = ? FOR UPDATE", orderID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("Order not found")
			}
			return fmt.Errorf("failed to load order status: %w", err)
		}
		if current == next {
			return nil
		}
		if !current.CanTransitionTo(next) {
			return apperr.Validationf("Cannot change order status from %s to %s", current, next)
		}

		if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ?, updated_at = ? WHERE id = ?",
			string(next), time.Now().UTC().Truncate(time.Second), orderID); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// GetOrders lists orders newest first: all orders when userID is nil, else only that user's.
// Authorization is the caller's concern.
func (s *OrderStore) GetOrders(ctx context.Context, userID *string) ([]models.OrderDetail, error) {
	query := "SELECT " + orderColumns + " FROM orders o"
	var args []interface{}
	if userID != nil {
		query += " WHERE o.user_id = ?"
		args = append(args, *userID)
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderDetail{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, models.OrderDetail{Order: *o, Items: []models.OrderLineRecord{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := loadOrderItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (*models.OrderDetail, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = ?", id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, err
	}
	orders := []models.OrderDetail{{Order: *o, Items: []models.OrderLineRecord{}}}
	if err := loadOrderItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// FindByPaymentIntent returns nil, nil when no order carries the intent.
func (s *OrderStore) FindByPaymentIntent(ctx context.Context, intentID string) (*models.OrderDetail, error) {
	return findByPaymentIntent(ctx, s.db, intentID)
}

func findByPaymentIntent(ctx context.Context, q Querier, intentID string) (*models.OrderDetail, error) {
	row := q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.payment_intent_id = ?", intentID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	orders := []models.OrderDetail{{Order: *o, Items: []models.OrderLineRecord{}}}
	if err := loadOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o       models.Order
		address []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&address, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if err := unmarshalJSON(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address of order %s: %w", o.ID, err)
	}
	return &o, nil
}

// orderItemsBatch bounds the IN list; MySQL rejects prepared statements with
// more than 65535 placeholders.
const orderItemsBatch = 500

// loadOrderItems fills Items for every order, one IN query per batch of
// orders. The product join is for display only; price and options come from
// the line.
func loadOrderItems(ctx context.Context, q Querier, orders []models.OrderDetail) error {
	index := make(map[string]int, len(orders))
	ids := make([]interface{}, 0, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids = append(ids, o.ID)
	}

	for start := 0; start < len(ids); start += orderItemsBatch {
		end := min(start+orderItemsBatch, len(ids))
		if err := loadOrderItemBatch(ctx, q, orders, index, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func loadOrderItemBatch(ctx context.Context, q Querier, orders []models.OrderDetail, index map[string]int, ids []interface{}) error {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.options, oi.created_at,
		       p.name, p.slug, p.images
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (` + placeholders(len(ids)) + `)
		ORDER BY oi.created_at ASC, oi.id ASC`

	rows, err := q.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item          models.OrderLineRecord
			options       []byte
			name, slugCol sql.NullString
			images        []byte
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&options, &item.CreatedAt, &name, &slugCol, &images); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if item.Options, err = decodeOptions(options); err != nil {
			return err
		}
		if name.Valid {
			summary := &models.ProductSummary{ID: item.ProductID, Name: name.String, Slug: slugCol.String, Images: []string{}}
			if err := unmarshalJSON(images, &summary.Images); err != nil {
				return fmt.Errorf("failed to decode product images: %w", err)
			}
			item.Product = summary
		}

		i, ok := index[item.OrderID]
		if !ok {
			continue
		}
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func statusList() string {
	return strings.Join([]string{
		string(models.OrderStatusPending), string(models.OrderStatusProcessing), string(models.OrderStatusShipped),
		string(models.OrderStatusDelivered), string(models.OrderStatusCompleted), string(models.OrderStatusCancelled),
	}, ", ")
}
