// Package checkout turns a paid cart into an order.
//
// A checkout attempt moves NO_INTENT -> INTENT_CREATED -> CONFIRMED ->
// ORDER_CREATED. FAILED is reachable from INTENT_CREATED when the provider
// errors or declines, and from CONFIRMED when the order cannot be written
// after money was captured. The second case is reported as InconsistentState
// and raised as an audit alert.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/models"
	"github.com/visioncraft/storefront/internal/payment"
	"github.com/visioncraft/storefront/internal/pricing"
	"github.com/visioncraft/storefront/internal/store"
)

type State string

const (
	StateNoIntent      State = "NO_INTENT"
	StateIntentCreated State = "INTENT_CREATED"
	StateConfirmed     State = "CONFIRMED"
	StateOrderCreated  State = "ORDER_CREATED"
	StateFailed        State = "FAILED"
)

// OrderPlacer writes orders. Implemented by *store.OrderStore.
type OrderPlacer interface {
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.OrderDetail, error)
	PlaceFromCart(ctx context.Context, req store.PlaceOrderRequest) (*models.OrderDetail, bool, error)
}

// CartReader is implemented by *store.CartStore.
type CartReader interface {
	ListItems(ctx context.Context, userID string) ([]models.CartLineView, error)
}

// SettingsReader is implemented by *settings.Service.
type SettingsReader interface {
	Value(ctx context.Context, key string) (string, error)
}

type Options struct {
	// AllowDevIntents enables the synthetic pi_dev_ path. Never set in production.
	AllowDevIntents bool
	// ProviderTimeout bounds each payment provider call.
	ProviderTimeout time.Duration
	DefaultCurrency string
}

type Coordinator struct {
	provider payment.Provider
	orders   OrderPlacer
	carts    CartReader
	settings SettingsReader
	audit    audit.Sink
	logger   *zap.Logger
	opts     Options
	locks    *userLocks
	now      func() time.Time
}

// NewCoordinator builds a coordinator. provider may be nil when no payment
// gateway is configured; only development intents work in that case.
func NewCoordinator(provider payment.Provider, orders OrderPlacer, carts CartReader, settings SettingsReader, sink audit.Sink, logger *zap.Logger, opts Options) *Coordinator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 15 * time.Second
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "usd"
	}
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}
	return &Coordinator{
		provider: provider,
		orders:   orders,
		carts:    carts,
		settings: settings,
		audit:    sink,
		logger:   logger,
		opts:     opts,
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

// CreateIntent opens a payment attempt for amount. When the provider fails or
// is missing, a development intent is returned if they are allowed.
func (c *Coordinator) CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (*payment.Intent, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("Amount must be greater than zero")
	}
	amount = amount.Round(2)

	req := payment.IntentRequest{
		Amount:   amount,
		Currency: c.currency(ctx),
		Metadata: map[string]string{payment.MetadataUserID: userID},
	}
	if lines, err := c.carts.ListItems(ctx, userID); err == nil {
		req.Metadata["cartLines"] = strconv.Itoa(len(lines))
	}

	log := c.logger.With(zap.String("user_id", userID), zap.String("amount", amount.StringFixed(2)))

	var providerErr error
	if c.provider != nil {
		pctx, cancel := context.WithTimeout(ctx, c.opts.ProviderTimeout)
		intent, err := c.provider.CreateIntent(pctx, req)
		cancel()
		if err == nil {
			log.Info("payment intent created", zap.String("intent_id", intent.ID))
			c.transition(log, StateNoIntent, StateIntentCreated)
			return intent, nil
		}
		providerErr = err
		log.Warn("payment provider create intent failed", zap.Error(err))
	}

	if !c.opts.AllowDevIntents {
		c.transition(log, StateNoIntent, StateFailed)
		if providerErr == nil {
			return nil, apperr.PaymentProvider("Payment provider is not configured", nil)
		}
		return nil, apperr.PaymentProvider("Failed to create payment intent", providerErr)
	}

	intent := payment.NewDevelopmentIntent(c.now(), req)
	log.Info("using development payment intent", zap.String("intent_id", intent.ID))
	c.transition(log, StateNoIntent, StateIntentCreated)
	return intent, nil
}

// ConfirmPayment verifies the payment behind intentRef and places the order.
// Repeating a confirmation returns the order created the first time.
func (c *Coordinator) ConfirmPayment(ctx context.Context, userID, intentRef string, address models.ShippingAddress) (*models.OrderDetail, error) {
	// 1. --- Normalise the reference ---
	intentID := payment.IntentID(intentRef)
	if intentID == "" {
		return nil, apperr.Validation("Payment intent ID is required")
	}
	dev := payment.IsDevelopment(intentID)
	if dev && !c.opts.AllowDevIntents {
		return nil, apperr.Validation("Development payments are disabled")
	}
	log := c.logger.With(zap.String("user_id", userID), zap.String("intent_id", intentID))

	// 2. --- Serialise checkouts for this user ---
	unlock := c.locks.lock(userID)
	defer unlock()

	// 3. --- Idempotency ---
	existing, err := c.orders.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UserID != userID {
			return nil, apperr.Conflict("Payment has already been used for another order")
		}
		log.Info("payment already confirmed", zap.String("order_id", existing.ID))
		return existing, nil
	}

	// 4. --- Cart must not be empty ---
	lines, err := c.carts.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperr.EmptyCart()
	}

	// 5. --- Verify real payments with the provider ---
	// The captured amount must equal this cart at live prices.
	status := models.OrderStatusCompleted
	var expectedTotal *models.Money
	if !dev {
		_, _, _, total := pricing.Compute(pricing.FromCart(lines)).Money()
		if err := c.verify(ctx, log, userID, intentID, total); err != nil {
			return nil, err
		}
		status = models.OrderStatusProcessing
		expectedTotal = &total
	}
	c.transition(log, StateIntentCreated, StateConfirmed)

	// 6. --- Place the order ---
	order, created, err := c.orders.PlaceFromCart(ctx, store.PlaceOrderRequest{
		UserID:          userID,
		PaymentIntentID: intentID,
		ShippingAddress: address,
		Status:          status,
		ExpectedTotal:   expectedTotal,
	})
	if err != nil {
		c.transition(log, StateConfirmed, StateFailed)
		if dev {
			return nil, err
		}
		return nil, c.inconsistent(ctx, log, userID, intentID, err)
	}

	c.transition(log, StateConfirmed, StateOrderCreated)
	if created {
		c.record(ctx, audit.Event{
			Action:   audit.ActionOrderCreated,
			EntityID: order.ID,
			UserID:   userID,
			Data: map[string]interface{}{
				"paymentIntentId": intentID,
				"total":           order.Total.String(),
				"status":          string(order.Status),
				"items":           len(order.Items),
			},
		})
	}
	return order, nil
}

func (c *Coordinator) verify(ctx context.Context, log *zap.Logger, userID, intentID string, total models.Money) error {
	if c.provider == nil {
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.PaymentProvider("Payment provider is not configured", nil)
	}

	pctx, cancel := context.WithTimeout(ctx, c.opts.ProviderTimeout)
	defer cancel()
	intent, err := c.provider.RetrieveIntent(pctx, intentID)
	if err != nil {
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.PaymentProvider("Failed to verify payment", err)
	}
	if intent.Status != payment.StatusSucceeded {
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.PaymentDeclined("Payment has not succeeded (status: " + string(intent.Status) + ")")
	}

	if owner := intent.Metadata[payment.MetadataUserID]; owner != userID {
		log.Warn("payment intent belongs to another user", zap.String("intent_owner", owner))
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.Conflict("Payment belongs to another user")
	}
	if currency := c.currency(ctx); !strings.EqualFold(intent.Currency, currency) {
		log.Warn("payment currency mismatch", zap.String("paid", intent.Currency), zap.String("expected", currency))
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.PaymentDeclined(fmt.Sprintf("Payment currency %s does not match store currency %s",
			strings.ToUpper(intent.Currency), strings.ToUpper(currency)))
	}
	if !intent.Amount.Equal(total.Decimal) {
		log.Warn("payment amount mismatch", zap.String("paid", intent.Amount.StringFixed(2)), zap.String("expected", total.String()))
		c.transition(log, StateIntentCreated, StateFailed)
		return apperr.PaymentDeclined(fmt.Sprintf("Payment amount %s does not match order total %s",
			intent.Amount.StringFixed(2), total))
	}
	return nil
}

// inconsistent reports a captured payment that has no order.
func (c *Coordinator) inconsistent(ctx context.Context, log *zap.Logger, userID, intentID string, cause error) error {
	log.Error("payment captured but order was not created", zap.Error(cause))
	c.record(ctx, audit.Event{
		Action:   audit.ActionPaymentWithoutOrder,
		EntityID: intentID,
		UserID:   userID,
		Severity: audit.SeverityCritical,
		Data: map[string]interface{}{
			"error": cause.Error(),
			"kind":  apperr.KindOf(cause).String(),
		},
	})
	return apperr.InconsistentState("Payment was received but the order could not be created. Support has been notified.", cause)
}

func (c *Coordinator) record(ctx context.Context, e audit.Event) {
	// The request may already be cancelled; alerts must still be written.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.audit.Record(actx, e); err != nil {
		c.logger.Error("failed to write audit event", zap.String("action", e.Action), zap.Error(err))
	}
}

func (c *Coordinator) currency(ctx context.Context) string {
	if c.settings != nil {
		v, err := c.settings.Value(ctx, models.SettingCurrency)
		if err != nil {
			c.logger.Warn("currency lookup failed", zap.Error(err))
		} else if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return v
		}
	}
	return c.opts.DefaultCurrency
}

func (c *Coordinator) transition(log *zap.Logger, from, to State) {
	log.Debug("checkout state", zap.String("from", string(from)), zap.String("to", string(to)))
}
