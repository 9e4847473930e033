// Package payment adapts the external payment provider and produces local
// development intents when no provider is available.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DevelopmentPrefix marks synthetic intents that never capture money.
	DevelopmentPrefix = "pi_dev_"
	// MetadataUserID names the intent metadata entry holding the buyer.
	MetadataUserID = "userId"
	secretSeparator   = "_secret_"
)

// IntentStatus mirrors the provider's terminal and pending states we care about.
type IntentStatus string

const (
	StatusSucceeded             IntentStatus = "succeeded"
	StatusProcessing            IntentStatus = "processing"
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusCanceled              IntentStatus = "canceled"
)

type Intent struct {
	ID           string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	Status       IntentStatus
	// Metadata is what CreateIntent attached, e.g. the owning userId.
	Metadata     map[string]string
}

func (i *Intent) Development() bool {
	return IsDevelopment(i.ID)
}

type IntentRequest struct {
	Amount   decimal.Decimal
	Currency string
	Metadata map[string]string
}

// Provider is the external payment gateway.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// NewDevelopmentIntent returns a synthetic intent of the form
// pi_dev_<unix millis>_<random>_secret_<random>. The id is the idempotency
// key of the order, so it carries its own random part.
func NewDevelopmentIntent(now time.Time, req IntentRequest) *Intent {
	id := fmt.Sprintf("%s%d_%s", DevelopmentPrefix, now.UnixMilli(), randomHex(12))
	return &Intent{
		ID:           id,
		ClientSecret: id + secretSeparator + randomHex(16),
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       StatusSucceeded,
		Metadata:     copyMetadata(req.Metadata),
	}
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func IsDevelopment(ref string) bool {
	return strings.HasPrefix(ref, DevelopmentPrefix)
}

// IntentID accepts either an intent id or a client secret and returns the id.
func IntentID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, secretSeparator); i > 0 {
		return ref[:i]
	}
	return ref
}

// ToMinorUnits converts an amount to cents, rounding half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
