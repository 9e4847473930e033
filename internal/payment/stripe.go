package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider talks to Stripe's PaymentIntents API.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	return &StripeProvider{api: client.New(secretKey, nil)}, nil
}

func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (p *StripeProvider) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve payment intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		Status:       IntentStatus(pi.Status),
		Metadata:     copyMetadata(pi.Metadata),
	}
}
