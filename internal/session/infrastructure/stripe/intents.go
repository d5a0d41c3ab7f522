package stripe

import (
	"context"
	"log/slog"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// IntentClient calls the Stripe payment-intent API with a per-call
// secret key, since every tenant configuration carries its own.
type IntentClient struct {
	log *slog.Logger
}

func NewIntentClient(log *slog.Logger) *IntentClient {
	return &IntentClient{log: log}
}

func (c *IntentClient) Create(ctx context.Context, secretKey string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	api := &client.API{}
	api.Init(secretKey, nil)
	params.Context = ctx
	return api.PaymentIntents.New(params)
}

func (c *IntentClient) Update(ctx context.Context, secretKey, intentID string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	api := &client.API{}
	api.Init(secretKey, nil)
	params.Context = ctx
	return api.PaymentIntents.Update(intentID, params)
}
