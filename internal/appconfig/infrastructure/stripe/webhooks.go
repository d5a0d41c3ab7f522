package stripe

import (
	"context"
	"log/slog"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/commercekit/stripe-bridge/internal/appconfig/application"
)

// enabledEvents is the set of payment-intent lifecycle events the bridge
// subscribes every provisioned endpoint to.
var enabledEvents = []string{
	"payment_intent.succeeded",
	"payment_intent.processing",
	"payment_intent.payment_failed",
	"payment_intent.canceled",
	"payment_intent.requires_action",
	"payment_intent.amount_capturable_updated",
}

// Provisioner manages Stripe webhook endpoints. Endpoints are scoped to a
// secret key, so a fresh API client is built per call.
type Provisioner struct {
	log *slog.Logger
}

func NewProvisioner(log *slog.Logger) *Provisioner {
	return &Provisioner{log: log}
}

func (p *Provisioner) Create(ctx context.Context, secretKey, callbackURL string) (application.Webhook, error) {
	api := &client.API{}
	api.Init(secretKey, nil)

	params := &stripego.WebhookEndpointParams{
		Params:        stripego.Params{Context: ctx},
		URL:           stripego.String(callbackURL),
		EnabledEvents: stripego.StringSlice(enabledEvents),
	}
	endpoint, err := api.WebhookEndpoints.New(params)
	if err != nil {
		return application.Webhook{}, err
	}

	p.log.Info("webhook endpoint provisioned", "webhook_id", endpoint.ID, "url", callbackURL)
	return application.Webhook{ID: endpoint.ID, Secret: endpoint.Secret}, nil
}

func (p *Provisioner) Delete(ctx context.Context, webhookID, secretKey string) error {
	api := &client.API{}
	api.Init(secretKey, nil)

	_, err := api.WebhookEndpoints.Del(webhookID, &stripego.WebhookEndpointParams{
		Params: stripego.Params{Context: ctx},
	})
	return err
}
