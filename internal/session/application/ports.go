package application

import (
	"context"

	stripego "github.com/stripe/stripe-go/v74"

	appconfigdomain "github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/internal/session/domain"
)

// ConfigResolver yields the active configuration for a sales channel.
// found=false means no (or a dangling) mapping, which is not an error.
type ConfigResolver interface {
	ConfigurationForChannel(ctx context.Context, tenant, channelID string) (appconfigdomain.ConfigurationEntry, bool, error)
}

// IntentClient is the processor's payment-intent API. Timeouts and
// retries belong to the implementation, not to this layer.
type IntentClient interface {
	Create(ctx context.Context, secretKey string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
	Update(ctx context.Context, secretKey, intentID string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
}

// TransactionRepository persists transactions together with their outbox
// events in one database transaction.
type TransactionRepository interface {
	SaveWithOutbox(ctx context.Context, t domain.Transaction, eventType string, payload []byte, headers map[string]string, traceparent string) error
	Get(ctx context.Context, tenant, transactionID string) (domain.Transaction, error)
}
