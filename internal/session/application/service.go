package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	stripego "github.com/stripe/stripe-go/v74"

	"github.com/commercekit/stripe-bridge/internal/session/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
	"github.com/commercekit/stripe-bridge/pkg/tracing"
)

// ErrNoConfiguration means the event's channel resolves to no
// configuration entry. The transport decides how to surface it.
var ErrNoConfiguration = errors.New("no configuration for channel")

// ErrForeignIntent marks a payment intent this service did not create.
// Stripe webhook endpoints receive account-wide events, so intents
// without the service's metadata arrive legitimately and are skipped.
var ErrForeignIntent = errors.New("payment intent not created by this service")

const eventTypeResultChanged = "TransactionResultChanged"

// SessionResult is what the platform gets back from initialize/process.
type SessionResult struct {
	TransactionID  string
	IntentID       string
	Result         domain.TransactionResult
	ClientSecret   string
	PublishableKey string
}

type Service struct {
	log     *slog.Logger
	configs ConfigResolver
	intents IntentClient
	repo    TransactionRepository
}

func NewService(log *slog.Logger, configs ConfigResolver, intents IntentClient, repo TransactionRepository) *Service {
	return &Service{log: log, configs: configs, intents: intents, repo: repo}
}

// Initialize resolves the channel's configuration, creates the payment
// intent with that credential, and records the translated result.
func (s *Service) Initialize(ctx context.Context, tenant string, ev domain.TransactionSessionEvent) (SessionResult, error) {
	entry, found, err := s.configs.ConfigurationForChannel(ctx, tenant, ev.Source.ChannelID)
	if err != nil {
		return SessionResult{}, err
	}
	if !found {
		return SessionResult{}, ErrNoConfiguration
	}

	params, err := domain.IntentCreateParams(ev)
	if err != nil {
		return SessionResult{}, err
	}
	intent, err := s.intents.Create(ctx, entry.SecretKey, params)
	if err != nil {
		return SessionResult{}, apperror.Upstream("creating payment intent", err)
	}

	result, err := domain.TranslateIntentStatus(ev.Flow, intent.Status)
	if err != nil {
		return SessionResult{}, err
	}

	t := domain.Transaction{
		TransactionID: ev.TransactionID,
		Tenant:        tenant,
		ChannelID:     ev.Source.ChannelID,
		Flow:          ev.Flow,
		IntentID:      intent.ID,
		Result:        result,
		AmountMinor:   intent.Amount,
		Currency:      string(intent.Currency),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.record(ctx, t); err != nil {
		return SessionResult{}, err
	}

	return SessionResult{
		TransactionID:  t.TransactionID,
		IntentID:       intent.ID,
		Result:         result,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: entry.PublishableKey,
	}, nil
}

// Process updates an existing intent for a follow-up session event and
// records the freshly translated result.
func (s *Service) Process(ctx context.Context, tenant, intentID string, ev domain.TransactionSessionEvent) (SessionResult, error) {
	entry, found, err := s.configs.ConfigurationForChannel(ctx, tenant, ev.Source.ChannelID)
	if err != nil {
		return SessionResult{}, err
	}
	if !found {
		return SessionResult{}, ErrNoConfiguration
	}

	params, err := domain.IntentUpdateParams(ev)
	if err != nil {
		return SessionResult{}, err
	}
	intent, err := s.intents.Update(ctx, entry.SecretKey, intentID, params)
	if err != nil {
		return SessionResult{}, apperror.Upstream("updating payment intent", err)
	}

	result, err := domain.TranslateIntentStatus(ev.Flow, intent.Status)
	if err != nil {
		return SessionResult{}, err
	}

	t := domain.Transaction{
		TransactionID: ev.TransactionID,
		Tenant:        tenant,
		ChannelID:     ev.Source.ChannelID,
		Flow:          ev.Flow,
		IntentID:      intent.ID,
		Result:        result,
		AmountMinor:   intent.Amount,
		Currency:      string(intent.Currency),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.record(ctx, t); err != nil {
		return SessionResult{}, err
	}

	return SessionResult{
		TransactionID:  t.TransactionID,
		IntentID:       intent.ID,
		Result:         result,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: entry.PublishableKey,
	}, nil
}

// HandleIntentEvent translates an asynchronous payment-intent event into
// a result update. The flow strategy is recovered from the intent's
// capture method, which the bridge set at creation time.
func (s *Service) HandleIntentEvent(ctx context.Context, tenant string, intent *stripego.PaymentIntent) error {
	transactionID := intent.Metadata[domain.MetaTransactionID]
	if transactionID == "" {
		return fmt.Errorf("%w: %s", ErrForeignIntent, intent.ID)
	}

	flow, err := flowForCaptureMethod(intent.CaptureMethod)
	if err != nil {
		return err
	}
	result, err := domain.TranslateIntentStatus(flow, intent.Status)
	if err != nil {
		return err
	}

	t := domain.Transaction{
		TransactionID: transactionID,
		Tenant:        tenant,
		ChannelID:     intent.Metadata[domain.MetaChannelID],
		Flow:          flow,
		IntentID:      intent.ID,
		Result:        result,
		AmountMinor:   intent.Amount,
		Currency:      string(intent.Currency),
		UpdatedAt:     time.Now().UTC(),
	}
	return s.record(ctx, t)
}

func (s *Service) Get(ctx context.Context, tenant, transactionID string) (domain.Transaction, error) {
	return s.repo.Get(ctx, tenant, transactionID)
}

func (s *Service) record(ctx context.Context, t domain.Transaction) error {
	event := domain.TransactionResultChanged{
		TransactionID: t.TransactionID,
		IntentID:      t.IntentID,
		Result:        t.Result,
		AmountMinor:   t.AmountMinor,
		Currency:      t.Currency,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	headers := map[string]string{"tenant": t.Tenant}
	return s.repo.SaveWithOutbox(ctx, t, eventTypeResultChanged, payload, headers, tracing.Traceparent(ctx))
}

func flowForCaptureMethod(m stripego.PaymentIntentCaptureMethod) (domain.FlowStrategy, error) {
	switch m {
	case stripego.PaymentIntentCaptureMethodManual:
		return domain.FlowAuthorization, nil
	case stripego.PaymentIntentCaptureMethodAutomatic:
		return domain.FlowCharge, nil
	default:
		return "", apperror.Internal(fmt.Sprintf("unknown capture method %q", m))
	}
}
