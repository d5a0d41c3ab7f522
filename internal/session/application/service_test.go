package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v74"

	appconfigdomain "github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/internal/session/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
)

const testTenant = "https://shop.example.com/graphql/"

type fakeResolver struct {
	entries map[string]appconfigdomain.ConfigurationEntry
}

func (r *fakeResolver) ConfigurationForChannel(_ context.Context, _, channelID string) (appconfigdomain.ConfigurationEntry, bool, error) {
	entry, ok := r.entries[channelID]
	return entry, ok, nil
}

type fakeIntents struct {
	createdWith *stripego.PaymentIntentParams
	updatedID   string
	intent      *stripego.PaymentIntent
	err         error
}

func (c *fakeIntents) Create(_ context.Context, _ string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.createdWith = params
	return c.intent, nil
}

func (c *fakeIntents) Update(_ context.Context, _ string, intentID string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.updatedID = intentID
	return c.intent, nil
}

type savedTransaction struct {
	t         domain.Transaction
	eventType string
	payload   []byte
}

type fakeRepo struct {
	saved []savedTransaction
}

func (r *fakeRepo) SaveWithOutbox(_ context.Context, t domain.Transaction, eventType string, payload []byte, _ map[string]string, _ string) error {
	r.saved = append(r.saved, savedTransaction{t: t, eventType: eventType, payload: payload})
	return nil
}

func (r *fakeRepo) Get(_ context.Context, _, transactionID string) (domain.Transaction, error) {
	for _, s := range r.saved {
		if s.t.TransactionID == transactionID {
			return s.t, nil
		}
	}
	return domain.Transaction{}, errors.New("not found")
}

func sessionEvent() domain.TransactionSessionEvent {
	return domain.TransactionSessionEvent{
		TransactionID: "txn_1",
		Flow:          domain.FlowCharge,
		Source: domain.SourceObject{
			Type:        domain.SourceCheckout,
			ID:          "checkout_1",
			ChannelID:   "web",
			TotalAmount: decimal.RequireFromString("222.99"),
			Currency:    "USD",
		},
	}
}

func newServiceEnv(status stripego.PaymentIntentStatus) (*Service, *fakeIntents, *fakeRepo) {
	resolver := &fakeResolver{entries: map[string]appconfigdomain.ConfigurationEntry{
		"web": {
			ConfigurationID: "cfg_1",
			SecretKey:       "sk_live_abc",
			PublishableKey:  "pk_live_abc",
		},
	}}
	intents := &fakeIntents{intent: &stripego.PaymentIntent{
		ID:           "pi_1",
		Status:       status,
		Amount:       22299,
		Currency:     "usd",
		ClientSecret: "pi_1_secret",
	}}
	repo := &fakeRepo{}
	return NewService(slog.Default(), resolver, intents, repo), intents, repo
}

func TestInitializeCreatesIntentAndRecordsResult(t *testing.T) {
	svc, intents, repo := newServiceEnv(stripego.PaymentIntentStatusRequiresPaymentMethod)

	res, err := svc.Initialize(context.Background(), testTenant, sessionEvent())
	require.NoError(t, err)

	assert.Equal(t, domain.ChargeRequested, res.Result)
	assert.Equal(t, "pi_1", res.IntentID)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	assert.Equal(t, "pk_live_abc", res.PublishableKey)

	require.NotNil(t, intents.createdWith)
	assert.Equal(t, int64(22299), *intents.createdWith.Amount)

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Equal(t, "TransactionResultChanged", saved.eventType)
	assert.Equal(t, domain.ChargeRequested, saved.t.Result)
	assert.Equal(t, testTenant, saved.t.Tenant)

	var event domain.TransactionResultChanged
	require.NoError(t, json.Unmarshal(saved.payload, &event))
	assert.Equal(t, "txn_1", event.TransactionID)
	assert.Equal(t, domain.ChargeRequested, event.Result)
}

func TestInitializeWithoutConfiguration(t *testing.T) {
	svc, _, repo := newServiceEnv(stripego.PaymentIntentStatusSucceeded)

	ev := sessionEvent()
	ev.Source.ChannelID = "unmapped"

	_, err := svc.Initialize(context.Background(), testTenant, ev)
	require.ErrorIs(t, err, ErrNoConfiguration)
	assert.Empty(t, repo.saved)
}

func TestInitializeWrapsProcessorFailure(t *testing.T) {
	svc, intents, repo := newServiceEnv(stripego.PaymentIntentStatusSucceeded)
	intents.err = errors.New("stripe 500")

	_, err := svc.Initialize(context.Background(), testTenant, sessionEvent())
	require.Error(t, err)
	assert.True(t, apperror.IsUpstream(err))
	assert.Empty(t, repo.saved)
}

func TestProcessUpdatesExistingIntent(t *testing.T) {
	svc, intents, repo := newServiceEnv(stripego.PaymentIntentStatusSucceeded)

	res, err := svc.Process(context.Background(), testTenant, "pi_1", sessionEvent())
	require.NoError(t, err)

	assert.Equal(t, "pi_1", intents.updatedID)
	assert.Equal(t, domain.ChargeSuccess, res.Result)
	require.Len(t, repo.saved, 1)
}

func TestHandleIntentEventRecoversFlowFromCaptureMethod(t *testing.T) {
	svc, _, repo := newServiceEnv(stripego.PaymentIntentStatusSucceeded)

	intent := &stripego.PaymentIntent{
		ID:            "pi_9",
		Status:        stripego.PaymentIntentStatusRequiresCapture,
		CaptureMethod: stripego.PaymentIntentCaptureMethodManual,
		Amount:        5000,
		Currency:      "eur",
		Metadata: map[string]string{
			domain.MetaTransactionID: "txn_9",
			domain.MetaChannelID:     "web",
		},
	}
	require.NoError(t, svc.HandleIntentEvent(context.Background(), testTenant, intent))

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0].t
	assert.Equal(t, domain.FlowAuthorization, saved.Flow)
	assert.Equal(t, domain.AuthorizationActionRequired, saved.Result)
	assert.Equal(t, "txn_9", saved.TransactionID)
	assert.Equal(t, int64(5000), saved.AmountMinor)
}

func TestHandleIntentEventSkipsForeignIntent(t *testing.T) {
	svc, _, repo := newServiceEnv(stripego.PaymentIntentStatusSucceeded)

	intent := &stripego.PaymentIntent{
		ID:            "pi_9",
		Status:        stripego.PaymentIntentStatusSucceeded,
		CaptureMethod: stripego.PaymentIntentCaptureMethodAutomatic,
	}
	err := svc.HandleIntentEvent(context.Background(), testTenant, intent)
	require.ErrorIs(t, err, ErrForeignIntent)
	assert.Empty(t, repo.saved)
}
