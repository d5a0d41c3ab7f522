package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v74"

	configapp "github.com/commercekit/stripe-bridge/internal/appconfig/application"
	configdomain "github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/internal/session/application"
	"github.com/commercekit/stripe-bridge/internal/session/domain"
	"github.com/commercekit/stripe-bridge/pkg/secrets"
)

const (
	testTenant        = "https://shop.example.com/graphql/"
	testWebhookSecret = "whsec_test_secret"
)

type memStore struct {
	blobs map[string][]byte
}

func (s *memStore) Get(_ context.Context, tenant string) ([]byte, bool, error) {
	blob, ok := s.blobs[tenant]
	return blob, ok, nil
}

func (s *memStore) Set(_ context.Context, tenant string, blob []byte) error {
	s.blobs[tenant] = blob
	return nil
}

type fakeDeduper struct {
	marked map[string]bool
}

func (d *fakeDeduper) Key(tenant, eventID string) string {
	return fmt.Sprintf("idem:%s:%s", tenant, eventID)
}

func (d *fakeDeduper) Seen(_ context.Context, key string) (bool, error) {
	return d.marked[key], nil
}

func (d *fakeDeduper) Mark(_ context.Context, key string) error {
	d.marked[key] = true
	return nil
}

type stubResolver struct{}

func (stubResolver) ConfigurationForChannel(_ context.Context, _, _ string) (configdomain.ConfigurationEntry, bool, error) {
	return configdomain.ConfigurationEntry{}, false, nil
}

type stubIntents struct{}

func (stubIntents) Create(_ context.Context, _ string, _ *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	return nil, errors.New("not used")
}

func (stubIntents) Update(_ context.Context, _, _ string, _ *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	return nil, errors.New("not used")
}

// webhookRepo fails the first `failures` writes so delivery retries can
// be exercised.
type webhookRepo struct {
	failures int
	saved    []domain.Transaction
}

func (r *webhookRepo) SaveWithOutbox(_ context.Context, t domain.Transaction, _ string, _ []byte, _ map[string]string, _ string) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection refused")
	}
	r.saved = append(r.saved, t)
	return nil
}

func (r *webhookRepo) Get(_ context.Context, _, _ string) (domain.Transaction, error) {
	return domain.Transaction{}, errors.New("not found")
}

func newWebhookEnv(t *testing.T, repo *webhookRepo) (*Handler, *fakeDeduper) {
	t.Helper()

	enc, err := secrets.NewEncryptor("app-secret")
	require.NoError(t, err)
	cfg := configapp.NewConfigurator(&memStore{blobs: map[string][]byte{}}, enc)
	require.NoError(t, cfg.SetConfig(context.Background(), testTenant, configapp.AppConfigPatch{
		Configurations: []configdomain.ConfigurationEntry{{
			ConfigurationID:   "cfg_1",
			ConfigurationName: "Live",
			SecretKey:         "sk_live_abc",
			PublishableKey:    "pk_live_abc",
			WebhookID:         "we_1",
			WebhookSecret:     testWebhookSecret,
		}},
	}, false))

	svc := application.NewService(slog.Default(), stubResolver{}, stubIntents{}, repo)
	idem := &fakeDeduper{marked: map[string]bool{}}
	return NewHandler(slog.Default(), svc, cfg, idem), idem
}

func intentEventPayload(withMetadata bool) []byte {
	metadata := ""
	if withMetadata {
		metadata = fmt.Sprintf(`"metadata":{"%s":"txn_77","%s":"web"},`, domain.MetaTransactionID, domain.MetaChannelID)
	}
	intent := fmt.Sprintf(`{"id":"pi_77","status":"succeeded","capture_method":"automatic","amount":5000,"currency":"eur",%s"object":"payment_intent"}`, metadata)
	return []byte(fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":"payment_intent.succeeded","data":{"object":%s}}`, stripego.APIVersion, intent))
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliverWebhook(h *Handler, payload []byte, sig string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.AppendRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe?tenant="+url.QueryEscape(testTenant), bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookRedeliveryAfterTransientFailure(t *testing.T) {
	repo := &webhookRepo{failures: 1}
	h, idem := newWebhookEnv(t, repo)
	payload := intentEventPayload(true)
	sig := signPayload(payload, testWebhookSecret)

	rec := deliverWebhook(h, payload, sig)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, repo.saved)
	assert.Empty(t, idem.marked, "failed delivery must not consume the event id")

	rec = deliverWebhook(h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "txn_77", repo.saved[0].TransactionID)
	assert.Equal(t, domain.ChargeSuccess, repo.saved[0].Result)
	assert.True(t, idem.marked[idem.Key(testTenant, "evt_1")])
}

func TestStripeWebhookDuplicateDeliveryHandledOnce(t *testing.T) {
	repo := &webhookRepo{}
	h, _ := newWebhookEnv(t, repo)
	payload := intentEventPayload(true)
	sig := signPayload(payload, testWebhookSecret)

	rec := deliverWebhook(h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = deliverWebhook(h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, repo.saved, 1)
}

func TestStripeWebhookAcknowledgesForeignIntent(t *testing.T) {
	repo := &webhookRepo{}
	h, _ := newWebhookEnv(t, repo)
	payload := intentEventPayload(false)

	rec := deliverWebhook(h, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, repo.saved)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	repo := &webhookRepo{}
	h, _ := newWebhookEnv(t, repo)
	payload := intentEventPayload(true)

	rec := deliverWebhook(h, payload, signPayload(payload, "whsec_other"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.saved)
}
