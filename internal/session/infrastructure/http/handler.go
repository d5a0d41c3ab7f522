package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configapp "github.com/commercekit/stripe-bridge/internal/appconfig/application"
	configdomain "github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/internal/session/application"
	"github.com/commercekit/stripe-bridge/internal/session/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
	"github.com/commercekit/stripe-bridge/pkg/metrics"
)

const (
	tenantHeader   = "Saleor-Api-Url"
	maxWebhookBody = 1 << 20
)

// EventDeduper tracks handled webhook event ids. The handler marks an
// id only after the event was handled, so a transient failure leaves it
// unset and Stripe's redelivery gets processed instead of skipped.
type EventDeduper interface {
	Key(tenant, eventID string) string
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	cfg    *configapp.Configurator
	idem   EventDeduper
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, svc *application.Service, cfg *configapp.Configurator, idem EventDeduper) *Handler {
	return &Handler{
		log:    log,
		svc:    svc,
		cfg:    cfg,
		idem:   idem,
		tracer: otel.Tracer("session-http"),
	}
}

func (h *Handler) AppendRoutes(r chi.Router) {
	r.Post("/sessions/initialize", h.initialize)
	r.Post("/sessions/process", h.process)
	r.Get("/transactions/{transactionID}", h.getTransaction)
	r.Post("/webhooks/stripe", h.stripeWebhook)
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SessionInitialize")
	defer span.End()

	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		http.Error(w, "missing "+tenantHeader+" header", http.StatusBadRequest)
		return
	}

	var ev domain.TransactionSessionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Initialize(ctx, tenant, ev)
	if err != nil {
		h.failSession(w, "initialize", err)
		return
	}
	metrics.SessionRequestsTotal.WithLabelValues("initialize", "ok").Inc()
	writeJSON(w, http.StatusOK, sessionResponse(res))
}

type processReq struct {
	IntentID string                         `json:"intentId"`
	Event    domain.TransactionSessionEvent `json:"event"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SessionProcess")
	defer span.End()

	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		http.Error(w, "missing "+tenantHeader+" header", http.StatusBadRequest)
		return
	}

	var req processReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IntentID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Process(ctx, tenant, req.IntentID, req.Event)
	if err != nil {
		h.failSession(w, "process", err)
		return
	}
	metrics.SessionRequestsTotal.WithLabelValues("process", "ok").Inc()
	writeJSON(w, http.StatusOK, sessionResponse(res))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetTransaction")
	defer span.End()

	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		http.Error(w, "missing "+tenantHeader+" header", http.StatusBadRequest)
		return
	}

	t, err := h.svc.Get(ctx, tenant, chi.URLParam(r, "transactionID"))
	if err != nil {
		status := apperror.Status(err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactionId": t.TransactionID,
		"intentId":      t.IntentID,
		"result":        t.Result,
		"amountMinor":   t.AmountMinor,
		"currency":      t.Currency,
	})
}

// stripeWebhook receives payment-intent lifecycle events. The tenant is
// carried in the callback URL registered at provisioning time. The
// signature is checked against every distinct webhook secret the tenant
// holds, since configurations sharing a credential share a secret.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StripeWebhook")
	defer span.End()
	start := time.Now()

	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	cfg, err := h.cfg.GetConfig(ctx, tenant)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		h.log.Error("webhook config read failed", "tenant", tenant, "err", err)
		http.Error(w, "config unavailable", http.StatusInternalServerError)
		return
	}

	event, verified := h.verifySignature(payload, r.Header.Get("Stripe-Signature"), cfg.Configurations)
	if !verified {
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	dedupKey := h.idem.Key(tenant, event.ID)
	seen, err := h.idem.Seen(ctx, dedupKey)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		h.log.Error("webhook dedup check failed", "event_id", event.ID, "err", err)
		http.Error(w, "dedup unavailable", http.StatusInternalServerError)
		return
	}
	if seen {
		metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	var intent stripego.PaymentIntent
	if err := gojson.Unmarshal(event.Data.Raw, &intent); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, "malformed event payload", http.StatusBadRequest)
		return
	}

	if err := h.svc.HandleIntentEvent(ctx, tenant, &intent); err != nil {
		if errors.Is(err, application.ErrForeignIntent) {
			metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
			h.log.Info("ignoring payment intent created outside this service", "intent_id", intent.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		h.log.Error("webhook handling failed", "event_id", event.ID, "intent_id", intent.ID, "err", err)
		http.Error(w, http.StatusText(apperror.Status(err)), apperror.Status(err))
		return
	}

	// Mark only after handling succeeded: an unmarked id stays eligible
	// for Stripe's redelivery, and the transaction upsert makes a rare
	// double-handled event harmless.
	if err := h.idem.Mark(ctx, dedupKey); err != nil {
		h.log.Warn("webhook dedup mark failed", "event_id", event.ID, "err", err)
	}

	metrics.WebhookEventsTotal.WithLabelValues("ok").Inc()
	metrics.WebhookEventDuration.Observe(time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) verifySignature(payload []byte, sigHeader string, entries []configdomain.ConfigurationEntry) (stripego.Event, bool) {
	tried := map[string]struct{}{}
	for _, entry := range entries {
		if entry.WebhookSecret == "" {
			continue
		}
		if _, done := tried[entry.WebhookSecret]; done {
			continue
		}
		tried[entry.WebhookSecret] = struct{}{}

		event, err := webhook.ConstructEvent(payload, sigHeader, entry.WebhookSecret)
		if err == nil {
			return event, true
		}
	}
	return stripego.Event{}, false
}

func (h *Handler) failSession(w http.ResponseWriter, op string, err error) {
	metrics.SessionRequestsTotal.WithLabelValues(op, "error").Inc()
	h.log.Error("session operation failed", "op", op, "err", err)

	if errors.Is(err, application.ErrNoConfiguration) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	status := apperror.Status(err)
	http.Error(w, http.StatusText(status), status)
}

func sessionResponse(res application.SessionResult) map[string]any {
	return map[string]any{
		"transactionId":  res.TransactionID,
		"intentId":       res.IntentID,
		"result":         res.Result,
		"clientSecret":   res.ClientSecret,
		"publishableKey": res.PublishableKey,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
