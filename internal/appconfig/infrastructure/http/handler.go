package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commercekit/stripe-bridge/internal/appconfig/application"
	"github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
	"github.com/commercekit/stripe-bridge/pkg/metrics"
)

// TenantHeader carries the platform API URL that identifies the tenant.
const TenantHeader = "Saleor-Api-Url"

type Handler struct {
	log     *slog.Logger
	cfg     *application.Configurator
	manager *application.Manager
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, cfg *application.Configurator, manager *application.Manager) *Handler {
	return &Handler{
		log:     log,
		cfg:     cfg,
		manager: manager,
		tracer:  otel.Tracer("appconfig-http"),
	}
}

func (h *Handler) AppendRoutes(r chi.Router) {
	r.Get("/config", h.getConfig)
	r.Post("/config/entries", h.addEntry)
	r.Patch("/config/entries/{configurationID}", h.updateEntry)
	r.Delete("/config/entries/{configurationID}", h.deleteEntry)
	r.Put("/config/channels/{channelID}", h.setChannelMapping)
	r.Delete("/config/channels/{channelID}", h.deleteChannelMapping)
}

// getConfig always returns the obfuscated view; decrypted credentials
// never leave the service over HTTP.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetConfig")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	cfg, err := h.cfg.GetConfigObfuscated(ctx, tenant)
	if err != nil {
		h.fail(w, "get_config", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("get", "ok").Inc()
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddConfigEntry")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var input application.NewEntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	entry, err := h.manager.AddEntry(ctx, tenant, input)
	if err != nil {
		h.fail(w, "add_entry", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("add_entry", "ok").Inc()
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateConfigEntry")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var patch domain.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	entry, err := h.manager.UpdateEntry(ctx, tenant, chi.URLParam(r, "configurationID"), patch)
	if err != nil {
		h.fail(w, "update_entry", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("update_entry", "ok").Inc()
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteConfigEntry")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	if err := h.manager.DeleteEntry(ctx, tenant, chi.URLParam(r, "configurationID")); err != nil {
		h.fail(w, "delete_entry", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("delete_entry", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

type setMappingReq struct {
	ConfigurationID string `json:"configurationId"`
}

func (h *Handler) setChannelMapping(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SetChannelMapping")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var req setMappingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigurationID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := h.manager.SetChannelMapping(ctx, tenant, chi.URLParam(r, "channelID"), req.ConfigurationID); err != nil {
		h.fail(w, "set_mapping", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("set_mapping", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteChannelMapping(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteChannelMapping")
	defer span.End()

	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	if err := h.manager.DeleteChannelMapping(ctx, tenant, chi.URLParam(r, "channelID")); err != nil {
		h.fail(w, "delete_mapping", err)
		return
	}
	metrics.ConfigOperationsTotal.WithLabelValues("delete_mapping", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	metrics.ConfigOperationsTotal.WithLabelValues(op, "error").Inc()
	h.log.Error("config operation failed", "op", op, "err", err)

	status := apperror.Status(err)
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		writeJSON(w, status, map[string]string{
			"error": appErr.Message,
			"field": appErr.Field,
		})
		return
	}
	http.Error(w, http.StatusText(status), status)
}

func tenantFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.Header.Get(TenantHeader)
	if tenant == "" {
		http.Error(w, "missing "+TenantHeader+" header", http.StatusBadRequest)
		return "", false
	}
	return tenant, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
