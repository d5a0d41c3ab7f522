package application

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
)

// NewEntryInput is the candidate credential set for AddEntry.
type NewEntryInput struct {
	ConfigurationName string `json:"configurationName"`
	SecretKey         string `json:"secretKey"`
	PublishableKey    string `json:"publishableKey"`
}

// Manager orchestrates the configuration entry lifecycle across the
// configurator and the webhook provisioner. Entries go absent → active →
// absent with no intermediate persisted state: validation and webhook
// provisioning both finish before anything is written.
type Manager struct {
	log         *slog.Logger
	cfg         *Configurator
	validator   CredentialValidator
	webhooks    WebhookProvisioner
	ids         IDGenerator
	callbackURL string
}

func NewManager(log *slog.Logger, cfg *Configurator, validator CredentialValidator, webhooks WebhookProvisioner, ids IDGenerator, callbackURL string) *Manager {
	return &Manager{
		log:         log,
		cfg:         cfg,
		validator:   validator,
		webhooks:    webhooks,
		ids:         ids,
		callbackURL: callbackURL,
	}
}

// AddEntry validates the credentials, provisions the processor webhook,
// and only then persists the assembled entry. Any failure before the
// write aborts the whole operation; no partial entry is ever stored.
func (m *Manager) AddEntry(ctx context.Context, tenant string, input NewEntryInput) (domain.ConfigurationEntry, error) {
	if strings.HasPrefix(input.SecretKey, "rk_") {
		return domain.ConfigurationEntry{}, apperror.UnsupportedKey("secretKey", "restricted keys are not supported")
	}

	if err := m.validator.Validate(ctx, input.SecretKey, input.PublishableKey); err != nil {
		return domain.ConfigurationEntry{}, err
	}

	webhook, err := m.webhooks.Create(ctx, input.SecretKey, callbackURLFor(m.callbackURL, tenant))
	if err != nil {
		return domain.ConfigurationEntry{}, apperror.Upstream("provisioning webhook", err)
	}

	entry := domain.ConfigurationEntry{
		ConfigurationID:   m.ids.NewID(),
		ConfigurationName: input.ConfigurationName,
		SecretKey:         input.SecretKey,
		PublishableKey:    input.PublishableKey,
		WebhookID:         webhook.ID,
		WebhookSecret:     webhook.Secret,
	}

	cfg, err := m.cfg.GetConfig(ctx, tenant)
	if err != nil {
		return domain.ConfigurationEntry{}, err
	}
	err = m.cfg.SetConfig(ctx, tenant, AppConfigPatch{
		Configurations: append(cfg.Configurations, entry),
	}, false)
	if err != nil {
		return domain.ConfigurationEntry{}, err
	}

	m.log.Info("configuration entry added",
		"tenant", tenant,
		"configuration_id", entry.ConfigurationID,
		"webhook_id", entry.WebhookID,
	)
	return entry.Obfuscated(), nil
}

// UpdateEntry shallow-merges the patch over the stored entry. It never
// re-validates credentials or touches the webhook binding; credential
// rotation is delete + add.
func (m *Manager) UpdateEntry(ctx context.Context, tenant, configurationID string, patch domain.EntryPatch) (domain.ConfigurationEntry, error) {
	cfg, err := m.cfg.GetConfig(ctx, tenant)
	if err != nil {
		return domain.ConfigurationEntry{}, err
	}

	var merged domain.ConfigurationEntry
	found := false
	entries := make([]domain.ConfigurationEntry, len(cfg.Configurations))
	for i, entry := range cfg.Configurations {
		if entry.ConfigurationID == configurationID {
			entry = patch.Apply(entry)
			merged = entry
			found = true
		}
		entries[i] = entry
	}
	if !found {
		return domain.ConfigurationEntry{}, apperror.EntryNotFound(configurationID)
	}

	if err := m.cfg.SetConfig(ctx, tenant, AppConfigPatch{Configurations: entries}, false); err != nil {
		return domain.ConfigurationEntry{}, err
	}
	return merged.Obfuscated(), nil
}

// DeleteEntry removes the entry and every channel mapping that points at
// it in one replace-write. The remote webhook is deleted only when no
// surviving entry shares it, and that deletion is best-effort: a stuck
// local entry blocks the tenant, an orphaned remote webhook does not.
func (m *Manager) DeleteEntry(ctx context.Context, tenant, configurationID string) error {
	cfg, err := m.cfg.GetConfig(ctx, tenant)
	if err != nil {
		return err
	}
	entry, found := cfg.EntryByID(configurationID)
	if !found {
		return apperror.EntryNotFound(configurationID)
	}

	if entry.WebhookID != "" && cfg.EntriesSharingWebhook(entry.WebhookID, configurationID) == 0 {
		if err := m.webhooks.Delete(ctx, entry.WebhookID, entry.SecretKey); err != nil {
			m.log.Warn("webhook cleanup failed, continuing with local delete",
				"tenant", tenant,
				"configuration_id", configurationID,
				"webhook_id", entry.WebhookID,
				"err", err,
			)
		}
	}

	entries := make([]domain.ConfigurationEntry, 0, len(cfg.Configurations)-1)
	for _, e := range cfg.Configurations {
		if e.ConfigurationID != configurationID {
			entries = append(entries, e)
		}
	}
	mapping := make(map[string]string, len(cfg.ChannelToConfigurationID))
	for channel, id := range cfg.ChannelToConfigurationID {
		if id != configurationID {
			mapping[channel] = id
		}
	}

	err = m.cfg.SetConfig(ctx, tenant, AppConfigPatch{
		Configurations:           entries,
		ChannelToConfigurationID: mapping,
	}, true)
	if err != nil {
		return err
	}

	m.log.Info("configuration entry deleted",
		"tenant", tenant,
		"configuration_id", configurationID,
	)
	return nil
}

// SetChannelMapping routes a channel to a configuration. No check that
// the configuration still exists: resolution treats a dangling mapping
// as "no configuration".
func (m *Manager) SetChannelMapping(ctx context.Context, tenant, channelID, configurationID string) error {
	return m.cfg.SetConfig(ctx, tenant, AppConfigPatch{
		ChannelToConfigurationID: map[string]string{channelID: configurationID},
	}, false)
}

// DeleteChannelMapping removes exactly one channel key.
func (m *Manager) DeleteChannelMapping(ctx context.Context, tenant, channelID string) error {
	cfg, err := m.cfg.GetConfig(ctx, tenant)
	if err != nil {
		return err
	}
	mapping := make(map[string]string, len(cfg.ChannelToConfigurationID))
	for channel, id := range cfg.ChannelToConfigurationID {
		if channel != channelID {
			mapping[channel] = id
		}
	}
	return m.cfg.SetConfig(ctx, tenant, AppConfigPatch{
		ChannelToConfigurationID: mapping,
	}, true)
}

// callbackURLFor tags the shared callback endpoint with the tenant so
// inbound deliveries can be routed without a platform auth header.
func callbackURLFor(base, tenant string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "tenant=" + url.QueryEscape(tenant)
}

// ConfigurationForChannel resolves the active configuration for a sales
// channel. A missing mapping, or a mapping whose target entry is gone,
// yields found=false rather than an error.
func (m *Manager) ConfigurationForChannel(ctx context.Context, tenant, channelID string) (domain.ConfigurationEntry, bool, error) {
	cfg, err := m.cfg.GetConfig(ctx, tenant)
	if err != nil {
		return domain.ConfigurationEntry{}, false, err
	}
	configurationID, ok := cfg.ChannelToConfigurationID[channelID]
	if !ok {
		return domain.ConfigurationEntry{}, false, nil
	}
	entry, found := cfg.EntryByID(configurationID)
	return entry, found, nil
}
