package application

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/commercekit/stripe-bridge/internal/appconfig/domain"
	"github.com/commercekit/stripe-bridge/pkg/apperror"
)

// AppConfigPatch is a partial aggregate write. A nil field is untouched.
// Collections are never deep-merged element-wise: a non-nil Configurations
// slice is always the full replacement list, and callers pre-compute it.
type AppConfigPatch struct {
	Configurations           []domain.ConfigurationEntry
	ChannelToConfigurationID map[string]string
}

// Configurator is the façade over the encrypted config store: read,
// merge-write, and display obfuscation for the per-tenant aggregate.
//
// No concurrency control lives here. Writes are plain read-merge-write and
// the later of two concurrent writes wins; callers needing stronger
// guarantees must serialize per tenant upstream.
type Configurator struct {
	store MetadataStore
	enc   Encryptor
}

func NewConfigurator(store MetadataStore, enc Encryptor) *Configurator {
	return &Configurator{store: store, enc: enc}
}

// GetConfig reads and decrypts the tenant aggregate. A missing record is
// not an error: the schema defaults come back instead.
func (c *Configurator) GetConfig(ctx context.Context, tenant string) (domain.AppConfig, error) {
	blob, found, err := c.store.Get(ctx, tenant)
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("reading app config: %w", err)
	}
	if !found {
		return domain.Defaults(), nil
	}

	plaintext, err := c.enc.Decrypt(blob)
	if err != nil {
		return domain.AppConfig{}, apperror.SchemaError(fmt.Errorf("decrypting app config: %w", err))
	}

	var cfg domain.AppConfig
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return domain.AppConfig{}, apperror.SchemaError(err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return domain.AppConfig{}, apperror.SchemaError(err)
	}
	return cfg, nil
}

// GetConfigEntry looks one entry up by id. Absence is not an error.
func (c *Configurator) GetConfigEntry(ctx context.Context, tenant, configurationID string) (domain.ConfigurationEntry, bool, error) {
	cfg, err := c.GetConfig(ctx, tenant)
	if err != nil {
		return domain.ConfigurationEntry{}, false, err
	}
	entry, found := cfg.EntryByID(configurationID)
	return entry, found, nil
}

// GetConfigObfuscated is the read path for anything that may reach a UI.
func (c *Configurator) GetConfigObfuscated(ctx context.Context, tenant string) (domain.AppConfig, error) {
	cfg, err := c.GetConfig(ctx, tenant)
	if err != nil {
		return domain.AppConfig{}, err
	}
	return cfg.Obfuscated(), nil
}

// SetConfig merges the patch into the stored aggregate and writes it back
// encrypted. With replace=false the channel mapping is shallow-merged
// (new keys win, other keys survive); with replace=true each supplied
// field fully replaces its stored counterpart.
func (c *Configurator) SetConfig(ctx context.Context, tenant string, patch AppConfigPatch, replace bool) error {
	cfg, err := c.GetConfig(ctx, tenant)
	if err != nil {
		return err
	}

	if patch.Configurations != nil {
		cfg.Configurations = patch.Configurations
	}
	if patch.ChannelToConfigurationID != nil {
		if replace {
			cfg.ChannelToConfigurationID = patch.ChannelToConfigurationID
		} else {
			for channel, id := range patch.ChannelToConfigurationID {
				cfg.ChannelToConfigurationID[channel] = id
			}
		}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return apperror.SchemaError(err)
	}

	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding app config: %w", err)
	}
	blob, err := c.enc.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting app config: %w", err)
	}
	if err := c.store.Set(ctx, tenant, blob); err != nil {
		return fmt.Errorf("writing app config: %w", err)
	}
	return nil
}

// ClearConfig resets the tenant to schema defaults.
func (c *Configurator) ClearConfig(ctx context.Context, tenant string) error {
	defaults := domain.Defaults()
	return c.SetConfig(ctx, tenant, AppConfigPatch{
		Configurations:           defaults.Configurations,
		ChannelToConfigurationID: defaults.ChannelToConfigurationID,
	}, true)
}
