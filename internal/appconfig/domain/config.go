package domain

import (
	"fmt"
	"strings"
)

// ConfigurationEntry is one stored Stripe credential set. ConfigurationID
// is assigned once on creation and never changes.
type ConfigurationEntry struct {
	ConfigurationID   string `json:"configurationId"`
	ConfigurationName string `json:"configurationName"`
	SecretKey         string `json:"secretKey"`
	PublishableKey    string `json:"publishableKey"`
	WebhookID         string `json:"webhookId"`
	WebhookSecret     string `json:"webhookSecret"`
}

// AppConfig is the per-tenant aggregate persisted as a single encrypted
// blob. Channel ids map many-to-one onto configuration ids.
type AppConfig struct {
	Configurations           []ConfigurationEntry `json:"configurations"`
	ChannelToConfigurationID map[string]string    `json:"channelToConfigurationId"`
}

// Defaults is the shape of a tenant that has stored nothing yet.
func Defaults() AppConfig {
	return AppConfig{
		Configurations:           []ConfigurationEntry{},
		ChannelToConfigurationID: map[string]string{},
	}
}

// Normalize applies schema defaults to a partially shaped record.
func (c *AppConfig) Normalize() {
	if c.Configurations == nil {
		c.Configurations = []ConfigurationEntry{}
	}
	if c.ChannelToConfigurationID == nil {
		c.ChannelToConfigurationID = map[string]string{}
	}
}

// Validate rejects structurally invalid records. Dangling channel mappings
// are legal here: mapping writes do not check referents (resolution treats
// them as "no configuration").
func (c AppConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Configurations))
	for i, entry := range c.Configurations {
		if entry.ConfigurationID == "" {
			return fmt.Errorf("configurations[%d]: missing configurationId", i)
		}
		if _, dup := seen[entry.ConfigurationID]; dup {
			return fmt.Errorf("configurations[%d]: duplicate configurationId %q", i, entry.ConfigurationID)
		}
		seen[entry.ConfigurationID] = struct{}{}
	}
	for channel, id := range c.ChannelToConfigurationID {
		if channel == "" || id == "" {
			return fmt.Errorf("channelToConfigurationId: empty channel or configuration id")
		}
	}
	return nil
}

func (c AppConfig) EntryByID(configurationID string) (ConfigurationEntry, bool) {
	for _, entry := range c.Configurations {
		if entry.ConfigurationID == configurationID {
			return entry, true
		}
	}
	return ConfigurationEntry{}, false
}

// EntriesSharingWebhook counts surviving entries bound to the same remote
// webhook, excluding the entry being considered. Two configurations that
// reference the same underlying credential share a webhook.
func (c AppConfig) EntriesSharingWebhook(webhookID, excludeConfigurationID string) int {
	n := 0
	for _, entry := range c.Configurations {
		if entry.ConfigurationID == excludeConfigurationID {
			continue
		}
		if entry.WebhookID != "" && entry.WebhookID == webhookID {
			n++
		}
	}
	return n
}

// EntryPatch carries the fields an update may change. Nil means "leave
// unchanged". Webhook binding and the id itself are not patchable.
type EntryPatch struct {
	ConfigurationName *string `json:"configurationName"`
	SecretKey         *string `json:"secretKey"`
	PublishableKey    *string `json:"publishableKey"`
}

// Apply shallow-merges the patch over the entry: supplied fields win.
func (p EntryPatch) Apply(entry ConfigurationEntry) ConfigurationEntry {
	if p.ConfigurationName != nil {
		entry.ConfigurationName = *p.ConfigurationName
	}
	if p.SecretKey != nil {
		entry.SecretKey = *p.SecretKey
	}
	if p.PublishableKey != nil {
		entry.PublishableKey = *p.PublishableKey
	}
	return entry
}

// Obfuscated returns a display copy with credential material masked.
// The masked form is never valid for outbound Stripe calls.
func (e ConfigurationEntry) Obfuscated() ConfigurationEntry {
	e.SecretKey = MaskKey(e.SecretKey)
	e.PublishableKey = MaskKey(e.PublishableKey)
	e.WebhookSecret = MaskKey(e.WebhookSecret)
	return e
}

func (c AppConfig) Obfuscated() AppConfig {
	out := AppConfig{
		Configurations:           make([]ConfigurationEntry, len(c.Configurations)),
		ChannelToConfigurationID: make(map[string]string, len(c.ChannelToConfigurationID)),
	}
	for i, entry := range c.Configurations {
		out.Configurations[i] = entry.Obfuscated()
	}
	for k, v := range c.ChannelToConfigurationID {
		out.ChannelToConfigurationID[k] = v
	}
	return out
}

// MaskKey keeps the key-type prefix and the last four characters, e.g.
// sk_live_...4242. One-way: short values collapse to asterisks.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	last4 := key
	if len(last4) > 4 {
		last4 = key[len(key)-4:]
	}
	prefix := keyPrefix(key)
	if prefix == "" || len(key) <= len(prefix)+4 {
		return "****" + last4
	}
	return prefix + "...." + last4
}

// keyPrefix extracts the Stripe key-type prefix, e.g. "sk_live_" from
// "sk_live_abc". Returns "" when the value has no such shape.
func keyPrefix(key string) string {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[0] + "_" + parts[1] + "_"
}
