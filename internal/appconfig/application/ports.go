package application

import "context"

// MetadataStore is the platform's encrypted per-tenant key-value record.
// One blob per tenant; the tenant key is the platform API URL.
type MetadataStore interface {
	Get(ctx context.Context, tenant string) (blob []byte, found bool, err error)
	Set(ctx context.Context, tenant string, blob []byte) error
}

// Encryptor is the platform SDK's metadata encryption primitive.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// CredentialValidator performs two independent live checks against the
// processor, one per key. Implementations return a typed error that
// distinguishes "key invalid" from "validation call failed".
type CredentialValidator interface {
	Validate(ctx context.Context, secretKey, publishableKey string) error
}

type Webhook struct {
	ID     string
	Secret string
}

// WebhookProvisioner creates and retires processor-side webhook endpoints
// scoped to a secret key.
type WebhookProvisioner interface {
	Create(ctx context.Context, secretKey, callbackURL string) (Webhook, error)
	Delete(ctx context.Context, webhookID, secretKey string) error
}

// IDGenerator produces time-sortable, globally unique configuration ids.
type IDGenerator interface {
	NewID() string
}
