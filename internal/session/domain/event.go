package domain

import "github.com/shopspring/decimal"

// SourceType tags the object a transaction session was opened for.
type SourceType string

const (
	SourceCheckout SourceType = "Checkout"
	SourceOrder    SourceType = "Order"
)

// SourceObject is the checkout-or-order union behind a session event.
// Both shapes expose the same totals; only the metadata key differs.
type SourceObject struct {
	Type        SourceType      `json:"type"`
	ID          string          `json:"id"`
	ChannelID   string          `json:"channelId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
}

// TransactionSessionEvent is the platform's session request. Metadata is
// caller-supplied and passed through to the processor; reserved keys
// (transactionId, channelId, checkoutId/orderId) are overwritten. Data
// holds extra processor request fields, passed through untouched.
type TransactionSessionEvent struct {
	TransactionID string            `json:"transactionId"`
	Flow          FlowStrategy      `json:"flow"`
	Source        SourceObject      `json:"source"`
	Metadata      map[string]string `json:"metadata"`
	Data          map[string]string `json:"data"`
}
