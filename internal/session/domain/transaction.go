package domain

import "time"

// Transaction is the durable record of one platform transaction and the
// latest result translated from the processor side.
type Transaction struct {
	TransactionID string
	Tenant        string
	ChannelID     string
	Flow          FlowStrategy
	IntentID      string
	Result        TransactionResult
	AmountMinor   int64
	Currency      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
