package domain

// TransactionResultChanged is published to the platform whenever a
// transaction's translated result moves.
type TransactionResultChanged struct {
	TransactionID string            `json:"transactionId"`
	IntentID      string            `json:"intentId"`
	Result        TransactionResult `json:"result"`
	AmountMinor   int64             `json:"amountMinor"`
	Currency      string            `json:"currency"`
}
