package domain

import (
	"fmt"

	stripego "github.com/stripe/stripe-go/v74"

	"github.com/commercekit/stripe-bridge/pkg/apperror"
)

// Reserved metadata keys the bridge always owns on processor requests.
const (
	MetaTransactionID = "transactionId"
	MetaChannelID     = "channelId"
	MetaCheckoutID    = "checkoutId"
	MetaOrderID       = "orderId"
)

// IntentCreateParams builds the payment-intent creation request for a
// session-initialize event. Amounts go out in minor units, capture mode
// follows the flow strategy, and automatic payment methods are enabled.
func IntentCreateParams(ev TransactionSessionEvent) (*stripego.PaymentIntentParams, error) {
	captureMethod, err := captureMethodForFlow(ev.Flow)
	if err != nil {
		return nil, err
	}
	metadata, err := requestMetadata(ev)
	if err != nil {
		return nil, err
	}

	params := &stripego.PaymentIntentParams{
		Amount:        stripego.Int64(MinorUnits(ev.Source.TotalAmount, ev.Source.Currency)),
		Currency:      stripego.String(ev.Source.Currency),
		CaptureMethod: stripego.String(captureMethod),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Metadata = metadata
	for k, v := range ev.Data {
		params.AddExtra(k, v)
	}
	return params, nil
}

// IntentUpdateParams builds the update request for a subsequent session
// event against an existing intent. Capture mode is immutable on Stripe's
// side, so only amount, currency and metadata are sent.
func IntentUpdateParams(ev TransactionSessionEvent) (*stripego.PaymentIntentParams, error) {
	metadata, err := requestMetadata(ev)
	if err != nil {
		return nil, err
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(MinorUnits(ev.Source.TotalAmount, ev.Source.Currency)),
		Currency: stripego.String(ev.Source.Currency),
	}
	params.Metadata = metadata
	for k, v := range ev.Data {
		params.AddExtra(k, v)
	}
	return params, nil
}

// requestMetadata merges caller metadata with the reserved keys. Exactly
// one of checkoutId/orderId is set, driven by the source tag; any other
// tag is an invariant violation, not bad input.
func requestMetadata(ev TransactionSessionEvent) (map[string]string, error) {
	metadata := make(map[string]string, len(ev.Metadata)+3)
	for k, v := range ev.Metadata {
		metadata[k] = v
	}
	metadata[MetaTransactionID] = ev.TransactionID
	metadata[MetaChannelID] = ev.Source.ChannelID

	switch ev.Source.Type {
	case SourceCheckout:
		delete(metadata, MetaOrderID)
		metadata[MetaCheckoutID] = ev.Source.ID
	case SourceOrder:
		delete(metadata, MetaCheckoutID)
		metadata[MetaOrderID] = ev.Source.ID
	default:
		return nil, apperror.Internal(fmt.Sprintf("unknown session source type %q", ev.Source.Type))
	}
	return metadata, nil
}

func captureMethodForFlow(flow FlowStrategy) (string, error) {
	switch flow {
	case FlowCharge:
		return string(stripego.PaymentIntentCaptureMethodAutomatic), nil
	case FlowAuthorization:
		return string(stripego.PaymentIntentCaptureMethodManual), nil
	default:
		return "", apperror.Internal(fmt.Sprintf("unknown flow strategy %q", flow))
	}
}

// TranslateIntentStatus is the total mapping from (flow, intent status)
// to the platform result. A status outside the handled set is a mapping
// gap and fails loudly instead of guessing.
func TranslateIntentStatus(flow FlowStrategy, status stripego.PaymentIntentStatus) (TransactionResult, error) {
	var prefix string
	switch flow {
	case FlowAuthorization:
		prefix = string(FlowAuthorization)
	case FlowCharge:
		prefix = string(FlowCharge)
	default:
		return "", apperror.Internal(fmt.Sprintf("unknown flow strategy %q", flow))
	}

	var suffix string
	switch status {
	case stripego.PaymentIntentStatusRequiresPaymentMethod, stripego.PaymentIntentStatusProcessing:
		suffix = "_REQUESTED"
	case stripego.PaymentIntentStatusRequiresAction,
		stripego.PaymentIntentStatusRequiresCapture,
		stripego.PaymentIntentStatusRequiresConfirmation:
		suffix = "_ACTION_REQUIRED"
	case stripego.PaymentIntentStatusCanceled:
		suffix = "_FAILURE"
	case stripego.PaymentIntentStatusSucceeded:
		suffix = "_SUCCESS"
	default:
		return "", apperror.Internal(fmt.Sprintf("unhandled payment intent status %q", status))
	}

	return TransactionResult(prefix + suffix), nil
}
