package stripe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/form"

	"github.com/commercekit/stripe-bridge/pkg/apperror"
)

// Validator live-checks a candidate credential pair against the Stripe
// API, one independent call per key.
type Validator struct {
	log *slog.Logger
}

func NewValidator(log *slog.Logger) *Validator {
	return &Validator{log: log}
}

func (v *Validator) Validate(ctx context.Context, secretKey, publishableKey string) error {
	if err := v.checkSecretKey(ctx, secretKey); err != nil {
		return err
	}
	return v.checkPublishableKey(ctx, publishableKey)
}

// checkSecretKey retrieves the account balance, the cheapest call that
// requires a working secret key.
func (v *Validator) checkSecretKey(ctx context.Context, secretKey string) error {
	api := &client.API{}
	api.Init(secretKey, nil)

	_, err := api.Balance.Get(&stripego.BalanceParams{
		Params: stripego.Params{Context: ctx},
	})
	if err == nil {
		return nil
	}
	if isAuthError(err) {
		return apperror.CredentialInvalid("secretKey", err)
	}
	return apperror.Upstream("secret key validation call", err)
}

// checkPublishableKey posts an empty payment method creation with the
// publishable key. A valid key is rejected with invalid_request_error
// (missing card details); a bad key fails authentication instead.
func (v *Validator) checkPublishableKey(ctx context.Context, publishableKey string) error {
	backend := stripego.GetBackend(stripego.APIBackend)

	body := &form.Values{}
	body.Add("type", "card")

	var res stripego.APIResource
	err := backend.CallRaw(http.MethodPost, "/v1/payment_methods", publishableKey, body,
		&stripego.Params{Context: ctx}, &res)
	if err == nil {
		return nil
	}
	if isAuthError(err) {
		return apperror.CredentialInvalid("publishableKey", err)
	}

	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripego.ErrorTypeInvalidRequest {
		// The key authenticated; the request body was the problem.
		return nil
	}
	return apperror.Upstream("publishable key validation call", err)
}

func isAuthError(err error) bool {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode == http.StatusUnauthorized
}
