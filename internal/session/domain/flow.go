package domain

// FlowStrategy is the outcome a transaction session requests: hold the
// funds for a later capture, or charge immediately.
type FlowStrategy string

const (
	FlowAuthorization FlowStrategy = "AUTHORIZATION"
	FlowCharge        FlowStrategy = "CHARGE"
)

// TransactionResult is the platform's transaction-result vocabulary,
// a flow prefix plus a lifecycle suffix.
type TransactionResult string

const (
	AuthorizationRequested      TransactionResult = "AUTHORIZATION_REQUESTED"
	AuthorizationActionRequired TransactionResult = "AUTHORIZATION_ACTION_REQUIRED"
	AuthorizationFailure        TransactionResult = "AUTHORIZATION_FAILURE"
	AuthorizationSuccess        TransactionResult = "AUTHORIZATION_SUCCESS"
	ChargeRequested             TransactionResult = "CHARGE_REQUESTED"
	ChargeActionRequired        TransactionResult = "CHARGE_ACTION_REQUIRED"
	ChargeFailure               TransactionResult = "CHARGE_FAILURE"
	ChargeSuccess               TransactionResult = "CHARGE_SUCCESS"
)
