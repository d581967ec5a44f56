package adapter

import (
	"context"

	"iran-payment/internal/domain/model"
)

// Params are explicit call-site overrides merged over the gateway's
// configuration defaults during Initialize. Recognized keys are
// adapter-defined (e.g. "merchant_id", "terminal_id", "terminal_key",
// "callback_url", "base_url").
type Params map[string]string

// CallbackRequest is the inbound payload of the bank's redirect back to the
// merchant (e.g. ResCode, Token, Description for Sadad; Authority, Status
// for Zarinpal). Consumed only by PreVerify.
type CallbackRequest map[string]string

// Redirect describes how the caller must send the end user to the bank:
// a fully qualified URL plus the HTTP method (POST-redirect gateways need an
// auto-submitting form) and a display title for the redirect page.
type Redirect struct {
	URL    string
	Method string
	Title  string
}

// Gateway is the capability contract every bank adapter implements. The
// orchestrator drives the hooks strictly in order:
//
//	Initialize -> PrePurchase -> Purchase -> PostPurchase -> PurchaseURI
//	Initialize -> PreVerify -> Verify -> PostVerify
//
// Any failure halts the sequence; no hook is retried automatically.
type Gateway interface {
	// Name is the stable lowercase identifier routing Confirm calls back to
	// the adapter and stored on the transaction record.
	Name() string

	// Initialize merges params over configuration defaults. Returns
	// domain.ErrInvalidConfiguration when a required credential is absent.
	Initialize(params Params) error

	// PrePurchase validates the prepared amount against the adapter's
	// accepted range and any adapter-specific precondition.
	PrePurchase(tx *model.Transaction) error

	// Purchase registers the transaction with the bank and stores the
	// returned purchase token/authority in adapter state.
	Purchase(ctx context.Context, tx *model.Transaction) error

	// PostPurchase folds purchase-time adapter state into the transaction's
	// gateway data.
	PostPurchase(tx *model.Transaction) error

	// PurchaseRedirect builds the bank redirect from the purchase token.
	// Pure; callable only after a successful Purchase.
	PurchaseRedirect() (Redirect, error)

	// PreVerify cross-checks the callback payload against the stored gateway
	// data (result code, token match).
	PreVerify(tx *model.Transaction, cb CallbackRequest) error

	// Verify performs the outbound verification request. Fails with
	// domain.ErrAmountMismatch (via the normalized kind) when the settled
	// amount differs from the record's amount.
	Verify(ctx context.Context, tx *model.Transaction) error

	// PostVerify folds tracking/reference identifiers into the transaction.
	PostVerify(tx *model.Transaction) error
}
