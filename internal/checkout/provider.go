package checkout

import "context"

// PaymentStatus is the provider's view of an intent. Only StatusSucceeded
// advances a checkout; everything else is not-yet-complete or failed and is
// surfaced to the caller as retryable.
type PaymentStatus string

const (
	StatusSucceeded      PaymentStatus = "succeeded"
	StatusRequiresAction PaymentStatus = "requires_action"
	StatusProcessing     PaymentStatus = "processing"
	StatusFailed         PaymentStatus = "failed"
)

// PaymentProvider is the contract the engine requires of the payment gateway.
// The concrete SDK lives outside this module.
type PaymentProvider interface {
	// CreateIntent registers a charge for the server-computed amount and
	// returns the intent id plus the client secret the buyer's app confirms
	// with.
	CreateIntent(ctx context.Context, amountCents int, customerID string) (intentID, clientSecret string, err error)

	// RetrieveIntent reports the last known status of an intent.
	RetrieveIntent(ctx context.Context, intentID string) (PaymentStatus, error)

	// ChargeSavedMethod captures synchronously against a stored payment
	// method and returns the resulting intent id and status.
	ChargeSavedMethod(ctx context.Context, amountCents int, customerID, methodID string) (intentID string, status PaymentStatus, err error)
}
