package payments

import "errors"

// Failure kinds surfaced to callers. Callers branch on these to decide
// whether to retry, offer recovery, or report a definitive failure.
var (
	// ErrNotConnected means no buyer identity was supplied; nothing was
	// persisted and nothing was submitted.
	ErrNotConnected = errors.New("no wallet identity connected")

	// ErrUnknownReference means no pending payment exists for the
	// reference. A missing intent record can never become valid, so this
	// is terminal and no chain query is made.
	ErrUnknownReference = errors.New("unknown payment reference")

	// ErrOnChainRejected means the transfer settled with a definitive
	// failure or did not pay the merchant. Retrying cannot change it.
	ErrOnChainRejected = errors.New("payment rejected on-chain")

	// ErrExhausted means every attempt ended in a transient condition.
	// Funds may already have moved; the caller should offer recovery,
	// not resubmission.
	ErrExhausted = errors.New("verification attempts exhausted")

	// ErrIdentityMismatch means the reference belongs to a different
	// buyer. Recovery only.
	ErrIdentityMismatch = errors.New("payment reference belongs to another user")

	// ErrProductNotFound means the requested product id is not in the
	// catalog.
	ErrProductNotFound = errors.New("product not found")
)
