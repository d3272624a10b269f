package domain

import "errors"

// Error taxonomy. Every operation failure wraps exactly one of these
// sentinels; callers branch with errors.Is. A failing operation aborts
// atomically with zero partial effect, and nothing is retried internally.
var (
	// ErrUnauthorized means the caller is not the owner, operator, oracle,
	// or winner the operation requires.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState means the operation is illegal for the current
	// lifecycle phase, e.g. germinating twice or watering a dead plant.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateRequest means the subject already has an outstanding
	// randomness request.
	ErrDuplicateRequest = errors.New("duplicate randomness request")
	// ErrUnknownRequest means no pending request exists for the id.
	ErrUnknownRequest = errors.New("unknown randomness request")
	// ErrAlreadyFulfilled means fulfillment was replayed for a request that
	// already reached a terminal status.
	ErrAlreadyFulfilled = errors.New("randomness request already fulfilled")
	// ErrInsufficientPayment means the supplied payment does not cover the
	// mint price.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrBalanceExceeded means committing the liability would push total
	// obligations past the spendable balance.
	ErrBalanceExceeded = errors.New("safe balance exceeded")
	// ErrNotYetEligible means the promotion has not ended yet.
	ErrNotYetEligible = errors.New("promotion not yet ended")
	// ErrNoFunds means the fee reserve cannot cover an oracle round-trip.
	ErrNoFunds = errors.New("insufficient fee reserve")
	// ErrTransferFailed means the payment collaborator rejected a payout.
	ErrTransferFailed = errors.New("transfer failed")
)
