package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations a persistence implementation must
// support within one atomic scope. Every public core operation runs as a
// single transaction: no two interleave their effects, and a returned error
// discards every mutation made through the transaction.
type Transaction interface {
	// Snapshot returns a read-only view of the transactional state,
	// including mutations already applied within this transaction.
	Snapshot() TransactionView
	// Now is the single clock reading shared by everything in this
	// transaction.
	Now() time.Time

	// CreateOrchid assigns the next sequential token id and stores the
	// record.
	CreateOrchid(Orchid) (Orchid, error)
	UpdateOrchid(id TokenID, mutator func(*Orchid) error) (Orchid, error)

	CreateRequest(RandomnessRequest) (RandomnessRequest, error)
	UpdateRequest(id string, mutator func(*RandomnessRequest) error) (RandomnessRequest, error)

	UpdateCycle(mutator func(*PromotionCycle) error) (PromotionCycle, error)
	// ReplaceCycle installs a fresh cycle in place of the current one.
	ReplaceCycle(PromotionCycle) (PromotionCycle, error)

	// AddRedemption permanently consumes a token id. Adding an id twice is
	// an error; membership survives cycle resets.
	AddRedemption(id TokenID) error

	UpdateAccounts(mutator func(*Accounts) error) (Accounts, error)
	UpdateControls(mutator func(*Controls) error) (Controls, error)
}

// TransactionView provides read-only access to snapshot data. It doubles as
// the RuleView handed to rules after the transaction body runs.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetOrchid(id TokenID) (Orchid, bool)
	ListOrchids() []Orchid
	Cycle() PromotionCycle
	Accounts() Accounts
	Controls() Controls
}
