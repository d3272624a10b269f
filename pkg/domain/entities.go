// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by orchidcore.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityOrchid identifies an individual orchid token record.
	EntityOrchid EntityType = "orchid"
	// EntityRequest identifies a randomness request record.
	EntityRequest EntityType = "randomness_request"
	// EntityCycle identifies the active promotion cycle record.
	EntityCycle EntityType = "promotion_cycle"
	// EntityRedemption identifies a consumed-token redemption record.
	EntityRedemption EntityType = "redemption"
	// EntityAccount identifies the ledger account record.
	EntityAccount EntityType = "account"
	// EntityControls identifies the operator control flags record.
	EntityControls EntityType = "controls"
)

// Address identifies a caller: a token owner, the operator, the oracle, or a
// payout recipient. Authentication happens at the transport boundary; the
// core treats an Address as an opaque, already-verified identity.
type Address string

// TokenID identifies a single orchid token. IDs are assigned sequentially
// starting at 1.
type TokenID uint64

// Amount is a monetary value in wei.
type Amount uint64

// Monetary units.
const (
	Wei   Amount = 1
	Gwei  Amount = 1e9
	Ether Amount = 1e18
)

// Orchid is the per-token plant record. Species and PlantedAt are unset until
// the germination randomness is fulfilled, then immutable. WaterLevel counts
// the watering windows this plant has been watered in, and only grows.
type Orchid struct {
	TokenID          TokenID   `json:"token_id"`
	Owner            Address   `json:"owner"`
	Species          Species   `json:"species,omitzero"`
	PlantedAt        time.Time `json:"planted_at,omitzero"`
	WaterLevel       uint32    `json:"water_level"`
	PendingRequestID string    `json:"pending_request_id,omitempty"`
	MintedAt         time.Time `json:"minted_at"`
}

// Germinated reports whether the germination randomness has been fulfilled.
func (o Orchid) Germinated() bool { return !o.PlantedAt.IsZero() }

// GrowthStage is the derived lifecycle tag for an orchid. It is never stored:
// compute it from the record and the current clock reading via
// GrowthSchedule.StageAt.
type GrowthStage string

// Canonical growth stages.
const (
	// StageUnplanted means minted but germination never requested.
	StageUnplanted GrowthStage = "unplanted"
	// StageSeed means a germination randomness request is outstanding.
	StageSeed GrowthStage = "seed"
	// StageFlowering means germinated and alive.
	StageFlowering GrowthStage = "flowering"
	// StageDead is terminal: a missed watering window, never exited.
	StageDead GrowthStage = "dead"
)

// RequestPurpose tags a randomness request with the continuation that
// consumes its fulfillment.
type RequestPurpose string

// Randomness request purposes.
const (
	PurposeGermination     RequestPurpose = "germination"
	PurposeWinnerSelection RequestPurpose = "winner_selection"
)

// RequestStatus tracks the one-way lifecycle of a randomness request.
type RequestStatus string

// Request statuses. Fulfilled and Rejected are terminal.
const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	// RequestRejected means fulfillment was delivered but the continuation
	// failed; the request is terminal and is not retried.
	RequestRejected RequestStatus = "rejected"
)

// RandomnessRequest is one outstanding round-trip to the oracle. SubjectID is
// the token id for germination requests and the cycle id for winner
// selection.
type RandomnessRequest struct {
	ID         string         `json:"id"`
	Purpose    RequestPurpose `json:"purpose"`
	SubjectID  uint64         `json:"subject_id"`
	UserSeed   uint64         `json:"user_seed"`
	Status     RequestStatus  `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt time.Time      `json:"resolved_at,omitzero"`
}

// Pending reports whether the request still awaits fulfillment.
func (r RandomnessRequest) Pending() bool { return r.Status == RequestPending }

// Entry is one lottery ticket: one per token consumed via enter.
type Entry struct {
	Address Address `json:"address"`
	TokenID TokenID `json:"token_id"`
}

// PromotionCycle is the active lottery round. Exactly one cycle is live at a
// time; reset replaces it in place with a fresh one carrying the next ID.
type PromotionCycle struct {
	ID                        uint64    `json:"id"`
	PromotionEnd              time.Time `json:"promotion_end"`
	Pot                       Amount    `json:"pot"`
	Entries                   []Entry   `json:"entries,omitempty"`
	Winner                    Address   `json:"winner,omitempty"`
	WinnerPaid                bool      `json:"winner_paid"`
	PendingSelectionRequestID string    `json:"pending_selection_request_id,omitempty"`
}

// EntriesFor counts the tickets held by addr in this cycle.
func (c PromotionCycle) EntriesFor(addr Address) int {
	n := 0
	for _, e := range c.Entries {
		if e.Address == addr {
			n++
		}
	}
	return n
}

// Accounts is the monetary bookkeeping for the whole system. Balance backs
// the pot and rebate payouts; FeeReserve is the separate float that pays for
// oracle round-trips; Proceeds accumulates mint revenue for the operator.
type Accounts struct {
	Balance    Amount `json:"balance"`
	FeeReserve Amount `json:"fee_reserve"`
	Proceeds   Amount `json:"proceeds"`
}

// Controls are the operator toggles gating the public surface.
type Controls struct {
	SaleStarted    bool `json:"sale_started"`
	GrowingStarted bool `json:"growing_started"`
}

// OrchidMetadata is the read-model for a token, served to renderers and
// monitors.
type OrchidMetadata struct {
	TokenID    TokenID     `json:"token_id"`
	Owner      Address     `json:"owner"`
	Species    Species     `json:"species,omitzero"`
	PlantedAt  time.Time   `json:"planted_at,omitzero"`
	WaterLevel uint32      `json:"water_level"`
	Stage      GrowthStage `json:"stage"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured for rule evaluation and audit.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Severity grades a rule violation.
type Severity string

// Violation severities.
const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityLog   Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if len(e.Result.Violations) > 0 {
		v := e.Result.Violations[0]
		return fmt.Sprintf("transaction blocked by rule %s: %s", v.Rule, v.Message)
	}
	return "transaction blocked by rules"
}
