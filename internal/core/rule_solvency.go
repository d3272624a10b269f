package core

import (
	"context"
	"strconv"

	"orchidcore/pkg/domain"
)

// SolvencyRule blocks any transaction that would leave the pot backed by
// less than the ledger balance. The per-operation safe-balance checks keep
// this from firing in practice; the rule is the backstop evaluated over the
// full post-transaction state.
type SolvencyRule struct{}

// Name identifies the rule in violations.
func (SolvencyRule) Name() string { return "ledger_solvency" }

// Evaluate asserts pot <= balance over the candidate state.
func (SolvencyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	accounts := view.Accounts()
	cycle := view.Cycle()
	if cycle.Pot <= accounts.Balance {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "ledger_solvency",
		Severity: domain.SeverityBlock,
		Message:  "pot " + strconv.FormatUint(uint64(cycle.Pot), 10) + " exceeds balance " + strconv.FormatUint(uint64(accounts.Balance), 10),
		Entity:   domain.EntityCycle,
		EntityID: strconv.FormatUint(cycle.ID, 10),
	}}}, nil
}
