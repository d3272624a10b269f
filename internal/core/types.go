package core

import "orchidcore/pkg/domain"

// Aliases for frequently used domain types so service code and callers can
// stay within this package.
type (
	Address           = domain.Address
	TokenID           = domain.TokenID
	Amount            = domain.Amount
	Orchid            = domain.Orchid
	OrchidMetadata    = domain.OrchidMetadata
	Species           = domain.Species
	GrowthStage       = domain.GrowthStage
	GrowthSchedule    = domain.GrowthSchedule
	RandomnessRequest = domain.RandomnessRequest
	PromotionCycle    = domain.PromotionCycle
	Entry             = domain.Entry
	Accounts          = domain.Accounts
	Controls          = domain.Controls
	Result            = domain.Result
	RulesEngine       = domain.RulesEngine
	Transaction       = domain.Transaction
	TransactionView   = domain.TransactionView
	PersistentStore   = domain.PersistentStore
)

// NewRulesEngine returns an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine returns an engine preloaded with the built-in
// invariant rules evaluated on every transaction.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(SolvencyRule{})
	engine.Register(GrowthIntegrityRule{})
	return engine
}
