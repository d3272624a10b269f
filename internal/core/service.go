// Package core implements the transactional orchid garden service: minting,
// germination and watering, oracle randomness fulfillment, and the promotion
// ledger with its solvency guarantees.
package core

import (
	"context"
	"fmt"
	"time"

	"orchidcore/pkg/domain"
)

// Default economic parameters. They mirror the mainnet deployment values and
// apply whenever Config leaves the field zero.
const (
	DefaultMintPrice     = domain.Ether / 25 // 0.04 per unit
	DefaultRebate        = domain.Ether / 50 // 0.02 per consumed token
	DefaultRandomnessFee = 2 * domain.Ether
	DefaultMaxMintUnits  = 20
)

// Config carries the deployment parameters of the service. Operator and
// Oracle are required; the rest defaults.
type Config struct {
	// Operator is the privileged administrative identity.
	Operator domain.Address
	// Oracle is the only identity allowed to fulfill randomness requests.
	Oracle domain.Address
	// Schedule drives the derived liveness predicate.
	Schedule domain.GrowthSchedule
	// MintPrice is the price per minted unit in wei.
	MintPrice domain.Amount
	// MaxMintUnits caps the units of a single mint call.
	MaxMintUnits int
	// Rebate is the value of one consumed token, entered or redeemed.
	Rebate domain.Amount
	// RandomnessFee is debited from the fee reserve per oracle round-trip.
	RandomnessFee domain.Amount
	// PromotionEnd closes the initial cycle. Later cycles get their end from
	// Reset.
	PromotionEnd time.Time
}

func (c Config) withDefaults() Config {
	if c.MintPrice == 0 {
		c.MintPrice = DefaultMintPrice
	}
	if c.MaxMintUnits <= 0 {
		c.MaxMintUnits = DefaultMaxMintUnits
	}
	if c.Rebate == 0 {
		c.Rebate = DefaultRebate
	}
	if c.RandomnessFee == 0 {
		c.RandomnessFee = DefaultRandomnessFee
	}
	return c
}

// Service exposes the transactional operations of the orchid garden. All
// mutations run through the store's transaction boundary and are validated by
// the rules engine before commit.
type Service struct {
	store   PersistentStore
	bank    Bank
	cfg     Config
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// NewService constructs a service over the supplied store, bank, and config.
func NewService(store PersistentStore, bank Bank, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("core: store is required")
	}
	if bank == nil {
		bank = NewMemoryBank()
	}
	if cfg.Operator == "" {
		return nil, fmt.Errorf("core: operator address is required")
	}
	if cfg.Oracle == "" {
		return nil, fmt.Errorf("core: oracle address is required")
	}
	s := &Service{
		store:  store,
		bank:   bank,
		cfg:    cfg.withDefaults(),
		logger: noopLogger{},
		clock:  ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.ensureCycle(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureCycle stamps the configured promotion end onto the initial cycle the
// first time the service starts over a fresh store.
func (s *Service) ensureCycle(ctx context.Context) error {
	if s.cfg.PromotionEnd.IsZero() {
		return nil
	}
	cycle := s.store.Cycle()
	if !cycle.PromotionEnd.IsZero() || len(cycle.Entries) > 0 {
		return nil
	}
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCycle(func(c *PromotionCycle) error {
			if c.PromotionEnd.IsZero() {
				c.PromotionEnd = s.cfg.PromotionEnd
			}
			return nil
		})
		return err
	})
	return err
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Config returns the effective deployment parameters.
func (s *Service) Config() Config { return s.cfg }

// isOperator reports whether the caller holds the operator identity.
func (s *Service) isOperator(caller domain.Address) bool {
	return caller != "" && caller == s.cfg.Operator
}

// Fund deposits into the ledger balance that backs pot and rebate payouts.
func (s *Service) Fund(ctx context.Context, amount Amount) (Result, error) {
	var res Result
	err := s.instrument(ctx, "fund", domain.EntityAccount, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.Balance += amount
				return nil
			})
			return err
		})
		return err
	})
	return res, err
}

// FundFees deposits into the fee reserve that pays for oracle round-trips.
func (s *Service) FundFees(ctx context.Context, amount Amount) (Result, error) {
	var res Result
	err := s.instrument(ctx, "fund_fees", domain.EntityAccount, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.FeeReserve += amount
				return nil
			})
			return err
		})
		return err
	})
	return res, err
}

// Accounts returns the committed monetary accounts.
func (s *Service) Accounts() Accounts { return s.store.Accounts() }

// Controls returns the committed operator toggles.
func (s *Service) Controls() Controls { return s.store.Controls() }
