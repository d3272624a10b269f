package core

import (
	"context"
	"fmt"
	"strconv"

	"orchidcore/pkg/domain"
)

// StartSale enables minting. Operator only; enabling twice is a no-op.
func (s *Service) StartSale(ctx context.Context, caller Address) (Result, error) {
	var res Result
	err := s.instrument(ctx, "start_sale", domain.EntityControls, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("start sale: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := tx.UpdateControls(func(c *Controls) error {
				c.SaleStarted = true
				return nil
			})
			return err
		})
		return err
	})
	return res, err
}

// StartGrowing enables germination. Operator only; enabling twice is a no-op.
func (s *Service) StartGrowing(ctx context.Context, caller Address) (Result, error) {
	var res Result
	err := s.instrument(ctx, "start_growing", domain.EntityControls, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("start growing: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := tx.UpdateControls(func(c *Controls) error {
				c.GrowingStarted = true
				return nil
			})
			return err
		})
		return err
	})
	return res, err
}

// Mint creates units unplanted orchids owned by the caller. The payment must
// cover units times the mint price; revenue accrues to the proceeds account.
func (s *Service) Mint(ctx context.Context, caller Address, units int, payment Amount) ([]Orchid, Result, error) {
	var minted []Orchid
	var res Result
	err := s.instrument(ctx, "mint", domain.EntityOrchid, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if !view.Controls().SaleStarted {
				return fmt.Errorf("mint: sale not started: %w", domain.ErrInvalidState)
			}
			if units < 1 || units > s.cfg.MaxMintUnits {
				return fmt.Errorf("mint: %d units outside [1,%d]: %w", units, s.cfg.MaxMintUnits, domain.ErrInvalidState)
			}
			price := s.cfg.MintPrice * Amount(units)
			if payment < price {
				return fmt.Errorf("mint: paid %d of %d: %w", payment, price, domain.ErrInsufficientPayment)
			}
			for i := 0; i < units; i++ {
				orchid, err := tx.CreateOrchid(Orchid{Owner: caller})
				if err != nil {
					return err
				}
				minted = append(minted, orchid)
			}
			_, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.Proceeds += payment
				return nil
			})
			return err
		})
		if err != nil {
			minted = nil
		}
		return err
	})
	return minted, res, err
}

// Germinate requests the germination randomness for an unplanted orchid.
// The species and planting time are assigned when the oracle fulfills the
// request; until then the orchid sits in the seed stage.
func (s *Service) Germinate(ctx context.Context, caller Address, tokenID TokenID, seed uint64) (string, Result, error) {
	var requestID string
	var res Result
	err := s.instrument(ctx, "germinate", domain.EntityOrchid, strconv.FormatUint(uint64(tokenID), 10), func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if !view.Controls().GrowingStarted {
				return fmt.Errorf("germinate: growing not started: %w", domain.ErrInvalidState)
			}
			orchid, ok := view.FindOrchid(tokenID)
			if !ok {
				return fmt.Errorf("germinate: orchid %d not found: %w", tokenID, domain.ErrInvalidState)
			}
			if orchid.Owner != caller {
				return fmt.Errorf("germinate: orchid %d: %w", tokenID, domain.ErrUnauthorized)
			}
			if orchid.Germinated() {
				return fmt.Errorf("germinate: orchid %d already germinated: %w", tokenID, domain.ErrInvalidState)
			}
			request, err := s.requestRandomness(tx, domain.PurposeGermination, uint64(tokenID), seed)
			if err != nil {
				return err
			}
			requestID = request.ID
			_, err = tx.UpdateOrchid(tokenID, func(o *Orchid) error {
				o.PendingRequestID = request.ID
				return nil
			})
			return err
		})
		return err
	})
	if err != nil {
		return "", res, err
	}
	return requestID, res, err
}

// Water raises the orchid's water level by one. Watering is accepted at most
// once per open window, only while the plant is alive.
func (s *Service) Water(ctx context.Context, caller Address, tokenID TokenID) (Orchid, Result, error) {
	var watered Orchid
	var res Result
	err := s.instrument(ctx, "water", domain.EntityOrchid, strconv.FormatUint(uint64(tokenID), 10), func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			orchid, ok := view.FindOrchid(tokenID)
			if !ok {
				return fmt.Errorf("water: orchid %d not found: %w", tokenID, domain.ErrInvalidState)
			}
			if orchid.Owner != caller {
				return fmt.Errorf("water: orchid %d: %w", tokenID, domain.ErrUnauthorized)
			}
			if !orchid.Germinated() {
				return fmt.Errorf("water: orchid %d not germinated: %w", tokenID, domain.ErrInvalidState)
			}
			now := tx.Now()
			if !s.cfg.Schedule.Alive(orchid, now) {
				return fmt.Errorf("water: orchid %d is dead: %w", tokenID, domain.ErrInvalidState)
			}
			window := s.cfg.Schedule.CurrentWindow(orchid, now)
			if window == 0 {
				return fmt.Errorf("water: orchid %d still in grace period: %w", tokenID, domain.ErrInvalidState)
			}
			if uint64(orchid.WaterLevel) >= window {
				return fmt.Errorf("water: orchid %d already watered this window: %w", tokenID, domain.ErrInvalidState)
			}
			watered, err = tx.UpdateOrchid(tokenID, func(o *Orchid) error {
				o.WaterLevel++
				return nil
			})
			return err
		})
		return err
	})
	if err != nil {
		return Orchid{}, res, err
	}
	return watered, res, nil
}

// Stage returns the derived lifecycle stage of the orchid at the service
// clock's current reading.
func (s *Service) Stage(tokenID TokenID) (GrowthStage, error) {
	orchid, ok := s.store.GetOrchid(tokenID)
	if !ok {
		return "", fmt.Errorf("stage: orchid %d not found: %w", tokenID, domain.ErrInvalidState)
	}
	return s.cfg.Schedule.StageAt(orchid, s.clock.Now()), nil
}

// Alive reports whether the orchid is germinated and alive right now.
func (s *Service) Alive(tokenID TokenID) (bool, error) {
	stage, err := s.Stage(tokenID)
	if err != nil {
		return false, err
	}
	return stage == domain.StageFlowering, nil
}

// Metadata returns the read-model for a token, including its derived stage.
func (s *Service) Metadata(tokenID TokenID) (OrchidMetadata, error) {
	orchid, ok := s.store.GetOrchid(tokenID)
	if !ok {
		return OrchidMetadata{}, fmt.Errorf("metadata: orchid %d not found: %w", tokenID, domain.ErrInvalidState)
	}
	return OrchidMetadata{
		TokenID:    orchid.TokenID,
		Owner:      orchid.Owner,
		Species:    orchid.Species,
		PlantedAt:  orchid.PlantedAt,
		WaterLevel: orchid.WaterLevel,
		Stage:      s.cfg.Schedule.StageAt(orchid, s.clock.Now()),
	}, nil
}

// TokensOf lists the token ids owned by addr in ascending order.
func (s *Service) TokensOf(addr Address) []TokenID {
	var out []TokenID
	for _, o := range s.store.ListOrchids() {
		if o.Owner == addr {
			out = append(out, o.TokenID)
		}
	}
	return out
}

// WithdrawProceeds sweeps accumulated mint revenue to the operator.
func (s *Service) WithdrawProceeds(ctx context.Context, caller Address) (Amount, Result, error) {
	var swept Amount
	var res Result
	err := s.instrument(ctx, "withdraw_proceeds", domain.EntityAccount, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("withdraw proceeds: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			accounts := tx.Snapshot().Accounts()
			if accounts.Proceeds == 0 {
				return fmt.Errorf("withdraw proceeds: nothing accrued: %w", domain.ErrNoFunds)
			}
			swept = accounts.Proceeds
			if _, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.Proceeds = 0
				return nil
			}); err != nil {
				return err
			}
			if err := s.bank.Pay(ctx, caller, swept); err != nil {
				return fmt.Errorf("withdraw proceeds: %v: %w", err, domain.ErrTransferFailed)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return 0, res, err
	}
	return swept, res, nil
}
