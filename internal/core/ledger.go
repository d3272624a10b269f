package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"orchidcore/pkg/domain"
)

// eligibleTokens lists the caller's tokens that qualify for the promotion at
// the given instant, ignoring the solvency cap: owned, germinated, alive,
// and never consumed. Ascending token id order.
func (s *Service) eligibleTokens(view TransactionView, addr Address, now time.Time) []TokenID {
	var out []TokenID
	for _, o := range view.ListOrchids() {
		if o.Owner != addr || !o.Germinated() {
			continue
		}
		if !s.cfg.Schedule.Alive(o, now) {
			continue
		}
		if view.IsRedeemed(o.TokenID) {
			continue
		}
		out = append(out, o.TokenID)
	}
	return out
}

// capTokens greedily keeps the prefix of tokens whose combined rebates fit
// under the safe balance.
func (s *Service) capTokens(view TransactionView, tokens []TokenID) []TokenID {
	var out []TokenID
	var committed Amount
	for _, id := range tokens {
		if !fitsSafeBalance(view, committed+s.cfg.Rebate) {
			break
		}
		committed += s.cfg.Rebate
		out = append(out, id)
	}
	return out
}

// CheckEligibility reports the tokens the caller could consume right now and
// their combined rebate value. Only tokens whose rebates fit under the safe
// balance are reported; qualification beyond the cap is invisible here.
func (s *Service) CheckEligibility(ctx context.Context, caller Address) ([]TokenID, Amount, error) {
	var tokens []TokenID
	err := s.store.View(ctx, func(view TransactionView) error {
		eligible := s.eligibleTokens(view, caller, s.clock.Now())
		tokens = s.capTokens(view, eligible)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return tokens, s.cfg.Rebate * Amount(len(tokens)), nil
}

// Enter consumes every eligible-and-fitting token of the caller, appending
// one lottery entry per token and growing the pot by a rebate each. With
// nothing to consume, Enter succeeds as a no-op. The promotion must still be
// open.
func (s *Service) Enter(ctx context.Context, caller Address) ([]TokenID, Result, error) {
	var entered []TokenID
	var res Result
	err := s.instrument(ctx, "enter", domain.EntityCycle, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			cycle := view.Cycle()
			now := tx.Now()
			if cycle.PromotionEnd.IsZero() || !now.Before(cycle.PromotionEnd) {
				return fmt.Errorf("enter: promotion ended: %w", domain.ErrInvalidState)
			}
			eligible := s.eligibleTokens(view, caller, now)
			accepted := s.capTokens(view, eligible)
			if len(accepted) == 0 {
				return nil
			}
			for _, id := range accepted {
				if err := tx.AddRedemption(id); err != nil {
					return err
				}
			}
			if _, err := tx.UpdateCycle(func(c *PromotionCycle) error {
				for _, id := range accepted {
					c.Entries = append(c.Entries, Entry{Address: caller, TokenID: id})
					c.Pot += s.cfg.Rebate
				}
				return nil
			}); err != nil {
				return err
			}
			entered = accepted
			return nil
		})
		if err != nil {
			entered = nil
		}
		return err
	})
	return entered, res, err
}

// Redeem consumes the caller's eligible tokens and pays the combined rebate
// directly instead of entering the lottery. Unlike Enter, redeeming with
// nothing payable is an error: InvalidState when no token qualifies at all,
// BalanceExceeded when tokens qualify but none fit under the safe balance.
func (s *Service) Redeem(ctx context.Context, caller Address) (Amount, []TokenID, Result, error) {
	var paid Amount
	var consumed []TokenID
	var res Result
	err := s.instrument(ctx, "redeem", domain.EntityRedemption, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			eligible := s.eligibleTokens(view, caller, tx.Now())
			if len(eligible) == 0 {
				return fmt.Errorf("redeem: no eligible tokens: %w", domain.ErrInvalidState)
			}
			accepted := s.capTokens(view, eligible)
			if len(accepted) == 0 {
				return fmt.Errorf("redeem: %w", domain.ErrBalanceExceeded)
			}
			amount := s.cfg.Rebate * Amount(len(accepted))
			for _, id := range accepted {
				if err := tx.AddRedemption(id); err != nil {
					return err
				}
			}
			if _, err := tx.UpdateAccounts(func(a *Accounts) error {
				if a.Balance < amount {
					return fmt.Errorf("redeem: %w", domain.ErrBalanceExceeded)
				}
				a.Balance -= amount
				return nil
			}); err != nil {
				return err
			}
			if err := s.bank.Pay(ctx, caller, amount); err != nil {
				return fmt.Errorf("redeem: %v: %w", err, domain.ErrTransferFailed)
			}
			paid = amount
			consumed = accepted
			return nil
		})
		if err != nil {
			paid = 0
			consumed = nil
		}
		return err
	})
	return paid, consumed, res, err
}

// SelectWinner opens the winner-selection randomness round-trip. Operator
// only, after the promotion ends, with at least one entry, no winner yet,
// no selection already pending, and a fee reserve covering the oracle fee.
// The fee is debited when the request opens and is not refunded.
func (s *Service) SelectWinner(ctx context.Context, caller Address, seed uint64) (string, Result, error) {
	var requestID string
	var res Result
	err := s.instrument(ctx, "select_winner", domain.EntityCycle, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("select winner: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			cycle := view.Cycle()
			now := tx.Now()
			if cycle.PromotionEnd.IsZero() || now.Before(cycle.PromotionEnd) {
				return fmt.Errorf("select winner: %w", domain.ErrNotYetEligible)
			}
			if cycle.Winner != "" {
				return fmt.Errorf("select winner: cycle %d already has a winner: %w", cycle.ID, domain.ErrInvalidState)
			}
			if cycle.PendingSelectionRequestID != "" {
				return fmt.Errorf("select winner: request %s outstanding: %w", cycle.PendingSelectionRequestID, domain.ErrDuplicateRequest)
			}
			if len(cycle.Entries) == 0 {
				return fmt.Errorf("select winner: cycle %d has no entries: %w", cycle.ID, domain.ErrInvalidState)
			}
			if view.Accounts().FeeReserve < s.cfg.RandomnessFee {
				return fmt.Errorf("select winner: fee reserve %d below %d: %w", view.Accounts().FeeReserve, s.cfg.RandomnessFee, domain.ErrNoFunds)
			}
			if _, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.FeeReserve -= s.cfg.RandomnessFee
				return nil
			}); err != nil {
				return err
			}
			request, err := s.requestRandomness(tx, domain.PurposeWinnerSelection, cycle.ID, seed)
			if err != nil {
				return err
			}
			requestID = request.ID
			_, err = tx.UpdateCycle(func(c *PromotionCycle) error {
				c.PendingSelectionRequestID = request.ID
				return nil
			})
			return err
		})
		return err
	})
	if err != nil {
		return "", res, err
	}
	return requestID, res, nil
}

// WithdrawWinner pays the pot to the selected winner, once. The pot zeroes
// on payout.
func (s *Service) WithdrawWinner(ctx context.Context, caller Address) (Amount, Result, error) {
	var paid Amount
	var res Result
	err := s.instrument(ctx, "withdraw_winner", domain.EntityCycle, "", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			cycle := tx.Snapshot().Cycle()
			if cycle.Winner == "" {
				return fmt.Errorf("withdraw winner: no winner selected: %w", domain.ErrInvalidState)
			}
			if caller != cycle.Winner {
				return fmt.Errorf("withdraw winner: %w", domain.ErrUnauthorized)
			}
			if cycle.WinnerPaid {
				return fmt.Errorf("withdraw winner: already paid: %w", domain.ErrInvalidState)
			}
			amount := cycle.Pot
			if amount == 0 {
				return fmt.Errorf("withdraw winner: empty pot: %w", domain.ErrNoFunds)
			}
			if _, err := tx.UpdateAccounts(func(a *Accounts) error {
				if a.Balance < amount {
					return fmt.Errorf("withdraw winner: %w", domain.ErrBalanceExceeded)
				}
				a.Balance -= amount
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.UpdateCycle(func(c *PromotionCycle) error {
				c.Pot = 0
				c.WinnerPaid = true
				return nil
			}); err != nil {
				return err
			}
			if err := s.bank.Pay(ctx, caller, amount); err != nil {
				return fmt.Errorf("withdraw winner: %v: %w", err, domain.ErrTransferFailed)
			}
			paid = amount
			return nil
		})
		return err
	})
	if err != nil {
		return 0, res, err
	}
	return paid, res, nil
}

// WithdrawUnclaimed sweeps the spendable balance, everything not promised to
// the pot, to the operator.
func (s *Service) WithdrawUnclaimed(ctx context.Context, caller Address) (Amount, Result, error) {
	var swept Amount
	var res Result
	err := s.instrument(ctx, "withdraw_unclaimed", domain.EntityAccount, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("withdraw unclaimed: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			amount := safeBalance(view.Accounts(), view.Cycle())
			if amount == 0 {
				return fmt.Errorf("withdraw unclaimed: %w", domain.ErrNoFunds)
			}
			if _, err := tx.UpdateAccounts(func(a *Accounts) error {
				a.Balance -= amount
				return nil
			}); err != nil {
				return err
			}
			if err := s.bank.Pay(ctx, caller, amount); err != nil {
				return fmt.Errorf("withdraw unclaimed: %v: %w", err, domain.ErrTransferFailed)
			}
			swept = amount
			return nil
		})
		return err
	})
	if err != nil {
		return 0, res, err
	}
	return swept, res, nil
}

// Reset replaces the cycle with a fresh one ending at newPromotionEnd.
// Entries, pot, winner state, and any pending selection are discarded; the
// redemption set survives, so consumed tokens stay consumed forever.
func (s *Service) Reset(ctx context.Context, caller Address, newPromotionEnd time.Time) (Result, error) {
	var res Result
	err := s.instrument(ctx, "reset_promotion", domain.EntityCycle, "", func(ctx context.Context) error {
		if !s.isOperator(caller) {
			return fmt.Errorf("reset promotion: %w", domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			current := tx.Snapshot().Cycle()
			_, err := tx.ReplaceCycle(PromotionCycle{
				ID:           current.ID + 1,
				PromotionEnd: newPromotionEnd,
			})
			return err
		})
		return err
	})
	return res, err
}

// Pot returns the committed pot.
func (s *Service) Pot() Amount { return s.store.Cycle().Pot }

// PromotionOpen reports whether entries are still accepted.
func (s *Service) PromotionOpen() bool {
	cycle := s.store.Cycle()
	return !cycle.PromotionEnd.IsZero() && s.clock.Now().Before(cycle.PromotionEnd)
}

// AddressEntriesCount counts addr's tickets in the current cycle.
func (s *Service) AddressEntriesCount(addr Address) int {
	return s.store.Cycle().EntriesFor(addr)
}

// Winner returns the selected winner, if any.
func (s *Service) Winner() (Address, bool) {
	cycle := s.store.Cycle()
	return cycle.Winner, cycle.Winner != ""
}

// CycleID returns the id of the active cycle.
func (s *Service) CycleID() string {
	return strconv.FormatUint(s.store.Cycle().ID, 10)
}
