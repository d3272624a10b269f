package core

import "orchidcore/pkg/domain"

// safeBalance is the portion of the ledger balance not already promised to
// the pot. Every liability-increasing mutation checks against it so the
// system can always honor both the pot and outstanding rebates. The fee
// reserve is a separate account and never backs liabilities.
func safeBalance(accounts domain.Accounts, cycle domain.PromotionCycle) domain.Amount {
	if accounts.Balance <= cycle.Pot {
		return 0
	}
	return accounts.Balance - cycle.Pot
}

// SafeBalance reports the committed spendable balance.
func (s *Service) SafeBalance() Amount {
	return safeBalance(s.store.Accounts(), s.store.Cycle())
}

// fitsSafeBalance reports whether increasing liabilities by amount still
// leaves the ledger solvent in the given view.
func fitsSafeBalance(view TransactionView, amount domain.Amount) bool {
	return amount <= safeBalance(view.Accounts(), view.Cycle())
}
