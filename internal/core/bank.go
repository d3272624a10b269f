package core

import (
	"context"
	"sync"

	"orchidcore/pkg/domain"
)

// Bank executes outbound value transfers on behalf of the ledger. Payouts
// happen inside the transaction that debits the corresponding account, so a
// failed transfer aborts the whole operation with no partial effect.
type Bank interface {
	Pay(ctx context.Context, to domain.Address, amount domain.Amount) error
}

// Payment records one completed transfer.
type Payment struct {
	To     domain.Address
	Amount domain.Amount
}

// MemoryBank is an in-process Bank that records every payment. It backs
// tests and single-node deployments where settlement happens elsewhere.
type MemoryBank struct {
	mu       sync.Mutex
	payments []Payment
}

// NewMemoryBank constructs an empty recording bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{}
}

// Pay records the transfer and succeeds.
func (b *MemoryBank) Pay(_ context.Context, to domain.Address, amount domain.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments = append(b.payments, Payment{To: to, Amount: amount})
	return nil
}

// Payments returns a copy of all recorded transfers.
func (b *MemoryBank) Payments() []Payment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Payment, len(b.payments))
	copy(out, b.payments)
	return out
}

// PaidTo sums the transfers recorded for one recipient.
func (b *MemoryBank) PaidTo(addr domain.Address) domain.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total domain.Amount
	for _, p := range b.payments {
		if p.To == addr {
			total += p.Amount
		}
	}
	return total
}
