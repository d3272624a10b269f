package core

import (
	"sync"
	"testing"
	"time"

	"orchidcore/internal/infra/persistence/memory"
	"orchidcore/pkg/domain"
)

const (
	testOperator = domain.Address("operator")
	testOracle   = domain.Address("oracle")
	alice        = domain.Address("alice")
	bob          = domain.Address("bob")
	carol        = domain.Address("carol")
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// timeControl is a mutable clock shared by the service and the store.
type timeControl struct {
	mu  sync.Mutex
	now time.Time
}

func newTimeControl() *timeControl { return &timeControl{now: testStart} }

func (c *timeControl) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *timeControl) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *timeControl) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store, *MemoryBank, *timeControl) {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	bank := NewMemoryBank()
	clock := newTimeControl()
	cfg := Config{
		Operator:     testOperator,
		Oracle:       testOracle,
		PromotionEnd: testStart.Add(7 * 24 * time.Hour),
	}
	allOpts := append([]Option{WithClock(clock)}, opts...)
	svc, err := NewService(store, bank, cfg, allOpts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, bank, clock
}
