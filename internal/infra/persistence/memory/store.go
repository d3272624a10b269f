// Package memory provides the in-memory implementation of the core
// persistence store, used directly for tests and ephemeral deployments and
// reused as the transactional engine by the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orchidcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Orchid aliases domain.Orchid for in-memory persistence operations.
	Orchid = domain.Orchid
	// RandomnessRequest aliases domain.RandomnessRequest.
	RandomnessRequest = domain.RandomnessRequest
	// PromotionCycle aliases domain.PromotionCycle.
	PromotionCycle = domain.PromotionCycle
	// Accounts aliases domain.Accounts.
	Accounts = domain.Accounts
	// Controls aliases domain.Controls.
	Controls = domain.Controls
	// TokenID aliases domain.TokenID.
	TokenID = domain.TokenID
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type gardenState struct {
	orchids     map[TokenID]Orchid
	requests    map[string]RandomnessRequest
	cycle       PromotionCycle
	redemptions map[TokenID]struct{}
	accounts    Accounts
	controls    Controls
	nextToken   TokenID
	nextRequest uint64
}

func newGardenState() gardenState {
	return gardenState{
		orchids:     make(map[TokenID]Orchid),
		requests:    make(map[string]RandomnessRequest),
		redemptions: make(map[TokenID]struct{}),
		cycle:       PromotionCycle{ID: 1},
	}
}

func cloneOrchid(o Orchid) Orchid { return o }

func cloneRequest(r RandomnessRequest) RandomnessRequest { return r }

func cloneCycle(c PromotionCycle) PromotionCycle {
	cp := c
	cp.Entries = append([]domain.Entry(nil), c.Entries...)
	return cp
}

func (s gardenState) clone() gardenState {
	cloned := newGardenState()
	for k, v := range s.orchids {
		cloned.orchids[k] = cloneOrchid(v)
	}
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	for k := range s.redemptions {
		cloned.redemptions[k] = struct{}{}
	}
	cloned.cycle = cloneCycle(s.cycle)
	cloned.accounts = s.accounts
	cloned.controls = s.controls
	cloned.nextToken = s.nextToken
	cloned.nextRequest = s.nextRequest
	return cloned
}

// Snapshot captures a point-in-time clone of the store state for durable
// backends and tests.
type Snapshot struct {
	Orchids     map[TokenID]Orchid           `json:"orchids"`
	Requests    map[string]RandomnessRequest `json:"requests"`
	Cycle       PromotionCycle               `json:"cycle"`
	Redemptions []TokenID                    `json:"redemptions"`
	Accounts    Accounts                     `json:"accounts"`
	Controls    Controls                     `json:"controls"`
	NextToken   TokenID                      `json:"next_token"`
	NextRequest uint64                       `json:"next_request"`
}

func snapshotFromState(state gardenState) Snapshot {
	s := Snapshot{
		Orchids:     make(map[TokenID]Orchid, len(state.orchids)),
		Requests:    make(map[string]RandomnessRequest, len(state.requests)),
		Cycle:       cloneCycle(state.cycle),
		Redemptions: make([]TokenID, 0, len(state.redemptions)),
		Accounts:    state.accounts,
		Controls:    state.controls,
		NextToken:   state.nextToken,
		NextRequest: state.nextRequest,
	}
	for k, v := range state.orchids {
		s.Orchids[k] = cloneOrchid(v)
	}
	for k, v := range state.requests {
		s.Requests[k] = cloneRequest(v)
	}
	for k := range state.redemptions {
		s.Redemptions = append(s.Redemptions, k)
	}
	sort.Slice(s.Redemptions, func(i, j int) bool { return s.Redemptions[i] < s.Redemptions[j] })
	return s
}

func stateFromSnapshot(s Snapshot) gardenState {
	state := newGardenState()
	for k, v := range s.Orchids {
		state.orchids[k] = cloneOrchid(v)
	}
	for k, v := range s.Requests {
		state.requests[k] = cloneRequest(v)
	}
	for _, id := range s.Redemptions {
		state.redemptions[id] = struct{}{}
	}
	if s.Cycle.ID != 0 {
		state.cycle = cloneCycle(s.Cycle)
	}
	state.accounts = s.Accounts
	state.controls = s.Controls
	state.nextToken = s.NextToken
	state.nextRequest = s.NextRequest
	return state
}

// Store provides an in-memory transactional store for the garden domain.
type Store struct {
	mu     sync.RWMutex
	state  gardenState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newGardenState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for transaction timestamps. It exists
// for the external test collaborators that advance time; production callers
// never touch it.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// NowFunc exposes the store clock so higher layers can share the same
// reading for derived-state queries.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RulesEngine returns the engine evaluated on every transaction.
func (s *Store) RulesEngine() *RulesEngine { return s.engine }

// ExportState returns a deep snapshot of committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces committed state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

// transaction is a mutation set applied to a cloned copy of the store state.
type transaction struct {
	state   *gardenState
	changes []Change
	now     time.Time
}

var _ Transaction = (*transaction)(nil)

func (tx *transaction) Snapshot() TransactionView { return view{state: tx.state} }

func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) record(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateOrchid assigns the next sequential token id and stores the record.
func (tx *transaction) CreateOrchid(o Orchid) (Orchid, error) {
	tx.state.nextToken++
	o.TokenID = tx.state.nextToken
	if _, exists := tx.state.orchids[o.TokenID]; exists {
		return Orchid{}, fmt.Errorf("orchid %d already exists", o.TokenID)
	}
	if o.MintedAt.IsZero() {
		o.MintedAt = tx.now
	}
	tx.state.orchids[o.TokenID] = cloneOrchid(o)
	tx.record(Change{Entity: domain.EntityOrchid, Action: domain.ActionCreate, After: cloneOrchid(o)})
	return cloneOrchid(o), nil
}

// UpdateOrchid mutates an orchid using the provided mutator function.
func (tx *transaction) UpdateOrchid(id TokenID, mutator func(*Orchid) error) (Orchid, error) {
	current, ok := tx.state.orchids[id]
	if !ok {
		return Orchid{}, fmt.Errorf("orchid %d not found", id)
	}
	before := cloneOrchid(current)
	if err := mutator(&current); err != nil {
		return Orchid{}, err
	}
	current.TokenID = id
	tx.state.orchids[id] = cloneOrchid(current)
	tx.record(Change{Entity: domain.EntityOrchid, Action: domain.ActionUpdate, Before: before, After: cloneOrchid(current)})
	return cloneOrchid(current), nil
}

// CreateRequest stores a new randomness request, assigning its id.
func (tx *transaction) CreateRequest(r RandomnessRequest) (RandomnessRequest, error) {
	tx.state.nextRequest++
	r.ID = fmt.Sprintf("req-%08d", tx.state.nextRequest)
	if _, exists := tx.state.requests[r.ID]; exists {
		return RandomnessRequest{}, fmt.Errorf("randomness request %s already exists", r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tx.now
	}
	tx.state.requests[r.ID] = cloneRequest(r)
	tx.record(Change{Entity: domain.EntityRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateRequest mutates a randomness request.
func (tx *transaction) UpdateRequest(id string, mutator func(*RandomnessRequest) error) (RandomnessRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return RandomnessRequest{}, fmt.Errorf("randomness request %s not found", id)
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return RandomnessRequest{}, err
	}
	current.ID = id
	tx.state.requests[id] = cloneRequest(current)
	tx.record(Change{Entity: domain.EntityRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// UpdateCycle mutates the active promotion cycle.
func (tx *transaction) UpdateCycle(mutator func(*PromotionCycle) error) (PromotionCycle, error) {
	current := cloneCycle(tx.state.cycle)
	before := cloneCycle(current)
	if err := mutator(&current); err != nil {
		return PromotionCycle{}, err
	}
	current.ID = before.ID
	tx.state.cycle = cloneCycle(current)
	tx.record(Change{Entity: domain.EntityCycle, Action: domain.ActionUpdate, Before: before, After: cloneCycle(current)})
	return cloneCycle(current), nil
}

// ReplaceCycle installs a fresh cycle in place of the current one.
func (tx *transaction) ReplaceCycle(next PromotionCycle) (PromotionCycle, error) {
	if next.ID <= tx.state.cycle.ID {
		return PromotionCycle{}, fmt.Errorf("replacement cycle id %d not beyond current %d", next.ID, tx.state.cycle.ID)
	}
	tx.state.cycle = cloneCycle(next)
	tx.record(Change{Entity: domain.EntityCycle, Action: domain.ActionCreate, After: cloneCycle(next)})
	return cloneCycle(next), nil
}

// AddRedemption permanently consumes a token id.
func (tx *transaction) AddRedemption(id TokenID) error {
	if _, exists := tx.state.redemptions[id]; exists {
		return fmt.Errorf("token %d already redeemed", id)
	}
	tx.state.redemptions[id] = struct{}{}
	tx.record(Change{Entity: domain.EntityRedemption, Action: domain.ActionCreate, After: id})
	return nil
}

// UpdateAccounts mutates the ledger accounts.
func (tx *transaction) UpdateAccounts(mutator func(*Accounts) error) (Accounts, error) {
	current := tx.state.accounts
	before := current
	if err := mutator(&current); err != nil {
		return Accounts{}, err
	}
	tx.state.accounts = current
	tx.record(Change{Entity: domain.EntityAccount, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// UpdateControls mutates the operator control flags.
func (tx *transaction) UpdateControls(mutator func(*Controls) error) (Controls, error) {
	current := tx.state.controls
	before := current
	if err := mutator(&current); err != nil {
		return Controls{}, err
	}
	tx.state.controls = current
	tx.record(Change{Entity: domain.EntityControls, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// view exposes a read-only snapshot of transactional state to rules and
// queries.
type view struct {
	state *gardenState
}

var _ domain.RuleView = view{}

func (v view) ListOrchids() []Orchid {
	out := make([]Orchid, 0, len(v.state.orchids))
	for _, o := range v.state.orchids {
		out = append(out, cloneOrchid(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

func (v view) FindOrchid(id TokenID) (Orchid, bool) {
	o, ok := v.state.orchids[id]
	if !ok {
		return Orchid{}, false
	}
	return cloneOrchid(o), true
}

func (v view) ListRequests() []RandomnessRequest {
	out := make([]RandomnessRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) FindRequest(id string) (RandomnessRequest, bool) {
	r, ok := v.state.requests[id]
	if !ok {
		return RandomnessRequest{}, false
	}
	return cloneRequest(r), true
}

func (v view) Cycle() PromotionCycle { return cloneCycle(v.state.cycle) }

func (v view) Accounts() Accounts { return v.state.accounts }

func (v view) Controls() Controls { return v.state.controls }

func (v view) IsRedeemed(id TokenID) bool {
	_, ok := v.state.redemptions[id]
	return ok
}

func (v view) ListRedemptions() []TokenID {
	out := make([]TokenID, 0, len(v.state.redemptions))
	for id := range v.state.redemptions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The copy replaces committed state only if fn succeeds and no
// registered rule raises a blocking violation; any error leaves committed
// state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	tx := &transaction{
		state: &next,
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &next}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = next
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

// GetOrchid retrieves an orchid by token id from committed state.
func (s *Store) GetOrchid(id TokenID) (Orchid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orchids[id]
	if !ok {
		return Orchid{}, false
	}
	return cloneOrchid(o), true
}

// ListOrchids returns all orchids from committed state in token id order.
func (s *Store) ListOrchids() []Orchid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Orchid, 0, len(s.state.orchids))
	for _, o := range s.state.orchids {
		out = append(out, cloneOrchid(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// Cycle returns the active promotion cycle from committed state.
func (s *Store) Cycle() PromotionCycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCycle(s.state.cycle)
}

// Accounts returns the committed ledger accounts.
func (s *Store) Accounts() Accounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.accounts
}

// Controls returns the committed operator flags.
func (s *Store) Controls() Controls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.controls
}
