package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"orchidcore/pkg/domain"
)

// mintGerminated mints one token for owner and completes its germination
// with the given draw.
func mintGerminated(t *testing.T, svc *Service, owner domain.Address, random uint64) TokenID {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, err := svc.StartGrowing(ctx, testOperator); err != nil {
		t.Fatalf("start growing: %v", err)
	}
	minted, _, err := svc.Mint(ctx, owner, 1, DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id := minted[0].TokenID
	requestID, _, err := svc.Germinate(ctx, owner, id, 7)
	if err != nil {
		t.Fatalf("germinate: %v", err)
	}
	if _, err := svc.FulfillRandomness(ctx, testOracle, requestID, random); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	return id
}

func TestGerminateRequiresGrowing(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	minted, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := svc.Germinate(ctx, alice, minted[0].TokenID, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before growing, got %v", err)
	}
}

func TestGerminateOwnerOnly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, err := svc.StartGrowing(ctx, testOperator); err != nil {
		t.Fatalf("start growing: %v", err)
	}
	minted, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := svc.Germinate(ctx, bob, minted[0].TokenID, 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestGerminationAssignsSpeciesAndPlantsAtNow(t *testing.T) {
	svc, store, _, clock := newTestService(t)
	id := mintGerminated(t, svc, alice, 1)

	orchid, ok := store.GetOrchid(id)
	if !ok {
		t.Fatalf("orchid missing")
	}
	if orchid.Species != domain.SpeciesMothOrchid {
		t.Fatalf("expected moth orchid for draw 1, got %s", orchid.Species)
	}
	if !orchid.PlantedAt.Equal(clock.Now()) {
		t.Fatalf("expected planted at %v, got %v", clock.Now(), orchid.PlantedAt)
	}
	if orchid.PendingRequestID != "" {
		t.Fatalf("expected pending request cleared")
	}
	stage, err := svc.Stage(id)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if stage != domain.StageFlowering {
		t.Fatalf("expected flowering, got %s", stage)
	}
}

func TestGerminationDrawZeroIsRarest(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	id := mintGerminated(t, svc, alice, 0)
	orchid, _ := store.GetOrchid(id)
	if orchid.Species != domain.SpeciesShenzhenNongke {
		t.Fatalf("expected Shenzhen Nongke for draw 0, got %s", orchid.Species)
	}
}

func TestGerminateTwiceFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	id := mintGerminated(t, svc, alice, 500)

	if _, _, err := svc.Germinate(ctx, alice, id, 9); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for germinated orchid, got %v", err)
	}
}

func TestDuplicateGerminationRequest(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, err := svc.StartGrowing(ctx, testOperator); err != nil {
		t.Fatalf("start growing: %v", err)
	}
	minted, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id := minted[0].TokenID
	if _, _, err := svc.Germinate(ctx, alice, id, 1); err != nil {
		t.Fatalf("first germinate: %v", err)
	}
	if _, _, err := svc.Germinate(ctx, alice, id, 2); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate request, got %v", err)
	}
	if stage, _ := svc.Stage(id); stage != domain.StageSeed {
		t.Fatalf("expected seed stage while pending, got %s", stage)
	}
}

func TestFulfillUnauthorized(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.FulfillRandomness(ctx, alice, "req-00000001", 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestFulfillUnknownRequest(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.FulfillRandomness(ctx, testOracle, "req-99999999", 1); !errors.Is(err, domain.ErrUnknownRequest) {
		t.Fatalf("expected unknown request, got %v", err)
	}
}

func TestFulfillReplayFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, err := svc.StartGrowing(ctx, testOperator); err != nil {
		t.Fatalf("start growing: %v", err)
	}
	minted, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	requestID, _, err := svc.Germinate(ctx, alice, minted[0].TokenID, 3)
	if err != nil {
		t.Fatalf("germinate: %v", err)
	}
	if _, err := svc.FulfillRandomness(ctx, testOracle, requestID, 42); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if _, err := svc.FulfillRandomness(ctx, testOracle, requestID, 42); !errors.Is(err, domain.ErrAlreadyFulfilled) {
		t.Fatalf("expected already fulfilled on replay, got %v", err)
	}
}

func TestContinuationFailureRejectsRequest(t *testing.T) {
	svc, store, _, clock := newTestService(t)
	ctx := context.Background()

	// Build a cycle with one entry and open winner selection.
	mintGerminated(t, svc, alice, 100)
	if _, err := svc.Fund(ctx, DefaultRebate); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, _, err := svc.Enter(ctx, alice); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, err := svc.FundFees(ctx, DefaultRandomnessFee); err != nil {
		t.Fatalf("fund fees: %v", err)
	}
	clock.Set(testStart.Add(8 * 24 * time.Hour))
	requestID, _, err := svc.SelectWinner(ctx, testOperator, 11)
	if err != nil {
		t.Fatalf("select winner: %v", err)
	}

	// Resetting the promotion supersedes the cycle the request targeted, so
	// the continuation must fail and the request become terminal.
	if _, err := svc.Reset(ctx, testOperator, clock.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.FulfillRandomness(ctx, testOracle, requestID, 5); err == nil {
		t.Fatalf("expected continuation failure")
	}

	var status domain.RequestStatus
	err = store.View(ctx, func(view TransactionView) error {
		request, ok := view.FindRequest(requestID)
		if !ok {
			t.Fatalf("request missing")
		}
		status = request.Status
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if status != domain.RequestRejected {
		t.Fatalf("expected rejected, got %s", status)
	}
	if winner, ok := svc.Winner(); ok {
		t.Fatalf("expected no winner, got %s", winner)
	}

	// Replay of the rejected request is a terminal failure.
	if _, err := svc.FulfillRandomness(ctx, testOracle, requestID, 5); !errors.Is(err, domain.ErrAlreadyFulfilled) {
		t.Fatalf("expected already fulfilled for rejected request, got %v", err)
	}
}
