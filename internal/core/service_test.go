package core

import (
	"context"
	"errors"
	"testing"

	"orchidcore/internal/infra/persistence/memory"
	"orchidcore/pkg/domain"
)

func TestMintRequiresSale(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before sale, got %v", err)
	}

	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	minted, _, err := svc.Mint(ctx, alice, 2, 2*DefaultMintPrice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(minted) != 2 || minted[0].TokenID != 1 || minted[1].TokenID != 2 {
		t.Fatalf("unexpected minted tokens: %+v", minted)
	}
	if got := svc.Accounts().Proceeds; got != 2*DefaultMintPrice {
		t.Fatalf("expected proceeds %d, got %d", 2*DefaultMintPrice, got)
	}
}

func TestMintRejectsShortPaymentAtomically(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}

	_, _, err := svc.Mint(ctx, alice, 3, 3*DefaultMintPrice-1)
	if !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected insufficient payment, got %v", err)
	}
	if got := len(svc.TokensOf(alice)); got != 0 {
		t.Fatalf("expected no tokens after failed mint, got %d", got)
	}
	if got := svc.Accounts().Proceeds; got != 0 {
		t.Fatalf("expected no proceeds after failed mint, got %d", got)
	}
}

func TestMintUnitBounds(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}

	if _, _, err := svc.Mint(ctx, alice, 0, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for 0 units, got %v", err)
	}
	if _, _, err := svc.Mint(ctx, alice, 21, 21*DefaultMintPrice); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state above the unit cap, got %v", err)
	}
	if _, _, err := svc.Mint(ctx, alice, 20, 20*DefaultMintPrice); err != nil {
		t.Fatalf("mint at cap: %v", err)
	}
}

func TestStartTogglesOperatorOnly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.StartSale(ctx, alice); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized start sale, got %v", err)
	}
	if _, err := svc.StartGrowing(ctx, alice); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized start growing, got %v", err)
	}
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, err := svc.StartGrowing(ctx, testOperator); err != nil {
		t.Fatalf("start growing: %v", err)
	}
	controls := svc.Controls()
	if !controls.SaleStarted || !controls.GrowingStarted {
		t.Fatalf("expected both toggles set: %+v", controls)
	}
}

func TestTokensOf(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, _, err := svc.Mint(ctx, alice, 2, 2*DefaultMintPrice); err != nil {
		t.Fatalf("mint alice: %v", err)
	}
	if _, _, err := svc.Mint(ctx, bob, 1, DefaultMintPrice); err != nil {
		t.Fatalf("mint bob: %v", err)
	}

	got := svc.TokensOf(alice)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("alice tokens: %v", got)
	}
	if got := svc.TokensOf(bob); len(got) != 1 || got[0] != 3 {
		t.Fatalf("bob tokens: %v", got)
	}
}

func TestFundAndFundFees(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Fund(ctx, 100); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := svc.FundFees(ctx, 25); err != nil {
		t.Fatalf("fund fees: %v", err)
	}
	accounts := svc.Accounts()
	if accounts.Balance != 100 || accounts.FeeReserve != 25 {
		t.Fatalf("accounts mismatch: %+v", accounts)
	}
}

func TestWithdrawProceeds(t *testing.T) {
	svc, _, bank, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.StartSale(ctx, testOperator); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if _, _, err := svc.Mint(ctx, alice, 1, DefaultMintPrice); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, _, err := svc.WithdrawProceeds(ctx, alice); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	swept, _, err := svc.WithdrawProceeds(ctx, testOperator)
	if err != nil {
		t.Fatalf("withdraw proceeds: %v", err)
	}
	if swept != DefaultMintPrice {
		t.Fatalf("expected sweep %d, got %d", DefaultMintPrice, swept)
	}
	if got := bank.PaidTo(testOperator); got != DefaultMintPrice {
		t.Fatalf("expected payment %d, got %d", DefaultMintPrice, got)
	}
	if _, _, err := svc.WithdrawProceeds(ctx, testOperator); !errors.Is(err, domain.ErrNoFunds) {
		t.Fatalf("expected no funds on second sweep, got %v", err)
	}
}

func TestServiceRequiresIdentities(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	bank := NewMemoryBank()
	if _, err := NewService(store, bank, Config{Oracle: testOracle}); err == nil {
		t.Fatalf("expected operator requirement")
	}
	if _, err := NewService(store, bank, Config{Operator: testOperator}); err == nil {
		t.Fatalf("expected oracle requirement")
	}
	if _, err := NewService(nil, bank, Config{Operator: testOperator, Oracle: testOracle}); err == nil {
		t.Fatalf("expected store requirement")
	}
}
