package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"orchidcore/pkg/domain"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garden.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateOrchid(domain.Orchid{Owner: "grower"}); err != nil {
			return err
		}
		if _, err := tx.CreateRequest(domain.RandomnessRequest{
			Purpose:   domain.PurposeGermination,
			SubjectID: 1,
			Status:    domain.RequestPending,
		}); err != nil {
			return err
		}
		if err := tx.AddRedemption(3); err != nil {
			return err
		}
		if _, err := tx.UpdateAccounts(func(a *domain.Accounts) error {
			a.Balance = 1000
			a.Proceeds = 80
			return nil
		}); err != nil {
			return err
		}
		if _, err := tx.UpdateControls(func(c *domain.Controls) error {
			c.GrowingStarted = true
			return nil
		}); err != nil {
			return err
		}
		_, err := tx.UpdateCycle(func(c *domain.PromotionCycle) error {
			c.Pot = 40
			c.Entries = append(c.Entries, domain.Entry{Address: "grower", TokenID: 3})
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	orchids := reopened.ListOrchids()
	if len(orchids) != 1 || orchids[0].Owner != "grower" {
		t.Fatalf("orchids mismatch: %+v", orchids)
	}
	accounts := reopened.Accounts()
	if accounts.Balance != 1000 || accounts.Proceeds != 80 {
		t.Fatalf("accounts mismatch: %+v", accounts)
	}
	if !reopened.Controls().GrowingStarted {
		t.Fatalf("controls mismatch")
	}
	cycle := reopened.Cycle()
	if cycle.Pot != 40 || len(cycle.Entries) != 1 || cycle.Entries[0].TokenID != 3 {
		t.Fatalf("cycle mismatch: %+v", cycle)
	}
	snapshot := reopened.ExportState()
	if len(snapshot.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(snapshot.Requests))
	}
	if len(snapshot.Redemptions) != 1 || snapshot.Redemptions[0] != 3 {
		t.Fatalf("redemptions mismatch: %v", snapshot.Redemptions)
	}
	if snapshot.NextToken != 1 || snapshot.NextRequest != 1 {
		t.Fatalf("sequence mismatch: %d/%d", snapshot.NextToken, snapshot.NextRequest)
	}

	// Sequences continue across the reopen.
	_, err = reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateOrchid(domain.Orchid{Owner: "other"})
		if err != nil {
			return err
		}
		if created.TokenID != 2 {
			t.Fatalf("expected token 2 after reopen, got %d", created.TokenID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("post-reopen create: %v", err)
	}
}

func TestSQLiteFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garden.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateOrchid(domain.Orchid{Owner: "grower"}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if got := len(reopened.ListOrchids()); got != 0 {
		t.Fatalf("expected no orchids persisted, got %d", got)
	}
}
