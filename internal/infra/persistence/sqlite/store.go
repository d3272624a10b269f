// Package sqlite persists the in-memory garden state to an embedded SQLite
// file as JSON snapshots, one bucket per row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"orchidcore/internal/infra/persistence/memory"
	"orchidcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store wraps the in-memory transactional store and snapshots the full state
// to SQLite after every successful transaction.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "orchidcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var buckets = []string{"orchids", "requests", "cycle", "redemptions", "accounts", "controls", "sequences"}

// sequences carries the two monotone counters outside the entity buckets.
type sequences struct {
	NextToken   domain.TokenID `json:"next_token"`
	NextRequest uint64         `json:"next_request"`
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type raw struct {
		bucket  string
		payload []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.bucket, &r.payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	for _, r := range raws {
		switch r.bucket {
		case "orchids":
			if err := json.Unmarshal(r.payload, &snapshot.Orchids); err != nil {
				return fmt.Errorf("decode orchids: %w", err)
			}
		case "requests":
			if err := json.Unmarshal(r.payload, &snapshot.Requests); err != nil {
				return fmt.Errorf("decode requests: %w", err)
			}
		case "cycle":
			if err := json.Unmarshal(r.payload, &snapshot.Cycle); err != nil {
				return fmt.Errorf("decode cycle: %w", err)
			}
		case "redemptions":
			if err := json.Unmarshal(r.payload, &snapshot.Redemptions); err != nil {
				return fmt.Errorf("decode redemptions: %w", err)
			}
		case "accounts":
			if err := json.Unmarshal(r.payload, &snapshot.Accounts); err != nil {
				return fmt.Errorf("decode accounts: %w", err)
			}
		case "controls":
			if err := json.Unmarshal(r.payload, &snapshot.Controls); err != nil {
				return fmt.Errorf("decode controls: %w", err)
			}
		case "sequences":
			var seq sequences
			if err := json.Unmarshal(r.payload, &seq); err != nil {
				return fmt.Errorf("decode sequences: %w", err)
			}
			snapshot.NextToken = seq.NextToken
			snapshot.NextRequest = seq.NextRequest
		}
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case "orchids":
			data, err = json.Marshal(snapshot.Orchids)
		case "requests":
			data, err = json.Marshal(snapshot.Requests)
		case "cycle":
			data, err = json.Marshal(snapshot.Cycle)
		case "redemptions":
			data, err = json.Marshal(snapshot.Redemptions)
		case "accounts":
			data, err = json.Marshal(snapshot.Accounts)
		case "controls":
			data, err = json.Marshal(snapshot.Controls)
		case "sequences":
			data, err = json.Marshal(sequences{NextToken: snapshot.NextToken, NextRequest: snapshot.NextRequest})
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within an in-memory transaction, then snapshots
// state to SQLite when it commits.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
