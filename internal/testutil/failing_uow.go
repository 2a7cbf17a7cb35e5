package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/alexanderramin/rollup/internal/db"
	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
)

// FailOnNthExecUoW is a test UoW that injects an error on the Nth ExecContext
// call within a transaction. This enables rollback integration tests by
// simulating failures at precise points in multi-write operations.
//
// ExecContext calls are counted starting at 1. QueryContext and QueryRowContext
// are not counted (reads pass through normally).
type FailOnNthExecUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error
}

func (u *FailOnNthExecUoW) Dialect() db.Dialect {
	return db.DialectSQLite
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failOnNthExec{DBTX: tx, failOn: u.FailOn, err: u.Err}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failOnNthExec struct {
	db.DBTX
	count  atomic.Int32
	failOn int32
	err    error
}

func (f *failOnNthExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	n := f.count.Add(1)
	if n == f.failOn {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

// FailingEntityStore wraps a Store and fails every write that touches one of
// FailIDs. Reads and writes to other entities pass through, which lets tests
// break a cascade at a chosen entity.
type FailingEntityStore struct {
	repository.Store
	FailIDs map[string]bool
	Err     error
	// FailHistory makes every history append fail.
	FailHistory bool
}

func (s *FailingEntityStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		return fn(ctx, repository.Repos{
			Entities: &failingEntities{EntityRepo: r.Entities, s: s},
			History:  &failingHistory{HistoryRepo: r.History, s: s},
		})
	})
}

type failingEntities struct {
	repository.EntityRepo
	s *FailingEntityStore
}

func (f *failingEntities) Update(ctx context.Context, e *domain.Entity) error {
	if f.s.FailIDs[e.ID] {
		return f.s.Err
	}
	return f.EntityRepo.Update(ctx, e)
}

func (f *failingEntities) SaveSnapshot(ctx context.Context, id string, snap *domain.StateSnapshot) error {
	if f.s.FailIDs[id] {
		return f.s.Err
	}
	return f.EntityRepo.SaveSnapshot(ctx, id, snap)
}

type failingHistory struct {
	repository.HistoryRepo
	s *FailingEntityStore
}

func (f *failingHistory) Append(ctx context.Context, h *domain.HistoryEntry) error {
	if f.s.FailHistory {
		return f.s.Err
	}
	return f.HistoryRepo.Append(ctx, h)
}
