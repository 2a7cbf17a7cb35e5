package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/rollup/internal/db"
	"github.com/alexanderramin/rollup/internal/domain"
)

// SQLHistoryRepo implements HistoryRepo over database/sql.
type SQLHistoryRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLHistoryRepo creates a new SQLHistoryRepo.
func NewSQLHistoryRepo(conn db.DBTX, dialect db.Dialect) *SQLHistoryRepo {
	return &SQLHistoryRepo{db: conn, dialect: dialect}
}

func (r *SQLHistoryRepo) Append(ctx context.Context, h *domain.HistoryEntry) error {
	query := `INSERT INTO state_history (id, entity_id, from_state, to_state, actor, cause, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		h.ID, h.EntityID, string(h.FromState), string(h.ToState), h.Actor, string(h.Cause), formatTime(h.At))
	if err != nil {
		return fmt.Errorf("appending history entry: %w", err)
	}
	return nil
}

func (r *SQLHistoryRepo) ListByEntity(ctx context.Context, entityID string) ([]domain.HistoryEntry, error) {
	query := `SELECT id, entity_id, from_state, to_state, actor, cause, at
		FROM state_history WHERE entity_id = ? ORDER BY at, id`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), entityID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var from, to, cause, at string
		if err := rows.Scan(&h.ID, &h.EntityID, &from, &to, &h.Actor, &cause, &at); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		h.FromState = domain.State(from)
		h.ToState = domain.State(to)
		h.Cause = domain.TransitionCause(cause)
		h.At, err = time.Parse(timestampLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parsing at: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return out, nil
}

// SQLStore implements Store on top of a db.UnitOfWork.
type SQLStore struct {
	uow db.UnitOfWork
}

// NewSQLStore creates a Store whose transactions are opened by uow.
func NewSQLStore(uow db.UnitOfWork) *SQLStore {
	return &SQLStore{uow: uow}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		dialect := s.uow.Dialect()
		return fn(ctx, Repos{
			Entities: NewSQLEntityRepo(tx, dialect),
			History:  NewSQLHistoryRepo(tx, dialect),
		})
	})
}
