package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/logger"
	"github.com/alexanderramin/rollup/internal/repository"
	"github.com/google/uuid"
)

// HistoryRecorder captures the state an entity is leaving before it moves into
// a suspending state, and keeps the audit trail of committed transitions.
type HistoryRecorder struct {
	now func() time.Time
	log *logger.Logger
}

func NewHistoryRecorder(now func() time.Time, log *logger.Logger) *HistoryRecorder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &HistoryRecorder{now: now, log: log}
}

// Snapshot writes e's current state to its previous-state slot and mirrors it
// onto e. For non-root kinds the snapshot records whether the parent was
// suspended at that instant. When the parent cannot be read the snapshot is
// written without flags and the returned warning says so; only a failure to
// write the snapshot itself is an error.
func (h *HistoryRecorder) Snapshot(ctx context.Context, r repository.Repos, e *domain.Entity, actor, reason string) (string, error) {
	snap := &domain.StateSnapshot{
		State:     e.State,
		Timestamp: h.now(),
		Actor:     actor,
		Reason:    reason,
	}

	var warning string
	if !e.IsRoot() {
		parent, err := r.Entities.GetByID(ctx, e.ParentRef())
		if err != nil {
			warning = fmt.Sprintf("snapshot of %s written without parent flags: %v", e.ID, err)
			h.log.Warn("snapshot parent lookup failed", "entity_id", e.ID, "parent_id", e.ParentRef(), "error", err)
		} else {
			snap.Flags = &domain.SnapshotFlags{
				ParentSuspended: parent.State.IsSuspending(),
				ParentState:     parent.State,
			}
		}
	}

	if err := r.Entities.SaveSnapshot(ctx, e.ID, snap); err != nil {
		return warning, storeError(e.ID, err, "saving state snapshot")
	}
	e.PreviousState = snap
	return warning, nil
}

// entry builds an audit record for a state change. Entries are buffered by
// the caller and written with flush once the owning transaction commits.
func (h *HistoryRecorder) entry(e *domain.Entity, from domain.State, actor string, cause domain.TransitionCause) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        uuid.New().String(),
		EntityID:  e.ID,
		FromState: from,
		ToState:   e.State,
		Actor:     actor,
		Cause:     cause,
		At:        h.now(),
	}
}

// flush appends entries in their own transaction. The audit trail is best
// effort: a failure is logged and returned as a warning for the caller's
// Result.
func (h *HistoryRecorder) flush(ctx context.Context, store repository.Store, entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return ""
	}
	err := store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		for i := range entries {
			if err := r.History.Append(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.log.Warn("history flush failed", "entries", len(entries), "entity_id", entries[0].EntityID, "error", err)
		return fmt.Sprintf("%d history entries not recorded: %v", len(entries), err)
	}
	return ""
}
