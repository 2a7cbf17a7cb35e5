package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
)

// Transition moves id into target on behalf of actor.
//
// The state check, history snapshot, state write and upward closure check
// commit together. Ancestor budget totals are then checked for drift in a
// separate transaction whose failure only adds a warning. If target is a
// propagating state the children are then moved one at a time, each in its own
// transaction, depth first in creation order. A failure during that fan-out
// stops it and returns the partial Result alongside an error that unwraps to
// *PartialPropagationError.
//
// Asking for the state the entity already holds writes nothing and reports
// NoOp. For a propagating state the fan-out still runs, so retrying a call
// whose fan-out was interrupted finishes the job.
func (e *Engine) Transition(ctx context.Context, id string, target domain.State, actor string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity_id": id, "target": string(target), "actor": actor}
	defer func() { e.observe(ctx, "transition", startedAt, fields, res, err) }()

	step := &Result{}
	var hist []domain.HistoryEntry
	var current *domain.Entity
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		*step = Result{}
		hist = nil

		ent, err := loadEntity(ctx, r, id)
		if err != nil {
			return err
		}
		m := domain.MachineFor(ent.Kind)
		if !m.HasState(target) {
			return domain.NewError(domain.ErrCodeInvalidTransition, id, "state %q is not defined for %s", target, ent.Kind)
		}
		current = ent
		if ent.State == target {
			step.NoOp = true
			return nil
		}
		if !m.IsAllowed(ent.State, target) {
			return domain.NewError(domain.ErrCodeInvalidTransition, id,
				"a %s cannot move from %s to %s", ent.Kind, ent.State, target)
		}

		if err := e.apply(ctx, r, ent, target, actor, domain.CauseClient, step, &hist); err != nil {
			return err
		}
		return e.closeUpward(ctx, r, ent, actor, step, &hist)
	})
	if err != nil {
		e.logAbort(id, err)
		return nil, storeError(id, err, "transition")
	}

	res = step
	res.Entity = current
	e.flushInto(ctx, res, hist)
	if !res.NoOp {
		e.repairAncestors(ctx, current, res)
	}

	if e.propagating[target] {
		if err := e.propagate(ctx, current, target, actor, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// apply writes target onto ent and buffers the audit entry. Moving into a
// suspending state snapshots the current state first.
func (e *Engine) apply(ctx context.Context, r repository.Repos, ent *domain.Entity, target domain.State,
	actor string, cause domain.TransitionCause, res *Result, hist *[]domain.HistoryEntry) error {
	from := ent.State
	if target.IsSuspending() {
		warning, err := e.recorder.Snapshot(ctx, r, ent, actor, string(cause))
		if err != nil {
			return err
		}
		if warning != "" {
			res.warn(warning)
		}
	}

	ent.State = target
	ent.UpdatedAt = e.now()
	if cause == domain.CauseCascadeClose && ent.ActualEndDate == nil {
		end := ent.UpdatedAt
		ent.ActualEndDate = &end
	}
	if err := r.Entities.Update(ctx, ent); err != nil {
		return storeError(ent.ID, err, "writing state %s", target)
	}
	*hist = append(*hist, e.recorder.entry(ent, from, actor, cause))
	return nil
}

// closeUpward is the bottom-up closure check. When child is terminal and
// every sibling is terminal too, the parent is moved to its completed state
// and the check repeats one level up. A parent that is already terminal, or
// has no children, is left alone. The parent row is locked before its
// children are listed so racing completions converge on a single closure.
func (e *Engine) closeUpward(ctx context.Context, r repository.Repos, child *domain.Entity, actor string,
	res *Result, hist *[]domain.HistoryEntry) error {
	cur := child
	for hops := 0; ; hops++ {
		if cur.IsRoot() || !cur.IsTerminal() {
			return nil
		}
		if hops >= domain.MaxDepth-1 {
			return e.depthExceeded(child.ID, "closure walked more than %d levels up", domain.MaxDepth-1)
		}
		// Racing completions under the same parent serialize here, so the
		// later one reads the parent and its children after the earlier one
		// has committed. A missing parent is reported by loadParent.
		if err := r.Entities.LockForUpdate(ctx, cur.ParentRef()); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return storeError(cur.ID, err, "locking parent %s", cur.ParentRef())
		}
		parent, err := loadParent(ctx, r, cur)
		if err != nil {
			return err
		}
		if parent.IsTerminal() {
			return nil
		}
		siblings, err := r.Entities.ListByParent(ctx, parent.ID)
		if err != nil {
			return storeError(parent.ID, err, "listing children")
		}
		if len(siblings) == 0 {
			return nil
		}
		for _, s := range siblings {
			if !s.IsTerminal() {
				return nil
			}
		}

		if err := e.apply(ctx, r, parent, domain.CompletedState(parent.Kind), actor, domain.CauseCascadeClose, res, hist); err != nil {
			return err
		}
		res.Closed = append(res.Closed, parent.ID)
		e.log.Debug("cascade close", "entity_id", parent.ID, "kind", string(parent.Kind), "trigger", child.ID)
		cur = parent
	}
}

type fanOutOutcome int

const (
	outcomeWritten fanOutOutcome = iota
	outcomeAlready
	outcomeSkipped
)

// propagate moves every descendant of root into target.
func (e *Engine) propagate(ctx context.Context, root *domain.Entity, target domain.State, actor string, res *Result) error {
	failedID, err := e.fanOut(ctx, root, target, actor, res, root.Kind.Level())
	if err == nil {
		e.log.Debug("propagation finished", "entity_id", root.ID, "state", string(target),
			"propagated", len(res.Propagated), "skipped", len(res.Skipped))
		return nil
	}

	perr := &PartialPropagationError{
		RootID:   root.ID,
		FailedID: failedID,
		Updated:  append([]string(nil), res.Propagated...),
		Err:      err,
	}
	code := domain.CodeOf(err)
	if code == "" || code == domain.ErrCodeNotFound {
		code = domain.ErrCodeStoreUnavailable
	}
	e.log.Warn("propagation halted", "entity_id", root.ID, "state", string(target),
		"failed_id", failedID, "updated", len(perr.Updated), "error", err)
	return domain.WrapError(code, root.ID, perr, "propagating %s stopped after %d descendants", target, len(perr.Updated))
}

// fanOut handles the children of parent. Each child gets its own
// transaction in which its current state is re-read: a child already in
// target is not written but is still descended into, a child whose kind
// forbids the move, or that sits in archived, is skipped with its subtree, and any other child is
// written, checked for upward closure and then descended into.
func (e *Engine) fanOut(ctx context.Context, parent *domain.Entity, target domain.State, actor string,
	res *Result, depth int) (string, error) {
	if _, ok := parent.Kind.ChildKind(); !ok {
		return "", nil
	}
	if depth >= domain.MaxDepth {
		return parent.ID, e.depthExceeded(parent.ID, "propagation descended past level %d", domain.MaxDepth)
	}

	var children []*domain.Entity
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		children, err = r.Entities.ListByParent(ctx, parent.ID)
		return err
	})
	if err != nil {
		return parent.ID, storeError(parent.ID, err, "listing children")
	}

	for _, ch := range children {
		step := &Result{}
		var hist []domain.HistoryEntry
		var outcome fanOutOutcome
		var fresh *domain.Entity
		err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
			*step = Result{}
			hist = nil

			c, err := loadEntity(ctx, r, ch.ID)
			if err != nil {
				return err
			}
			if c.Kind.Level() != parent.Kind.Level()+1 {
				return e.depthExceeded(c.ID, "child of a %s is a %s", parent.Kind, c.Kind)
			}
			fresh = c
			switch {
			case c.State == target:
				outcome = outcomeAlready
				return nil
			case !domain.IsCascadeAllowed(c.Kind, c.State, target):
				outcome = outcomeSkipped
				return nil
			}
			outcome = outcomeWritten
			if err := e.apply(ctx, r, c, target, actor, domain.CausePropagated, step, &hist); err != nil {
				return err
			}
			return e.closeUpward(ctx, r, c, actor, step, &hist)
		})
		if err != nil {
			return ch.ID, storeError(ch.ID, err, "propagating %s", target)
		}

		res.Closed = append(res.Closed, step.Closed...)
		res.Warnings = append(res.Warnings, step.Warnings...)
		e.flushInto(ctx, res, hist)

		switch outcome {
		case outcomeSkipped:
			res.Skipped = append(res.Skipped, fresh.ID)
			continue
		case outcomeWritten:
			res.Propagated = append(res.Propagated, fresh.ID)
		}
		if failedID, err := e.fanOut(ctx, fresh, target, actor, res, depth+1); err != nil {
			return failedID, err
		}
	}
	return "", nil
}

// Restore returns id from a suspending state to the state recorded in its
// snapshot and clears the snapshot. With cascade, descendants whose snapshot
// shows they were suspended because their parent was are restored as well,
// each in its own transaction. Restoration never fans out a state.
func (e *Engine) Restore(ctx context.Context, id, actor string, cascade bool) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity_id": id, "actor": actor, "cascade": cascade}
	defer func() { e.observe(ctx, "restore", startedAt, fields, res, err) }()

	step := &Result{}
	var hist []domain.HistoryEntry
	var current *domain.Entity
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		*step = Result{}
		hist = nil

		ent, err := loadEntity(ctx, r, id)
		if err != nil {
			return err
		}
		if !ent.State.IsSuspending() {
			return domain.NewError(domain.ErrCodeInvalidTransition, id, "%s is not suspended", ent.State)
		}
		if ent.PreviousState == nil {
			return domain.NewError(domain.ErrCodeInvalidTransition, id, "no snapshot to restore from")
		}
		prev := ent.PreviousState.State
		if !domain.IsAllowedTransition(ent.Kind, ent.State, prev) {
			return domain.NewError(domain.ErrCodeInvalidTransition, id,
				"a %s cannot move from %s back to %s", ent.Kind, ent.State, prev)
		}
		if err := e.restoreOne(ctx, r, ent, actor, &hist); err != nil {
			return err
		}
		current = ent
		return e.closeUpward(ctx, r, ent, actor, step, &hist)
	})
	if err != nil {
		return nil, storeError(id, err, "restore")
	}

	res = step
	res.Entity = current
	res.Restored = append(res.Restored, id)
	e.flushInto(ctx, res, hist)

	if !cascade {
		return res, nil
	}
	if failedID, err := e.restoreChildren(ctx, current, actor, res, current.Kind.Level()); err != nil {
		perr := &PartialPropagationError{
			RootID:   id,
			FailedID: failedID,
			Updated:  append([]string(nil), res.Restored[1:]...),
			Err:      err,
		}
		code := domain.CodeOf(err)
		if code == "" || code == domain.ErrCodeNotFound {
			code = domain.ErrCodeStoreUnavailable
		}
		return res, domain.WrapError(code, id, perr, "restore stopped after %d descendants", len(perr.Updated))
	}
	return res, nil
}

func (e *Engine) restoreOne(ctx context.Context, r repository.Repos, ent *domain.Entity, actor string, hist *[]domain.HistoryEntry) error {
	from := ent.State
	ent.State = ent.PreviousState.State
	ent.PreviousState = nil
	ent.UpdatedAt = e.now()
	if err := r.Entities.Update(ctx, ent); err != nil {
		return storeError(ent.ID, err, "restoring state")
	}
	*hist = append(*hist, e.recorder.entry(ent, from, actor, domain.CauseRestore))
	return nil
}

func (e *Engine) restoreChildren(ctx context.Context, parent *domain.Entity, actor string, res *Result, depth int) (string, error) {
	if _, ok := parent.Kind.ChildKind(); !ok {
		return "", nil
	}
	if depth >= domain.MaxDepth {
		return parent.ID, e.depthExceeded(parent.ID, "restore descended past level %d", domain.MaxDepth)
	}

	var children []*domain.Entity
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		children, err = r.Entities.ListByParent(ctx, parent.ID)
		return err
	})
	if err != nil {
		return parent.ID, storeError(parent.ID, err, "listing children")
	}

	for _, ch := range children {
		step := &Result{}
		var hist []domain.HistoryEntry
		var restored *domain.Entity
		err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
			*step = Result{}
			hist = nil
			restored = nil

			c, err := loadEntity(ctx, r, ch.ID)
			if err != nil {
				return err
			}
			if !restorableWithParent(c) {
				return nil
			}
			if err := e.restoreOne(ctx, r, c, actor, &hist); err != nil {
				return err
			}
			restored = c
			return e.closeUpward(ctx, r, c, actor, step, &hist)
		})
		if err != nil {
			return ch.ID, storeError(ch.ID, err, "restoring")
		}
		res.Closed = append(res.Closed, step.Closed...)
		e.flushInto(ctx, res, hist)
		if restored == nil {
			continue
		}
		res.Restored = append(res.Restored, restored.ID)
		if failedID, err := e.restoreChildren(ctx, restored, actor, res, depth+1); err != nil {
			return failedID, err
		}
	}
	return "", nil
}

// restorableWithParent reports whether c was suspended because its parent
// was, and can go back to the state it held then.
func restorableWithParent(c *domain.Entity) bool {
	snap := c.PreviousState
	if !c.State.IsSuspending() || snap == nil || snap.Flags == nil || !snap.Flags.ParentSuspended {
		return false
	}
	return snap.State != c.State && domain.IsAllowedTransition(c.Kind, c.State, snap.State)
}

// repairAncestors recomputes the budget totals above ent in a transaction of
// its own. A state change never alters a contribution, so this only corrects
// drift, and a failure is reported as a warning.
func (e *Engine) repairAncestors(ctx context.Context, ent *domain.Entity, res *Result) {
	var recomputed []string
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		recomputed = nil
		chain, err := ancestors(ctx, r, ent)
		if err != nil {
			return err
		}
		for _, a := range chain {
			changed, err := e.aggregator.Recompute(ctx, r, a.ID)
			if err != nil {
				return err
			}
			if changed {
				recomputed = append(recomputed, a.ID)
			}
		}
		return nil
	})
	if err != nil {
		e.log.Warn("ancestor totals not checked", "entity_id", ent.ID, "error", err)
		res.warn(fmt.Sprintf("ancestor totals of %s not checked: %v", ent.ID, err))
		return
	}
	res.Recomputed = append(res.Recomputed, recomputed...)
}

func (e *Engine) flushInto(ctx context.Context, res *Result, hist []domain.HistoryEntry) {
	if warning := e.recorder.flush(ctx, e.store, hist); warning != "" {
		res.warn(warning)
	}
}

func (e *Engine) depthExceeded(id, format string, args ...any) error {
	err := domain.NewError(domain.ErrCodeCycleDetected, id, format, args...)
	e.log.Error("hierarchy depth exceeded", "entity_id", id, "error", err)
	return err
}

func (e *Engine) logAbort(id string, err error) {
	if domain.IsCycleDetected(err) || domain.IsAggregationInconsistency(err) {
		e.log.Error("transition aborted", "entity_id", id, "error", err)
	}
}
