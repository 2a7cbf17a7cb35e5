package service

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/logger"
	"github.com/alexanderramin/rollup/internal/repository"
	"github.com/google/uuid"
)

// CreateConfig holds the defaults applied to newly created entities.
type CreateConfig struct {
	// DefaultSegment is assigned when the caller leaves Entity.Segment empty.
	DefaultSegment string
}

// Config holds the engine's creation defaults and propagating states.
type Config struct {
	Create CreateConfig
	// PropagatingStates are the states that cascade from a parent to its
	// children. Nil means domain.DefaultPropagatingStates.
	PropagatingStates []domain.State
}

// Engine is the façade over the record store, history recorder, aggregator
// and cascade triggers. Every operation is synchronous and runs to completion
// before returning.
type Engine struct {
	store       repository.Store
	recorder    *HistoryRecorder
	aggregator  *Aggregator
	create      CreateConfig
	propagating map[domain.State]bool
	log         *logger.Logger
	observer    UseCaseObserver
	now         func() time.Time
}

func NewEngine(
	store repository.Store,
	cfg Config,
	log *logger.Logger,
	observers ...UseCaseObserver,
) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	states := cfg.PropagatingStates
	if states == nil {
		states = domain.DefaultPropagatingStates
	}
	propagating := make(map[domain.State]bool, len(states))
	for _, s := range states {
		propagating[s] = true
	}
	e := &Engine{
		store:       store,
		create:      cfg.Create,
		propagating: propagating,
		log:         log,
		observer:    useCaseObserverOrNoop(observers),
	}
	e.setClock(func() time.Time { return time.Now().UTC() })
	return e
}

func (e *Engine) setClock(now func() time.Time) {
	e.now = now
	e.recorder = NewHistoryRecorder(now, e.log)
	e.aggregator = NewAggregator(now)
}

// IsPropagating reports whether moving an entity into s cascades to its children.
func (e *Engine) IsPropagating(s domain.State) bool {
	return e.propagating[s]
}

func (e *Engine) observe(ctx context.Context, name string, startedAt time.Time, fields map[string]any, res *Result, err error) {
	if res != nil {
		for k, v := range res.fields() {
			fields[k] = v
		}
	}
	e.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

// Create inserts a new entity under its parent. The id, initial state and
// segment are filled in when empty; the budget total always starts at zero
// and is derived from children afterwards. The parent must exist, sit one
// level up and not be terminal. A Task's campaign reference is taken from
// its project.
func (e *Engine) Create(ctx context.Context, ent *domain.Entity, actor string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"kind": string(ent.Kind)}
	defer func() { e.observe(ctx, "create", startedAt, fields, res, err) }()

	if err := e.prepare(ent); err != nil {
		return nil, err
	}
	fields["entity_id"] = ent.ID

	res = &Result{}
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		res.Recomputed = nil
		return e.createIn(ctx, r, ent, res)
	})
	if err != nil {
		return nil, storeError(ent.ID, err, "create")
	}
	res.Entity = ent.Clone()
	return res, nil
}

// Import creates ents in order inside a single transaction, so either the
// whole batch is stored or none of it is. Parents must precede their
// children. Result.Entity is the first entity of the batch.
func (e *Engine) Import(ctx context.Context, ents []*domain.Entity, actor string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"count": len(ents), "actor": actor}
	defer func() { e.observe(ctx, "import", startedAt, fields, res, err) }()

	if len(ents) == 0 {
		return &Result{NoOp: true}, nil
	}
	for _, ent := range ents {
		if err := e.prepare(ent); err != nil {
			return nil, err
		}
	}

	res = &Result{}
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		*res = Result{}
		for _, ent := range ents {
			if err := e.createIn(ctx, r, ent, res); err != nil {
				return err
			}
			res.Created = append(res.Created, ent.ID)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(ents[0].ID, err, "import")
	}
	res.Entity = ents[0].Clone()
	return res, nil
}

// prepare fills in defaults and checks the fields a new entity can be
// validated on without the store.
func (e *Engine) prepare(ent *domain.Entity) error {
	m := domain.MachineFor(ent.Kind)
	if m == nil {
		return domain.NewError(domain.ErrCodeInvalidHierarchy, ent.ID, "unknown kind %q", ent.Kind)
	}
	if ent.ID == "" {
		ent.ID = uuid.New().String()
	}
	if ent.State == "" {
		ent.State = m.Initial
	} else if !m.HasState(ent.State) {
		return domain.NewError(domain.ErrCodeInvalidTransition, ent.ID, "state %q is not defined for %s", ent.State, ent.Kind)
	}
	if ent.Segment == "" {
		ent.Segment = e.create.DefaultSegment
	}
	now := e.now()
	ent.CreatedAt = now
	ent.UpdatedAt = now
	ent.BudgetTotal = 0
	ent.ActualEndDate = nil
	ent.PreviousState = nil
	ent.CampaignID = nil
	return nil
}

func (e *Engine) createIn(ctx context.Context, r repository.Repos, ent *domain.Entity, res *Result) error {
	if ent.IsRoot() {
		if ent.ParentID != nil {
			return domain.NewError(domain.ErrCodeInvalidHierarchy, ent.ID, "a campaign cannot have a parent")
		}
		return storeError(ent.ID, r.Entities.Create(ctx, ent), "creating entity")
	}
	if ent.ParentRef() == "" {
		return domain.NewError(domain.ErrCodeInvalidHierarchy, ent.ID, "a %s needs a parent", ent.Kind)
	}
	parent, err := r.Entities.GetByID(ctx, ent.ParentRef())
	if err != nil {
		if isNotFound(err) {
			return domain.WrapError(domain.ErrCodeOrphanedParent, ent.ID, err, "parent %s does not exist", ent.ParentRef())
		}
		return storeError(ent.ID, err, "loading parent")
	}
	if want, _ := ent.Kind.ParentKind(); parent.Kind != want {
		return domain.NewError(domain.ErrCodeInvalidHierarchy, ent.ID,
			"a %s belongs under a %s, not a %s", ent.Kind, want, parent.Kind)
	}
	if parent.IsTerminal() {
		return domain.NewError(domain.ErrCodeInvalidTransition, ent.ID,
			"parent %s is %s and accepts no new children", parent.ID, parent.State)
	}
	if ent.Kind == domain.KindTask {
		ent.CampaignID = copyRef(parent.ParentID)
	}
	if err := r.Entities.Create(ctx, ent); err != nil {
		return storeError(ent.ID, err, "creating entity")
	}
	changed, err := e.aggregator.Recompute(ctx, r, parent.ID)
	if err != nil {
		return err
	}
	if changed && !containsID(res.Recomputed, parent.ID) {
		res.Recomputed = append(res.Recomputed, parent.ID)
	}
	return nil
}

// UpdateBudget sets an entity's own budget (nil clears it) and recomputes its
// parent's total. Campaign totals are derived only, so a Campaign's own
// budget cannot be set.
func (e *Engine) UpdateBudget(ctx context.Context, id string, budget *int64, actor string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity_id": id, "actor": actor}
	defer func() { e.observe(ctx, "update_budget", startedAt, fields, res, err) }()

	res = &Result{}
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ent, err := loadEntity(ctx, r, id)
		if err != nil {
			return err
		}
		if ent.IsRoot() {
			return domain.NewError(domain.ErrCodeInvalidHierarchy, id, "a campaign budget is derived from its projects")
		}
		if equalBudget(ent.BudgetOwn, budget) {
			res.NoOp = true
			res.Entity = ent
			return nil
		}
		ent.BudgetOwn = copyBudget(budget)
		ent.UpdatedAt = e.now()
		if err := r.Entities.Update(ctx, ent); err != nil {
			return storeError(id, err, "writing budget")
		}
		changed, err := e.aggregator.Recompute(ctx, r, ent.ParentRef())
		if err != nil {
			return err
		}
		if changed {
			res.Recomputed = append(res.Recomputed, ent.ParentRef())
		}
		res.Entity = ent
		return nil
	})
	if err != nil {
		return nil, storeError(id, err, "update budget")
	}
	return res, nil
}

// Recompute rebuilds id's budget total from its children.
func (e *Engine) Recompute(ctx context.Context, id string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity_id": id}
	defer func() { e.observe(ctx, "recompute", startedAt, fields, res, err) }()

	res = &Result{}
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		changed, err := e.aggregator.Recompute(ctx, r, id)
		if err != nil {
			return err
		}
		if changed {
			res.Recomputed = append(res.Recomputed, id)
		} else {
			res.NoOp = true
		}
		res.Entity, err = loadEntity(ctx, r, id)
		return err
	})
	if err != nil {
		return nil, storeError(id, err, "recompute")
	}
	return res, nil
}

// Reparent moves id under newParentID. The new parent must exist, sit one
// level up, not be terminal and not be id itself or one of its descendants.
// Denormalized campaign references of the moved subtree are rewritten, and
// both the old and the new parent totals are recomputed.
func (e *Engine) Reparent(ctx context.Context, id, newParentID, actor string) (res *Result, err error) {
	startedAt := time.Now()
	fields := map[string]any{"entity_id": id, "new_parent_id": newParentID, "actor": actor}
	defer func() { e.observe(ctx, "reparent", startedAt, fields, res, err) }()

	res = &Result{}
	err = e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ent, err := loadEntity(ctx, r, id)
		if err != nil {
			return err
		}
		if ent.IsRoot() {
			return domain.NewError(domain.ErrCodeInvalidHierarchy, id, "a campaign cannot have a parent")
		}
		if newParentID == id {
			return domain.NewError(domain.ErrCodeCycleDetected, id, "an entity cannot be its own parent")
		}
		newParent, err := r.Entities.GetByID(ctx, newParentID)
		if err != nil {
			if isNotFound(err) {
				return domain.WrapError(domain.ErrCodeOrphanedParent, id, err, "parent %s does not exist", newParentID)
			}
			return storeError(id, err, "loading new parent")
		}
		chain, err := ancestors(ctx, r, newParent)
		if err != nil {
			return err
		}
		for _, a := range chain {
			if a.ID == id {
				return domain.NewError(domain.ErrCodeCycleDetected, id, "%s is an ancestor of %s", id, newParentID)
			}
		}
		if want, _ := ent.Kind.ParentKind(); newParent.Kind != want {
			return domain.NewError(domain.ErrCodeInvalidHierarchy, id,
				"a %s belongs under a %s, not a %s", ent.Kind, want, newParent.Kind)
		}
		if ent.ParentRef() == newParentID {
			res.NoOp = true
			res.Entity = ent
			return nil
		}
		if newParent.IsTerminal() {
			return domain.NewError(domain.ErrCodeInvalidTransition, id,
				"parent %s is %s and accepts no new children", newParentID, newParent.State)
		}

		oldParentID := ent.ParentRef()
		now := e.now()
		ent.ParentID = &newParentID
		ent.UpdatedAt = now
		switch ent.Kind {
		case domain.KindTask:
			ent.CampaignID = copyRef(newParent.ParentID)
		case domain.KindProject:
			tasks, err := r.Entities.ListByParent(ctx, id)
			if err != nil {
				return storeError(id, err, "listing tasks")
			}
			for _, t := range tasks {
				t.CampaignID = &newParentID
				t.UpdatedAt = now
				if err := r.Entities.Update(ctx, t); err != nil {
					return storeError(t.ID, err, "rewriting campaign reference")
				}
			}
		}
		if err := r.Entities.Update(ctx, ent); err != nil {
			return storeError(id, err, "writing parent reference")
		}

		for _, pid := range []string{oldParentID, newParentID} {
			changed, err := e.aggregator.Recompute(ctx, r, pid)
			if err != nil {
				return err
			}
			if changed {
				res.Recomputed = append(res.Recomputed, pid)
			}
		}
		res.Entity = ent
		return nil
	})
	if err != nil {
		return nil, storeError(id, err, "reparent")
	}
	return res, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, repository.ErrNotFound)
}

func copyRef(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyBudget(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func equalBudget(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
