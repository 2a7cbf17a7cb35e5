package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
	"github.com/alexanderramin/rollup/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testActor = "tester"

// forEachStore runs fn against a SQLite-backed store and the in-memory store.
func forEachStore(t *testing.T, fn func(t *testing.T, store repository.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, testutil.NewTestStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemoryStore())
	})
}

// tickingClock returns a clock that advances one millisecond per call, so
// creation order is always reflected in created_at.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestEngine(store repository.Store, observers ...UseCaseObserver) *Engine {
	e := NewEngine(store, Config{Create: CreateConfig{DefaultSegment: "global"}}, nil, observers...)
	e.setClock(tickingClock())
	return e
}

func budget(v int64) *int64 { return &v }

func mustCreate(t *testing.T, e *Engine, kind domain.Kind, parentID, name string, state domain.State, own *int64) *domain.Entity {
	t.Helper()
	ent := &domain.Entity{Kind: kind, Name: name, State: state, BudgetOwn: own}
	if parentID != "" {
		ent.ParentID = &parentID
	}
	res, err := e.Create(context.Background(), ent, testActor)
	require.NoError(t, err)
	return res.Entity
}

func mustGet(t *testing.T, e *Engine, id string) *domain.Entity {
	t.Helper()
	ent, err := e.Get(context.Background(), id)
	require.NoError(t, err)
	return ent
}

func mustTransition(t *testing.T, e *Engine, id string, to domain.State) *Result {
	t.Helper()
	res, err := e.Transition(context.Background(), id, to, testActor)
	require.NoError(t, err)
	return res
}

// tree is the fixture from the closure walkthrough: campaign C with project
// P1 (tasks A, B) and project P2 (task D).
type tree struct {
	C, P1, P2, A, B, D *domain.Entity
}

func seedTree(t *testing.T, e *Engine) tree {
	t.Helper()
	var tr tree
	tr.C = mustCreate(t, e, domain.KindCampaign, "", "C", domain.StateActive, nil)
	tr.P1 = mustCreate(t, e, domain.KindProject, tr.C.ID, "P1", domain.StateActive, nil)
	tr.P2 = mustCreate(t, e, domain.KindProject, tr.C.ID, "P2", domain.StateActive, nil)
	tr.A = mustCreate(t, e, domain.KindTask, tr.P1.ID, "A", "", nil)
	tr.B = mustCreate(t, e, domain.KindTask, tr.P1.ID, "B", "", nil)
	tr.D = mustCreate(t, e, domain.KindTask, tr.P2.ID, "D", "", nil)
	return tr
}

// wideCampaign creates a campaign with projects × tasksPer tasks, all active/open.
func wideCampaign(t *testing.T, e *Engine, projects, tasksPer int) (*domain.Entity, []*domain.Entity, []*domain.Entity) {
	t.Helper()
	c := mustCreate(t, e, domain.KindCampaign, "", "Wide", domain.StateActive, nil)
	var ps, ts []*domain.Entity
	for i := 0; i < projects; i++ {
		p := mustCreate(t, e, domain.KindProject, c.ID, "P", domain.StateActive, nil)
		ps = append(ps, p)
		for j := 0; j < tasksPer; j++ {
			ts = append(ts, mustCreate(t, e, domain.KindTask, p.ID, "T", "", nil))
		}
	}
	return c, ps, ts
}

type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, ev UseCaseEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) last() UseCaseEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}
