package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
	"github.com/alexanderramin/rollup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ClosureWalkthrough(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)

		// A closes, B still open: nothing cascades.
		res := mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)
		assert.Empty(t, res.Closed)
		assert.Equal(t, domain.StateActive, mustGet(t, e, tr.P1.ID).State)

		// B closes: P1 completes, C stays because P2 is open.
		res = mustTransition(t, e, tr.B.ID, domain.StateClosedComplete)
		assert.Equal(t, []string{tr.P1.ID}, res.Closed)
		p1 := mustGet(t, e, tr.P1.ID)
		assert.Equal(t, domain.StateCompleted, p1.State)
		require.NotNil(t, p1.ActualEndDate)
		c := mustGet(t, e, tr.C.ID)
		assert.Equal(t, domain.StateActive, c.State)
		assert.Nil(t, c.ActualEndDate)

		// D closes: P2 completes, then C.
		res = mustTransition(t, e, tr.D.ID, domain.StateClosedComplete)
		assert.Equal(t, []string{tr.P2.ID, tr.C.ID}, res.Closed)
		c = mustGet(t, e, tr.C.ID)
		assert.Equal(t, domain.StateCompleted, c.State)
		require.NotNil(t, c.ActualEndDate)

		hist, err := e.History(context.Background(), tr.C.ID)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, domain.CauseCascadeClose, hist[0].Cause)
		assert.Equal(t, domain.StateActive, hist[0].FromState)
		assert.Equal(t, domain.StateCompleted, hist[0].ToState)
		assert.Equal(t, testActor, hist[0].Actor)
	})
}

func TestTransition_RetryOfLastCompletionIsNoOp(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)
		mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)
		mustTransition(t, e, tr.B.ID, domain.StateClosedComplete)
		firstEnd := *mustGet(t, e, tr.P1.ID).ActualEndDate

		res := mustTransition(t, e, tr.B.ID, domain.StateClosedComplete)
		assert.True(t, res.NoOp)
		assert.Empty(t, res.Closed)
		assert.Empty(t, res.Propagated)

		p1 := mustGet(t, e, tr.P1.ID)
		assert.True(t, firstEnd.Equal(*p1.ActualEndDate), "actual end date must not move on retry")
		hist, err := e.History(context.Background(), tr.P1.ID)
		require.NoError(t, err)
		assert.Len(t, hist, 1)
	})
}

func TestCloseUpward_EmptyParentNeverCloses(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c := mustCreate(t, e, domain.KindCampaign, "", "C", domain.StateActive, nil)
		p := mustCreate(t, e, domain.KindProject, c.ID, "Empty", domain.StateActive, nil)

		// A terminal task that names p but was never stored: the closure check
		// finds no children under p.
		ghost := testutil.NewTestTask(p.ID, "ghost", testutil.WithState(domain.StateClosedComplete))
		for i := 0; i < 3; i++ {
			err := store.WithinTx(context.Background(), func(ctx context.Context, r repository.Repos) error {
				res := &Result{}
				var hist []domain.HistoryEntry
				if err := e.closeUpward(ctx, r, ghost, testActor, res, &hist); err != nil {
					return err
				}
				assert.Empty(t, res.Closed)
				assert.Empty(t, hist)
				return nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, domain.StateActive, mustGet(t, e, p.ID).State)
	})
}

func TestTransition_EmptiedProjectStaysOpen(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)
		ctx := context.Background()

		_, err := e.Reparent(ctx, tr.A.ID, tr.P2.ID, testActor)
		require.NoError(t, err)
		_, err = e.Reparent(ctx, tr.B.ID, tr.P2.ID, testActor)
		require.NoError(t, err)

		mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)
		mustTransition(t, e, tr.B.ID, domain.StateClosedComplete)
		res := mustTransition(t, e, tr.D.ID, domain.StateClosedComplete)

		assert.Equal(t, []string{tr.P2.ID}, res.Closed, "C keeps an open child P1")
		assert.Equal(t, domain.StateActive, mustGet(t, e, tr.P1.ID).State, "P1 has no children and never closes")
	})
}

func TestTransition_ClosureFromOnHoldParent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c := mustCreate(t, e, domain.KindCampaign, "", "C", domain.StateActive, nil)
		p := mustCreate(t, e, domain.KindProject, c.ID, "P", domain.StateActive, nil)
		t1 := mustCreate(t, e, domain.KindTask, p.ID, "T1", "", nil)
		t2 := mustCreate(t, e, domain.KindTask, p.ID, "T2", "", nil)

		res := mustTransition(t, e, p.ID, domain.StateOnHold)
		assert.ElementsMatch(t, []string{t1.ID, t2.ID}, res.Propagated)

		mustTransition(t, e, t1.ID, domain.StateCanceled)
		res = mustTransition(t, e, t2.ID, domain.StateCanceled)

		// on_hold → completed is not a client move, but closure bypasses the table.
		assert.Equal(t, []string{p.ID, c.ID}, res.Closed)
		assert.Equal(t, domain.StateCompleted, mustGet(t, e, p.ID).State)
	})
}

func TestTransition_CascadeDepthIsBounded(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)
		mustTransition(t, e, tr.D.ID, domain.StateClosedComplete)
		mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)
		res := mustTransition(t, e, tr.B.ID, domain.StateClosedComplete)

		assert.LessOrEqual(t, len(res.Closed), domain.KindTask.Level()-1, "a task has two ancestors")
		assert.Len(t, res.Closed, 2)
	})
}

func TestTransition_Rejections(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)
		ctx := context.Background()
		mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)

		tests := []struct {
			name  string
			id    string
			state domain.State
			check func(error) bool
		}{
			{"terminal task reopened", tr.A.ID, domain.StateOpen, domain.IsInvalidTransition},
			{"state of another kind", tr.B.ID, domain.StateRejected, domain.IsInvalidTransition},
			{"unknown state", tr.C.ID, "paused", domain.IsInvalidTransition},
			{"project skips to rejected", tr.P2.ID, domain.StateRejected, domain.IsInvalidTransition},
			{"missing entity", "nope", domain.StateCanceled, domain.IsNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := e.Transition(ctx, tt.id, tt.state, testActor)
				require.Error(t, err)
				assert.Nil(t, res)
				assert.True(t, tt.check(err), "unexpected error: %v", err)
			})
		}

		assert.Equal(t, domain.StateOpen, mustGet(t, e, tr.B.ID).State)
		assert.Equal(t, domain.StateActive, mustGet(t, e, tr.P2.ID).State)
	})
}

func TestTransition_PropagationReachesEveryDescendant(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c, ps, ts := wideCampaign(t, e, 3, 4)

		res := mustTransition(t, e, c.ID, domain.StateCanceled)
		assert.Equal(t, len(ps)+len(ts), res.PropagatedCount())
		assert.Empty(t, res.Skipped)
		assert.Empty(t, res.Closed)

		for _, ent := range append(ps, ts...) {
			assert.Equal(t, domain.StateCanceled, mustGet(t, e, ent.ID).State, ent.ID)
		}
		hist, err := e.History(context.Background(), ts[0].ID)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, domain.CausePropagated, hist[0].Cause)
	})
}

func TestTransition_PropagationOrderFollowsCreation(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c, ps, ts := wideCampaign(t, e, 2, 2)

		res := mustTransition(t, e, c.ID, domain.StateArchived)
		want := []string{ps[0].ID, ts[0].ID, ts[1].ID, ps[1].ID, ts[2].ID, ts[3].ID}
		assert.Equal(t, want, res.Propagated)
	})
}

func TestTransition_PropagationSkipsForbiddenMoves(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c := mustCreate(t, e, domain.KindCampaign, "", "C", domain.StateActive, nil)
		p := mustCreate(t, e, domain.KindProject, c.ID, "P", domain.StateActive, nil)
		done := mustCreate(t, e, domain.KindTask, p.ID, "done", "", nil)
		open := mustCreate(t, e, domain.KindTask, p.ID, "open", "", nil)
		mustTransition(t, e, done.ID, domain.StateClosedComplete)

		res := mustTransition(t, e, p.ID, domain.StateOnHold)
		assert.Equal(t, []string{open.ID}, res.Propagated)
		assert.Equal(t, []string{done.ID}, res.Skipped)
		assert.Equal(t, domain.StateClosedComplete, mustGet(t, e, done.ID).State)
		assert.Equal(t, domain.StateOnHold, mustGet(t, e, open.ID).State)
	})
}

func TestTransition_PropagationLeavesArchivedSubtreesAlone(t *testing.T) {
	for _, target := range []domain.State{domain.StateOnHold, domain.StateCanceled} {
		t.Run(string(target), func(t *testing.T) {
			forEachStore(t, func(t *testing.T, store repository.Store) {
				e := newTestEngine(store)
				tr := seedTree(t, e)
				mustTransition(t, e, tr.P1.ID, domain.StateArchived)

				res := mustTransition(t, e, tr.C.ID, target)
				assert.Equal(t, []string{tr.P1.ID}, res.Skipped)
				assert.Equal(t, []string{tr.P2.ID, tr.D.ID}, res.Propagated)

				for _, id := range []string{tr.P1.ID, tr.A.ID, tr.B.ID} {
					assert.Equal(t, domain.StateArchived, mustGet(t, e, id).State, id)
				}
				p1 := mustGet(t, e, tr.P1.ID)
				require.NotNil(t, p1.PreviousState)
				assert.Equal(t, domain.StateActive, p1.PreviousState.State, "pre-archive snapshot kept")
				a := mustGet(t, e, tr.A.ID)
				require.NotNil(t, a.PreviousState)
				assert.Equal(t, domain.StateOpen, a.PreviousState.State)
			})
		})
	}
}

// hiddenParentStore makes one entity unreadable by id in every transaction.
type hiddenParentStore struct {
	repository.Store
	hidden string
}

func (s *hiddenParentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		r.Entities = &unreadableParent{EntityRepo: r.Entities, hidden: s.hidden}
		return fn(ctx, r)
	})
}

func TestTransition_UnreadableParentOnlyWarns(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		tr := seedTree(t, newTestEngine(store))
		e := newTestEngine(&hiddenParentStore{Store: store, hidden: tr.P1.ID})

		res, err := e.Transition(context.Background(), tr.A.ID, domain.StateOnHold, testActor)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.NotEmpty(t, res.Warnings)
		assert.Contains(t, res.Warnings[0], "without parent flags")
		assert.Contains(t, res.Warnings[len(res.Warnings)-1], "connection refused")

		a := mustGet(t, e, tr.A.ID)
		assert.Equal(t, domain.StateOnHold, a.State)
		require.NotNil(t, a.PreviousState)
		assert.Equal(t, domain.StateOpen, a.PreviousState.State)
		assert.Nil(t, a.PreviousState.Flags)
	})
}

func TestTransition_NonPropagatingStateStaysLocal(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := NewEngine(store, Config{PropagatingStates: []domain.State{domain.StateCanceled}}, nil)
		e.setClock(tickingClock())
		c, ps, _ := wideCampaign(t, e, 2, 1)

		res := mustTransition(t, e, c.ID, domain.StateOnHold)
		assert.Empty(t, res.Propagated)
		assert.False(t, e.IsPropagating(domain.StateOnHold))
		assert.Equal(t, domain.StateActive, mustGet(t, e, ps[0].ID).State)
	})
}

func TestTransition_PartialPropagationAndResume(t *testing.T) {
	forEachStore(t, func(t *testing.T, base repository.Store) {
		setup := newTestEngine(base)
		c, ps, ts := wideCampaign(t, setup, 3, 2)

		storeErr := errors.New("disk full")
		failing := &testutil.FailingEntityStore{
			Store:   base,
			FailIDs: map[string]bool{ps[1].ID: true},
			Err:     storeErr,
		}
		e := newTestEngine(failing)

		res, err := e.Transition(context.Background(), c.ID, domain.StateCanceled, testActor)
		require.Error(t, err)
		require.NotNil(t, res)
		assert.True(t, domain.IsStoreUnavailable(err))
		assert.ErrorIs(t, err, storeErr)

		var perr *PartialPropagationError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, c.ID, perr.RootID)
		assert.Equal(t, ps[1].ID, perr.FailedID)
		assert.Equal(t, []string{ps[0].ID, ts[0].ID, ts[1].ID}, perr.Updated)
		assert.Equal(t, perr.Updated, res.Propagated)

		assert.Equal(t, domain.StateCanceled, mustGet(t, e, c.ID).State)
		for _, ent := range []*domain.Entity{ps[1], ps[2], ts[2], ts[3], ts[4], ts[5]} {
			assert.Equal(t, ent.State, mustGet(t, e, ent.ID).State, "untouched after the failure: %s", ent.ID)
		}

		// Retrying the same call resumes the fan-out.
		failing.FailIDs = nil
		res, err = e.Transition(context.Background(), c.ID, domain.StateCanceled, testActor)
		require.NoError(t, err)
		assert.True(t, res.NoOp)
		assert.Equal(t, []string{ps[1].ID, ts[2].ID, ts[3].ID, ps[2].ID, ts[4].ID, ts[5].ID}, res.Propagated)
		for _, ent := range append(ps, ts...) {
			assert.Equal(t, domain.StateCanceled, mustGet(t, e, ent.ID).State)
		}
	})
}

func TestTransition_FailedInitialWriteLeavesNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, base repository.Store) {
		setup := newTestEngine(base)
		tr := seedTree(t, setup)
		mustTransition(t, setup, tr.A.ID, domain.StateClosedComplete)

		// Closing B must also close P1; failing the P1 write rolls back B too.
		failing := &testutil.FailingEntityStore{
			Store:   base,
			FailIDs: map[string]bool{tr.P1.ID: true},
			Err:     errors.New("write timeout"),
		}
		e := newTestEngine(failing)
		res, err := e.Transition(context.Background(), tr.B.ID, domain.StateClosedComplete, testActor)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, domain.IsStoreUnavailable(err))

		assert.Equal(t, domain.StateOpen, mustGet(t, e, tr.B.ID).State)
		assert.Equal(t, domain.StateActive, mustGet(t, e, tr.P1.ID).State)
		hist, err := e.History(context.Background(), tr.B.ID)
		require.NoError(t, err)
		assert.Empty(t, hist)
	})
}

func TestTransition_HistoryFailureIsAWarning(t *testing.T) {
	forEachStore(t, func(t *testing.T, base repository.Store) {
		setup := newTestEngine(base)
		tr := seedTree(t, setup)

		failing := &testutil.FailingEntityStore{Store: base, FailHistory: true, Err: errors.New("audit log offline")}
		e := newTestEngine(failing)

		res := mustTransition(t, e, tr.A.ID, domain.StateClosedComplete)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "audit log offline")
		assert.Equal(t, domain.StateClosedComplete, mustGet(t, e, tr.A.ID).State)
	})
}

func TestTransition_SnapshotFlags(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		tr := seedTree(t, e)

		// P2 suspended on its own while C is active.
		mustTransition(t, e, tr.P2.ID, domain.StateOnHold)
		p2 := mustGet(t, e, tr.P2.ID)
		require.NotNil(t, p2.PreviousState)
		assert.Equal(t, domain.StateActive, p2.PreviousState.State)
		assert.Equal(t, testActor, p2.PreviousState.Actor)
		require.NotNil(t, p2.PreviousState.Flags)
		assert.False(t, p2.PreviousState.Flags.ParentSuspended)
		assert.Equal(t, domain.StateActive, p2.PreviousState.Flags.ParentState)

		// Suspending C reaches P1 and its tasks, which record the suspended parent.
		res := mustTransition(t, e, tr.C.ID, domain.StateOnHold)
		// P2 and D were already on hold and are not written again.
		assert.Equal(t, []string{tr.P1.ID, tr.A.ID, tr.B.ID}, res.Propagated)

		c := mustGet(t, e, tr.C.ID)
		require.NotNil(t, c.PreviousState)
		assert.Nil(t, c.PreviousState.Flags, "campaigns have no parent to flag")

		for _, id := range []string{tr.P1.ID, tr.A.ID} {
			ent := mustGet(t, e, id)
			require.NotNil(t, ent.PreviousState)
			require.NotNil(t, ent.PreviousState.Flags)
			assert.True(t, ent.PreviousState.Flags.ParentSuspended, id)
			assert.Equal(t, domain.StateOnHold, ent.PreviousState.Flags.ParentState, id)
		}

		// P2 was already on hold: its snapshot still says it was suspended independently.
		p2 = mustGet(t, e, tr.P2.ID)
		assert.False(t, p2.PreviousState.Flags.ParentSuspended)
	})
}

func TestTransition_AncestorDriftIsRepaired(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.Store) {
		e := newTestEngine(store)
		c := mustCreate(t, e, domain.KindCampaign, "", "C", domain.StateActive, nil)
		p := mustCreate(t, e, domain.KindProject, c.ID, "P", domain.StateActive, budget(700))
		task := mustCreate(t, e, domain.KindTask, p.ID, "T", "", nil)

		// Corrupt the stored campaign total behind the engine's back.
		require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, r repository.Repos) error {
			stored, err := r.Entities.GetByID(ctx, c.ID)
			if err != nil {
				return err
			}
			stored.BudgetTotal = 1
			return r.Entities.Update(ctx, stored)
		}))

		res := mustTransition(t, e, task.ID, domain.StateWorkInProgress)
		assert.Equal(t, []string{c.ID}, res.Recomputed)
		assert.Equal(t, int64(700), mustGet(t, e, c.ID).BudgetTotal)
	})
}

func TestTransition_ReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(repository.NewMemoryStore(), obs)
	c, _, _ := wideCampaign(t, e, 2, 2)

	mustTransition(t, e, c.ID, domain.StateCanceled)
	ev := obs.last()
	assert.Equal(t, "transition", ev.Name)
	assert.True(t, ev.Success)
	assert.Equal(t, 6, ev.Fields["propagated"])
	assert.Equal(t, c.ID, ev.Fields["entity_id"])

	_, err := e.Transition(context.Background(), "missing", domain.StateCanceled, testActor)
	require.Error(t, err)
	ev = obs.last()
	assert.False(t, ev.Success)
	assert.Error(t, ev.Err)
}
