package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineFor_AllKindsDefined(t *testing.T) {
	for _, k := range []Kind{KindCampaign, KindProject, KindTask} {
		m := MachineFor(k)
		require.NotNil(t, m, "kind %s should have a machine", k)
		assert.True(t, m.HasState(m.Initial), "initial state of %s must belong to the kind", k)
		assert.True(t, m.HasState(m.Completed), "completed state of %s must belong to the kind", k)
		assert.True(t, m.IsTerminal(m.Completed), "completed state of %s must be terminal", k)
		assert.False(t, m.IsTerminal(m.Initial), "initial state of %s must not be terminal", k)
	}
	assert.Nil(t, MachineFor("unknown"))
}

func TestIsTerminal_Task(t *testing.T) {
	terminal := []State{StateClosedComplete, StateClosedIncomplete, StateClosedSkipped, StateCanceled, StateArchived}
	for _, s := range terminal {
		assert.True(t, IsTerminal(KindTask, s), "%s should be terminal for tasks", s)
	}
	for _, s := range []State{StateOpen, StateWorkInProgress, StateOnHold} {
		assert.False(t, IsTerminal(KindTask, s), "%s should not be terminal for tasks", s)
	}
}

func TestIsTerminal_ProjectRejected(t *testing.T) {
	assert.True(t, IsTerminal(KindProject, StateRejected))
	assert.False(t, IsTerminal(KindCampaign, StateRejected), "campaigns have no rejected state")
}

func TestOnHold_SuspendingButNotTerminal(t *testing.T) {
	assert.True(t, StateOnHold.IsSuspending())
	assert.True(t, StateArchived.IsSuspending())
	assert.False(t, StateCanceled.IsSuspending())
	for _, k := range []Kind{KindCampaign, KindProject, KindTask} {
		assert.False(t, IsTerminal(k, StateOnHold), "on_hold must not close a parent for %s", k)
	}
}

func TestIsAllowedTransition(t *testing.T) {
	cases := []struct {
		kind     Kind
		from, to State
		allowed  bool
	}{
		{KindTask, StateOpen, StateClosedComplete, true},
		{KindTask, StateClosedComplete, StateOpen, false},
		{KindTask, StateClosedComplete, StateArchived, true},
		{KindTask, StateArchived, StateClosedComplete, true},
		{KindTask, StateOnHold, StateClosedComplete, false},
		{KindProject, StateDraft, StateCompleted, false},
		{KindProject, StateActive, StateCompleted, true},
		{KindProject, StatePending, StateRejected, true},
		{KindProject, StateCanceled, StateActive, false},
		{KindCampaign, StatePlanned, StateActive, true},
		{KindCampaign, StateCompleted, StateCanceled, false},
		{KindCampaign, StateOnHold, StateOnHold, false},
		{"unknown", StateOpen, StateClosedComplete, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, IsAllowedTransition(tc.kind, tc.from, tc.to),
			"%s: %s -> %s", tc.kind, tc.from, tc.to)
	}
}

func TestDefaultPropagatingStates_DefinedForChildKinds(t *testing.T) {
	for _, s := range DefaultPropagatingStates {
		assert.True(t, MachineFor(KindProject).HasState(s), "projects must support %s", s)
		assert.True(t, MachineFor(KindTask).HasState(s), "tasks must support %s", s)
	}
}

func TestArchived_RestoresToEveryOtherState(t *testing.T) {
	m := MachineFor(KindProject)
	for _, s := range m.States() {
		if s == StateArchived {
			continue
		}
		assert.True(t, m.IsAllowed(StateArchived, s), "archived project should restore to %s", s)
	}
}

func TestIsCascadeAllowed_NeverLeavesArchived(t *testing.T) {
	for _, k := range []Kind{KindCampaign, KindProject, KindTask} {
		for _, to := range MachineFor(k).States() {
			assert.False(t, IsCascadeAllowed(k, StateArchived, to), "%s: archived -> %s", k, to)
		}
	}
	assert.True(t, IsCascadeAllowed(KindTask, StateOpen, StateOnHold))
	assert.True(t, IsCascadeAllowed(KindProject, StateCompleted, StateArchived))
	assert.False(t, IsCascadeAllowed(KindProject, StateCompleted, StateOnHold))
	assert.False(t, IsCascadeAllowed("unknown", StateOpen, StateCanceled))
}

func TestKindNavigation(t *testing.T) {
	p, ok := KindTask.ParentKind()
	require.True(t, ok)
	assert.Equal(t, KindProject, p)

	_, ok = KindCampaign.ParentKind()
	assert.False(t, ok)

	c, ok := KindCampaign.ChildKind()
	require.True(t, ok)
	assert.Equal(t, KindProject, c)

	_, ok = KindTask.ChildKind()
	assert.False(t, ok)

	assert.Equal(t, 1, KindCampaign.Level())
	assert.Equal(t, MaxDepth, KindTask.Level())
	assert.Equal(t, 0, Kind("other").Level())
}
