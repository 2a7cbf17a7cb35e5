package domain

// Machine is the lifecycle table for one entity kind.
type Machine struct {
	Kind      Kind
	Initial   State
	Completed State
	terminal  map[State]bool
	edges     map[State]map[State]bool
}

func newMachine(kind Kind, initial, completed State, terminal []State, edges map[State][]State) *Machine {
	m := &Machine{
		Kind:      kind,
		Initial:   initial,
		Completed: completed,
		terminal:  make(map[State]bool, len(terminal)),
		edges:     make(map[State]map[State]bool, len(edges)),
	}
	for _, s := range terminal {
		m.terminal[s] = true
	}
	for from, tos := range edges {
		set := make(map[State]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		m.edges[from] = set
	}
	return m
}

// HasState reports whether s belongs to the kind.
func (m *Machine) HasState(s State) bool {
	_, ok := m.edges[s]
	return ok
}

// IsTerminal reports whether s is final for cascade decisions.
func (m *Machine) IsTerminal(s State) bool {
	return m.terminal[s]
}

// IsAllowed reports whether a client may move an entity from one state to another.
func (m *Machine) IsAllowed(from, to State) bool {
	return m.edges[from][to]
}

// AllowsCascade reports whether the engine may carry a propagated state from
// one state to another. Edges out of archived are the restore path; only
// Restore or an explicit client transition takes them.
func (m *Machine) AllowsCascade(from, to State) bool {
	return from != StateArchived && m.IsAllowed(from, to)
}

// States returns every state of the kind in declaration order.
func (m *Machine) States() []State {
	return kindStates[m.Kind]
}

var kindStates = map[Kind][]State{
	KindCampaign: {StatePlanned, StateActive, StateOnHold, StateCompleted, StateCanceled, StateArchived},
	KindProject:  {StateDraft, StatePending, StateActive, StateOnHold, StateCompleted, StateCanceled, StateRejected, StateArchived},
	KindTask: {StateOpen, StateWorkInProgress, StateOnHold, StateClosedComplete, StateClosedIncomplete,
		StateClosedSkipped, StateCanceled, StateArchived},
}

// restoreTargets lists every state except archived, so an archived entity
// can be returned to whatever it held before.
func restoreTargets(kind Kind) []State {
	var out []State
	for _, s := range kindStates[kind] {
		if s != StateArchived {
			out = append(out, s)
		}
	}
	return out
}

var machines = map[Kind]*Machine{
	KindCampaign: newMachine(KindCampaign, StatePlanned, StateCompleted,
		[]State{StateCompleted, StateCanceled, StateArchived},
		map[State][]State{
			StatePlanned:   {StateActive, StateOnHold, StateCanceled, StateArchived},
			StateActive:    {StateOnHold, StateCompleted, StateCanceled, StateArchived},
			StateOnHold:    {StatePlanned, StateActive, StateCanceled, StateArchived},
			StateCompleted: {StateArchived},
			StateCanceled:  {StateArchived},
			StateArchived:  restoreTargets(KindCampaign),
		}),
	KindProject: newMachine(KindProject, StateDraft, StateCompleted,
		[]State{StateCompleted, StateCanceled, StateRejected, StateArchived},
		map[State][]State{
			StateDraft:     {StatePending, StateActive, StateOnHold, StateCanceled, StateArchived},
			StatePending:   {StateActive, StateRejected, StateOnHold, StateCanceled, StateArchived},
			StateActive:    {StateOnHold, StateCompleted, StateCanceled, StateArchived},
			StateOnHold:    {StateDraft, StatePending, StateActive, StateCanceled, StateArchived},
			StateCompleted: {StateArchived},
			StateCanceled:  {StateArchived},
			StateRejected:  {StateArchived},
			StateArchived:  restoreTargets(KindProject),
		}),
	KindTask: newMachine(KindTask, StateOpen, StateClosedComplete,
		[]State{StateClosedComplete, StateClosedIncomplete, StateClosedSkipped, StateCanceled, StateArchived},
		map[State][]State{
			StateOpen: {StateWorkInProgress, StateOnHold, StateClosedComplete, StateClosedIncomplete,
				StateClosedSkipped, StateCanceled, StateArchived},
			StateWorkInProgress: {StateOpen, StateOnHold, StateClosedComplete, StateClosedIncomplete,
				StateClosedSkipped, StateCanceled, StateArchived},
			StateOnHold:           {StateOpen, StateWorkInProgress, StateCanceled, StateArchived},
			StateClosedComplete:   {StateArchived},
			StateClosedIncomplete: {StateArchived},
			StateClosedSkipped:    {StateArchived},
			StateCanceled:         {StateArchived},
			StateArchived:         restoreTargets(KindTask),
		}),
}

// MachineFor returns the lifecycle table for kind, or nil for an unknown kind.
func MachineFor(kind Kind) *Machine {
	return machines[kind]
}

// IsTerminal reports whether state is terminal for kind. Unknown kinds and
// states are never terminal.
func IsTerminal(kind Kind, state State) bool {
	m := MachineFor(kind)
	if m == nil {
		return false
	}
	return m.IsTerminal(state)
}

// IsAllowedTransition reports whether kind permits a client-driven move from
// one state to another.
func IsAllowedTransition(kind Kind, from, to State) bool {
	m := MachineFor(kind)
	if m == nil {
		return false
	}
	return m.IsAllowed(from, to)
}

// IsCascadeAllowed reports whether propagation may move an entity of kind
// from one state to another.
func IsCascadeAllowed(kind Kind, from, to State) bool {
	m := MachineFor(kind)
	if m == nil {
		return false
	}
	return m.AllowsCascade(from, to)
}

// CompletedState returns the state the cascade engine writes when it closes
// an entity of kind.
func CompletedState(kind Kind) State {
	if m := MachineFor(kind); m != nil {
		return m.Completed
	}
	return ""
}

// InitialState returns the state a newly created entity of kind starts in.
func InitialState(kind Kind) State {
	if m := MachineFor(kind); m != nil {
		return m.Initial
	}
	return ""
}
