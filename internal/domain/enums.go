package domain

// Kind identifies the hierarchy level of an entity.
type Kind string

const (
	KindCampaign Kind = "campaign"
	KindProject  Kind = "project"
	KindTask     Kind = "task"
)

// MaxDepth is the fixed number of hierarchy levels (Campaign → Project → Task).
const MaxDepth = 3

// ValidKinds is the canonical set of accepted kind strings.
var ValidKinds = map[string]bool{
	"campaign": true, "project": true, "task": true,
}

// Level returns the 1-based depth of the kind in the hierarchy, or 0 for an
// unknown kind.
func (k Kind) Level() int {
	switch k {
	case KindCampaign:
		return 1
	case KindProject:
		return 2
	case KindTask:
		return 3
	default:
		return 0
	}
}

// ParentKind returns the kind one level up. ok is false for Campaign.
func (k Kind) ParentKind() (Kind, bool) {
	switch k {
	case KindProject:
		return KindCampaign, true
	case KindTask:
		return KindProject, true
	default:
		return "", false
	}
}

// ChildKind returns the kind one level down. ok is false for Task.
func (k Kind) ChildKind() (Kind, bool) {
	switch k {
	case KindCampaign:
		return KindProject, true
	case KindProject:
		return KindTask, true
	default:
		return "", false
	}
}

// State is a lifecycle state. Names are shared across kinds where the meaning
// is the same.
type State string

const (
	StatePlanned  State = "planned"
	StateDraft    State = "draft"
	StatePending  State = "pending"
	StateActive   State = "active"
	StateOnHold   State = "on_hold"
	StateCanceled State = "canceled"
	StateArchived State = "archived"

	StateCompleted State = "completed"
	StateRejected  State = "rejected"

	StateOpen             State = "open"
	StateWorkInProgress   State = "work_in_progress"
	StateClosedComplete   State = "closed_complete"
	StateClosedIncomplete State = "closed_incomplete"
	StateClosedSkipped    State = "closed_skipped"
)

// IsSuspending reports whether s pauses an entity rather than finishing it.
// Moving into a suspending state captures a history snapshot first.
func (s State) IsSuspending() bool {
	return s == StateArchived || s == StateOnHold
}

// DefaultPropagatingStates are the states that cascade from a parent to its
// children unless configuration overrides them.
var DefaultPropagatingStates = []State{StateCanceled, StateArchived, StateOnHold}

// TransitionCause records why a state change happened.
type TransitionCause string

const (
	CauseClient       TransitionCause = "client"
	CauseCascadeClose TransitionCause = "cascade_close"
	CausePropagated   TransitionCause = "propagated"
	CauseRestore      TransitionCause = "restore"
)
