package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity is a node of the Campaign → Project → Task hierarchy.
type Entity struct {
	ID       string
	Kind     Kind
	ParentID *string
	// CampaignID is a denormalized back-reference to the root Campaign,
	// maintained on Tasks only. ParentID is the source of truth.
	CampaignID *string
	Name       string
	Segment    string
	State      State

	PreviousState *StateSnapshot

	BudgetOwn   *int64
	BudgetTotal int64

	ActualEndDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SnapshotFlags describe the parent at the moment a snapshot was taken.
type SnapshotFlags struct {
	ParentSuspended bool  `json:"parent_suspended"`
	ParentState     State `json:"parent_state"`
}

// StateSnapshot is the state an entity held before it moved into a
// suspending state. Flags is nil for Campaigns and whenever the parent could
// not be read.
type StateSnapshot struct {
	State     State          `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Reason    string         `json:"reason,omitempty"`
	Flags     *SnapshotFlags `json:"flags,omitempty"`
}

// MarshalSnapshot encodes s for storage. A nil snapshot encodes to nil.
func MarshalSnapshot(s *StateSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding state snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalSnapshot decodes a stored snapshot. Empty input yields nil.
func UnmarshalSnapshot(b []byte) (*StateSnapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s StateSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding state snapshot: %w", err)
	}
	return &s, nil
}

// IsRoot reports whether the entity sits at the top of the hierarchy.
func (e *Entity) IsRoot() bool {
	return e.Kind == KindCampaign
}

// IsTerminal reports whether the entity's current state is terminal for its kind.
func (e *Entity) IsTerminal() bool {
	return IsTerminal(e.Kind, e.State)
}

// ParentRef returns the parent id or "" for a root entity.
func (e *Entity) ParentRef() string {
	if e.ParentID == nil {
		return ""
	}
	return *e.ParentID
}

// DisplayID returns the first 8 characters of the id.
func (e *Entity) DisplayID() string {
	if len(e.ID) >= 8 {
		return e.ID[:8]
	}
	return e.ID
}

// Clone returns a deep copy so callers can mutate without aliasing stored values.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.ParentID != nil {
		v := *e.ParentID
		c.ParentID = &v
	}
	if e.CampaignID != nil {
		v := *e.CampaignID
		c.CampaignID = &v
	}
	if e.BudgetOwn != nil {
		v := *e.BudgetOwn
		c.BudgetOwn = &v
	}
	if e.ActualEndDate != nil {
		v := *e.ActualEndDate
		c.ActualEndDate = &v
	}
	c.PreviousState = e.PreviousState.Clone()
	return &c
}

// Clone returns a deep copy of the snapshot.
func (s *StateSnapshot) Clone() *StateSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Flags != nil {
		f := *s.Flags
		c.Flags = &f
	}
	return &c
}

// HistoryEntry is one committed state change in the audit log.
type HistoryEntry struct {
	ID        string
	EntityID  string
	FromState State
	ToState   State
	Actor     string
	Cause     TransitionCause
	At        time.Time
}
