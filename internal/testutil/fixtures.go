package testutil

import (
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/google/uuid"
)

// EntityOption customizes a fixture entity.
type EntityOption func(*domain.Entity)

func WithState(s domain.State) EntityOption {
	return func(e *domain.Entity) {
		e.State = s
	}
}

func WithBudget(amount int64) EntityOption {
	return func(e *domain.Entity) {
		e.BudgetOwn = &amount
	}
}

func WithBudgetTotal(total int64) EntityOption {
	return func(e *domain.Entity) {
		e.BudgetTotal = total
	}
}

func WithSegment(segment string) EntityOption {
	return func(e *domain.Entity) {
		e.Segment = segment
	}
}

func WithCampaignID(id string) EntityOption {
	return func(e *domain.Entity) {
		e.CampaignID = &id
	}
}

func WithCreatedAt(at time.Time) EntityOption {
	return func(e *domain.Entity) {
		e.CreatedAt = at
		e.UpdatedAt = at
	}
}

func newEntity(kind domain.Kind, parentID *string, name string, opts []EntityOption) *domain.Entity {
	now := time.Now().UTC()
	e := &domain.Entity{
		ID:        uuid.New().String(),
		Kind:      kind,
		ParentID:  parentID,
		Name:      name,
		State:     domain.InitialState(kind),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NewTestCampaign(name string, opts ...EntityOption) *domain.Entity {
	opts = append([]EntityOption{WithState(domain.StateActive)}, opts...)
	return newEntity(domain.KindCampaign, nil, name, opts)
}

func NewTestProject(campaignID, name string, opts ...EntityOption) *domain.Entity {
	opts = append([]EntityOption{WithState(domain.StateActive)}, opts...)
	return newEntity(domain.KindProject, &campaignID, name, opts)
}

// NewTestTask builds a task under projectID. The denormalized campaign
// reference is left nil unless WithCampaignID is given.
func NewTestTask(projectID, name string, opts ...EntityOption) *domain.Entity {
	return newEntity(domain.KindTask, &projectID, name, opts)
}
