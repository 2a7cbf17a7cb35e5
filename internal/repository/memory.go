package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alexanderramin/rollup/internal/domain"
)

// MemoryStore is an in-process Store. Transactions are serialized and work on
// a private copy of the data that replaces the shared copy only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	entities map[string]*domain.Entity
	order    map[string]int64
	history  []domain.HistoryEntry
	nextSeq  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		entities: make(map[string]*domain.Entity),
		order:    make(map[string]int64),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		entities: make(map[string]*domain.Entity, len(s.entities)),
		order:    make(map[string]int64, len(s.order)),
		history:  append([]domain.HistoryEntry(nil), s.history...),
		nextSeq:  s.nextSeq,
	}
	for id, e := range s.entities {
		c.entities[id] = e.Clone()
	}
	for id, seq := range s.order {
		c.order[id] = seq
	}
	return c
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := m.state.clone()
	if err := fn(ctx, Repos{
		Entities: &memEntityRepo{s: working},
		History:  &memHistoryRepo{s: working},
	}); err != nil {
		return err
	}
	m.state = working
	return nil
}

type memEntityRepo struct {
	s *memState
}

func (r *memEntityRepo) Create(_ context.Context, e *domain.Entity) error {
	if _, exists := r.s.entities[e.ID]; exists {
		return fmt.Errorf("inserting entity: duplicate id %s", e.ID)
	}
	if e.ParentID != nil {
		if _, ok := r.s.entities[*e.ParentID]; !ok {
			return fmt.Errorf("inserting entity: parent %s: %w", *e.ParentID, ErrNotFound)
		}
	}
	r.s.nextSeq++
	r.s.entities[e.ID] = e.Clone()
	r.s.order[e.ID] = r.s.nextSeq
	return nil
}

func (r *memEntityRepo) GetByID(_ context.Context, id string) (*domain.Entity, error) {
	e, ok := r.s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return e.Clone(), nil
}

// LockForUpdate only checks existence; WithinTx already runs one
// transaction at a time.
func (r *memEntityRepo) LockForUpdate(_ context.Context, id string) error {
	if _, ok := r.s.entities[id]; !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *memEntityRepo) Update(_ context.Context, e *domain.Entity) error {
	if _, ok := r.s.entities[e.ID]; !ok {
		return fmt.Errorf("entity %s: %w", e.ID, ErrNotFound)
	}
	r.s.entities[e.ID] = e.Clone()
	return nil
}

func (r *memEntityRepo) SaveSnapshot(_ context.Context, id string, snap *domain.StateSnapshot) error {
	e, ok := r.s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	e.PreviousState = snap.Clone()
	return nil
}

func (r *memEntityRepo) ListByParent(_ context.Context, parentID string) ([]*domain.Entity, error) {
	return r.filter(func(e *domain.Entity) bool {
		return e.ParentID != nil && *e.ParentID == parentID
	}), nil
}

func (r *memEntityRepo) ListByCampaign(_ context.Context, campaignID string) ([]*domain.Entity, error) {
	return r.filter(func(e *domain.Entity) bool {
		return e.CampaignID != nil && *e.CampaignID == campaignID
	}), nil
}

func (r *memEntityRepo) ListRoots(_ context.Context) ([]*domain.Entity, error) {
	return r.filter(func(e *domain.Entity) bool { return e.ParentID == nil }), nil
}

// filter returns matching entities in creation order.
func (r *memEntityRepo) filter(keep func(*domain.Entity) bool) []*domain.Entity {
	var out []*domain.Entity
	for _, e := range r.s.entities {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.s.order[out[i].ID] < r.s.order[out[j].ID]
	})
	return out
}

type memHistoryRepo struct {
	s *memState
}

func (r *memHistoryRepo) Append(_ context.Context, h *domain.HistoryEntry) error {
	if _, ok := r.s.entities[h.EntityID]; !ok {
		return fmt.Errorf("appending history entry: entity %s: %w", h.EntityID, ErrNotFound)
	}
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r *memHistoryRepo) ListByEntity(_ context.Context, entityID string) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, h := range r.s.history {
		if h.EntityID == entityID {
			out = append(out, h)
		}
	}
	return out, nil
}
