package repository

import (
	"context"
	"errors"

	"github.com/alexanderramin/rollup/internal/domain"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// EntityRepo is the record store for hierarchy entities: point lookup,
// insert, update and query by parent reference.
type EntityRepo interface {
	Create(ctx context.Context, e *domain.Entity) error
	GetByID(ctx context.Context, id string) (*domain.Entity, error)
	// LockForUpdate holds a row lock on id until the transaction ends, so
	// writers that check the same parent's children run one after another.
	LockForUpdate(ctx context.Context, id string) error
	Update(ctx context.Context, e *domain.Entity) error
	// SaveSnapshot writes only the previous-state snapshot column.
	SaveSnapshot(ctx context.Context, id string, snap *domain.StateSnapshot) error
	ListByParent(ctx context.Context, parentID string) ([]*domain.Entity, error)
	// ListByCampaign returns tasks whose denormalized campaign reference is campaignID.
	ListByCampaign(ctx context.Context, campaignID string) ([]*domain.Entity, error)
	ListRoots(ctx context.Context) ([]*domain.Entity, error)
}

// HistoryRepo is the append-only audit log of committed state changes.
type HistoryRepo interface {
	Append(ctx context.Context, h *domain.HistoryEntry) error
	ListByEntity(ctx context.Context, entityID string) ([]domain.HistoryEntry, error)
}

// Repos bundles the repositories bound to one transaction.
type Repos struct {
	Entities EntityRepo
	History  HistoryRepo
}

// Store runs fn inside a transaction. Everything fn writes through the given
// Repos commits together or not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
