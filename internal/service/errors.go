package service

import (
	"context"
	"errors"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
)

// storeError maps a repository failure onto the engine taxonomy. Errors that
// already carry a code pass through unchanged.
func storeError(id string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return domain.WrapError(domain.ErrCodeNotFound, id, err, format, args...)
	}
	return domain.WrapError(domain.ErrCodeStoreUnavailable, id, err, format, args...)
}

// loadEntity reads id, reporting a missing row as NOT_FOUND.
func loadEntity(ctx context.Context, r repository.Repos, id string) (*domain.Entity, error) {
	e, err := r.Entities.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(id, err, "loading entity")
	}
	return e, nil
}

// loadParent reads the parent of child, reporting a missing row as
// ORPHANED_PARENT.
func loadParent(ctx context.Context, r repository.Repos, child *domain.Entity) (*domain.Entity, error) {
	pid := child.ParentRef()
	if pid == "" {
		return nil, domain.NewError(domain.ErrCodeInvalidHierarchy, child.ID, "%s has no parent", child.Kind)
	}
	p, err := r.Entities.GetByID(ctx, pid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrCodeOrphanedParent, child.ID, err, "parent %s does not exist", pid)
		}
		return nil, storeError(child.ID, err, "loading parent %s", pid)
	}
	if want, _ := child.Kind.ParentKind(); p.Kind != want {
		return nil, domain.NewError(domain.ErrCodeCycleDetected, child.ID,
			"parent %s is a %s, expected %s", p.ID, p.Kind, want)
	}
	return p, nil
}

// ancestors returns the parent chain of e, nearest first. The walk is bounded
// by the hierarchy depth; a longer chain or a chain that revisits e is a cycle.
func ancestors(ctx context.Context, r repository.Repos, e *domain.Entity) ([]*domain.Entity, error) {
	var chain []*domain.Entity
	cur := e
	for cur.ParentID != nil {
		if len(chain) >= domain.MaxDepth-1 {
			return nil, domain.NewError(domain.ErrCodeCycleDetected, e.ID,
				"ancestor chain exceeds %d levels", domain.MaxDepth)
		}
		p, err := loadParent(ctx, r, cur)
		if err != nil {
			return nil, err
		}
		if p.ID == e.ID {
			return nil, domain.NewError(domain.ErrCodeCycleDetected, e.ID, "entity is its own ancestor")
		}
		chain = append(chain, p)
		cur = p
	}
	return chain, nil
}
