package service

import (
	"context"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
)

// TreeNode is an entity with its loaded subtree.
type TreeNode struct {
	Entity   *domain.Entity
	Children []*TreeNode
}

// Count returns the number of entities in the subtree, the root included.
func (n *TreeNode) Count() int {
	c := 1
	for _, ch := range n.Children {
		c += ch.Count()
	}
	return c
}

func (e *Engine) Get(ctx context.Context, id string) (*domain.Entity, error) {
	var ent *domain.Entity
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		ent, err = loadEntity(ctx, r, id)
		return err
	})
	if err != nil {
		return nil, storeError(id, err, "get")
	}
	return ent, nil
}

// Children lists the direct children of id in creation order.
func (e *Engine) Children(ctx context.Context, id string) ([]*domain.Entity, error) {
	var out []*domain.Entity
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := loadEntity(ctx, r, id); err != nil {
			return err
		}
		var err error
		out, err = r.Entities.ListByParent(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError(id, err, "listing children")
	}
	return out, nil
}

// Campaigns lists every root entity in creation order.
func (e *Engine) Campaigns(ctx context.Context) ([]*domain.Entity, error) {
	var out []*domain.Entity
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		out, err = r.Entities.ListRoots(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("", err, "listing campaigns")
	}
	return out, nil
}

// History returns the recorded state changes of id, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := loadEntity(ctx, r, id); err != nil {
			return err
		}
		var err error
		out, err = r.History.ListByEntity(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError(id, err, "listing history")
	}
	return out, nil
}

// Tree loads the subtree rooted at id from a single consistent read.
func (e *Engine) Tree(ctx context.Context, id string) (*TreeNode, error) {
	var root *TreeNode
	err := e.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ent, err := loadEntity(ctx, r, id)
		if err != nil {
			return err
		}
		root, err = loadSubtree(ctx, r, ent, 1)
		return err
	})
	if err != nil {
		return nil, storeError(id, err, "loading tree")
	}
	return root, nil
}

func loadSubtree(ctx context.Context, r repository.Repos, ent *domain.Entity, depth int) (*TreeNode, error) {
	node := &TreeNode{Entity: ent}
	if _, ok := ent.Kind.ChildKind(); !ok {
		return node, nil
	}
	if depth >= domain.MaxDepth {
		return nil, domain.NewError(domain.ErrCodeCycleDetected, ent.ID, "subtree deeper than %d levels", domain.MaxDepth)
	}
	children, err := r.Entities.ListByParent(ctx, ent.ID)
	if err != nil {
		return nil, storeError(ent.ID, err, "listing children")
	}
	for _, c := range children {
		sub, err := loadSubtree(ctx, r, c, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}
