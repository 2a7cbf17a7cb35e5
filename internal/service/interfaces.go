package service

import (
	"context"

	"github.com/alexanderramin/rollup/internal/domain"
)

// EngineService is the façade surface consumed by the CLI.
type EngineService interface {
	Create(ctx context.Context, ent *domain.Entity, actor string) (*Result, error)
	Import(ctx context.Context, ents []*domain.Entity, actor string) (*Result, error)
	Transition(ctx context.Context, id string, target domain.State, actor string) (*Result, error)
	Restore(ctx context.Context, id, actor string, cascade bool) (*Result, error)
	UpdateBudget(ctx context.Context, id string, budget *int64, actor string) (*Result, error)
	Recompute(ctx context.Context, id string) (*Result, error)
	Reparent(ctx context.Context, id, newParentID, actor string) (*Result, error)

	Get(ctx context.Context, id string) (*domain.Entity, error)
	Children(ctx context.Context, id string) ([]*domain.Entity, error)
	Campaigns(ctx context.Context) ([]*domain.Entity, error)
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	Tree(ctx context.Context, id string) (*TreeNode, error)

	IsPropagating(s domain.State) bool
}

var _ EngineService = (*Engine)(nil)
