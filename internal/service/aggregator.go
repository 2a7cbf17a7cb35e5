package service

import (
	"context"
	"math"
	"time"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/repository"
)

// Aggregator derives a parent's budget total from its direct children.
type Aggregator struct {
	now func() time.Time
}

func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{now: now}
}

// Sum adds the children's own budgets, counting a missing budget as zero.
// ok is false when the total does not fit in an int64.
func Sum(children []*domain.Entity) (total int64, ok bool) {
	for _, c := range children {
		v := domain.Int64OrZero(c.BudgetOwn)
		if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
			return 0, false
		}
		total += v
	}
	return total, true
}

// Recompute rebuilds parentID's budget total from a full scan of its
// children and writes it only when it differs from the stored value. The
// stored value is read back after the write; a mismatch or an overflowing sum
// is AGGREGATION_INCONSISTENCY. changed reports whether a write happened.
func (a *Aggregator) Recompute(ctx context.Context, r repository.Repos, parentID string) (changed bool, err error) {
	parent, err := loadEntity(ctx, r, parentID)
	if err != nil {
		return false, err
	}
	if _, ok := parent.Kind.ChildKind(); !ok {
		return false, domain.NewError(domain.ErrCodeInvalidHierarchy, parentID, "a %s has no children to aggregate", parent.Kind)
	}

	children, err := r.Entities.ListByParent(ctx, parentID)
	if err != nil {
		return false, storeError(parentID, err, "listing children")
	}
	total, ok := Sum(children)
	if !ok {
		return false, domain.NewError(domain.ErrCodeAggregationInconsistency, parentID,
			"budget total of %d children overflows int64", len(children))
	}
	if total == parent.BudgetTotal {
		return false, nil
	}

	parent.BudgetTotal = total
	parent.UpdatedAt = a.now()
	if err := r.Entities.Update(ctx, parent); err != nil {
		return false, storeError(parentID, err, "writing budget total")
	}

	stored, err := loadEntity(ctx, r, parentID)
	if err != nil {
		return false, err
	}
	if stored.BudgetTotal != total {
		return false, domain.NewError(domain.ErrCodeAggregationInconsistency, parentID,
			"budget total reads back as %d after writing %d", stored.BudgetTotal, total)
	}
	return true, nil
}
