package service

import (
	"fmt"

	"github.com/alexanderramin/rollup/internal/domain"
)

// Result summarizes what one façade call changed.
type Result struct {
	// Entity is the entity named by the call as it stood after the call.
	Entity *domain.Entity
	// NoOp is set when the call asked for the state the entity already held
	// or otherwise had nothing to write.
	NoOp bool
	// Created lists entities inserted by the call, in insertion order.
	Created []string
	// Closed lists ancestors moved to their completed state by the closure check.
	Closed []string
	// Propagated lists descendants moved to the propagated state.
	Propagated []string
	// Skipped lists descendants left alone because their kind does not allow
	// the propagated state from where they stand. Their subtrees are untouched.
	Skipped []string
	// Restored lists entities returned to their snapshot state.
	Restored []string
	// Recomputed lists parents whose budget total changed.
	Recomputed []string
	Warnings   []string
}

// PropagatedCount is the number of descendants updated top-down.
func (r *Result) PropagatedCount() int {
	if r == nil {
		return 0
	}
	return len(r.Propagated)
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) fields() map[string]any {
	return map[string]any{
		"created":    len(r.Created),
		"closed":     len(r.Closed),
		"propagated": len(r.Propagated),
		"skipped":    len(r.Skipped),
		"restored":   len(r.Restored),
		"recomputed": len(r.Recomputed),
		"warnings":   len(r.Warnings),
	}
}

// PartialPropagationError reports a fan-out that stopped at FailedID.
// Descendants in Updated kept their new state; nothing after FailedID was
// touched.
type PartialPropagationError struct {
	RootID   string
	FailedID string
	Updated  []string
	Err      error
}

func (e *PartialPropagationError) Error() string {
	return fmt.Sprintf("cascade from %s stopped at %s after %d descendants: %v",
		e.RootID, e.FailedID, len(e.Updated), e.Err)
}

func (e *PartialPropagationError) Unwrap() error {
	return e.Err
}
