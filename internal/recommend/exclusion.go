package recommend

import (
	"context"
	"fmt"
)

// ExclusionFilter removes candidates that must never be recommended: the
// requester, anyone the requester already liked or passed, and optionally
// anyone who passed on the requester.
//
// It always reads the authoritative decision store; a stale exclusion set
// would re-surface resolved candidates.
type ExclusionFilter struct {
	decisions       DecisionSource
	excludePassedBy bool
}

// NewExclusionFilter builds a filter over the given decision store.
func NewExclusionFilter(decisions DecisionSource, excludePassedBy bool) *ExclusionFilter {
	return &ExclusionFilter{decisions: decisions, excludePassedBy: excludePassedBy}
}

// ExcludedSet returns the ids that may not appear for requesterID.
// The requester is always part of the set.
func (f *ExclusionFilter) ExcludedSet(ctx context.Context, requesterID uint64) (map[uint64]struct{}, error) {
	decided, err := f.decisions.DecidedTargets(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("load decided targets: %w", err)
	}

	excluded := make(map[uint64]struct{}, len(decided)+1)
	excluded[requesterID] = struct{}{}
	for _, id := range decided {
		excluded[id] = struct{}{}
	}

	if f.excludePassedBy {
		passers, err := f.decisions.PassedBy(ctx, requesterID)
		if err != nil {
			return nil, fmt.Errorf("load passed-by: %w", err)
		}
		for _, id := range passers {
			excluded[id] = struct{}{}
		}
	}
	return excluded, nil
}

// Filter returns the subset of pool that may legally be recommended,
// preserving pool order.
func (f *ExclusionFilter) Filter(ctx context.Context, requesterID uint64, pool []uint64) ([]uint64, error) {
	excluded, err := f.ExcludedSet(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(pool))
	for _, id := range pool {
		if _, skip := excluded[id]; !skip {
			out = append(out, id)
		}
	}
	return out, nil
}

// FilterEntries drops entries whose candidate is excluded. It is used to
// re-check cached lists against the live decision store.
func (f *ExclusionFilter) FilterEntries(ctx context.Context, requesterID uint64, entries []Entry) ([]Entry, error) {
	excluded, err := f.ExcludedSet(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, skip := excluded[e.CandidateID]; !skip {
			out = append(out, e)
		}
	}
	return out, nil
}
