// Package filter implements Curator's filter engine: a composable pipeline
// that narrows a complete index or snapshot inventory down to an
// actionable list via chained, AND-composed predicates.
package filter

import "github.com/curatorhq/curator/internal/model"

// gigabyte is the byte count used by the space filter's disk_space
// accounting. The spec leaves GB vs GiB unspecified and notes the
// reference implementation uses decimal gigabytes; see DESIGN.md.
const gigabyte = 1_000_000_000

// IndexFilter narrows a list of indices. Every implementation must
// preserve the subset invariant: Apply(L) is always a subset of L — no
// filter may add entities, only remove or reorder them.
type IndexFilter interface {
	Apply(indices []model.Index) ([]model.Index, error)
}

// SnapshotFilter narrows a list of snapshots. Only the `state` filter is
// snapshot-specific today, but the chain runner supports arbitrary chains
// of snapshot filters for forward compatibility with per-repository
// filtering.
type SnapshotFilter interface {
	Apply(snapshots []model.Snapshot) ([]model.Snapshot, error)
}

// ApplyIndexChain evaluates an ordered AND-chain of index filters,
// threading the output of each filter into the next. It performs no
// empty-list handling: that policy (ignore_empty_list) belongs to the
// action engine, which is the only layer that knows the action's options.
func ApplyIndexChain(indices []model.Index, chain []IndexFilter) ([]model.Index, error) {
	result := indices
	for _, f := range chain {
		next, err := f.Apply(result)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

// ApplySnapshotChain is ApplyIndexChain's snapshot-list counterpart.
func ApplySnapshotChain(snapshots []model.Snapshot, chain []SnapshotFilter) ([]model.Snapshot, error) {
	result := snapshots
	for _, f := range chain {
		next, err := f.Apply(result)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

// keepIndices returns, in a new slice, the entries of src for which keep
// returns true, preserving order. Shared by every predicate-style filter
// below so the subset invariant is enforced in exactly one place.
func keepIndices(src []model.Index, keep func(model.Index) bool) []model.Index {
	out := make([]model.Index, 0, len(src))
	for _, idx := range src {
		if keep(idx) {
			out = append(out, idx)
		}
	}
	return out
}

func keepSnapshots(src []model.Snapshot, keep func(model.Snapshot) bool) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(src))
	for _, s := range src {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
