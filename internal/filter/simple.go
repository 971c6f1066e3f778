package filter

import (
	"regexp"

	"github.com/curatorhq/curator/internal/model"
)

// AliasFilter retains entities present in every listed alias (not any).
type AliasFilter struct {
	Aliases []string
	Exclude bool
}

func (f *AliasFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return idx.HasAllAliases(f.Aliases) != f.Exclude
	}), nil
}

// AllocatedFilter matches index.routing.allocation.{Type}.{Key} == Value.
type AllocatedFilter struct {
	Type    string // require | include | exclude
	Key     string
	Value   string
	Exclude bool
}

func (f *AllocatedFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		var matched bool
		if byType, ok := idx.RoutingAllocation[f.Type]; ok {
			matched = byType[f.Key] == f.Value
		}
		return matched != f.Exclude
	}), nil
}

// ClosedFilter retains closed indices.
type ClosedFilter struct{ Exclude bool }

func (f *ClosedFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return (idx.State == model.IndexClosed) != f.Exclude
	}), nil
}

// OpenedFilter retains open indices.
type OpenedFilter struct{ Exclude bool }

func (f *OpenedFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return (idx.State == model.IndexOpen) != f.Exclude
	}), nil
}

// EmptyFilter retains indices with zero documents.
type EmptyFilter struct{ Exclude bool }

func (f *EmptyFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return (idx.DocsCount == 0) != f.Exclude
	}), nil
}

// ForcemergedFilter retains indices whose segment count per shard already
// meets or is below MaxNumSegments (i.e. already force-merged to that
// degree, so a companion forcemerge action can skip them when excluded).
type ForcemergedFilter struct {
	MaxNumSegments int
	Exclude        bool
}

func (f *ForcemergedFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return (idx.SegmentCountPerShard <= f.MaxNumSegments) != f.Exclude
	}), nil
}

var kibanaRe = regexp.MustCompile(`^\.kibana.*$`)

// KibanaFilter retains indices matching ^\.kibana.*$.
type KibanaFilter struct{ Exclude bool }

func (f *KibanaFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		return kibanaRe.MatchString(idx.Name) != f.Exclude
	}), nil
}

// NoneFilter is the identity filter: no predicate narrows the list. Useful
// as a chain placeholder and for testing the chain runner.
type NoneFilter struct{}

func (f *NoneFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return append([]model.Index(nil), indices...), nil
}

// StateFilter (snapshots only) matches a snapshot's lifecycle state.
type StateFilter struct {
	State   model.SnapshotState
	Exclude bool
}

func (f *StateFilter) Apply(snapshots []model.Snapshot) ([]model.Snapshot, error) {
	return keepSnapshots(snapshots, func(s model.Snapshot) bool {
		return (s.State == f.State) != f.Exclude
	}), nil
}
