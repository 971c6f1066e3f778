package filter

import (
	"sort"

	"github.com/curatorhq/curator/internal/model"
)

// ThresholdBehavior selects which side of the accumulation threshold is
// retained by the space filter.
type ThresholdBehavior string

const (
	ThresholdGreaterThan ThresholdBehavior = "greater_than"
	ThresholdLessThan    ThresholdBehavior = "less_than"
)

// SpaceFilter implements spec §4.1's space filter.
//
// Default ordering processes the newest entity first (by name descending,
// or by age descending when UseAge), accumulating size_in_bytes. Entities
// encountered before the running total first exceeds DiskSpaceGB*1e9 are
// "under threshold" and excluded; the entity that crosses the threshold,
// and every entity encountered after it (i.e. the older tail), are
// retained under ThresholdGreaterThan — this is the set a companion
// delete_indices action is meant to remove once cumulative size exceeds
// budget. ThresholdLessThan inverts the selection. Closed indices are
// silently excluded from consideration entirely, since their size is
// unknown. See spec §4.1 edge case (2) and the worked Scenario B.
type SpaceFilter struct {
	DiskSpaceGB       float64
	UseAge            bool
	ThresholdBehavior ThresholdBehavior
	Exclude           bool

	AgeEpochSecondsOf func(model.Index) (int64, bool)
}

func (f *SpaceFilter) behavior() ThresholdBehavior {
	if f.ThresholdBehavior == "" {
		return ThresholdGreaterThan
	}
	return f.ThresholdBehavior
}

func (f *SpaceFilter) Apply(indices []model.Index) ([]model.Index, error) {
	open := make([]model.Index, 0, len(indices))
	for _, idx := range indices {
		if idx.State != model.IndexClosed {
			open = append(open, idx)
		}
	}

	order := append([]model.Index(nil), open...)
	if f.UseAge && f.AgeEpochSecondsOf != nil {
		sort.SliceStable(order, func(i, j int) bool {
			ai, _ := f.AgeEpochSecondsOf(order[i])
			aj, _ := f.AgeEpochSecondsOf(order[j])
			return ai > aj // newest (largest epoch) first
		})
	} else {
		sort.SliceStable(order, func(i, j int) bool {
			return order[i].Name > order[j].Name // reverse-lexicographic
		})
	}

	thresholdBytes := int64(f.DiskSpaceGB * gigabyte)
	behavior := f.behavior()

	var running int64
	crossed := false
	var kept []model.Index
	for _, idx := range order {
		running += idx.SizeInBytes
		if !crossed && running > thresholdBytes {
			crossed = true
		}
		var retained bool
		if behavior == ThresholdGreaterThan {
			retained = crossed
		} else {
			retained = !crossed
		}
		if retained != f.Exclude {
			kept = append(kept, idx)
		}
	}
	return kept, nil
}
