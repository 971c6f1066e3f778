package actionfile

import (
	"fmt"
	"time"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
)

// buildIndexFilterChain constructs an ordered []filter.IndexFilter from a
// decoded `filters:` list, dispatching on each entry's filtertype.
func buildIndexFilterChain(raw interface{}) ([]filter.IndexFilter, error) {
	entries := asSlice(raw)
	chain := make([]filter.IndexFilter, 0, len(entries))
	for i, e := range entries {
		m := asMap(e)
		if m == nil {
			return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("filters[%d]: not a mapping", i))
		}
		f, err := buildIndexFilter(m)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, fmt.Sprintf("filters[%d]", i), err)
		}
		chain = append(chain, f)
	}
	return chain, nil
}

func buildSnapshotFilterChain(raw interface{}) ([]filter.SnapshotFilter, error) {
	entries := asSlice(raw)
	chain := make([]filter.SnapshotFilter, 0, len(entries))
	for i, e := range entries {
		m := asMap(e)
		if m == nil {
			return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("filters[%d]: not a mapping", i))
		}
		kind := getString(m, "filtertype", "")
		switch kind {
		case "state":
			chain = append(chain, &filter.StateFilter{
				State:   model.SnapshotState(getString(m, "state", "")),
				Exclude: getBool(m, "exclude", false),
			})
		default:
			return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("filters[%d]: unsupported snapshot filtertype %q", i, kind))
		}
	}
	return chain, nil
}

func buildIndexFilter(m map[string]interface{}) (filter.IndexFilter, error) {
	kind := getString(m, "filtertype", "")
	exclude := getBool(m, "exclude", false)

	switch kind {
	case "age":
		source := filter.AgeSource(getString(m, "source", "name"))
		var stats filter.FieldStatsResolver
		if source == filter.AgeSourceFieldStats {
			stats = deferredFieldStats{}
		}
		f, err := filter.NewAgeFilter(filter.AgeFilter{
			Source:            source,
			Direction:         filter.AgeDirection(getString(m, "direction", "older")),
			Unit:              filter.AgeUnit(getString(m, "unit", "days")),
			UnitCount:         getInt64(m, "unit_count", 0),
			UnitCountPattern:  getString(m, "unit_count_pattern", ""),
			TimestringForName: getString(m, "timestring", ""),
			Field:             getString(m, "field", ""),
			StatsResult:       filter.StatsResult(getString(m, "stats_result", "max_value")),
			Exclude:           exclude,
			Now:               nowUnix(),
			Stats:             stats,
		})
		if err != nil {
			return nil, err
		}
		return f, nil

	case "pattern":
		return filter.NewPatternFilter(
			filter.PatternKind(getString(m, "kind", "")),
			getString(m, "value", ""),
			exclude,
		)

	case "count":
		return filter.NewCountFilter(filter.CountFilter{
			Count:   getInt(m, "count", 0),
			UseAge:  getBool(m, "use_age", false),
			Reverse: getBool(m, "reverse", false),
			Pattern: getString(m, "pattern", ""),
			Exclude: exclude,
		})

	case "space":
		return &filter.SpaceFilter{
			DiskSpaceGB:       getFloat(m, "disk_space", 0),
			UseAge:            getBool(m, "use_age", false),
			ThresholdBehavior: filter.ThresholdBehavior(getString(m, "threshold_behavior", "")),
			Exclude:           exclude,
		}, nil

	case "period":
		periodSource := filter.AgeSource(getString(m, "source", "name"))
		var periodStats filter.FieldStatsResolver
		if periodSource == filter.AgeSourceFieldStats {
			periodStats = deferredFieldStats{}
		}
		return filter.NewPeriodFilter(filter.PeriodFilter{
			Mode:              filter.PeriodMode(getString(m, "period_type", "relative")),
			RangeFrom:         getInt(m, "range_from", 0),
			RangeTo:           getInt(m, "range_to", 0),
			Unit:              filter.AgeUnit(getString(m, "unit", "days")),
			WeekStartsOn:      filter.WeekStart(getString(m, "week_starts_on", "sunday")),
			DateFrom:          getString(m, "date_from", ""),
			DateTo:            getString(m, "date_to", ""),
			DateFromFormat:    getString(m, "date_from_format", ""),
			DateToFormat:      getString(m, "date_to_format", ""),
			Source:            periodSource,
			TimestringForName: getString(m, "timestring", ""),
			Field:             getString(m, "field", ""),
			Intersect:         getBool(m, "intersect", false),
			Exclude:           exclude,
			Stats:             periodStats,
		})

	case "alias":
		return &filter.AliasFilter{Aliases: getStringSlice(m, "aliases"), Exclude: exclude}, nil

	case "allocated":
		return &filter.AllocatedFilter{
			Type:    getString(m, "allocation_type", "require"),
			Key:     getString(m, "key", ""),
			Value:   getString(m, "value", ""),
			Exclude: exclude,
		}, nil

	case "closed":
		return &filter.ClosedFilter{Exclude: exclude}, nil
	case "opened":
		return &filter.OpenedFilter{Exclude: exclude}, nil
	case "empty":
		return &filter.EmptyFilter{Exclude: exclude}, nil
	case "forcemerged":
		return &filter.ForcemergedFilter{MaxNumSegments: getInt(m, "max_num_segments", 1), Exclude: exclude}, nil
	case "kibana":
		return &filter.KibanaFilter{Exclude: exclude}, nil
	case "none":
		return &filter.NoneFilter{}, nil

	default:
		return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("unsupported filtertype %q", kind))
	}
}

// nowUnix is a seam overridden in tests; production callers get the real
// wall clock.
var nowUnix = func() int64 { return time.Now().Unix() }

// deferredFieldStats satisfies filter.FieldStatsResolver just well enough
// to pass age/period filter construction at parse time, when no cluster
// connection exists yet to resolve field-stats aggregations. Both
// binaries replace it with a live resolver backed by the ES adapter via
// WireEntry (which calls WireFieldStats) before the action runs.
type deferredFieldStats struct{}

func (deferredFieldStats) FieldStats(indexName, field string) (int64, int64, error) {
	return 0, 0, curatorerr.New(curatorerr.Fatal, "field_stats resolver was never wired for index "+indexName)
}

// WireFieldStats replaces any deferredFieldStats placeholder in chain with
// resolver, so source=field_stats age/period filters parsed from an action
// file can run against a live cluster.
func WireFieldStats(chain []filter.IndexFilter, resolver filter.FieldStatsResolver) {
	for _, f := range chain {
		switch typed := f.(type) {
		case *filter.AgeFilter:
			if _, deferred := typed.Stats.(deferredFieldStats); deferred {
				typed.Stats = resolver
			}
		case *filter.PeriodFilter:
			if _, deferred := typed.Stats.(deferredFieldStats); deferred {
				typed.Stats = resolver
			}
		}
	}
}

// WireEntry replaces any deferred field_stats placeholder in e's index
// filter chain(s) with resolver. Called by a binary's bootstrap once a
// live cluster connection exists, since Parse itself runs with none.
func WireEntry(e Entry, resolver filter.FieldStatsResolver) {
	switch act := e.Action.(type) {
	case *action.DeleteIndices:
		WireFieldStats(act.Chain, resolver)
	case *action.Close:
		WireFieldStats(act.Chain, resolver)
	case *action.Open:
		WireFieldStats(act.Chain, resolver)
	case *action.ForceMerge:
		WireFieldStats(act.Chain, resolver)
	case *action.Replicas:
		WireFieldStats(act.Chain, resolver)
	case *action.Allocation:
		WireFieldStats(act.Chain, resolver)
	case *action.Snapshot:
		WireFieldStats(act.Chain, resolver)
	case *action.Shrink:
		WireFieldStats(act.Chain, resolver)
	case *action.Reindex:
		WireFieldStats(act.Chain, resolver)
	case *action.Alias:
		WireFieldStats(act.AddChain, resolver)
		WireFieldStats(act.RemoveChain, resolver)
	case *action.IndexSettings:
		WireFieldStats(act.Chain, resolver)
	case *action.Cold2Frozen:
		WireFieldStats(act.Chain, resolver)
	}
}
