package filter

import (
	"regexp"
	"strconv"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
)

// AgeSource selects where an index's age is derived from.
type AgeSource string

const (
	AgeSourceName        AgeSource = "name"
	AgeSourceCreationDate AgeSource = "creation_date"
	AgeSourceFieldStats  AgeSource = "field_stats"
)

// AgeDirection selects which side of the point of reference is retained.
type AgeDirection string

const (
	AgeOlder   AgeDirection = "older"
	AgeYounger AgeDirection = "younger"
)

// AgeUnit is one of the fixed-duration units the age filter accepts.
// month/year are fixed 30/365-day durations, deliberately not
// calendar-aware — see DESIGN.md's Open Question decision; the `period`
// filter is the calendar-aware alternative.
type AgeUnit string

const (
	UnitSeconds AgeUnit = "seconds"
	UnitMinutes AgeUnit = "minutes"
	UnitHours   AgeUnit = "hours"
	UnitDays    AgeUnit = "days"
	UnitWeeks   AgeUnit = "weeks"
	UnitMonths  AgeUnit = "months"
	UnitYears   AgeUnit = "years"
)

// unitSeconds is the fixed unit→seconds table from spec §4.1.
var unitSeconds = map[AgeUnit]int64{
	UnitSeconds: 1,
	UnitMinutes: 60,
	UnitHours:   3600,
	UnitDays:    86400,
	UnitWeeks:   604800,
	UnitMonths:  2592000,
	UnitYears:   31536000,
}

// FieldStatsResolver supplies the min/max value of a date field for an
// index, for age filters configured with source=field_stats. Implemented
// by the ES adapter layer (a date-field aggregation) and injected here so
// the filter engine stays free of any cluster-client dependency.
type FieldStatsResolver interface {
	FieldStats(indexName, field string) (minEpochMs, maxEpochMs int64, err error)
}

// StatsResult selects which side of a field_stats aggregation is used as
// the entity's derived age.
type StatsResult string

const (
	StatsMin StatsResult = "min_value"
	StatsMax StatsResult = "max_value"
)

// AgeFilter implements spec §4.1's age filter.
type AgeFilter struct {
	Source    AgeSource
	Direction AgeDirection
	Unit      AgeUnit
	UnitCount int64
	// Epoch is the reference time; zero means "now" is supplied by Apply's
	// caller via the Now field instead (kept explicit so tests are
	// deterministic without monkeypatching time.Now).
	Epoch int64
	Now    int64

	// UnitCountPattern, if non-empty, is a regex with one capture group;
	// when it matches an index's name, the captured integer overrides
	// UnitCount for that index. If it does not match and UnitCount == -1,
	// the index is skipped (retained as-is, per spec's "skip" wording —
	// implemented here as "neither included nor excluded by this filter",
	// i.e. passed through unfiltered by this predicate).
	UnitCountPattern string

	TimestringForName string // required when Source == AgeSourceName

	Field   string // required when Source == AgeSourceFieldStats
	StatsResult StatsResult

	Exclude bool

	Stats FieldStatsResolver

	unitCountRe *regexp.Regexp
}

// NewAgeFilter validates and compiles f's optional unit_count_pattern.
func NewAgeFilter(f AgeFilter) (*AgeFilter, error) {
	if _, ok := unitSeconds[f.Unit]; !ok {
		return nil, curatorerr.New(curatorerr.ConfigError, "age filter: unknown unit "+string(f.Unit))
	}
	if f.Source == AgeSourceName && f.TimestringForName == "" {
		return nil, curatorerr.New(curatorerr.ConfigError, "age filter: source=name requires timestring")
	}
	if f.Source == AgeSourceFieldStats && (f.Field == "" || f.Stats == nil) {
		return nil, curatorerr.New(curatorerr.ConfigError, "age filter: source=field_stats requires field and a resolver")
	}
	if f.UnitCountPattern != "" {
		re, err := regexp.Compile(f.UnitCountPattern)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "age filter: invalid unit_count_pattern", err)
		}
		f.unitCountRe = re
	}
	return &f, nil
}

// pointOfReference computes epoch − unit.seconds × unit_count for the
// given (possibly name-overridden) unit count.
func (f *AgeFilter) pointOfReference(unitCount int64) int64 {
	epoch := f.Epoch
	if epoch == 0 {
		epoch = f.Now
	}
	return epoch - unitSeconds[f.Unit]*unitCount
}

func (f *AgeFilter) resolveUnitCount(name string) (int64, bool) {
	if f.unitCountRe == nil {
		return f.UnitCount, true
	}
	m := f.unitCountRe.FindStringSubmatch(name)
	if m == nil || len(m) < 2 {
		return f.UnitCount, f.UnitCount != -1
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return f.UnitCount, f.UnitCount != -1
	}
	return n, true
}

func (f *AgeFilter) ageEpochSeconds(idx model.Index) (int64, bool) {
	switch f.Source {
	case AgeSourceName:
		t, ok := ParseNameTimestamp(idx.Name, f.TimestringForName)
		if !ok {
			return 0, false
		}
		return t.Unix(), true
	case AgeSourceCreationDate:
		return idx.CreationDateEpochMs / 1000, true
	case AgeSourceFieldStats:
		minMs, maxMs, err := f.Stats.FieldStats(idx.Name, f.Field)
		if err != nil {
			return 0, false
		}
		if f.StatsResult == StatsMin {
			return minMs / 1000, true
		}
		return maxMs / 1000, true
	default:
		return 0, false
	}
}

func (f *AgeFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		unitCount, ok := f.resolveUnitCount(idx.Name)
		if !ok {
			// unit_count_pattern didn't match and configured unit_count is -1:
			// per spec, the entity is skipped by this filter (retained).
			return true
		}
		age, ok := f.ageEpochSeconds(idx)
		if !ok {
			return true
		}
		por := f.pointOfReference(unitCount)
		var retained bool
		switch f.Direction {
		case AgeOlder:
			retained = age <= por
		case AgeYounger:
			retained = age >= por
		}
		return retained != f.Exclude
	}), nil
}

// nowEpoch is a seam for tests; production callers set AgeFilter.Now from
// time.Now().Unix() when Epoch is unset.
func nowEpoch() int64 { return time.Now().Unix() }
