package filter

import (
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
)

// PeriodMode selects relative (anchored at the truncated current unit) or
// absolute (explicit date strings) range computation.
type PeriodMode string

const (
	PeriodRelative PeriodMode = "relative"
	PeriodAbsolute PeriodMode = "absolute"
)

// WeekStart selects which day relative-mode week truncation anchors on.
type WeekStart string

const (
	WeekStartsSunday WeekStart = "sunday"
	WeekStartsMonday WeekStart = "monday"
)

// PeriodFilter implements spec §4.1's calendar-aware period filter.
type PeriodFilter struct {
	Mode PeriodMode

	// Relative mode.
	RangeFrom    int
	RangeTo      int
	Unit         AgeUnit
	WeekStartsOn WeekStart

	// Absolute mode.
	DateFrom       string
	DateTo         string
	DateFromFormat string
	DateToFormat   string

	Source            AgeSource
	TimestringForName string
	Field             string
	Intersect         bool
	Stats             FieldStatsResolver

	Exclude bool
	Now     time.Time
}

// NewPeriodFilter validates f and requires RangeFrom <= RangeTo in
// relative mode, per spec.
func NewPeriodFilter(f PeriodFilter) (*PeriodFilter, error) {
	if f.Mode == PeriodRelative {
		if f.RangeFrom > f.RangeTo {
			return nil, curatorerr.New(curatorerr.ConfigError, "period filter: range_from must be <= range_to")
		}
		if _, ok := unitSeconds[f.Unit]; !ok {
			return nil, curatorerr.New(curatorerr.ConfigError, "period filter: unknown unit "+string(f.Unit))
		}
	}
	if f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return &f, nil
}

// bounds computes the inclusive [start, end] window in epoch seconds.
func (f *PeriodFilter) bounds() (start, end int64, err error) {
	if f.Mode == PeriodAbsolute {
		from, ok := ParseNameTimestamp(f.DateFrom, f.DateFromFormat)
		if !ok {
			return 0, 0, curatorerr.New(curatorerr.ConfigError, "period filter: cannot parse date_from")
		}
		to, ok := ParseNameTimestamp(f.DateTo, f.DateToFormat)
		if !ok {
			return 0, 0, curatorerr.New(curatorerr.ConfigError, "period filter: cannot parse date_to")
		}
		return from.Unix(), to.Unix(), nil
	}

	anchor := truncateToUnit(f.Now, f.Unit, f.WeekStartsOn)
	start = addUnits(anchor, f.Unit, f.RangeFrom).Unix()
	end = addUnits(anchor, f.Unit, f.RangeTo+1).Unix() - 1
	return start, end, nil
}

func truncateToUnit(t time.Time, unit AgeUnit, weekStart WeekStart) time.Time {
	t = t.UTC()
	switch unit {
	case UnitYears:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case UnitMonths:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case UnitWeeks:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		weekday := int(day.Weekday()) // Sunday=0
		if weekStart == WeekStartsMonday {
			offset := (weekday + 6) % 7
			return day.AddDate(0, 0, -offset)
		}
		return day.AddDate(0, 0, -weekday)
	case UnitDays:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case UnitHours:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case UnitMinutes:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}
}

func addUnits(t time.Time, unit AgeUnit, n int) time.Time {
	switch unit {
	case UnitYears:
		return t.AddDate(n, 0, 0)
	case UnitMonths:
		return t.AddDate(0, n, 0)
	case UnitWeeks:
		return t.AddDate(0, 0, 7*n)
	case UnitDays:
		return t.AddDate(0, 0, n)
	case UnitHours:
		return t.Add(time.Duration(n) * time.Hour)
	case UnitMinutes:
		return t.Add(time.Duration(n) * time.Minute)
	default:
		return t.Add(time.Duration(n) * time.Second)
	}
}

func (f *PeriodFilter) Apply(indices []model.Index) ([]model.Index, error) {
	start, end, err := f.bounds()
	if err != nil {
		return nil, err
	}
	return keepIndices(indices, func(idx model.Index) bool {
		var retained bool
		if f.Source == AgeSourceFieldStats && f.Intersect {
			minMs, maxMs, err := f.Stats.FieldStats(idx.Name, f.Field)
			if err != nil {
				return true
			}
			retained = minMs/1000 >= start && minMs/1000 <= end && maxMs/1000 >= start && maxMs/1000 <= end
		} else {
			age := AgeFilter{Source: f.Source, TimestringForName: f.TimestringForName, Field: f.Field, Stats: f.Stats, StatsResult: StatsMax}
			ts, ok := age.ageEpochSeconds(idx)
			if !ok {
				return true
			}
			retained = ts >= start && ts <= end
		}
		return retained != f.Exclude
	}), nil
}
