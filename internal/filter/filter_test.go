package filter

import (
	"testing"
	"time"

	"github.com/curatorhq/curator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx(name string, sizeBytes int64) model.Index {
	return model.Index{Name: name, State: model.IndexOpen, SizeInBytes: sizeBytes, Aliases: map[string]struct{}{}}
}

// Scenario A (spec §8): age filter arithmetic.
func TestAgeFilter_ScenarioA(t *testing.T) {
	indices := []model.Index{
		idx("logstash-2017.04.04", 0),
		idx("logstash-2017.04.06", 0),
		idx("logstash-2017.04.08", 0),
	}
	f, err := NewAgeFilter(AgeFilter{
		Source:            AgeSourceName,
		TimestringForName: "%Y.%m.%d",
		Direction:         AgeOlder,
		Unit:              UnitDays,
		UnitCount:         3,
		Epoch:             1491577200, // 2017-04-07T15:00:00Z
	})
	require.NoError(t, err)

	out, err := f.Apply(indices)
	require.NoError(t, err)
	names := namesOf(out)
	assert.Equal(t, []string{"logstash-2017.04.04"}, names)
}

// Scenario B (spec §8): space filter reverse default.
func TestSpaceFilter_ScenarioB(t *testing.T) {
	indices := []model.Index{
		idx("index1", 10*gigabyte),
		idx("index2", 10*gigabyte),
		idx("index3", 10*gigabyte),
		idx("index4", 10*gigabyte),
		idx("index5", 10*gigabyte),
	}
	f := &SpaceFilter{DiskSpaceGB: 21}
	out, err := f.Apply(indices)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"index1", "index2", "index3"}, namesOf(out))
}

func TestSpaceFilter_ZeroDiskSpaceRetainsAll(t *testing.T) {
	indices := []model.Index{idx("a", 1), idx("b", 1), idx("c", 1)}
	f := &SpaceFilter{DiskSpaceGB: 0}
	out, err := f.Apply(indices)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestSpaceFilter_ExcludesClosedIndices(t *testing.T) {
	closed := idx("closed-index", 100*gigabyte)
	closed.State = model.IndexClosed
	indices := []model.Index{idx("open-index", 1), closed}
	f := &SpaceFilter{DiskSpaceGB: 0}
	out, err := f.Apply(indices)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "open-index", out[0].Name)
}

func TestCountFilter_ZeroRemovesAll(t *testing.T) {
	f, err := NewCountFilter(CountFilter{Count: 0})
	require.NoError(t, err)
	out, err := f.Apply([]model.Index{idx("a", 0), idx("b", 0)})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCountFilter_PerGroup(t *testing.T) {
	f, err := NewCountFilter(CountFilter{Count: 1, Pattern: `^(\w+)-\d+$`})
	require.NoError(t, err)
	out, err := f.Apply([]model.Index{
		idx("logs-1", 0), idx("logs-2", 0),
		idx("metrics-1", 0), idx("metrics-2", 0),
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestPatternFilter_PrefixSuffix(t *testing.T) {
	prefix, err := NewPatternFilter(PatternPrefix, "logstash-", false)
	require.NoError(t, err)
	out, err := prefix.Apply([]model.Index{idx("logstash-2017", 0), idx("metrics-2017", 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"logstash-2017"}, namesOf(out))
}

func TestPatternFilter_TimestringOverlapWorkaround(t *testing.T) {
	// %Y.%m also matches the longer %Y.%m.%d form; chaining an exclude
	// filter for the longer pattern is the documented workaround.
	short, err := NewPatternFilter(PatternTimestring, "%Y.%m", false)
	require.NoError(t, err)
	long, err := NewPatternFilter(PatternTimestring, "%Y.%m.%d", true)
	require.NoError(t, err)

	indices := []model.Index{idx("logstash-2017.04", 0), idx("logstash-2017.04.08", 0)}
	chain := []IndexFilter{short, long}
	out, err := ApplyIndexChain(indices, chain)
	require.NoError(t, err)
	assert.Equal(t, []string{"logstash-2017.04"}, namesOf(out))
}

func TestKibanaFilter(t *testing.T) {
	f := &KibanaFilter{}
	out, err := f.Apply([]model.Index{idx(".kibana", 0), idx(".kibana_1", 0), idx("myindex", 0)})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestAliasFilter_RequiresAll(t *testing.T) {
	a := idx("a", 0)
	a.Aliases = map[string]struct{}{"x": {}, "y": {}}
	b := idx("b", 0)
	b.Aliases = map[string]struct{}{"x": {}}
	f := &AliasFilter{Aliases: []string{"x", "y"}}
	out, err := f.Apply([]model.Index{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, namesOf(out))
}

func TestSubsetInvariant(t *testing.T) {
	indices := []model.Index{idx("a", 0), idx("b", 0), idx("c", 0)}
	filters := []IndexFilter{
		&ClosedFilter{},
		&OpenedFilter{},
		&EmptyFilter{},
		&KibanaFilter{},
		mustCount(t),
	}
	for _, f := range filters {
		out, err := f.Apply(indices)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), len(indices))
	}
}

func mustCount(t *testing.T) IndexFilter {
	f, err := NewCountFilter(CountFilter{Count: 2})
	require.NoError(t, err)
	return f
}

func TestPeriodFilter_RelativeDays(t *testing.T) {
	now := time.Date(2017, 4, 10, 12, 0, 0, 0, time.UTC)
	f, err := NewPeriodFilter(PeriodFilter{
		Mode: PeriodRelative, RangeFrom: -1, RangeTo: -1, Unit: UnitDays,
		Source: AgeSourceName, TimestringForName: "%Y.%m.%d", Now: now,
	})
	require.NoError(t, err)
	out, err := f.Apply([]model.Index{idx("logstash-2017.04.09", 0), idx("logstash-2017.04.08", 0), idx("logstash-2017.04.10", 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"logstash-2017.04.09"}, namesOf(out))
}

func namesOf(indices []model.Index) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = idx.Name
	}
	return out
}
