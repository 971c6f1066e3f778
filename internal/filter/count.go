package filter

import (
	"regexp"
	"sort"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
)

// CountFilter implements spec §4.1's count filter: retains the first Count
// entities of the configured order, optionally per name-pattern group.
//
// Ordering: by age descending (newest first) when UseAge is set — in which
// case Reverse is ignored per spec edge case (3) — otherwise
// reverse-lexicographic by name, flipped to ascending when Reverse is set.
type CountFilter struct {
	Count   int
	UseAge  bool
	Reverse bool
	Pattern string // optional regex with one capture group; groups entities for per-group counting
	Exclude bool

	AgeEpochSecondsOf func(model.Index) (int64, bool)

	groupRe *regexp.Regexp
}

func NewCountFilter(f CountFilter) (*CountFilter, error) {
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "count filter: invalid pattern", err)
		}
		if re.NumSubexp() < 1 {
			return nil, curatorerr.New(curatorerr.ConfigError, "count filter: pattern must have one capture group")
		}
		f.groupRe = re
	}
	return &f, nil
}

func (f *CountFilter) groupKey(name string) string {
	if f.groupRe == nil {
		return ""
	}
	m := f.groupRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

func (f *CountFilter) order(group []model.Index) []model.Index {
	ordered := append([]model.Index(nil), group...)
	if f.UseAge && f.AgeEpochSecondsOf != nil {
		sort.SliceStable(ordered, func(i, j int) bool {
			ai, _ := f.AgeEpochSecondsOf(ordered[i])
			aj, _ := f.AgeEpochSecondsOf(ordered[j])
			return ai > aj
		})
		return ordered
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if f.Reverse {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].Name > ordered[j].Name
	})
	return ordered
}

func (f *CountFilter) Apply(indices []model.Index) ([]model.Index, error) {
	groups := map[string][]model.Index{}
	var groupOrder []string
	for _, idx := range indices {
		key := f.groupKey(idx.Name)
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], idx)
	}

	var out []model.Index
	for _, key := range groupOrder {
		ordered := f.order(groups[key])
		for i, idx := range ordered {
			retained := i < f.Count
			if retained != f.Exclude {
				out = append(out, idx)
			}
		}
	}
	return out, nil
}
