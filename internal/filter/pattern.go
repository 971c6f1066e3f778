package filter

import (
	"fmt"
	"regexp"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
)

// PatternKind selects which sub-mode of the pattern filter is active.
type PatternKind string

const (
	PatternPrefix     PatternKind = "prefix"
	PatternSuffix     PatternKind = "suffix"
	PatternTimestring PatternKind = "timestring"
	PatternRegex      PatternKind = "regex"
)

// PatternFilter matches index names against prefix/suffix/timestring/regex
// value. Default exclude=false.
type PatternFilter struct {
	Kind    PatternKind
	Value   string
	Exclude bool

	re *regexp.Regexp
}

// NewPatternFilter compiles the filter's matcher once up front so a
// malformed timestring/regex is reported at Validate time, not buried in
// the middle of a run.
func NewPatternFilter(kind PatternKind, value string, exclude bool) (*PatternFilter, error) {
	var pattern string
	switch kind {
	case PatternPrefix:
		pattern = "^" + regexp.QuoteMeta(value) + ".*$"
	case PatternSuffix:
		pattern = "^.*" + regexp.QuoteMeta(value) + "$"
	case PatternTimestring:
		p, _, err := strftimeToRegex(value)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "invalid timestring pattern", err)
		}
		pattern = p
	case PatternRegex:
		pattern = value
	default:
		return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("unknown pattern filter kind %q", kind))
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "invalid pattern regex", err)
	}
	return &PatternFilter{Kind: kind, Value: value, Exclude: exclude, re: re}, nil
}

func (f *PatternFilter) Apply(indices []model.Index) ([]model.Index, error) {
	return keepIndices(indices, func(idx model.Index) bool {
		matched := f.re.MatchString(idx.Name)
		return matched != f.Exclude
	}), nil
}
