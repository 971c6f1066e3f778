package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// directiveWidth is the fixed digit width curator uses for each supported
// strftime directive when building an anchored regex. This is the
// "directive-to-regex table" called for by the design notes: a closed set,
// not a general strftime implementation.
var directiveWidth = map[byte]int{
	'Y': 4, // four-digit year
	'G': 4, // ISO week-numbering year
	'y': 2, // two-digit year
	'm': 2, // month
	'W': 2, // week number (Monday-first)
	'V': 2, // ISO week number
	'd': 2, // day of month
	'H': 2, // hour, 24h
	'M': 2, // minute
	'S': 2, // second
	'j': 3, // day of year
}

// strftimeToRegex converts a strftime-subset pattern into a capturing
// regular expression plus the ordered list of directives it captured.
// Non-directive characters are escaped literally via regexp.QuoteMeta so
// punctuation like "." in "%Y.%m.%d" matches literally.
//
// The result is deliberately NOT anchored with ^/$: Curator's timestring
// matching is a substring search against the index name, which is exactly
// why a short timestring like "%Y.%m" also matches inside a longer one
// like "%Y.%m.%d" (spec §4.1 edge case (1)/§9) — the documented workaround
// is an additional exclude filter for the longer pattern, not anchoring.
// PatternKind prefix/suffix anchor explicitly in pattern.go since those
// really do mean "starts with"/"ends with".
func strftimeToRegex(ts string) (pattern string, directives []byte, err error) {
	var b strings.Builder
	for i := 0; i < len(ts); i++ {
		c := ts[i]
		if c == '%' {
			if i+1 >= len(ts) {
				return "", nil, fmt.Errorf("strftime pattern %q ends in bare %%", ts)
			}
			directive := ts[i+1]
			width, ok := directiveWidth[directive]
			if !ok {
				return "", nil, fmt.Errorf("strftime pattern %q: unsupported directive %%%c", ts, directive)
			}
			fmt.Fprintf(&b, "(\\d{%d})", width)
			directives = append(directives, directive)
			i++
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(c)))
	}
	return b.String(), directives, nil
}

// timestringRegex is a convenience over strftimeToRegex for pattern-filter
// callers that only need the compiled matcher, not captures.
func timestringRegex(ts string) (*regexp.Regexp, error) {
	pat, _, err := strftimeToRegex(ts)
	if err != nil {
		return nil, err
	}
	return regexp.Compile(pat)
}

// ParseNameTimestamp extracts a time.Time from name using the strftime
// subset timestring. It supports the common date/time directives
// (%Y %G %y %m %d %H %M %S %j) fully; %W/%V (week numbers) are captured but
// do not otherwise influence the resulting date, since reconstructing a
// calendar date purely from an ISO week number needs a day-of-week that
// timestring does not encode — callers needing week-accurate ages should
// use the `period` filter's calendar-aware relative mode instead.
func ParseNameTimestamp(name, timestring string) (time.Time, bool) {
	pattern, directives, err := strftimeToRegex(timestring)
	if err != nil {
		return time.Time{}, false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return time.Time{}, false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}

	year, month, day, hour, minute, second, dayOfYear := 1970, 1, 1, 0, 0, 0, -1
	haveYMD := false
	for i, d := range directives {
		v, convErr := strconv.Atoi(m[i+1])
		if convErr != nil {
			return time.Time{}, false
		}
		switch d {
		case 'Y', 'G':
			year = v
		case 'y':
			year = 2000 + v
		case 'm':
			month = v
			haveYMD = true
		case 'd':
			day = v
			haveYMD = true
		case 'H':
			hour = v
		case 'M':
			minute = v
		case 'S':
			second = v
		case 'j':
			dayOfYear = v
		}
	}

	if dayOfYear > 0 && !haveYMD {
		base := time.Date(year, time.January, 1, hour, minute, second, 0, time.UTC)
		return base.AddDate(0, 0, dayOfYear-1), true
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// isoWeek formats an ISO-8601 week number per %V/%G (week, week-numbering year).
func isoWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// weekMonday formats %W, the Monday-first week number (00-53), matching the
// strftime convention %W uses (distinct from the ISO week %V returns).
func weekMonday(t time.Time) int {
	yday := t.YearDay()
	wday := (int(t.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return (yday - wday - 1 + 7) / 7
}

// FormatTimestring renders ts, a strftime subset pattern over the same
// directive set strftimeToRegex parses, against t. It is the inverse of
// ParseNameTimestamp: pattern + time.Time -> formatted string, used by
// actions whose name/target fields carry a date pattern to expand (e.g.
// create_index's name, and snapshot's name with its default
// "curator-%Y%m%d%H%M%S").
func FormatTimestring(ts string, t time.Time) (string, error) {
	var b strings.Builder
	for i := 0; i < len(ts); i++ {
		c := ts[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(ts) {
			return "", fmt.Errorf("strftime pattern %q ends in bare %%", ts)
		}
		directive := ts[i+1]
		if _, ok := directiveWidth[directive]; !ok {
			return "", fmt.Errorf("strftime pattern %q: unsupported directive %%%c", ts, directive)
		}
		switch directive {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'G':
			isoYear, _ := isoWeek(t)
			fmt.Fprintf(&b, "%04d", isoYear)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case 'W':
			fmt.Fprintf(&b, "%02d", weekMonday(t))
		case 'V':
			_, isoWk := isoWeek(t)
			fmt.Fprintf(&b, "%02d", isoWk)
		}
		i++
	}
	return b.String(), nil
}
