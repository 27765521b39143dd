package timeparser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownTimeZone is returned when a submitted zone name matches no
// canonical IANA zone, even case-insensitively.
type ErrUnknownTimeZone struct {
	Name string
}

func (e ErrUnknownTimeZone) Error() string {
	return fmt.Sprintf("invalid time zone: %s", e.Name)
}

// ErrInvalidTimestampFormat is returned when a timestamp string fails the
// pattern check or does not parse as a real date in the given zone.
type ErrInvalidTimestampFormat struct {
	Value string
}

func (e ErrInvalidTimestampFormat) Error() string {
	return fmt.Sprintf("invalid date sent %s, valid format is YYYY-MM-DD hh:mm:ss, optionally with up to 3 millisecond digits, example 2020-02-19 19:20:55 or 2020-02-19 19:20:55.333", e.Value)
}

// ErrFutureTimestamp is returned when the normalized UTC instant lies
// strictly after the current time.
type ErrFutureTimestamp struct {
	Value string
}

func (e ErrFutureTimestamp) Error() string {
	return fmt.Sprintf("measurement timestamp %s is greater than current date", e.Value)
}

var localTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d{1,3})?$`)

var utcTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

var zoneDirs = []string{
	"/usr/share/zoneinfo",
	"/usr/share/lib/zoneinfo",
	"/usr/lib/locale/TZ",
}

var (
	zoneOnce      sync.Once
	zoneNames     []string
	zoneByLowered map[string]string
)

func loadZoneNames() {
	seen := map[string]struct{}{}
	for _, dir := range zoneDirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			name, relErr := filepath.Rel(dir, path)
			if relErr != nil || name == "." {
				return nil
			}
			// posix/ and right/ duplicate the canonical tree.
			if d.IsDir() {
				if name == "posix" || name == "right" {
					return fs.SkipDir
				}
				return nil
			}
			first := name[0]
			if first < 'A' || first > 'Z' {
				return nil
			}
			if strings.Contains(name, ".") {
				return nil
			}
			seen[name] = struct{}{}
			return nil
		})
		if len(seen) > 0 {
			break
		}
	}

	zoneNames = make([]string, 0, len(seen))
	zoneByLowered = make(map[string]string, len(seen))
	for name := range seen {
		zoneNames = append(zoneNames, name)
		zoneByLowered[strings.ToLower(name)] = name
	}
	sort.Strings(zoneNames)
}

// ZoneNames returns the canonical IANA zone name list, filtered by a
// case-insensitive keyword when one is given.
func ZoneNames(keyword string) []string {
	zoneOnce.Do(loadZoneNames)
	if keyword == "" {
		out := make([]string, len(zoneNames))
		copy(out, zoneNames)
		return out
	}
	keyword = strings.ToLower(keyword)
	var out []string
	for _, name := range zoneNames {
		if strings.Contains(strings.ToLower(name), keyword) {
			out = append(out, name)
		}
	}
	return out
}

// ResolveZone matches name case-insensitively against the canonical zone
// list and loads its location.
func ResolveZone(name string) (string, *time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", nil, ErrUnknownTimeZone{Name: name}
	}

	zoneOnce.Do(loadZoneNames)
	canonical, ok := zoneByLowered[strings.ToLower(trimmed)]
	if !ok {
		// The host zoneinfo tree may be absent (the binaries embed the
		// zone data via time/tzdata, which LoadLocation can read but the
		// walk cannot enumerate). Try the name as sent, then the
		// canonical-case spelling of IANA names.
		if loc, err := time.LoadLocation(trimmed); err == nil {
			return trimmed, loc, nil
		}
		guess := canonicalZoneGuess(trimmed)
		if guess != trimmed {
			if loc, err := time.LoadLocation(guess); err == nil {
				return guess, loc, nil
			}
		}
		return "", nil, ErrUnknownTimeZone{Name: trimmed}
	}

	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return "", nil, ErrUnknownTimeZone{Name: trimmed}
	}
	return canonical, loc, nil
}

// canonicalZoneGuess restores the usual IANA spelling of a zone name:
// short zoneless names are upper-case (UTC, GMT), and within Area/Location
// names each segment and each word after an underscore is capitalized
// (america/new_york becomes America/New_York).
func canonicalZoneGuess(name string) string {
	if !strings.Contains(name, "/") && len(name) <= 3 {
		return strings.ToUpper(name)
	}
	b := []byte(strings.ToLower(name))
	capitalize := true
	for i, c := range b {
		if capitalize && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		capitalize = c == '/' || c == '_'
	}
	return string(b)
}

// NormalizeLocalTimestamp interprets a "YYYY-MM-DD hh:mm:ss[.fff]" string in
// loc, converts it to UTC and re-serializes it preserving the millisecond
// precision that was sent (".000" when absent). The instant must not lie
// after now.
func NormalizeLocalTimestamp(value string, loc *time.Location, now time.Time) (time.Time, string, error) {
	if !localTimestampPattern.MatchString(value) {
		return time.Time{}, "", ErrInvalidTimestampFormat{Value: value}
	}

	base := value
	frac := ".000"
	millis := 0
	if i := strings.IndexByte(value, '.'); i >= 0 {
		base = value[:i]
		frac = value[i:]
		padded := frac[1:]
		for len(padded) < 3 {
			padded += "0"
		}
		for _, d := range padded {
			millis = millis*10 + int(d-'0')
		}
	}

	t, err := time.ParseInLocation("2006-01-02 15:04:05", base, loc)
	if err != nil {
		return time.Time{}, "", ErrInvalidTimestampFormat{Value: value}
	}
	t = t.Add(time.Duration(millis) * time.Millisecond)

	utc := t.UTC()
	if utc.After(now) {
		return time.Time{}, "", ErrFutureTimestamp{Value: value}
	}

	serialized := utc.Format("2006-01-02T15:04:05") + frac + "Z"
	return utc, serialized, nil
}

// ParseUTCTimestamp validates the strict UTC wire format used when no zone
// accompanies a submission: YYYY-MM-DDThh:mm:ss.fffZ.
func ParseUTCTimestamp(value string) (time.Time, error) {
	if !utcTimestampPattern.MatchString(value) {
		return time.Time{}, ErrInvalidTimestampFormat{Value: value}
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", value)
	if err != nil {
		return time.Time{}, ErrInvalidTimestampFormat{Value: value}
	}
	return t, nil
}
