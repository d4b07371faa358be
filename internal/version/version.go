// Package version parses, orders and names release versions.
//
// Two kinds of versions exist:
//   - standard versions "major.minor" (e.g. 2025.4)
//   - manager versions "manager-major.minor" (e.g. manager-3.4)
//
// Standard versions always sort before manager versions.
package version

import (
	"sort"
	"strconv"
	"strings"

	bperrors "backport.dev/backport/internal/errors"
)

// ManagerPrefix marks a manager version
const ManagerPrefix = "manager-"

// Kind distinguishes standard and manager versions
type Kind int

const (
	// KindManager sorts below every standard version
	KindManager Kind = iota
	// KindStandard is a regular release version
	KindStandard
)

// Version is a parsed release version
type Version struct {
	Kind  Kind
	Major int
	Minor int
}

// Parse parses "X.Y" or "manager-X.Y"
func Parse(s string) (Version, error) {
	kind := KindStandard
	rest := s
	if strings.HasPrefix(s, ManagerPrefix) {
		kind = KindManager
		rest = strings.TrimPrefix(s, ManagerPrefix)
	}

	majorStr, minorStr, ok := strings.Cut(rest, ".")
	if !ok {
		return Version{}, bperrors.NewInvalidVersionError(s)
	}
	major, ok := parseNumber(majorStr)
	if !ok {
		return Version{}, bperrors.NewInvalidVersionError(s)
	}
	minor, ok := parseNumber(minorStr)
	if !ok {
		return Version{}, bperrors.NewInvalidVersionError(s)
	}

	return Version{Kind: kind, Major: major, Minor: minor}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// parseNumber accepts a non-empty run of ASCII digits in canonical form, so that
// String reproduces the input. "0" is allowed, "04" is not.
func parseNumber(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the canonical form of the version
func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
	if v.Kind == KindManager {
		return ManagerPrefix + s
	}
	return s
}

// IsManager reports whether v is a manager version
func (v Version) IsManager() bool {
	return v.Kind == KindManager
}

// Compare returns -1, 0 or 1. Kind is compared first, then major, then minor.
func (v Version) Compare(other Version) int {
	switch {
	case v.Kind != other.Kind:
		return cmpInt(int(v.Kind), int(other.Kind))
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	default:
		return cmpInt(v.Minor, other.Minor)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortDescending returns a copy of versions ordered highest first.
// The sort is stable for equal keys.
func SortDescending(versions []Version) []Version {
	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) > 0
	})
	return sorted
}

// ParseAll parses every string, returning the valid versions in input order and
// one error per string that failed to parse.
func ParseAll(values []string) ([]Version, []error) {
	var versions []Version
	var errs []error
	for _, s := range values {
		v, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		versions = append(versions, v)
	}
	return versions, errs
}

// Strings converts versions to their canonical strings
func Strings(versions []Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}
