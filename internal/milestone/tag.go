package milestone

import (
	"strconv"
	"strings"
)

const (
	rcMarker        = "-rc"
	candidateMarker = "-candidate-"
)

// Tag is a parsed release tag: <prefix>X.Y.Z[-rcN][-candidate-<build>]
type Tag struct {
	Major     int
	Minor     int
	Patch     int
	RC        int // 0 for releases
	Candidate string
}

// Prerelease reports whether the tag names a release candidate
func (t Tag) Prerelease() bool {
	return t.RC > 0
}

// Series returns "X.Y"
func (t Tag) Series() string {
	return strconv.Itoa(t.Major) + "." + strconv.Itoa(t.Minor)
}

// ParseTag parses a release tag carrying prefix. ok is false for any other tag.
func ParseTag(name, prefix string) (Tag, bool) {
	rest, found := strings.CutPrefix(name, prefix)
	if !found {
		return Tag{}, false
	}

	var tag Tag
	if idx := strings.Index(rest, candidateMarker); idx >= 0 {
		tag.Candidate = rest[idx+len(candidateMarker):]
		if !validBuild(tag.Candidate) {
			return Tag{}, false
		}
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, rcMarker); idx >= 0 {
		rc, ok := number(rest[idx+len(rcMarker):])
		if !ok || rc == 0 {
			return Tag{}, false
		}
		tag.RC = rc
		rest = rest[:idx]
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Tag{}, false
	}
	var ok bool
	if tag.Major, ok = number(parts[0]); !ok {
		return Tag{}, false
	}
	if tag.Minor, ok = number(parts[1]); !ok {
		return Tag{}, false
	}
	if tag.Patch, ok = number(parts[2]); !ok {
		return Tag{}, false
	}
	return tag, true
}

func number(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// validBuild accepts word characters, dots and dashes
func validBuild(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// DevVersion extracts X.Y.Z from a VERSION=X.Y.Z-dev line
func DevVersion(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		value, found := strings.CutPrefix(strings.TrimRight(line, " \t\r"), "VERSION=")
		if !found {
			continue
		}
		value, found = strings.CutSuffix(value, "-dev")
		if !found {
			continue
		}
		parts := strings.Split(value, ".")
		if len(parts) != 3 {
			continue
		}
		valid := true
		for _, p := range parts {
			if _, ok := number(p); !ok {
				valid = false
			}
		}
		if valid {
			return value, true
		}
	}
	return "", false
}
