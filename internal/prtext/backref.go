package prtext

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	backRefMarker       = "backport of pr"
	legacyBackRefMarker = "parent pr:"
)

// BackReference points from a tracking PR to the PR it was created from
type BackReference struct {
	// Repo is "owner/name", empty when the reference is local
	Repo   string
	Number int
	// Legacy is set for the older "Parent PR: #N" form
	Legacy bool
}

// FormatBackReference renders the body line naming the PR a tracking PR descends from
func FormatBackReference(repo string, number int) string {
	return fmt.Sprintf("This PR is a backport of PR %s#%d", repo, number)
}

// ParseBackReference finds the parent reference in a PR body.
// The current form "backport of PR <repo>#<n>" wins over the legacy "Parent PR: #<n>".
func ParseBackReference(body string) (BackReference, bool) {
	if i := indexFold(body, backRefMarker); i >= 0 {
		rest := body[i+len(backRefMarker):]
		if trimmed := strings.TrimLeft(rest, " \t\r\n"); len(trimmed) < len(rest) {
			token := firstField(trimmed)
			if repo, num, ok := strings.Cut(token, "#"); ok {
				if n, ok := leadingNumber(num); ok {
					return BackReference{Repo: repo, Number: n}, true
				}
			}
		}
	}

	if i := indexFold(body, legacyBackRefMarker); i >= 0 {
		rest := strings.TrimLeft(body[i+len(legacyBackRefMarker):], " \t")
		if strings.HasPrefix(rest, "#") {
			if n, ok := leadingNumber(rest[1:]); ok {
				return BackReference{Number: n, Legacy: true}, true
			}
		}
	}

	return BackReference{}, false
}

// indexFold returns the byte offset in s of the first case-insensitive match of
// the ASCII marker, or -1. Offsets index s itself.
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}

func firstField(s string) string {
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// leadingNumber parses the decimal digits at the start of s
func leadingNumber(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
