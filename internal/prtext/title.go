// Package prtext parses and renders the text conventions carried by pull request
// titles and bodies: backport title prefixes, parent back-references and issue
// references on "Fixes:" lines.
package prtext

import (
	"strings"

	"backport.dev/backport/internal/version"
)

const titlePrefixOpen = "[Backport "

// TrackingTitle returns the title of a tracking PR for v
func TrackingTitle(v version.Version, title string) string {
	return titlePrefixOpen + v.String() + "] " + OriginalTitle(title)
}

// OriginalTitle strips every leading "[Backport <version>]" prefix from title.
// A title consisting only of prefixes is returned unchanged.
func OriginalTitle(title string) string {
	rest := title
	for {
		_, after, ok := cutTitlePrefix(rest)
		if !ok {
			break
		}
		rest = strings.TrimLeft(after, " \t")
	}
	if rest = strings.TrimSpace(rest); rest == "" {
		return title
	}
	return rest
}

// VersionFromTitle returns the version of the first "[Backport <version>]" marker in title
func VersionFromTitle(title string) (version.Version, bool) {
	for i := strings.Index(title, titlePrefixOpen); i >= 0; {
		if v, _, ok := cutTitlePrefix(title[i:]); ok {
			return v, true
		}
		next := strings.Index(title[i+1:], titlePrefixOpen)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return version.Version{}, false
}

// HasTrackingTitle reports whether title starts with a "[Backport <version>]" marker
func HasTrackingTitle(title string) bool {
	_, _, ok := cutTitlePrefix(title)
	return ok
}

// IsTrackingPR reports whether a PR was created by the engine, judged by its
// title marker or a back-reference in its body
func IsTrackingPR(title, body string) bool {
	if HasTrackingTitle(title) {
		return true
	}
	_, ok := ParseBackReference(body)
	return ok
}

// cutTitlePrefix parses "[Backport <version>]" at the start of s
func cutTitlePrefix(s string) (version.Version, string, bool) {
	if !strings.HasPrefix(s, titlePrefixOpen) {
		return version.Version{}, s, false
	}
	inner, after, ok := strings.Cut(s[len(titlePrefixOpen):], "]")
	if !ok {
		return version.Version{}, s, false
	}
	v, err := version.Parse(inner)
	if err != nil {
		return version.Version{}, s, false
	}
	return v, after, true
}
