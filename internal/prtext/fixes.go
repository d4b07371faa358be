package prtext

import (
	"strings"
)

// fixesRef is one "Fixes:" occurrence in a body
type fixesRef struct {
	// valueStart is the offset just past "Fixes:" and following blanks
	valueStart int
	// valueEnd is the end of a parsed issue reference, or valueStart
	valueEnd int
	// key is the issue key when the value is an issue-tracker reference
	key string
}

// IssueKeys returns the issue keys named on "Fixes:" lines, in order of appearance.
// Both bare keys ("Fixes: PROJ-1") and browse URLs ("Fixes: https://host/browse/PROJ-1") count.
func IssueKeys(body string) []string {
	var keys []string
	for _, ref := range scanFixes(body) {
		if ref.key != "" {
			keys = append(keys, ref.key)
		}
	}
	return keys
}

// HasFixesReference reports whether body links an issue on a "Fixes:" line, either
// an issue-tracker key or a GitHub issue or pull request
func HasFixesReference(body string) bool {
	for _, ref := range scanFixes(body) {
		if ref.key != "" {
			return true
		}
		if githubRefLen(body[ref.valueStart:]) > 0 {
			return true
		}
	}
	return false
}

// RemapIssueKeys rewrites each issue reference on a "Fixes:" line to the key mapping
// assigns it. References are normalized to bare keys; unmapped keys are kept.
func RemapIssueKeys(body string, mapping map[string]string) string {
	if body == "" || len(mapping) == 0 {
		return body
	}

	var sb strings.Builder
	last := 0
	for _, ref := range scanFixes(body) {
		if ref.key == "" {
			continue
		}
		sb.WriteString(body[last:ref.valueStart])
		if mapped, ok := mapping[ref.key]; ok {
			sb.WriteString(mapped)
		} else {
			sb.WriteString(ref.key)
		}
		last = ref.valueEnd
	}
	sb.WriteString(body[last:])
	return sb.String()
}

func scanFixes(body string) []fixesRef {
	var refs []fixesRef
	for i := 0; i+len("fixes:") <= len(body); i++ {
		if body[i] != 'F' && body[i] != 'f' {
			continue
		}
		if body[i+1:i+6] != "ixes:" {
			continue
		}
		if i > 0 && isLetter(body[i-1]) {
			continue
		}
		start := i + len("fixes:")
		for start < len(body) && isSpace(body[start]) {
			start++
		}
		ref := fixesRef{valueStart: start, valueEnd: start}
		if key, n := issueKeyRef(body[start:]); n > 0 {
			ref.key = key
			ref.valueEnd = start + n
		}
		refs = append(refs, ref)
		i = ref.valueEnd - 1
	}
	return refs
}

// issueKeyRef parses an optional browse URL followed by an issue key and
// returns the key and the number of bytes consumed
func issueKeyRef(s string) (string, int) {
	offset := 0
	if rest, ok := cutScheme(s); ok {
		host := rest
		if i := strings.IndexByte(rest, '/'); i > 0 {
			host = rest[:i]
		} else {
			return "", 0
		}
		if strings.ContainsAny(host, " \t\r\n") {
			return "", 0
		}
		rest = rest[len(host):]
		if !strings.HasPrefix(rest, "/browse/") {
			return "", 0
		}
		offset = len(s) - len(rest) + len("/browse/")
	}

	n := issueKeyLen(s[offset:])
	if n == 0 {
		return "", 0
	}
	return s[offset : offset+n], offset + n
}

// issueKeyLen matches PROJECT-123 at the start of s
func issueKeyLen(s string) int {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != '-' {
		return 0
	}
	i++
	digits := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == digits {
		return 0
	}
	return i
}

// githubRefLen matches an issue or pull request URL, "owner/repo#N" or "#N"
func githubRefLen(s string) int {
	if rest, ok := cutScheme(s); ok {
		if !strings.HasPrefix(rest, "github.com/") {
			return 0
		}
		parts := strings.SplitN(rest[len("github.com/"):], "/", 4)
		if len(parts) < 4 || !isPathSegment(parts[0]) || !isPathSegment(parts[1]) {
			return 0
		}
		if parts[2] != "issues" && parts[2] != "pull" {
			return 0
		}
		n := numberWithBoundary(parts[3])
		if n == 0 {
			return 0
		}
		return len(s) - len(parts[3]) + n
	}

	if strings.HasPrefix(s, "#") {
		if n := numberWithBoundary(s[1:]); n > 0 {
			return 1 + n
		}
		return 0
	}

	token := firstField(s)
	hash := strings.IndexByte(token, '#')
	if hash <= 0 {
		return 0
	}
	slash := strings.IndexByte(token[:hash], '/')
	if slash <= 0 || slash == hash-1 {
		return 0
	}
	if n := numberWithBoundary(s[hash+1:]); n > 0 {
		return hash + 1 + n
	}
	return 0
}

func cutScheme(s string) (string, bool) {
	if strings.HasPrefix(s, "https://") {
		return s[len("https://"):], true
	}
	if strings.HasPrefix(s, "http://") {
		return s[len("http://"):], true
	}
	return s, false
}

// numberWithBoundary matches digits not followed by a word character
func numberWithBoundary(s string) int {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == 0 {
		return 0
	}
	if i < len(s) && (isLetter(s[i]) || s[i] == '_') {
		return 0
	}
	return i
}

func isPathSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

const mainIssueMarker = "main jira issue is"

// MainIssueKey returns the key following "main Jira issue is" in body. Older tracking
// PRs name their issue this way instead of on a "Fixes:" line.
func MainIssueKey(body string) (string, bool) {
	for i := 0; i+len(mainIssueMarker) <= len(body); i++ {
		if !strings.EqualFold(body[i:i+len(mainIssueMarker)], mainIssueMarker) {
			continue
		}
		after := body[i+len(mainIssueMarker):]
		rest := strings.TrimLeft(after, " \t\r\n")
		if len(rest) == len(after) {
			continue
		}
		if n := issueKeyLen(rest); n > 0 {
			return rest[:n], true
		}
	}
	return "", false
}
