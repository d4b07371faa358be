package prtext

import (
	"strings"
)

// BodyOptions describes the body of a tracking PR
type BodyOptions struct {
	// OriginalBody is the description of the root original PR
	OriginalBody string
	// IssueMapping maps parent issue keys to the sub-task keys for this version
	IssueMapping map[string]string
	// Commits are the source commits cherry-picked onto the tracking branch
	Commits []string
	// RootRepo and RootNumber identify the root original PR
	RootRepo   string
	RootNumber int
}

// TrackingBody renders a tracking PR description: the original description with issue
// references remapped, one provenance line per cherry-picked commit, then the back-reference
func TrackingBody(opts BodyOptions) string {
	var sb strings.Builder

	if opts.OriginalBody != "" {
		body := RemapIssueKeys(opts.OriginalBody, opts.IssueMapping)
		sb.WriteString(body)
		switch {
		case strings.HasSuffix(body, "\n\n"):
		case strings.HasSuffix(body, "\n"):
			sb.WriteString("\n")
		default:
			sb.WriteString("\n\n")
		}
	}

	for _, commit := range opts.Commits {
		sb.WriteString("- (cherry picked from commit ")
		sb.WriteString(commit)
		sb.WriteString(")\n")
	}

	sb.WriteString("\n")
	sb.WriteString(FormatBackReference(opts.RootRepo, opts.RootNumber))
	return sb.String()
}
