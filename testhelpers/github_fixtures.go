package testhelpers

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"
)

// SamplePRData provides common PR data for testing
type SamplePRData struct {
	Number         int
	Title          string
	Body           string
	Head           string
	Base           string
	Author         string
	HTMLURL        string
	Draft          bool
	State          string
	Merged         bool
	MergeCommitSHA string
	Labels         []string
	Milestone      string
}

// NewSamplePullRequest creates a github.PullRequest from sample data
func NewSamplePullRequest(data SamplePRData) *github.PullRequest {
	pr := &github.PullRequest{
		Number:         github.Int(data.Number),
		Title:          github.String(data.Title),
		Body:           github.String(data.Body),
		Base:           &github.PullRequestBranch{Ref: github.String(data.Base)},
		HTMLURL:        github.String(data.HTMLURL),
		Draft:          github.Bool(data.Draft),
		State:          github.String(data.State),
		Merged:         github.Bool(data.Merged),
		MergeCommitSHA: github.String(data.MergeCommitSHA),
		User:           &github.User{Login: github.String(data.Author)},
	}

	head := &github.PullRequestBranch{Ref: github.String(data.Head), Label: github.String(data.Head)}
	if owner, ref, ok := strings.Cut(data.Head, ":"); ok {
		head.Ref = github.String(ref)
		head.User = &github.User{Login: github.String(owner)}
	}
	pr.Head = head

	for _, label := range data.Labels {
		pr.Labels = append(pr.Labels, &github.Label{Name: github.String(label)})
	}
	if data.Milestone != "" {
		pr.Milestone = &github.Milestone{Title: github.String(data.Milestone)}
	}

	return pr
}

// DefaultPRData returns a default PR data structure for testing
func DefaultPRData() SamplePRData {
	return SamplePRData{
		Number:  123,
		Title:   "Test Pull Request",
		Body:    "This is a test pull request",
		Head:    "feature-branch",
		Base:    "next",
		Author:  "author",
		HTMLURL: "https://github.com/owner/repo/pull/123",
		State:   "open",
	}
}

// MergedPRData returns data for a merged PR carrying the given labels
func MergedPRData(number int, mergeCommitSHA string, labels ...string) SamplePRData {
	data := DefaultPRData()
	data.Number = number
	data.HTMLURL = fmt.Sprintf("https://github.com/owner/repo/pull/%d", number)
	data.State = "closed"
	data.Merged = true
	data.MergeCommitSHA = mergeCommitSHA
	data.Labels = labels
	return data
}

// ClosedPRData returns data for a PR closed without merging
func ClosedPRData(number int) SamplePRData {
	data := DefaultPRData()
	data.Number = number
	data.State = "closed"
	return data
}
