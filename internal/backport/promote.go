package backport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/labels"
	"backport.dev/backport/internal/prtext"
	"backport.dev/backport/internal/version"
)

// Promote handles commits in commitRange ("start..end") landing on branch. Every
// tracking PR merged in the range is labeled promoted, its version is marked done on
// the PR it backports, and its chain continues.
func (o *Orchestrator) Promote(ctx context.Context, commitRange, branch string) error {
	if version.IsGatingBranch(branch) {
		o.splog.Info("Skipping push to gating branch %s", branch)
		return nil
	}
	start, end, ok := strings.Cut(commitRange, "..")
	if !ok || start == "" || end == "" {
		return fmt.Errorf("invalid commit range %q", commitRange)
	}

	v, verr := version.FromBranch(branch)
	if verr != nil {
		o.splog.Warn("Branch %s carries no version: %v", branch, verr)
	}

	commits, err := o.client.CompareCommits(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to compare %s: %w", commitRange, err)
	}
	promoted := labels.Promoted(branch)

	var errs []error
	for _, pr := range o.associatedPRs(ctx, commits) {
		if !prtext.IsTrackingPR(pr.Title, pr.Body) {
			continue
		}
		o.splog.Info("Backport PR #%d promoted to %s", pr.Number, branch)
		if !pr.HasLabel(promoted) {
			if err := o.client.AddLabels(ctx, pr.Number, promoted); err != nil {
				o.splog.Warn("Failed to add %s to PR #%d: %v", promoted, pr.Number, err)
			} else {
				pr.Labels = append(pr.Labels, promoted)
			}
		}
		if verr == nil {
			if origin, err := o.parentOf(ctx, pr); err != nil {
				o.splog.Warn("%v", err)
			} else if origin != nil {
				o.markDone(ctx, origin, v)
			}
		}
		if _, err := o.Chain(ctx, pr); err != nil {
			o.splog.Error("Failed to continue chain of PR #%d: %v", pr.Number, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// associatedPRs lists the pull requests of commits, each once, in commit order
func (o *Orchestrator) associatedPRs(ctx context.Context, commits []*github.Commit) []*github.PullRequest {
	seen := make(map[int]bool)
	var prs []*github.PullRequest
	for _, commit := range commits {
		found, err := o.client.ListPullRequestsWithCommit(ctx, commit.SHA)
		if err != nil {
			o.splog.Warn("Failed to list PRs of %s: %v", shortSHA(commit.SHA), err)
			continue
		}
		for _, pr := range found {
			if seen[pr.Number] {
				continue
			}
			seen[pr.Number] = true
			prs = append(prs, pr)
		}
	}
	return prs
}
