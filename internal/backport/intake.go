package backport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/labels"
)

// IntakeRequest describes the pull requests to start backports for. Exactly one of
// CommitRange and PRNumber is set.
type IntakeRequest struct {
	// BaseRef is the branch the pull requests merged into, as a ref or short name
	BaseRef string
	// CommitRange is "start..end" of a push to BaseRef
	CommitRange string
	PRNumber    int
	// HeadCommit starts the promoted history searched for a single PR's commits
	HeadCommit string
	// TriggerLabel, when set, must be among the PR's labels
	TriggerLabel string
}

// Intake starts backports for the pull requests of req that carry backport labels
// and have been promoted to their stable branch. Each pull request is handled
// independently; failures are joined.
func (o *Orchestrator) Intake(ctx context.Context, req IntakeRequest) error {
	base := strings.TrimPrefix(req.BaseRef, "refs/heads/")
	promoted, stable := intakeBranches(base)

	var prs []*github.PullRequest
	var start string
	switch {
	case req.CommitRange != "":
		var end string
		var ok bool
		start, end, ok = strings.Cut(req.CommitRange, "..")
		if !ok || start == "" || end == "" {
			return fmt.Errorf("invalid commit range %q", req.CommitRange)
		}
		commits, err := o.client.CompareCommits(ctx, start, end)
		if err != nil {
			return fmt.Errorf("failed to compare %s: %w", req.CommitRange, err)
		}
		prs = o.associatedPRs(ctx, commits)
	case req.PRNumber > 0:
		pr, err := o.client.GetPullRequest(ctx, req.PRNumber)
		if err != nil {
			return fmt.Errorf("failed to get PR #%d: %w", req.PRNumber, err)
		}
		prs = []*github.PullRequest{pr}
		start = req.HeadCommit
	default:
		return errors.New("a commit range or a pull request number is required")
	}

	assignMainline := req.CommitRange != "" && containsFold(o.opts.MilestoneRepos, o.repo) &&
		(base == "next" || base == "master")

	var errs []error
	for _, pr := range prs {
		if assignMainline {
			o.setMainlineMilestone(ctx, pr)
		}
		if err := o.intakeOne(ctx, pr, req.TriggerLabel, promoted, stable, start); err != nil {
			o.splog.Error("Failed to backport PR #%d: %v", pr.Number, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// intakeBranches returns the promoted label and stable branch for a base branch
func intakeBranches(base string) (promoted, stable string) {
	switch base {
	case "master", "main", "next":
		promoted = labels.Promoted("master")
	default:
		promoted = labels.Promoted(base)
	}
	if base == "next" {
		stable = "master"
	} else {
		stable = strings.Replace(base, "next", "branch", 1)
	}
	return promoted, stable
}

func (o *Orchestrator) intakeOne(ctx context.Context, pr *github.PullRequest, trigger, promoted, stable, start string) error {
	if !pr.HasLabel(promoted) {
		o.splog.Info("PR #%d has not been promoted yet (no %s label)", pr.Number, promoted)
		return nil
	}
	versions, errs := labels.Requested(pr.Labels)
	for _, err := range errs {
		o.splog.Warn("PR #%d: %v", pr.Number, err)
	}
	if len(versions) == 0 {
		o.splog.Info("PR #%d has no backport labels", pr.Number)
		return nil
	}
	if trigger != "" && !pr.HasLabel(trigger) {
		o.splog.Info("PR #%d does not carry %s", pr.Number, trigger)
		return nil
	}

	existing, err := o.findTrackingPR(ctx, Branch(pr.Number, versions[0]))
	if err != nil {
		o.splog.Warn("Failed to look up tracking PR of PR #%d: %v", pr.Number, err)
	}
	if existing != nil {
		o.splog.Info("PR #%d already has tracking PR #%d for %s, chain in progress", pr.Number, existing.Number, versions[0])
		return nil
	}

	commits, err := o.commitsOf(ctx, pr, stable, start)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		o.splog.Warn("No promoted commits found for PR #%d", pr.Number)
		return nil
	}

	_, err = o.Backport(ctx, Request{PR: pr, Versions: versions, Commits: commits})
	return err
}

// commitsOf returns the commits to backport for pr. A merge commit stands for the
// whole PR; otherwise the PR's commits are matched by subject against what was
// promoted to stable. A PR closed without merging uses the commits its close events name.
func (o *Orchestrator) commitsOf(ctx context.Context, pr *github.PullRequest, stable, start string) ([]string, error) {
	if !pr.Merged {
		if pr.State != "closed" {
			return nil, nil
		}
		return o.client.ListClosedEventCommits(ctx, pr.Number)
	}

	if pr.MergeCommitSHA != "" {
		merge, err := o.client.GetCommit(ctx, pr.MergeCommitSHA)
		if err != nil {
			return nil, fmt.Errorf("failed to read merge commit of PR #%d: %w", pr.Number, err)
		}
		if len(merge.Parents) > 1 {
			return []string{merge.SHA}, nil
		}
	}

	var promoted []*github.Commit
	var err error
	if start != "" {
		promoted, err = o.client.CompareCommits(ctx, start, stable)
	} else {
		promoted, err = o.client.ListBranchCommits(ctx, stable, o.opts.ScanDepth)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read promoted commits on %s: %w", stable, err)
	}

	prCommits, err := o.client.ListPullRequestCommits(ctx, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits of PR #%d: %w", pr.Number, err)
	}

	seen := make(map[string]bool)
	var shas []string
	for _, c := range prCommits {
		subject := c.Subject()
		for _, p := range promoted {
			if p.Subject() == subject && !seen[p.SHA] {
				seen[p.SHA] = true
				shas = append(shas, p.SHA)
			}
		}
	}
	return shas, nil
}

func (o *Orchestrator) setMainlineMilestone(ctx context.Context, pr *github.PullRequest) {
	if o.milestones == nil || o.assigner == nil {
		return
	}
	title, ok := o.milestones.ResolveMainline(ctx)
	if !ok {
		return
	}
	if err := o.assigner.Assign(ctx, pr, title); err != nil {
		o.splog.Warn("Failed to set milestone %s on PR #%d: %v", title, pr.Number, err)
	}
}
