package backport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"backport.dev/backport/internal/cherrypick"
	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/labels"
	"backport.dev/backport/internal/prtext"
	"backport.dev/backport/internal/subissue"
	"backport.dev/backport/internal/version"
)

// Status is how a hop ended
type Status int

const (
	// StatusCreated means a new tracking PR was opened
	StatusCreated Status = iota
	// StatusExisting means a tracking PR for the version was already open
	StatusExisting
	// StatusAlreadyPresent means the change is already on the target branch
	StatusAlreadyPresent
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusExisting:
		return "existing"
	default:
		return "already present"
	}
}

// HopResult reports the outcome of backporting to one version
type HopResult struct {
	Version version.Version
	Status  Status
	// PR is nil when the change was already present
	PR      *github.PullRequest
	Outcome cherrypick.Outcome
}

// hopBase carries what one hop needs
type hopBase struct {
	// source is the pull request being backported
	source *github.PullRequest
	// origin carries the label state of the versions
	origin *github.PullRequest
	// root is where the chain started; it names branches and gets assigned
	root *github.PullRequest

	title       string
	body        string
	commits     []string
	keys        []string
	accountID   string
	warnMissing bool
	// priority is copied from source
	priority string

	version        version.Version
	remaining      []version.Version
	mapping        subissue.Mapping
	subIssueFailed bool
}

// Branch returns the tracking branch for backporting PR number to v
func Branch(number int, v version.Version) string {
	return fmt.Sprintf("backport/%d/to-%s", number, v)
}

func missingFixesComment(author string) string {
	return fmt.Sprintf("@%s This backport PR can't be merged without a valid Fixes reference", author)
}

func conflictComment(author string) string {
	return fmt.Sprintf("@%s - This PR has conflicts, therefore it was moved to `draft` \n"+
		"Please resolve them and mark this PR as ready for review", author)
}

func (o *Orchestrator) hop(ctx context.Context, h hopBase) (*HopResult, error) {
	if len(h.commits) == 0 {
		return nil, fmt.Errorf("no commits to backport from PR #%d", h.source.Number)
	}
	target := o.registry.TargetBranch(o.repo, h.version)
	branch := Branch(h.root.Number, h.version)

	if sha, ok := o.alreadyOnBranch(ctx, h.commits, target); ok {
		o.splog.Info("Commit %s is already on %s, skipping backport to %s", shortSHA(sha), target, h.version)
		o.markDone(ctx, h.origin, h.version)
		return &HopResult{Version: h.version, Status: StatusAlreadyPresent}, nil
	}

	existing, err := o.findTrackingPR(ctx, branch)
	if err != nil {
		o.splog.Warn("Failed to look up tracking PR for %s: %v", branch, err)
	}
	if existing != nil {
		o.splog.Info("Tracking PR #%d already exists for %s", existing.Number, h.version)
		o.refresh(ctx, existing, h)
		return &HopResult{Version: h.version, Status: StatusExisting, PR: existing}, nil
	}

	result, err := o.picker.Run(ctx, cherrypick.Request{
		SourceURL:  o.opts.SourceURL,
		BaseBranch: target,
		Commits:    h.commits,
		Branch:     branch,
		PushURL:    o.opts.PushURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to backport PR #%d to %s: %w", h.source.Number, h.version, err)
	}
	if len(result.Applied) == 0 {
		o.splog.Info("Every commit of PR #%d is already on %s", h.source.Number, target)
		o.markDone(ctx, h.origin, h.version)
		return &HopResult{Version: h.version, Status: StatusAlreadyPresent}, nil
	}

	pr, err := o.client.CreatePullRequest(ctx, github.CreatePROptions{
		Title: prtext.TrackingTitle(h.version, h.title),
		Body:  o.trackingBody(h),
		Head:  o.opts.BotLogin + ":" + branch,
		Base:  target,
		Draft: result.Outcome == cherrypick.Conflicted,
	})
	if err != nil {
		if !isDuplicatePR(err) {
			return nil, fmt.Errorf("failed to create tracking PR for %s: %w", h.version, err)
		}
		prs, lerr := o.client.ListPullRequestsByHead(ctx, o.opts.BotLogin+":"+branch, "open")
		if lerr != nil || len(prs) == 0 {
			return nil, fmt.Errorf("failed to create tracking PR for %s: %w", h.version, err)
		}
		existing := prs[0]
		o.splog.Info("Tracking PR #%d already exists for %s, updating it", existing.Number, h.version)
		o.refresh(ctx, existing, h)
		if h.warnMissing {
			o.comment(ctx, existing.Number, missingFixesComment(h.root.Author))
		}
		return &HopResult{Version: h.version, Status: StatusExisting, PR: existing, Outcome: result.Outcome}, nil
	}

	o.splog.Info("Created tracking PR #%d for %s: %s", pr.Number, h.version, pr.HTMLURL)
	o.decorate(ctx, pr, h, result.Outcome)
	return &HopResult{Version: h.version, Status: StatusCreated, PR: pr, Outcome: result.Outcome}, nil
}

// alreadyOnBranch reports the first commit whose SHA or subject appears in the
// recent history of branch
func (o *Orchestrator) alreadyOnBranch(ctx context.Context, commits []string, branch string) (string, bool) {
	history, err := o.client.ListBranchCommits(ctx, branch, o.opts.ScanDepth)
	if err != nil {
		o.splog.Warn("Failed to read history of %s: %v", branch, err)
		return "", false
	}
	subjects := make(map[string]bool, len(history))
	shas := make(map[string]bool, len(history))
	for _, c := range history {
		shas[c.SHA] = true
		subjects[c.Subject()] = true
	}

	for _, sha := range commits {
		if shas[sha] {
			return sha, true
		}
		commit, err := o.client.GetCommit(ctx, sha)
		if err != nil {
			o.splog.Warn("Failed to read commit %s: %v", shortSHA(sha), err)
			continue
		}
		if subject := commit.Subject(); subject != "" && subjects[subject] {
			return sha, true
		}
	}
	return "", false
}

// findTrackingPR returns the tracking PR on branch, open ones first
func (o *Orchestrator) findTrackingPR(ctx context.Context, branch string) (*github.PullRequest, error) {
	head := o.opts.BotLogin + ":" + branch
	for _, state := range []string{"open", "all"} {
		prs, err := o.client.ListPullRequestsByHead(ctx, head, state)
		if err != nil {
			return nil, err
		}
		if len(prs) > 0 {
			return prs[0], nil
		}
	}
	return nil, nil
}

func (o *Orchestrator) trackingBody(h hopBase) string {
	return prtext.TrackingBody(prtext.BodyOptions{
		OriginalBody: h.body,
		IssueMapping: h.mapping,
		Commits:      h.commits,
		RootRepo:     o.repo,
		RootNumber:   h.root.Number,
	})
}

// refresh rewrites the body of an open tracking PR and sets its milestone
func (o *Orchestrator) refresh(ctx context.Context, pr *github.PullRequest, h hopBase) {
	if pr.State != "open" {
		return
	}
	body := o.trackingBody(h)
	if body != pr.Body {
		if err := o.client.UpdatePullRequest(ctx, pr.Number, github.UpdatePROptions{Body: &body}); err != nil {
			o.splog.Warn("Failed to update body of PR #%d: %v", pr.Number, err)
		} else {
			pr.Body = body
		}
	}
	o.setBackportMilestone(ctx, pr, h.version)
}

// decorate assigns, labels and comments on a new tracking PR. Failures are logged.
func (o *Orchestrator) decorate(ctx context.Context, pr *github.PullRequest, h hopBase, outcome cherrypick.Outcome) {
	author := h.root.Author
	if author != "" {
		if err := o.client.AddAssignees(ctx, pr.Number, author); err != nil {
			o.splog.Warn("Failed to assign PR #%d to %s: %v", pr.Number, author, err)
		}
	}
	if h.warnMissing {
		o.comment(ctx, pr.Number, missingFixesComment(author))
	}

	var add []string
	if h.priority != "" {
		add = append(add, h.priority)
		if o.opts.ForceOnCloudLabel != "" && !containsFold(o.opts.ForceOnCloudExcludedRepos, o.repo) {
			add = append(add, o.opts.ForceOnCloudLabel)
		}
	}
	if outcome == cherrypick.Conflicted {
		add = append(add, labels.Conflicts)
		o.comment(ctx, pr.Number, conflictComment(author))
	}
	if h.subIssueFailed {
		add = append(add, labels.SubIssueFailed)
	}
	add = append(add, labels.RequestLabels(h.remaining)...)
	if len(add) > 0 {
		if err := o.client.AddLabels(ctx, pr.Number, add...); err != nil {
			o.splog.Warn("Failed to label PR #%d: %v", pr.Number, err)
		} else {
			pr.Labels = append(pr.Labels, add...)
		}
	}

	o.setBackportMilestone(ctx, pr, h.version)
}

func (o *Orchestrator) priorityLabel(pr *github.PullRequest) string {
	for _, label := range o.opts.PriorityLabels {
		if pr.HasLabel(label) {
			return label
		}
	}
	return ""
}

func (o *Orchestrator) setBackportMilestone(ctx context.Context, pr *github.PullRequest, v version.Version) {
	if o.milestones == nil || o.assigner == nil {
		return
	}
	title, ok := o.milestones.ResolveBackport(ctx, v)
	if !ok {
		return
	}
	if err := o.assigner.Assign(ctx, pr, title); err != nil {
		o.splog.Warn("Failed to set milestone %s on PR #%d: %v", title, pr.Number, err)
	}
}

func (o *Orchestrator) comment(ctx context.Context, number int, body string) {
	if err := o.client.CreateComment(ctx, number, body); err != nil {
		o.splog.Warn("Failed to comment on PR #%d: %v", number, err)
	}
}

func (o *Orchestrator) markDone(ctx context.Context, pr *github.PullRequest, v version.Version) {
	if err := o.labels.MarkDone(ctx, pr, v); err != nil {
		o.splog.Error("Failed to mark %s done on PR #%d: %v", v, pr.Number, err)
	}
}

// isDuplicatePR reports whether a create failure may mean the head already has an open PR
func isDuplicatePR(err error) bool {
	var apiErr *bperrors.RemoteAPIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		return true
	}
	return strings.Contains(err.Error(), "A pull request already exists")
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
