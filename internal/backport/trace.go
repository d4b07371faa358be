package backport

import (
	"context"
	"fmt"
	"strings"

	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/prtext"
)

// TraceRoot follows back-references from pr to the pull request its chain started
// from. After MaxChainDepth hops the pull request reached is returned together with
// an error matching ErrChainTraceExhausted.
func (o *Orchestrator) TraceRoot(ctx context.Context, pr *github.PullRequest) (*github.PullRequest, error) {
	current := pr
	for hops := 0; hops < o.opts.MaxChainDepth; hops++ {
		parent, err := o.parentOf(ctx, current)
		if err != nil {
			return current, err
		}
		if parent == nil {
			return current, nil
		}
		current = parent
	}
	if _, ok := prtext.ParseBackReference(current.Body); ok {
		return current, fmt.Errorf("stopped at PR #%d after %d hops: %w",
			current.Number, o.opts.MaxChainDepth, bperrors.ErrChainTraceExhausted)
	}
	return current, nil
}

// traceRootBestEffort is TraceRoot with failures logged
func (o *Orchestrator) traceRootBestEffort(ctx context.Context, pr *github.PullRequest) *github.PullRequest {
	root, err := o.TraceRoot(ctx, pr)
	if err != nil {
		o.splog.Warn("Failed to trace root of PR #%d, using PR #%d: %v", pr.Number, root.Number, err)
	}
	return root
}

// parentOf returns the pull request pr's back-reference names, or nil when there is none
func (o *Orchestrator) parentOf(ctx context.Context, pr *github.PullRequest) (*github.PullRequest, error) {
	ref, ok := prtext.ParseBackReference(pr.Body)
	if !ok || ref.Number == pr.Number {
		return nil, nil
	}
	if ref.Repo != "" && !strings.EqualFold(ref.Repo, o.repo) {
		o.splog.Warn("PR #%d references %s#%d in another repository", pr.Number, ref.Repo, ref.Number)
		return nil, nil
	}
	parent, err := o.client.GetPullRequest(ctx, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d referenced by PR #%d: %w", ref.Number, pr.Number, err)
	}
	return parent, nil
}
