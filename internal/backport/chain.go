package backport

import (
	"context"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/labels"
	"backport.dev/backport/internal/prtext"
)

// Chain continues the backport chain of a merged tracking PR. The version it carried
// is marked done on the PR it backports, and the highest version still requested on
// it becomes the next hop. Versions after the next hop move to pending on merged.
func (o *Orchestrator) Chain(ctx context.Context, merged *github.PullRequest) ([]*HopResult, error) {
	if !prtext.IsTrackingPR(merged.Title, merged.Body) {
		o.splog.Info("PR #%d is not a backport PR, nothing to continue", merged.Number)
		return nil, nil
	}

	origin, err := o.parentOf(ctx, merged)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		o.splog.Warn("PR #%d does not reference the PR it backports", merged.Number)
		return nil, nil
	}

	if v, ok := prtext.VersionFromTitle(merged.Title); ok {
		o.markDone(ctx, origin, v)
	} else {
		o.splog.Warn("No backport version in title of PR #%d", merged.Number)
	}

	remaining, errs := labels.Requested(merged.Labels)
	for _, err := range errs {
		o.splog.Warn("PR #%d: %v", merged.Number, err)
	}
	if len(remaining) == 0 {
		o.splog.Info("No further backports requested on PR #%d, chain complete", merged.Number)
		return nil, nil
	}
	if merged.MergeCommitSHA == "" {
		o.splog.Warn("PR #%d has no merge commit, cannot continue the chain", merged.Number)
		return nil, nil
	}

	root := o.traceRootBestEffort(ctx, merged)
	base := hopBase{
		source:      merged,
		origin:      origin,
		root:        root,
		title:       prtext.OriginalTitle(merged.Title),
		body:        origin.Body,
		commits:     []string{merged.MergeCommitSHA},
		keys:        issueKeys(origin.Body),
		accountID:   o.assigneeAccount(ctx, root),
		warnMissing: o.requiresFixes(origin.Body),
		priority:    o.priorityLabel(merged),
	}
	o.splog.Info("Continuing chain of PR #%d with %s", origin.Number, remaining[0])

	results, at, err := o.runChain(ctx, base, remaining)
	consumed := at
	if err == nil && at < len(remaining) {
		consumed = at + 1
	}
	if herr := o.labels.Handoff(ctx, merged, remaining[:consumed]); herr != nil {
		o.splog.Error("Failed to clear backport labels on PR #%d: %v", merged.Number, herr)
	}
	if err != nil {
		return results, err
	}
	if consumed < len(remaining) {
		if perr := o.labels.ConvertToPending(ctx, merged, remaining[consumed:]); perr != nil {
			o.splog.Error("Failed to defer remaining versions on PR #%d: %v", merged.Number, perr)
		}
	}
	return results, nil
}
