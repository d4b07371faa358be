// Package backport creates tracking pull requests that carry a change to older
// release branches, and advances backport chains as those pull requests merge.
//
// A chained backport opens one tracking PR at a time, highest version first. The
// remaining versions wait as pending labels on the original PR and the next hop
// starts when the current tracking PR merges. Parallel backports open every
// tracking PR at once.
package backport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"backport.dev/backport/internal/cherrypick"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/labels"
	"backport.dev/backport/internal/milestone"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/prtext"
	"backport.dev/backport/internal/subissue"
	"backport.dev/backport/internal/version"
)

const (
	// DefaultMaxChainDepth bounds back-reference tracing
	DefaultMaxChainDepth = 10
	// DefaultWorkers bounds concurrent hops in parallel mode
	DefaultWorkers = 4
	// DefaultScanDepth is how many target-branch commits are checked for an applied change
	DefaultScanDepth = 100
)

// Picker builds and pushes a backport branch
type Picker interface {
	Run(ctx context.Context, req cherrypick.Request) (*cherrypick.Result, error)
}

// Options configures an Orchestrator
type Options struct {
	// BotLogin owns the fork tracking branches are pushed to
	BotLogin string
	// SourceURL is the clone URL of the repository
	SourceURL string
	// PushURL is the clone URL of the bot's fork
	PushURL string
	// PriorityLabels are copied to tracking PRs; the first one present wins
	PriorityLabels []string
	// ForceOnCloudLabel accompanies a copied priority label
	ForceOnCloudLabel string
	// ForceOnCloudExcludedRepos never get ForceOnCloudLabel
	ForceOnCloudExcludedRepos []string
	// MilestoneRepos get mainline milestones on intake
	MilestoneRepos []string
	MaxChainDepth  int
	Workers        int
	ScanDepth      int
}

// Deps are the collaborators of an Orchestrator. Milestones and Assigner may be nil.
type Deps struct {
	GitHub     github.Client
	Registry   *version.Registry
	SubIssues  *subissue.Manager
	Picker     Picker
	Milestones *milestone.Resolver
	Assigner   *milestone.Assigner
	Splog      *output.Splog
}

// Orchestrator drives backports for one repository
type Orchestrator struct {
	client     github.Client
	repo       string
	registry   *version.Registry
	labels     *labels.Machine
	subissues  *subissue.Manager
	picker     Picker
	milestones *milestone.Resolver
	assigner   *milestone.Assigner
	opts       Options
	splog      *output.Splog
}

// New creates an Orchestrator
func New(deps Deps, opts Options) *Orchestrator {
	splog := deps.Splog
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	if opts.MaxChainDepth <= 0 {
		opts.MaxChainDepth = DefaultMaxChainDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ScanDepth <= 0 {
		opts.ScanDepth = DefaultScanDepth
	}
	subissues := deps.SubIssues
	if subissues == nil {
		subissues = subissue.NewManager(nil, subissue.Options{}, splog)
	}
	repo := github.FullName(deps.GitHub)
	registry := deps.Registry
	if registry == nil {
		registry = version.NewRegistry(repo)
	}
	return &Orchestrator{
		client:     deps.GitHub,
		repo:       repo,
		registry:   registry,
		labels:     labels.NewMachine(deps.GitHub, splog),
		subissues:  subissues,
		picker:     deps.Picker,
		milestones: deps.Milestones,
		assigner:   deps.Assigner,
		opts:       opts,
		splog:      splog,
	}
}

// Request asks for the commits of PR to be backported to Versions
type Request struct {
	PR       *github.PullRequest
	Versions []version.Version
	Commits  []string
}

// Backport opens tracking PRs for req. In chained mode it stops at the first version
// that gets a tracking PR and defers the lower versions; a version whose change is
// already on its branch is marked done and the next one is tried. In parallel mode
// every version is attempted and failures are joined.
func (o *Orchestrator) Backport(ctx context.Context, req Request) ([]*HopResult, error) {
	pr := req.PR
	versions := version.SortDescending(req.Versions)
	if len(versions) == 0 {
		return nil, nil
	}

	root := o.traceRootBestEffort(ctx, pr)
	base := hopBase{
		source:      pr,
		origin:      pr,
		root:        root,
		title:       prtext.OriginalTitle(pr.Title),
		body:        pr.Body,
		commits:     req.Commits,
		keys:        issueKeys(pr.Body),
		accountID:   o.assigneeAccount(ctx, root),
		warnMissing: o.requiresFixes(pr.Body),
		priority:    o.priorityLabel(pr),
	}

	if pr.HasLabel(labels.Parallel) {
		return o.backportParallel(ctx, base, versions)
	}

	results, at, err := o.runChain(ctx, base, versions)
	if err != nil {
		return results, err
	}
	if at < len(versions) {
		if err := o.labels.ConvertToPending(ctx, pr, versions[at+1:]); err != nil {
			o.splog.Error("Failed to defer remaining versions on PR #%d: %v", pr.Number, err)
		}
	}
	return results, nil
}

// runChain hops versions in order until one yields a tracking PR. It returns the index
// of that version, or len(versions) when every change was already present.
func (o *Orchestrator) runChain(ctx context.Context, base hopBase, versions []version.Version) ([]*HopResult, int, error) {
	var results []*HopResult
	for i, v := range versions {
		h := base
		h.version = v
		h.remaining = versions[i+1:]
		h.mapping, h.subIssueFailed = o.subissues.MapVersion(ctx, base.keys, v, base.title, base.accountID)

		result, err := o.hop(ctx, h)
		if err != nil {
			return results, i, err
		}
		results = append(results, result)
		if result.Status != StatusAlreadyPresent {
			return results, i, nil
		}
	}
	return results, len(versions), nil
}

func (o *Orchestrator) backportParallel(ctx context.Context, base hopBase, versions []version.Version) ([]*HopResult, error) {
	results := make([]*HopResult, len(versions))
	errs := make([]error, len(versions))

	sem := semaphore.NewWeighted(int64(o.opts.Workers))
	var wg sync.WaitGroup
	for i, v := range versions {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			h := base
			h.version = v
			h.mapping, h.subIssueFailed = o.subissues.MapVersion(ctx, base.keys, v, base.title, base.accountID)
			result, err := o.hop(ctx, h)
			if err != nil {
				o.splog.Error("Backport of PR #%d to %s failed: %v", base.source.Number, v, err)
				errs[i] = err
				return
			}
			results[i] = result
		}()
	}
	wg.Wait()

	done := make([]*HopResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}
	return done, errors.Join(errs...)
}

// assigneeAccount resolves the tracker account of the root author, or ""
func (o *Orchestrator) assigneeAccount(ctx context.Context, root *github.PullRequest) string {
	if !o.subissues.Enabled() || root.Author == "" {
		return ""
	}
	email := ""
	if user, err := o.client.GetUser(ctx, root.Author); err != nil {
		o.splog.Warn("Failed to look up %s: %v", root.Author, err)
	} else {
		email = user.Email
	}
	return o.subissues.ResolveAssignee(ctx, root.Author, email)
}

// requiresFixes reports whether a tracking PR built from body needs a missing-Fixes warning
func (o *Orchestrator) requiresFixes(body string) bool {
	return strings.EqualFold(o.repo, o.registry.PrimaryRepo) && !prtext.HasFixesReference(body)
}

// issueKeys returns the issue keys a PR body links, falling back to the older
// "main Jira issue" marker
func issueKeys(body string) []string {
	keys := prtext.IssueKeys(body)
	if len(keys) > 0 {
		return keys
	}
	if key, ok := prtext.MainIssueKey(body); ok {
		return []string{key}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
