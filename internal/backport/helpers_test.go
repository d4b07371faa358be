package backport_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"backport.dev/backport/internal/backport"
	"backport.dev/backport/internal/cherrypick"
	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/milestone"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/prtext"
	"backport.dev/backport/internal/subissue"
	"backport.dev/backport/internal/version"
	"backport.dev/backport/testhelpers"
)

// fakePicker records requests and applies every commit
type fakePicker struct {
	mu       sync.Mutex
	requests []cherrypick.Request
	outcome  cherrypick.Outcome
	skipAll  bool
	err      error

	// delay holds each run open so overlapping runs can be counted
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (p *fakePicker) Run(_ context.Context, req cherrypick.Request) (*cherrypick.Result, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if p.skipAll {
		return &cherrypick.Result{Skipped: req.Commits}, nil
	}
	return &cherrypick.Result{Outcome: p.outcome, Applied: req.Commits, Head: "f00d"}, nil
}

func (p *fakePicker) branches() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, r := range p.requests {
		names = append(names, r.Branch)
	}
	return names
}

type scenario struct {
	config  *testhelpers.MockGitHubServerConfig
	client  *github.RealClient
	tracker *testhelpers.FakeTracker
	picker  *fakePicker
	opts    backport.Options
	orch    *backport.Orchestrator
}

func newScenario(t *testing.T, configure ...func(*backport.Options)) *scenario {
	t.Helper()
	config := testhelpers.NewMockGitHubServerConfig()
	config.Users["alice"] = &gh.User{Login: gh.String("alice"), Email: gh.String("alice@example.com")}
	config.AddCommit("c1", "Fix crash on startup\n\nLonger description", "p0")

	tracker := testhelpers.NewFakeTracker()
	tracker.AddIssue("PROJ-1", "Crash on startup")
	tracker.Users["alice@example.com"] = "acc-alice"

	opts := backport.Options{
		BotLogin:          "bot",
		SourceURL:         "https://example.com/owner/repo.git",
		PushURL:           "https://example.com/bot/repo.git",
		PriorityLabels:    []string{"P0", "P1"},
		ForceOnCloudLabel: "force_on_cloud",
	}
	for _, c := range configure {
		c(&opts)
	}

	s := &scenario{
		config:  config,
		client:  testhelpers.NewMockGitHubClient(t, config),
		tracker: tracker,
		picker:  &fakePicker{},
		opts:    opts,
	}
	s.build()
	return s
}

// build wires an orchestrator against the scenario's doubles
func (s *scenario) build() {
	splog := output.NewDiscardSplog()
	manager := subissue.NewManager(s.tracker, subissue.Options{
		OrgDomain: "example.com",
		RunURL:    "https://ci.example.com/runs/1",
	}, splog)
	resolver := milestone.NewResolver(s.client, milestone.Options{
		TagRepo:        "owner/repo",
		TagPrefix:      "v",
		VersionFile:    "VERSION-GEN",
		MainlineBranch: "master",
	}, splog)
	s.orch = backport.New(backport.Deps{
		GitHub:     s.client,
		Registry:   version.NewRegistry("owner/repo"),
		SubIssues:  manager,
		Picker:     s.picker,
		Milestones: resolver,
		Assigner:   milestone.NewAssigner(s.client, splog),
		Splog:      splog,
	}, s.opts)
}

// addOriginal seeds merged PR #100 by alice
func (s *scenario) addOriginal(body string, labels ...string) {
	data := testhelpers.MergedPRData(100, "c1", labels...)
	data.Title = "Fix crash on startup"
	data.Body = body
	data.Author = "alice"
	s.config.AddPullRequest(data)
}

// addTracking seeds a merged tracking PR for v backporting root
func (s *scenario) addTracking(number, root int, v, mergeSHA string, labels ...string) {
	data := testhelpers.MergedPRData(number, mergeSHA, labels...)
	data.Title = "[Backport " + v + "] Fix crash on startup"
	data.Body = prtext.TrackingBody(prtext.BodyOptions{
		OriginalBody: "Fixes: PROJ-1",
		Commits:      []string{"c1"},
		RootRepo:     "owner/repo",
		RootNumber:   root,
	})
	data.Author = "bot"
	data.Head = "bot:" + backport.Branch(root, version.MustParse(v))
	s.config.AddPullRequest(data)
	s.config.AddCommit(mergeSHA, "Merge 'Fix crash on startup' from alice", "p1", "p2")
}

func (s *scenario) pr(t *testing.T, number int) *github.PullRequest {
	t.Helper()
	pr, err := s.client.GetPullRequest(context.Background(), number)
	require.NoError(t, err)
	return pr
}

func versions(values ...string) []version.Version {
	out := make([]version.Version, 0, len(values))
	for _, v := range values {
		out = append(out, version.MustParse(v))
	}
	return out
}
