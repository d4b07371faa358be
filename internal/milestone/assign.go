package milestone

import (
	"context"
	"fmt"
	"sync"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/output"
)

// Client manages repository milestones
type Client interface {
	ListMilestones(ctx context.Context) ([]*github.Milestone, error)
	CreateMilestone(ctx context.Context, title string) (*github.Milestone, error)
	SetMilestone(ctx context.Context, number int, milestoneNumber int) error
}

// Assigner sets milestones on pull requests, creating them on first use
type Assigner struct {
	client Client
	splog  *output.Splog

	mu    sync.Mutex
	known map[string]*github.Milestone
}

// NewAssigner creates an Assigner
func NewAssigner(client Client, splog *output.Splog) *Assigner {
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	return &Assigner{client: client, splog: splog, known: make(map[string]*github.Milestone)}
}

// Assign sets milestone title on pr. A pull request already carrying title is left alone.
func (a *Assigner) Assign(ctx context.Context, pr *github.PullRequest, title string) error {
	if title == "" || pr.Milestone == title {
		return nil
	}
	m, err := a.findOrCreate(ctx, title)
	if err != nil {
		return err
	}
	if err := a.client.SetMilestone(ctx, pr.Number, m.Number); err != nil {
		return fmt.Errorf("failed to set milestone %q on PR #%d: %w", title, pr.Number, err)
	}
	pr.Milestone = title
	a.splog.Info("Set milestone '%s' on PR #%d", title, pr.Number)
	return nil
}

func (a *Assigner) findOrCreate(ctx context.Context, title string) (*github.Milestone, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m, ok := a.known[title]; ok {
		return m, nil
	}
	milestones, err := a.client.ListMilestones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	for _, m := range milestones {
		if m.Title == title {
			a.known[title] = m
			return m, nil
		}
	}
	m, err := a.client.CreateMilestone(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone %q: %w", title, err)
	}
	a.known[title] = m
	return m, nil
}
