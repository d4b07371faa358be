package labels

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"backport.dev/backport/internal/github"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/version"
)

// Mutator edits labels on a pull request
type Mutator interface {
	AddLabels(ctx context.Context, number int, labels ...string) error
	RemoveLabel(ctx context.Context, number int, label string) error
}

// Machine applies state transitions to pull requests by rewriting their labels.
// The in-memory label list of a pull request is kept in step with every write.
type Machine struct {
	client Mutator
	splog  *output.Splog

	// mu serializes writes so hops running in parallel can share a pull request
	mu sync.Mutex
}

// NewMachine creates a Machine writing through client
func NewMachine(client Mutator, splog *output.Splog) *Machine {
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	return &Machine{client: client, splog: splog}
}

// MarkDone moves v to done on pr. A pull request already done is left as is;
// one with no label for v is left untouched with a warning.
func (m *Machine) MarkDone(ctx context.Context, pr *github.PullRequest, v version.Version) error {
	m.mu.Lock()
	absent := StateOf(pr.Labels, v) == StateAbsent
	m.mu.Unlock()
	if absent {
		m.splog.Warn("PR #%d has no %s or %s label to mark done", pr.Number,
			Label(v, StateRequested), Label(v, StatePending))
		return nil
	}
	return m.apply(ctx, pr, v, EventComplete)
}

// ConvertToPending moves each requested version to pending on pr.
// Every version is attempted; failures are joined.
func (m *Machine) ConvertToPending(ctx context.Context, pr *github.PullRequest, versions []version.Version) error {
	var errs []error
	for _, v := range versions {
		if err := m.apply(ctx, pr, v, EventDefer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handoff removes the request for each version from pr once another tracking PR carries it
func (m *Machine) Handoff(ctx context.Context, pr *github.PullRequest, versions []version.Version) error {
	var errs []error
	for _, v := range versions {
		if err := m.apply(ctx, pr, v, EventHandoff); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Request moves each version to requested on pr
func (m *Machine) Request(ctx context.Context, pr *github.PullRequest, versions []version.Version) error {
	var errs []error
	for _, v := range versions {
		if err := m.apply(ctx, pr, v, EventRequest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// apply writes the label set of the state reached from v's current state on e.
// Labels for v that disagree with the target state are removed.
func (m *Machine) apply(ctx context.Context, pr *github.PullRequest, v version.Version, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := StateOf(pr.Labels, v)
	to, ok := Transition(from, e)
	if !ok {
		m.splog.Debug("PR #%d: ignoring %s of %s in state %s", pr.Number, e, v, from)
		return nil
	}

	target := Label(v, to)
	for _, s := range []State{StateRequested, StatePending, StateDone} {
		name := Label(v, s)
		if name == target || !pr.HasLabel(name) {
			continue
		}
		if err := m.client.RemoveLabel(ctx, pr.Number, name); err != nil {
			return fmt.Errorf("failed to remove %s from PR #%d: %w", name, pr.Number, err)
		}
		pr.Labels = without(pr.Labels, name)
	}

	if target != "" && !pr.HasLabel(target) {
		if err := m.client.AddLabels(ctx, pr.Number, target); err != nil {
			return fmt.Errorf("failed to add %s to PR #%d: %w", target, pr.Number, err)
		}
		pr.Labels = append(pr.Labels, target)
	}

	if from != to {
		m.splog.Info("PR #%d: %s %s -> %s", pr.Number, v, from, to)
	}
	return nil
}

func without(labels []string, name string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != name {
			out = append(out, l)
		}
	}
	return out
}
