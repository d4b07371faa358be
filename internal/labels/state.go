// Package labels models the per-version backport state that pull request labels
// carry, and writes state changes back as label edits.
package labels

import (
	"strings"

	"backport.dev/backport/internal/version"
)

const (
	// Prefix starts every backport label
	Prefix = "backport/"

	pendingSuffix = "-pending"
	doneSuffix    = "-done"

	// Conflicts marks a draft tracking PR whose cherry-pick needed manual resolution
	Conflicts = "conflicts"
	// SubIssueFailed marks a tracking PR whose issue-tracker sub-task could not be created
	SubIssueFailed = "jira-sub-issue-creation-failed"
	// Parallel selects parallel mode on an original PR
	Parallel = "parallel_backport"
	// PromotedPrefix starts the label recording that a change reached a branch
	PromotedPrefix = "promoted-to-"
)

// State is the backport state of one version on one pull request
type State int

const (
	// StateAbsent means no backport label exists for the version
	StateAbsent State = iota
	// StateRequested is backport/<v>: a backport is wanted and automation may act on it
	StateRequested
	// StatePending is backport/<v>-pending: a backport is queued behind an earlier hop
	StatePending
	// StateDone is backport/<v>-done: the change reached the version's branch
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	default:
		return "absent"
	}
}

// Event drives a state transition
type Event int

const (
	// EventRequest asks for a backport
	EventRequest Event = iota
	// EventDefer queues a requested backport behind another hop
	EventDefer
	// EventComplete records that the backport landed
	EventComplete
	// EventHandoff drops a request that a newer tracking PR now carries
	EventHandoff
)

func (e Event) String() string {
	switch e {
	case EventRequest:
		return "request"
	case EventDefer:
		return "defer"
	case EventHandoff:
		return "handoff"
	default:
		return "complete"
	}
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is total over State x Event. Pairs mapping to their own state are no-ops;
// pairs absent from applicable are ignored transitions that leave labels untouched.
var transitions = map[transitionKey]State{
	{StateAbsent, EventRequest}:     StateRequested,
	{StateAbsent, EventDefer}:       StateAbsent,
	{StateAbsent, EventComplete}:    StateAbsent,
	{StateRequested, EventRequest}:  StateRequested,
	{StateRequested, EventDefer}:    StatePending,
	{StateRequested, EventComplete}: StateDone,
	{StatePending, EventRequest}:    StatePending,
	{StatePending, EventDefer}:      StatePending,
	{StatePending, EventComplete}:   StateDone,
	{StateDone, EventRequest}:       StateDone,
	{StateDone, EventDefer}:         StateDone,
	{StateDone, EventComplete}:      StateDone,
	{StateAbsent, EventHandoff}:     StateAbsent,
	{StateRequested, EventHandoff}:  StateAbsent,
	{StatePending, EventHandoff}:    StatePending,
	{StateDone, EventHandoff}:       StateDone,
}

var applicable = map[transitionKey]bool{
	{StateAbsent, EventRequest}:     true,
	{StateRequested, EventRequest}:  true,
	{StateRequested, EventDefer}:    true,
	{StateRequested, EventComplete}: true,
	{StatePending, EventDefer}:      true,
	{StatePending, EventComplete}:   true,
	{StateDone, EventComplete}:      true,
	{StateRequested, EventHandoff}:  true,
}

// Transition returns the state reached from s on e, and whether e applies to s
func Transition(s State, e Event) (State, bool) {
	key := transitionKey{s, e}
	return transitions[key], applicable[key]
}

// Label returns the label encoding state s for v. StateAbsent has no label.
func Label(v version.Version, s State) string {
	switch s {
	case StateRequested:
		return Prefix + v.String()
	case StatePending:
		return Prefix + v.String() + pendingSuffix
	case StateDone:
		return Prefix + v.String() + doneSuffix
	default:
		return ""
	}
}

// Promoted returns the promotion label for branch
func Promoted(branch string) string {
	return PromotedPrefix + branch
}

// ParseLabel decodes a backport label. ok is false for labels outside the
// backport vocabulary; err is set when the label is a backport label with a
// malformed version.
func ParseLabel(name string) (v version.Version, s State, ok bool, err error) {
	rest, found := strings.CutPrefix(name, Prefix)
	if !found {
		return version.Version{}, StateAbsent, false, nil
	}
	s = StateRequested
	if trimmed, cut := strings.CutSuffix(rest, pendingSuffix); cut {
		rest, s = trimmed, StatePending
	} else if trimmed, cut := strings.CutSuffix(rest, doneSuffix); cut {
		rest, s = trimmed, StateDone
	}
	v, err = version.Parse(rest)
	if err != nil {
		return version.Version{}, StateAbsent, true, err
	}
	return v, s, true, nil
}

// StateOf returns the state of v in a label set. When labels disagree the most
// advanced state wins.
func StateOf(labels []string, v version.Version) State {
	state := StateAbsent
	for _, name := range labels {
		lv, s, ok, err := ParseLabel(name)
		if !ok || err != nil || lv != v {
			continue
		}
		if s > state {
			state = s
		}
	}
	return state
}

// Requested returns the versions in state requested, highest first.
// Malformed backport labels are reported in errs and skipped.
func Requested(labels []string) (versions []version.Version, errs []error) {
	return inState(labels, StateRequested)
}

// Pending returns the versions in state pending, highest first
func Pending(labels []string) (versions []version.Version, errs []error) {
	return inState(labels, StatePending)
}

func inState(labels []string, want State) ([]version.Version, []error) {
	var versions []version.Version
	var errs []error
	seen := make(map[version.Version]bool)
	for _, name := range labels {
		v, s, ok, err := ParseLabel(name)
		if !ok {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s == want && !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}
	return version.SortDescending(versions), errs
}

// RequestLabels returns the requested-state labels for versions
func RequestLabels(versions []version.Version) []string {
	labels := make([]string, 0, len(versions))
	for _, v := range versions {
		labels = append(labels, Label(v, StateRequested))
	}
	return labels
}
