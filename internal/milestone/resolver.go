// Package milestone derives tracking milestone titles from release tag history
// and assigns them to pull requests.
package milestone

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/version"
)

// Source reads the tag history and the version file of the tag repository
type Source interface {
	ListTags(ctx context.Context, owner, repo string) ([]string, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// Options configures a Resolver
type Options struct {
	// TagRepo is the "owner/name" repository whose tags name releases
	TagRepo string
	// TagPrefix precedes the version in release tags, e.g. "scylla-"
	TagPrefix string
	// VersionFile holds the VERSION=X.Y.Z-dev line on the mainline branch
	VersionFile string
	// MainlineBranch is the branch VersionFile is read from
	MainlineBranch string
}

// Resolver proposes milestone titles. Tags are fetched once per Resolver.
type Resolver struct {
	source Source
	opts   Options
	splog  *output.Splog

	mu      sync.Mutex
	tags    []string
	tagsErr error
	fetched bool
}

// NewResolver creates a Resolver reading from source
func NewResolver(source Source, opts Options, splog *output.Splog) *Resolver {
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	return &Resolver{source: source, opts: opts, splog: splog}
}

// ResolveBackport returns the next unreleased patch milestone of v.
// ok is false when no title can be derived; callers skip assignment.
func (r *Resolver) ResolveBackport(ctx context.Context, v version.Version) (string, bool) {
	if v.IsManager() {
		return "", false
	}
	tags, err := r.listTags(ctx)
	if err != nil {
		r.splog.Warn("Failed to resolve backport milestone for %s: %v", v, err)
		return "", false
	}
	title, ok := FromTags(tags, r.opts.TagPrefix, v)
	if !ok {
		r.splog.Warn("No tags found for backport version %s", v)
	}
	return title, ok
}

// ResolveMainline returns the milestone of the development version on the mainline branch
func (r *Resolver) ResolveMainline(ctx context.Context) (string, bool) {
	owner, repo, err := splitRepo(r.opts.TagRepo)
	if err != nil {
		r.splog.Warn("Failed to resolve mainline milestone: %v", err)
		return "", false
	}
	content, err := r.source.GetFileContent(ctx, owner, repo, r.opts.VersionFile, r.opts.MainlineBranch)
	if err != nil {
		r.splog.Warn("Failed to read %s: %v", r.opts.VersionFile, err)
		return "", false
	}
	title, ok := DevVersion(content)
	if !ok {
		r.splog.Warn("Could not find VERSION=X.Y.Z-dev in %s", r.opts.VersionFile)
	}
	return title, ok
}

func (r *Resolver) listTags(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetched {
		return r.tags, r.tagsErr
	}
	owner, repo, err := splitRepo(r.opts.TagRepo)
	if err == nil {
		r.tags, err = r.source.ListTags(ctx, owner, repo)
	}
	r.tagsErr = err
	r.fetched = true
	return r.tags, r.tagsErr
}

func splitRepo(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid tag repository %q", fullName)
	}
	return owner, repo, nil
}

// FromTags proposes <v>.<patch+1> from the highest released patch of v.
// Without releases the highest prerelease patch is proposed, normally <v>.0.
func FromTags(tags []string, prefix string, v version.Version) (string, bool) {
	series := v.String()
	released, candidate := -1, -1
	for _, name := range tags {
		tag, ok := ParseTag(name, prefix)
		if !ok || tag.Series() != series {
			continue
		}
		if tag.Prerelease() {
			candidate = max(candidate, tag.Patch)
		} else {
			released = max(released, tag.Patch)
		}
	}

	switch {
	case released >= 0:
		return fmt.Sprintf("%s.%d", v, released+1), true
	case candidate >= 0:
		return fmt.Sprintf("%s.%d", v, candidate), true
	default:
		return "", false
	}
}
