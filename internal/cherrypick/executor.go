// Package cherrypick materializes a backport branch: it clones the target
// branch into a scratch directory, applies commits, and force-pushes the
// result to the bot fork.
package cherrypick

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"backport.dev/backport/internal/git"
	"backport.dev/backport/internal/output"
)

// Outcome summarizes how the commits applied
type Outcome int

const (
	// Clean means every commit applied without conflicts
	Clean Outcome = iota
	// Conflicted means at least one commit was committed with conflict markers
	Conflicted
)

func (o Outcome) String() string {
	if o == Conflicted {
		return "conflicted"
	}
	return "clean"
}

// Request describes one backport branch to build
type Request struct {
	// SourceURL is cloned; it may embed credentials
	SourceURL string
	// BaseBranch is the target branch the backport starts from
	BaseBranch string
	// Commits are applied in order
	Commits []string
	// Branch is created locally and pushed under the same name
	Branch string
	// PushURL receives the branch with a forced update
	PushURL string
}

// Result reports what was applied
type Result struct {
	Outcome Outcome
	// Applied lists the commits cherry-picked onto Branch
	Applied []string
	// Skipped lists commits whose subject already appears on BaseBranch
	Skipped []string
	// Head is the commit Branch points to
	Head string
}

// Identity is the committer recorded on cherry-picked commits
type Identity struct {
	Name  string
	Email string
}

// Options configures an Executor
type Options struct {
	Identity Identity
	// WorkRoot holds scratch clones. Defaults to the system temp directory.
	WorkRoot string
	// ScanDepth is how many base-branch commits are checked for already-applied subjects
	ScanDepth int
}

// Executor runs cherry-picks with the git binary
type Executor struct {
	opts  Options
	splog *output.Splog
}

// NewExecutor creates an Executor
func NewExecutor(opts Options, splog *output.Splog) *Executor {
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	return &Executor{opts: opts, splog: splog}
}

// Run builds and pushes the branch described by req. The scratch clone is
// removed on every return path. When every commit is already present on the
// base branch nothing is pushed and Applied is empty.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	scratch, err := os.MkdirTemp(e.opts.WorkRoot, "backport-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.splog.Warn("Failed to remove %s: %v", scratch, err)
		}
	}()

	dir := filepath.Join(scratch, "repo")
	runner, err := git.Clone(ctx, req.SourceURL, req.BaseBranch, dir)
	if err != nil {
		return nil, err
	}
	if err := runner.ConfigureIdentity(ctx, e.opts.Identity.Name, e.opts.Identity.Email); err != nil {
		return nil, err
	}
	if err := runner.CreateAndCheckoutBranch(ctx, req.Branch); err != nil {
		return nil, err
	}

	repo, err := git.OpenRepository(dir)
	if err != nil {
		return nil, err
	}
	present, err := e.baseSubjects(repo)
	if err != nil {
		return nil, err
	}

	result := &Result{Outcome: Clean}
	for _, sha := range req.Commits {
		subject, err := repo.Subject(sha)
		if err != nil {
			return nil, err
		}
		if present[subject] {
			e.splog.Info("Commit %s (%s) already on %s, skipping", short(sha), subject, req.BaseBranch)
			result.Skipped = append(result.Skipped, sha)
			continue
		}

		parents, err := repo.ParentCount(sha)
		if err != nil {
			return nil, err
		}
		picked, err := runner.CherryPick(ctx, sha, parents > 1)
		if err != nil {
			return nil, err
		}
		if picked == git.CherryPickConflict {
			files, err := runner.UnmergedFiles(ctx)
			if err != nil {
				e.splog.Warn("Failed to list conflicted files of %s: %v", short(sha), err)
			}
			e.splog.Warn("Cherry-pick of %s conflicted in %v, committing as-is", short(sha), files)
			if err := runner.StageAll(ctx); err != nil {
				return nil, err
			}
			if err := runner.CherryPickContinue(ctx); err != nil {
				return nil, err
			}
			result.Outcome = Conflicted
		}
		result.Applied = append(result.Applied, sha)
	}

	if result.Head, err = repo.HeadSHA(); err != nil {
		return nil, err
	}
	if len(result.Applied) == 0 {
		return result, nil
	}
	if err := runner.PushBranch(ctx, req.PushURL, req.Branch, true); err != nil {
		return nil, err
	}
	e.splog.Info("Pushed %s (%d commits, %s)", req.Branch, len(result.Applied), result.Outcome)
	return result, nil
}

func (e *Executor) baseSubjects(repo *git.Repository) (map[string]bool, error) {
	present := make(map[string]bool)
	if e.opts.ScanDepth <= 0 {
		return present, nil
	}
	subjects, err := repo.Subjects(e.opts.ScanDepth)
	if err != nil {
		return nil, err
	}
	for _, s := range subjects {
		present[s] = true
	}
	return present, nil
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
