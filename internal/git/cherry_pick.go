package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CherryPickResult represents the result of a cherry-pick
type CherryPickResult int

const (
	// CherryPickDone indicates the commit applied cleanly
	CherryPickDone CherryPickResult = iota
	// CherryPickConflict indicates the commit stopped with conflicts
	CherryPickConflict
)

// CherryPick applies a commit onto HEAD, recording the original commit id in the message.
// mainline selects the first parent when picking a merge commit.
func (r *CommandRunner) CherryPick(ctx context.Context, commitSHA string, mainline bool) (CherryPickResult, error) {
	args := []string{"cherry-pick", "-x"}
	if mainline {
		args = append(args, "-m1")
	}
	args = append(args, commitSHA)

	if _, err := r.Run(ctx, args...); err != nil {
		if r.IsCherryPickInProgress(ctx) {
			return CherryPickConflict, nil
		}
		return CherryPickConflict, fmt.Errorf("cherry-pick of %s failed: %w", commitSHA, err)
	}
	return CherryPickDone, nil
}

// IsCherryPickInProgress checks if a cherry-pick is stopped waiting for resolution
func (r *CommandRunner) IsCherryPickInProgress(ctx context.Context) bool {
	gitDir, err := r.Run(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return false
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(r.workingDir, gitDir)
	}
	_, err = os.Stat(filepath.Join(gitDir, "CHERRY_PICK_HEAD"))
	return err == nil
}

// CherryPickContinue commits the staged resolution of an in-progress cherry-pick
func (r *CommandRunner) CherryPickContinue(ctx context.Context) error {
	_, err := r.RunWithEnv(ctx, []string{"GIT_EDITOR=true"}, "cherry-pick", "--continue")
	if err != nil {
		return fmt.Errorf("cherry-pick continue failed: %w", err)
	}
	return nil
}
