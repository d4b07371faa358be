package git

import (
	"context"
	"fmt"

	bperrors "backport.dev/backport/internal/errors"
)

// PushBranch pushes a branch to remote with optional force.
// remote may be a remote name or a URL; credentials in URLs are redacted from errors.
func (r *CommandRunner) PushBranch(ctx context.Context, remote, branchName string, force bool) error {
	args := []string{"push", remote}
	if force {
		args = append(args, "--force")
	}
	args = append(args, branchName)

	if _, err := r.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to push branch %s to %s: %w", branchName, bperrors.RedactURL(remote), err)
	}
	return nil
}
