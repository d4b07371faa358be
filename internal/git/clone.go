package git

import (
	"context"
	"fmt"
)

// Clone clones branch of url into dir and returns a runner for the clone
func Clone(ctx context.Context, url, branch, dir string) (*CommandRunner, error) {
	if _, err := NewCommandRunner("").Run(ctx, "clone", "--branch", branch, url, dir); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", branch, err)
	}
	return NewCommandRunner(dir), nil
}

// ConfigureIdentity sets the committer identity of the repository
func (r *CommandRunner) ConfigureIdentity(ctx context.Context, name, email string) error {
	if _, err := r.Run(ctx, "config", "user.name", name); err != nil {
		return fmt.Errorf("failed to set user.name: %w", err)
	}
	if _, err := r.Run(ctx, "config", "user.email", email); err != nil {
		return fmt.Errorf("failed to set user.email: %w", err)
	}
	return nil
}

// CreateAndCheckoutBranch creates a new branch at HEAD and checks it out
func (r *CommandRunner) CreateAndCheckoutBranch(ctx context.Context, branchName string) error {
	if _, err := r.Run(ctx, "checkout", "-b", branchName); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branchName, err)
	}
	return nil
}
