package git

import (
	"context"
	"fmt"
)

// StageAll stages all changes including untracked files
func (r *CommandRunner) StageAll(ctx context.Context) error {
	_, err := r.Run(ctx, "add", "-A")
	if err != nil {
		return fmt.Errorf("failed to stage all changes: %w", err)
	}
	return nil
}

// UnmergedFiles lists paths left with conflicts
func (r *CommandRunner) UnmergedFiles(ctx context.Context) ([]string, error) {
	files, err := r.RunLines(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("failed to list unmerged files: %w", err)
	}
	return files, nil
}
