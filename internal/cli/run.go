package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"backport.dev/backport/internal/backport"
	"backport.dev/backport/internal/github"
)

// Mode is the kind of work one invocation performs
type Mode int

const (
	// ModeIntake backports from a pushed commit range or a single pull request
	ModeIntake Mode = iota
	// ModeChain continues a chain from a merged tracking pull request
	ModeChain
	// ModePromote handles a push to a release branch
	ModePromote
)

func (m Mode) String() string {
	switch m {
	case ModeChain:
		return "chain"
	case ModePromote:
		return "promote"
	default:
		return "intake"
	}
}

// orchestrator is the part of backport.Orchestrator the command drives
type orchestrator interface {
	Intake(ctx context.Context, req backport.IntakeRequest) error
	Chain(ctx context.Context, merged *github.PullRequest) ([]*backport.HopResult, error)
	Promote(ctx context.Context, commitRange, branch string) error
}

type runFlags struct {
	baseBranch       string
	commits          string
	pullRequest      int
	headCommit       string
	label            string
	chainBackport    bool
	mergedPR         int
	promotedToBranch string
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.baseBranch, "base-branch", "refs/heads/next", "ref the commits were pushed to")
	flags.StringVar(&f.commits, "commits", "", "pushed commit range as start..end")
	flags.IntVar(&f.pullRequest, "pull-request", 0, "backport a single pull request")
	flags.StringVar(&f.headCommit, "head-commit", "", "head commit of the push (single pull request mode)")
	flags.StringVar(&f.label, "label", "", "backport label that triggered the run (single pull request mode)")
	flags.BoolVar(&f.chainBackport, "chain-backport", false, "continue the chain of a merged tracking pull request")
	flags.IntVar(&f.mergedPR, "merged-pr", 0, "merged tracking pull request (chain mode)")
	flags.StringVar(&f.promotedToBranch, "promoted-to-branch", "", "release branch the commit range was promoted to")
}

// mode validates the flag combination and selects the mode
func (f *runFlags) mode() (Mode, error) {
	switch {
	case f.promotedToBranch != "":
		if f.commits == "" {
			return 0, errors.New("--promoted-to-branch requires --commits")
		}
		return ModePromote, nil
	case f.chainBackport:
		if f.mergedPR <= 0 {
			return 0, errors.New("--chain-backport requires --merged-pr")
		}
		return ModeChain, nil
	case f.pullRequest > 0:
		if f.label == "" || f.headCommit == "" {
			return 0, errors.New("--pull-request requires --label and --head-commit")
		}
		return ModeIntake, nil
	case f.commits != "":
		return ModeIntake, nil
	default:
		return 0, errors.New("one of --commits, --pull-request or --chain-backport is required")
	}
}

// dispatch runs the selected mode
func dispatch(ctx context.Context, orch orchestrator, client github.Client, mode Mode, f *runFlags) error {
	switch mode {
	case ModePromote:
		return orch.Promote(ctx, f.commits, f.promotedToBranch)
	case ModeChain:
		merged, err := client.GetPullRequest(ctx, f.mergedPR)
		if err != nil {
			return fmt.Errorf("failed to load merged PR #%d: %w", f.mergedPR, err)
		}
		if !merged.Merged {
			return fmt.Errorf("PR #%d is not merged", f.mergedPR)
		}
		_, err = orch.Chain(ctx, merged)
		return err
	default:
		req := backport.IntakeRequest{
			BaseRef:      f.baseBranch,
			TriggerLabel: f.label,
			HeadCommit:   f.headCommit,
		}
		if f.pullRequest > 0 {
			req.PRNumber = f.pullRequest
		} else {
			req.CommitRange = f.commits
		}
		return orch.Intake(ctx, req)
	}
}
