package git

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// goGitMu serializes packfile access across goroutines sharing a Repository
var goGitMu sync.Mutex

// Repository wraps a go-git repository
type Repository struct {
	*git.Repository
	path string
}

// OpenRepository opens a git repository at the given path
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{
		Repository: repo,
		path:       absPath,
	}, nil
}

// GetRepoRoot returns the root directory of the repository
func (r *Repository) GetRepoRoot() string {
	return r.path
}

// HeadSHA returns the commit HEAD points to
func (r *Repository) HeadSHA() (string, error) {
	goGitMu.Lock()
	defer goGitMu.Unlock()

	ref, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the short name of the checked out branch
func (r *Repository) CurrentBranch() (string, error) {
	goGitMu.Lock()
	defer goGitMu.Unlock()

	ref, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !ref.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", ref.Hash())
	}
	return ref.Name().Short(), nil
}

// ParentCount returns the number of parents of a commit
func (r *Repository) ParentCount(rev string) (int, error) {
	commit, err := r.commit(rev)
	if err != nil {
		return 0, err
	}
	return commit.NumParents(), nil
}

// Subjects returns the first message line of up to limit commits reachable from HEAD, newest first
func (r *Repository) Subjects(limit int) ([]string, error) {
	head, err := r.HeadSHA()
	if err != nil {
		return nil, err
	}

	goGitMu.Lock()
	defer goGitMu.Unlock()

	iter, err := r.Log(&git.LogOptions{From: plumbing.NewHash(head)})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var subjects []string
	for len(subjects) < limit {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		subjects = append(subjects, firstLine(commit.Message))
	}
	return subjects, nil
}

// Subject returns the first message line of a commit
func (r *Repository) Subject(rev string) (string, error) {
	commit, err := r.commit(rev)
	if err != nil {
		return "", err
	}
	return firstLine(commit.Message), nil
}

func (r *Repository) commit(rev string) (*object.Commit, error) {
	goGitMu.Lock()
	defer goGitMu.Unlock()

	hash, err := r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	commit, err := r.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", rev, err)
	}
	return commit, nil
}

func firstLine(message string) string {
	for i := 0; i < len(message); i++ {
		if message[i] == '\n' {
			return message[:i]
		}
	}
	return message
}
