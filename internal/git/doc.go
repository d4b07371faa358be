// Package git provides low-level Git operations.
//
// Mutations (clone, branch, cherry-pick, push) shell out to the git binary
// through CommandRunner. Read-only inspection of a clone uses go-git.
//
// This package should be the only place where direct git commands are executed.
package git
