// Package errors provides sentinel errors and custom error types for the backport engine.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors for the failure taxonomy
var (
	// ErrInvalidVersionFormat indicates a version string that is not X.Y or manager-X.Y
	ErrInvalidVersionFormat = errors.New("invalid version format")

	// ErrGitOperation indicates a clone, push or cherry-pick continuation failed
	ErrGitOperation = errors.New("git operation failed")

	// ErrRemoteAPI indicates a network or permission failure talking to an external system
	ErrRemoteAPI = errors.New("remote API failure")

	// ErrChainTraceExhausted indicates the back-reference depth bound was hit
	ErrChainTraceExhausted = errors.New("backport chain trace exhausted")

	// ErrSubIssueCreation indicates a sub-task could not be found or created
	ErrSubIssueCreation = errors.New("sub-issue creation failed")

	// ErrNotFound indicates that a remote object does not exist
	ErrNotFound = errors.New("not found")

	// ErrMissingCredentials indicates that a required credential is not configured
	ErrMissingCredentials = errors.New("missing credentials")
)

// InvalidVersionError represents a version string that could not be parsed
type InvalidVersionError struct {
	Value string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version format: %q", e.Value)
}

// Is returns true if the target error is ErrInvalidVersionFormat
func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersionFormat
}

// NewInvalidVersionError creates a new InvalidVersionError
func NewInvalidVersionError(value string) *InvalidVersionError {
	return &InvalidVersionError{Value: value}
}

// RemoteAPIError represents a failed call to the source-control host or the issue tracker
type RemoteAPIError struct {
	System    string // "github" or "jira"
	Operation string
	Status    int
	Err       error
}

func (e *RemoteAPIError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.System, e.Operation)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Is returns true if the target error is ErrRemoteAPI, or ErrNotFound for 404 responses
func (e *RemoteAPIError) Is(target error) bool {
	if target == ErrNotFound {
		return e.Status == 404
	}
	return target == ErrRemoteAPI
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// NewRemoteAPIError creates a new RemoteAPIError
func NewRemoteAPIError(system, operation string, status int, err error) *RemoteAPIError {
	return &RemoteAPIError{
		System:    system,
		Operation: operation,
		Status:    status,
		Err:       err,
	}
}

// SubIssueError represents a failure to create or locate a backport sub-task
type SubIssueError struct {
	ParentKey string
	Version   string
	Err       error
}

func (e *SubIssueError) Error() string {
	msg := fmt.Sprintf("failed to create sub-issue of %s for version %s", e.ParentKey, e.Version)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Is returns true if the target error is ErrSubIssueCreation
func (e *SubIssueError) Is(target error) bool {
	return target == ErrSubIssueCreation
}

func (e *SubIssueError) Unwrap() error {
	return e.Err
}

// NewSubIssueError creates a new SubIssueError
func NewSubIssueError(parentKey, version string, err error) *SubIssueError {
	return &SubIssueError{ParentKey: parentKey, Version: version, Err: err}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

// Is returns true if the target error is ErrGitOperation
func (e *GitCommandError) Is(target error) bool {
	return target == ErrGitOperation
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// NewGitCommandError creates a new GitCommandError.
// Credentials embedded in remote URLs are masked in args and output.
func NewGitCommandError(command string, args []string, stdout, stderr string, err error) *GitCommandError {
	redacted := make([]string, len(args))
	for i, arg := range args {
		redacted[i] = RedactURL(arg)
	}
	return &GitCommandError{
		Command: command,
		Args:    redacted,
		Stdout:  redactText(stdout),
		Stderr:  redactText(stderr),
		Err:     err,
	}
}

// RedactURL masks the password of a URL with user info. Other strings are returned unchanged.
func RedactURL(s string) string {
	if !strings.Contains(s, "://") || !strings.Contains(s, "@") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return s
	}
	return u.Redacted()
}

func redactText(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	fields := strings.Fields(s)
	for _, f := range fields {
		if r := RedactURL(strings.Trim(f, "'\"")); r != strings.Trim(f, "'\"") {
			s = strings.ReplaceAll(s, strings.Trim(f, "'\""), r)
		}
	}
	return s
}
