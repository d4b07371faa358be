package version

import (
	"strings"
)

const (
	primaryBranchPrefix = "branch-"
	gatedBranchPrefix   = "next-"
)

// Registry maps versions to target branches following the repository conventions.
// The primary repository gates through a shared integration branch and receives
// backports directly on branch-X.Y; every other repository gates each version on next-X.Y.
type Registry struct {
	PrimaryRepo string
}

// NewRegistry creates a Registry for the given primary repository ("owner/name")
func NewRegistry(primaryRepo string) *Registry {
	return &Registry{PrimaryRepo: primaryRepo}
}

// TargetBranch returns the branch a tracking PR for v targets in repo
func (r *Registry) TargetBranch(repo string, v Version) string {
	if v.IsManager() {
		return v.String()
	}
	if strings.EqualFold(repo, r.PrimaryRepo) {
		return primaryBranchPrefix + v.String()
	}
	return gatedBranchPrefix + v.String()
}

// IsGatingBranch reports whether branch is an integration branch that precedes promotion
func IsGatingBranch(branch string) bool {
	return branch == "next" || strings.HasPrefix(branch, gatedBranchPrefix)
}

// FromBranch extracts the version a stable branch carries.
// manager-X.Y is itself; otherwise the trailing X.Y after the last '-'.
func FromBranch(branch string) (Version, error) {
	if strings.HasPrefix(branch, ManagerPrefix) {
		return Parse(branch)
	}
	tail := branch
	if idx := strings.LastIndex(branch, "-"); idx >= 0 {
		tail = branch[idx+1:]
	}
	return Parse(tail)
}
