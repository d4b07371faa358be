// Package subissue links backports to issue-tracker sub-tasks.
//
// An issue hierarchy is at most two levels deep: when the issue a pull request
// fixes is itself a sub-task, backport sub-tasks are filed under its parent.
package subissue

import (
	"context"
	"fmt"
	"strings"

	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/jira"
	"backport.dev/backport/internal/output"
	"backport.dev/backport/internal/version"
)

// searchLimit bounds the sub-tasks inspected per lookup
const searchLimit = 10

// Tracker is the issue-tracker surface the manager needs. *jira.Client implements it.
type Tracker interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]jira.Issue, error)
	CreateSubtask(ctx context.Context, req jira.SubtaskRequest) (string, error)
	FindUserByEmail(ctx context.Context, email string) (string, error)
	AssignIssue(ctx context.Context, key, accountID string) error
	AddComment(ctx context.Context, key string, body jira.Document) error
}

// Options configures a Manager
type Options struct {
	// OrgDomain builds the fallback "<login>@<OrgDomain>" address for assignee lookup
	OrgDomain string
	// RunURL links failure comments to the automation run
	RunURL string
}

// Manager creates and locates backport sub-tasks
type Manager struct {
	tracker Tracker
	opts    Options
	splog   *output.Splog
}

// NewManager creates a Manager. A nil tracker disables issue-tracker integration.
func NewManager(tracker Tracker, opts Options, splog *output.Splog) *Manager {
	if splog == nil {
		splog = output.NewDiscardSplog()
	}
	return &Manager{tracker: tracker, opts: opts, splog: splog}
}

// Enabled reports whether an issue tracker is configured
func (m *Manager) Enabled() bool {
	return m.tracker != nil
}

// Summary returns the title of the sub-task for v
func Summary(v version.Version, title string) string {
	return fmt.Sprintf("[Backport %s] - %s", v, title)
}

// CreateOrFind returns the sub-task tracking the backport of parentKey to v,
// creating it under the effective parent when none exists. accountID is optional.
func (m *Manager) CreateOrFind(ctx context.Context, parentKey string, v version.Version, title, accountID string) (string, error) {
	if !m.Enabled() {
		return "", bperrors.NewSubIssueError(parentKey, v.String(), bperrors.ErrMissingCredentials)
	}

	issue, err := m.tracker.GetIssue(ctx, parentKey)
	if err != nil {
		return "", bperrors.NewSubIssueError(parentKey, v.String(), err)
	}

	effective := parentKey
	if grandparent := issue.ParentKey(); grandparent != "" {
		m.splog.Info("Issue %s is a sub-task of %s, filing backport under %s", parentKey, grandparent, grandparent)
		effective = grandparent
	}

	existing, err := m.findExisting(ctx, effective, v)
	if err != nil {
		return "", bperrors.NewSubIssueError(parentKey, v.String(), err)
	}
	if existing != "" {
		m.splog.Info("Found existing sub-issue %s for %s version %s", existing, effective, v)
		if accountID != "" {
			if err := m.tracker.AssignIssue(ctx, existing, accountID); err != nil {
				m.splog.Warn("Failed to assign %s: %v", existing, err)
			}
		}
		return existing, nil
	}

	description := fmt.Sprintf("Backporting of %s to version %s", parentKey, v)
	if effective != parentKey {
		description = fmt.Sprintf("Backporting of %s (sub-task of %s) to version %s", parentKey, effective, v)
	}
	key, err := m.tracker.CreateSubtask(ctx, jira.SubtaskRequest{
		ParentKey:         effective,
		Summary:           Summary(v, title),
		Description:       jira.NewDocument(jira.Paragraph(jira.Text(description))),
		AssigneeAccountID: accountID,
	})
	if err != nil {
		return "", bperrors.NewSubIssueError(parentKey, v.String(), err)
	}
	m.splog.Info("Created sub-issue %s under %s", key, effective)
	return key, nil
}

func (m *Manager) findExisting(ctx context.Context, parentKey string, v version.Version) (string, error) {
	jql := fmt.Sprintf(`parent = %s AND summary ~ "Backport %s" AND issuetype = Sub-task`, parentKey, v)
	issues, err := m.tracker.SearchIssues(ctx, jql, searchLimit)
	if err != nil {
		return "", err
	}
	for _, issue := range issues {
		if mentionsVersion(issue.Fields.Summary, v) {
			return issue.Key, nil
		}
	}
	return "", nil
}

// mentionsVersion matches "Backport <v>" as a complete token so 2025.4 does not match 2025.40
func mentionsVersion(summary string, v version.Version) bool {
	token := "Backport " + v.String()
	return strings.Contains(summary, token+"]") ||
		strings.Contains(summary, token+" ") ||
		strings.HasSuffix(summary, token)
}

// ResolveAssignee finds the tracker account of a source-control user, by public
// email first and then by <login>@<org domain>. "" means no match.
func (m *Manager) ResolveAssignee(ctx context.Context, login, email string) string {
	if !m.Enabled() {
		return ""
	}
	candidates := []string{}
	if email != "" {
		candidates = append(candidates, email)
	}
	if login != "" && m.opts.OrgDomain != "" {
		candidates = append(candidates, login+"@"+m.opts.OrgDomain)
	}
	for _, address := range candidates {
		accountID, err := m.tracker.FindUserByEmail(ctx, address)
		if err != nil {
			m.splog.Warn("Error searching for tracker user %s: %v", address, err)
			continue
		}
		if accountID != "" {
			m.splog.Debug("Found tracker user for %s: %s", address, accountID)
			return accountID
		}
	}
	m.splog.Warn("Could not find tracker user for %s", login)
	return ""
}

// Mapping maps original issue keys to the keys a backport body should reference
type Mapping map[string]string

// MapVersion files a sub-task for v under each key. A key whose sub-task cannot be
// created maps to itself, gets a failure comment, and sets failed.
func (m *Manager) MapVersion(ctx context.Context, keys []string, v version.Version, title, accountID string) (mapping Mapping, failed bool) {
	mapping = make(Mapping, len(keys))
	if !m.Enabled() {
		return mapping, false
	}
	for _, key := range keys {
		subKey, err := m.CreateOrFind(ctx, key, v, title, accountID)
		if err != nil {
			m.splog.Error("%v", err)
			failed = true
			mapping[key] = key
			if err := m.ReportFailure(ctx, key, v); err != nil {
				m.splog.Error("Failed to add comment to %s: %v", key, err)
			}
			continue
		}
		mapping[key] = subKey
	}
	return mapping, failed
}

// ReportFailure comments on parentKey that the sub-task for v could not be created
func (m *Manager) ReportFailure(ctx context.Context, parentKey string, v version.Version) error {
	if !m.Enabled() {
		return nil
	}
	message := fmt.Sprintf("Failed to create backport sub-issue for version %s.", v)
	paragraph := jira.Paragraph(jira.Text(message))
	if m.opts.RunURL != "" {
		paragraph = jira.Paragraph(jira.Text(message+" "), jira.Link("View workflow run", m.opts.RunURL))
	}
	if err := m.tracker.AddComment(ctx, parentKey, jira.NewDocument(paragraph)); err != nil {
		return err
	}
	m.splog.Info("Added failure comment to %s", parentKey)
	return nil
}
