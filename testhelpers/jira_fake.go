package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/jira"
)

// FakeTracker is an in-memory issue tracker with the method set of jira.Client
type FakeTracker struct {
	mu sync.Mutex

	// Issues maps keys to issues
	Issues map[string]*jira.Issue
	// Descriptions stores the description of created sub-tasks
	Descriptions map[string]jira.Document
	// Users maps email addresses to account ids
	Users map[string]string
	// Assignees maps issue keys to account ids
	Assignees map[string]string
	// Comments stores comments per issue key
	Comments map[string][]jira.Document
	// Errors makes the named method fail ("GetIssue", "SearchIssues", "CreateSubtask",
	// "FindUserByEmail", "AssignIssue", "AddComment")
	Errors map[string]error
	// Created lists sub-task keys in creation order
	Created []string

	nextNumber int
}

// NewFakeTracker creates an empty tracker
func NewFakeTracker() *FakeTracker {
	return &FakeTracker{
		Issues:       make(map[string]*jira.Issue),
		Descriptions: make(map[string]jira.Document),
		Users:        make(map[string]string),
		Assignees:    make(map[string]string),
		Comments:     make(map[string][]jira.Document),
		Errors:       make(map[string]error),
		nextNumber:   1000,
	}
}

// AddIssue seeds a top-level issue
func (f *FakeTracker) AddIssue(key, summary string) *jira.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := &jira.Issue{Key: key, Fields: jira.IssueFields{
		Summary:   summary,
		IssueType: &jira.IssueTypeField{Name: "Task"},
	}}
	f.Issues[key] = issue
	return issue
}

// AddSubtask seeds a sub-task of parentKey
func (f *FakeTracker) AddSubtask(key, parentKey, summary string) *jira.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := newSubtask(key, parentKey, summary)
	f.Issues[key] = issue
	return issue
}

func newSubtask(key, parentKey, summary string) *jira.Issue {
	return &jira.Issue{Key: key, Fields: jira.IssueFields{
		Summary:   summary,
		IssueType: &jira.IssueTypeField{Name: "Sub-task", Subtask: true},
		Parent:    &jira.ParentField{Key: parentKey},
		Project:   &jira.ProjectField{Key: jira.ProjectKey(parentKey)},
	}}
}

// CommentText returns the plain text of every comment on key
func (f *FakeTracker) CommentText(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, doc := range f.Comments[key] {
		texts = append(texts, doc.PlainText())
	}
	return texts
}

func (f *FakeTracker) fail(method string) error {
	if err, ok := f.Errors[method]; ok {
		return err
	}
	return nil
}

// GetIssue implements the tracker lookup
func (f *FakeTracker) GetIssue(_ context.Context, key string) (*jira.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetIssue"); err != nil {
		return nil, err
	}
	issue, ok := f.Issues[key]
	if !ok {
		return nil, bperrors.NewRemoteAPIError("jira", "get issue", 404, fmt.Errorf("issue %s does not exist", key))
	}
	copied := *issue
	return &copied, nil
}

// SearchIssues understands the "parent = KEY" clause only and returns that parent's sub-tasks
func (f *FakeTracker) SearchIssues(_ context.Context, jql string, maxResults int) ([]jira.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SearchIssues"); err != nil {
		return nil, err
	}
	_, rest, ok := strings.Cut(jql, "parent = ")
	if !ok {
		return nil, bperrors.NewRemoteAPIError("jira", "search", 400, fmt.Errorf("unsupported JQL %q", jql))
	}
	parent, _, _ := strings.Cut(rest, " ")

	var result []jira.Issue
	for _, issue := range f.Issues {
		if issue.ParentKey() == parent {
			result = append(result, *issue)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	if maxResults > 0 && len(result) > maxResults {
		result = result[:maxResults]
	}
	return result, nil
}

// CreateSubtask stores a new sub-task under req.ParentKey
func (f *FakeTracker) CreateSubtask(_ context.Context, req jira.SubtaskRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateSubtask"); err != nil {
		return "", err
	}
	parent, ok := f.Issues[req.ParentKey]
	if !ok {
		return "", bperrors.NewRemoteAPIError("jira", "create issue", 400, fmt.Errorf("parent %s does not exist", req.ParentKey))
	}
	if parent.IsSubtask() {
		return "", bperrors.NewRemoteAPIError("jira", "create issue", 400, fmt.Errorf("%s is a sub-task", req.ParentKey))
	}

	key := fmt.Sprintf("%s-%d", jira.ProjectKey(req.ParentKey), f.nextNumber)
	f.nextNumber++
	f.Issues[key] = newSubtask(key, req.ParentKey, req.Summary)
	f.Descriptions[key] = req.Description
	if req.AssigneeAccountID != "" {
		f.Assignees[key] = req.AssigneeAccountID
	}
	f.Created = append(f.Created, key)
	return key, nil
}

// FindUserByEmail returns the account registered for email, or ""
func (f *FakeTracker) FindUserByEmail(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindUserByEmail"); err != nil {
		return "", err
	}
	return f.Users[email], nil
}

// AssignIssue records an assignment
func (f *FakeTracker) AssignIssue(_ context.Context, key, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AssignIssue"); err != nil {
		return err
	}
	if _, ok := f.Issues[key]; !ok {
		return bperrors.NewRemoteAPIError("jira", "assign issue", 404, fmt.Errorf("issue %s does not exist", key))
	}
	f.Assignees[key] = accountID
	return nil
}

// AddComment records a comment
func (f *FakeTracker) AddComment(_ context.Context, key string, body jira.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddComment"); err != nil {
		return err
	}
	if _, ok := f.Issues[key]; !ok {
		return bperrors.NewRemoteAPIError("jira", "add comment", 404, fmt.Errorf("issue %s does not exist", key))
	}
	f.Comments[key] = append(f.Comments[key], body)
	return nil
}
