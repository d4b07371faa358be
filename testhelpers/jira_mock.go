package testhelpers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	bperrors "backport.dev/backport/internal/errors"
	"backport.dev/backport/internal/jira"
)

// MockJiraServer serves the Jira REST endpoints the engine uses, backed by a FakeTracker
type MockJiraServer struct {
	*httptest.Server
	Tracker *FakeTracker

	mu sync.Mutex
	// ErrorResponses maps "METHOD /path" to an HTTP status to fail with
	ErrorResponses map[string]int
	// Requests records "METHOD /path" of every request served
	Requests []string
}

// NewMockJiraServer starts a mock Jira API over tracker
func NewMockJiraServer(t *testing.T, tracker *FakeTracker) *MockJiraServer {
	if tracker == nil {
		tracker = NewFakeTracker()
	}
	m := &MockJiraServer{Tracker: tracker, ErrorResponses: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/3/issue/{key}", m.getIssue)
	mux.HandleFunc("GET /rest/api/3/search/jql", m.search)
	mux.HandleFunc("POST /rest/api/3/issue", m.createIssue)
	mux.HandleFunc("GET /rest/api/3/user/search", m.searchUsers)
	mux.HandleFunc("PUT /rest/api/3/issue/{key}/assignee", m.assign)
	mux.HandleFunc("POST /rest/api/3/issue/{key}/comment", m.comment)

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		key := r.Method + " " + r.URL.Path
		m.mu.Lock()
		m.Requests = append(m.Requests, key)
		status, fail := m.ErrorResponses[key]
		m.mu.Unlock()
		if fail {
			writeJSON(w, status, map[string][]string{"errorMessages": {http.StatusText(status)}})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// NewMockJiraClient creates a jira.Client talking to a mock server
func NewMockJiraClient(t *testing.T, server *MockJiraServer) *jira.Client {
	client, err := jira.NewClient(server.URL, "bot@example.com:token", 1000)
	if err != nil {
		t.Fatalf("failed to create jira client: %v", err)
	}
	return client
}

func writeTrackerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *bperrors.RemoteAPIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		status = apiErr.Status
	}
	writeJSON(w, status, map[string][]string{"errorMessages": {err.Error()}})
}

func (m *MockJiraServer) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := m.Tracker.GetIssue(r.Context(), r.PathValue("key"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (m *MockJiraServer) search(w http.ResponseWriter, r *http.Request) {
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	issues, err := m.Tracker.SearchIssues(r.Context(), r.URL.Query().Get("jql"), maxResults)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	if issues == nil {
		issues = []jira.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

func (m *MockJiraServer) createIssue(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Fields struct {
			Project   jira.ProjectField   `json:"project"`
			Parent    jira.ParentField    `json:"parent"`
			Summary   string              `json:"summary"`
			IssueType jira.IssueTypeField `json:"issuetype"`
			Assignee  *jira.UserField     `json:"assignee"`
			Desc      jira.Document       `json:"description"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errorMessages": {err.Error()}})
		return
	}
	if payload.Fields.IssueType.Name != "Sub-task" || payload.Fields.Project.Key != jira.ProjectKey(payload.Fields.Parent.Key) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errorMessages": {"invalid sub-task fields"}})
		return
	}
	req := jira.SubtaskRequest{
		ParentKey:   payload.Fields.Parent.Key,
		Summary:     payload.Fields.Summary,
		Description: payload.Fields.Desc,
	}
	if payload.Fields.Assignee != nil {
		req.AssigneeAccountID = payload.Fields.Assignee.AccountID
	}
	key, err := m.Tracker.CreateSubtask(r.Context(), req)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (m *MockJiraServer) searchUsers(w http.ResponseWriter, r *http.Request) {
	accountID, err := m.Tracker.FindUserByEmail(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	users := []jira.UserField{}
	if accountID != "" {
		users = append(users, jira.UserField{AccountID: accountID})
	}
	writeJSON(w, http.StatusOK, users)
}

func (m *MockJiraServer) assign(w http.ResponseWriter, r *http.Request) {
	var payload jira.UserField
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errorMessages": {err.Error()}})
		return
	}
	if err := m.Tracker.AssignIssue(r.Context(), r.PathValue("key"), payload.AccountID); err != nil {
		writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockJiraServer) comment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body jira.Document `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errorMessages": {err.Error()}})
		return
	}
	if err := m.Tracker.AddComment(r.Context(), r.PathValue("key"), payload.Body); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": "1"})
}
