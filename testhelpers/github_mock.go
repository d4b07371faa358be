package testhelpers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v62/github"

	githubpkg "backport.dev/backport/internal/github"
)

// MockGitHubServerConfig configures the behavior of a mock GitHub server
type MockGitHubServerConfig struct {
	mu sync.Mutex

	// Owner and Repo for the mock server
	Owner string
	Repo  string

	// PRs maps numbers to PR data
	PRs map[int]*github.PullRequest
	// Commits maps SHAs to commits
	Commits map[string]*github.RepositoryCommit
	// BranchCommits maps branch names to commit SHAs, newest first
	BranchCommits map[string][]string
	// Comparisons maps "base...head" to the SHAs in the range
	Comparisons map[string][]string
	// CommitPRs maps a commit SHA to the numbers of its associated PRs
	CommitPRs map[string][]int
	// IssueEvents maps issue numbers to their timeline events
	IssueEvents map[int][]*github.IssueEvent
	// Milestones of the repository
	Milestones []*github.Milestone
	// Users maps logins to users
	Users map[string]*github.User
	// Tags maps "owner/repo" to tag names
	Tags map[string][]string
	// Files maps "owner/repo/path@ref" to file contents
	Files map[string]string
	// Comments stores comment bodies per issue (for testing)
	Comments map[int][]string
	// Assignees stores assigned logins per issue (for testing)
	Assignees map[int][]string
	// ErrorResponses maps "METHOD /path" to an HTTP status to fail with
	ErrorResponses map[string]int

	nextNumber int
}

// NewMockGitHubServerConfig creates a new mock server config with defaults
func NewMockGitHubServerConfig() *MockGitHubServerConfig {
	return &MockGitHubServerConfig{
		Owner:          "owner",
		Repo:           "repo",
		PRs:            make(map[int]*github.PullRequest),
		Commits:        make(map[string]*github.RepositoryCommit),
		BranchCommits:  make(map[string][]string),
		Comparisons:    make(map[string][]string),
		CommitPRs:      make(map[string][]int),
		IssueEvents:    make(map[int][]*github.IssueEvent),
		Users:          make(map[string]*github.User),
		Tags:           make(map[string][]string),
		Files:          make(map[string]string),
		Comments:       make(map[int][]string),
		Assignees:      make(map[int][]string),
		ErrorResponses: make(map[string]int),
		nextNumber:     1,
	}
}

// AddPullRequest seeds a PR
func (c *MockGitHubServerConfig) AddPullRequest(data SamplePRData) *github.PullRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr := NewSamplePullRequest(data)
	c.PRs[data.Number] = pr
	if data.Number >= c.nextNumber {
		c.nextNumber = data.Number + 1
	}
	return pr
}

// AddCommit seeds a commit
func (c *MockGitHubServerConfig) AddCommit(sha, message string, parents ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	commit := &github.RepositoryCommit{
		SHA:    github.String(sha),
		Commit: &github.Commit{Message: github.String(message)},
	}
	for _, p := range parents {
		commit.Parents = append(commit.Parents, &github.Commit{SHA: github.String(p)})
	}
	c.Commits[sha] = commit
}

// LabelsOf returns the label names currently on a PR
func (c *MockGitHubServerConfig) LabelsOf(number int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.PRs[number]
	if !ok {
		return nil
	}
	var names []string
	for _, l := range pr.Labels {
		names = append(names, l.GetName())
	}
	return names
}

// NewMockGitHubServer creates an httptest server that mocks GitHub API endpoints
func NewMockGitHubServer(t *testing.T, config *MockGitHubServerConfig) *httptest.Server {
	if config == nil {
		config = NewMockGitHubServerConfig()
	}

	mux := http.NewServeMux()
	repoPath := "/repos/{owner}/{repo}"

	mux.HandleFunc("GET "+repoPath+"/pulls", config.listPulls)
	mux.HandleFunc("POST "+repoPath+"/pulls", config.createPull)
	mux.HandleFunc("GET "+repoPath+"/pulls/{number}", config.getPull)
	mux.HandleFunc("PATCH "+repoPath+"/pulls/{number}", config.editPull)
	mux.HandleFunc("GET "+repoPath+"/pulls/{number}/commits", config.listPullCommits)
	mux.HandleFunc("POST "+repoPath+"/issues/{number}/labels", config.addLabels)
	mux.HandleFunc("DELETE "+repoPath+"/issues/{number}/labels/{name...}", config.removeLabel)
	mux.HandleFunc("POST "+repoPath+"/issues/{number}/assignees", config.addAssignees)
	mux.HandleFunc("POST "+repoPath+"/issues/{number}/comments", config.createComment)
	mux.HandleFunc("GET "+repoPath+"/issues/{number}/events", config.listEvents)
	mux.HandleFunc("PATCH "+repoPath+"/issues/{number}", config.editIssue)
	mux.HandleFunc("GET "+repoPath+"/milestones", config.listMilestones)
	mux.HandleFunc("POST "+repoPath+"/milestones", config.createMilestone)
	mux.HandleFunc("GET "+repoPath+"/commits", config.listCommits)
	mux.HandleFunc("GET "+repoPath+"/commits/{sha}", config.getCommit)
	mux.HandleFunc("GET "+repoPath+"/commits/{sha}/pulls", config.listCommitPulls)
	mux.HandleFunc("GET "+repoPath+"/compare/{basehead}", config.compare)
	mux.HandleFunc("GET "+repoPath+"/tags", config.listTags)
	mux.HandleFunc("GET "+repoPath+"/contents/{path...}", config.getContents)
	mux.HandleFunc("GET /users/{login}", config.getUser)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		config.mu.Lock()
		status, fail := config.ErrorResponses[r.Method+" "+r.URL.Path]
		config.mu.Unlock()
		if fail {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		config.mu.Lock()
		defer config.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(func() { server.Close() })
	return server
}

// NewMockGitHubClient creates a client bound to owner/repo that talks to a mock server
func NewMockGitHubClient(t *testing.T, config *MockGitHubServerConfig) *githubpkg.RealClient {
	server := NewMockGitHubServer(t, config)
	client := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	client.BaseURL = baseURL
	client.UploadURL = baseURL

	return githubpkg.NewRealClientFromGitHub(client, config.Owner, config.Repo)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (c *MockGitHubServerConfig) pullFromPath(w http.ResponseWriter, r *http.Request) (*github.PullRequest, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		http.Error(w, "Invalid PR number", http.StatusBadRequest)
		return nil, false
	}
	pr, ok := c.PRs[number]
	if !ok {
		notFound(w)
		return nil, false
	}
	return pr, true
}

func (c *MockGitHubServerConfig) sortedPulls() []*github.PullRequest {
	prs := make([]*github.PullRequest, 0, len(c.PRs))
	for _, pr := range c.PRs {
		prs = append(prs, pr)
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].GetNumber() > prs[j].GetNumber() })
	return prs
}

func (c *MockGitHubServerConfig) listPulls(w http.ResponseWriter, r *http.Request) {
	head := r.URL.Query().Get("head")
	state := r.URL.Query().Get("state")
	if state == "" {
		state = "open"
	}

	result := []*github.PullRequest{}
	for _, pr := range c.sortedPulls() {
		if head != "" && pr.GetHead().GetLabel() != head {
			continue
		}
		if state != "all" && pr.GetState() != state {
			continue
		}
		result = append(result, pr)
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *MockGitHubServerConfig) createPull(w http.ResponseWriter, r *http.Request) {
	var req github.NewPullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}

	for _, pr := range c.PRs {
		if pr.GetState() == "open" && pr.GetHead().GetLabel() == req.GetHead() && pr.GetBase().GetRef() == req.GetBase() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"message": "Validation Failed",
				"errors":  []map[string]string{{"message": "A pull request already exists for " + req.GetHead() + "."}},
			})
			return
		}
	}

	number := c.nextNumber
	c.nextNumber++
	pr := NewSamplePullRequest(SamplePRData{
		Number:  number,
		Title:   req.GetTitle(),
		Body:    req.GetBody(),
		Head:    req.GetHead(),
		Base:    req.GetBase(),
		Draft:   req.GetDraft(),
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.com/%s/%s/pull/%d", c.Owner, c.Repo, number),
	})
	c.PRs[number] = pr
	writeJSON(w, http.StatusCreated, pr)
}

func (c *MockGitHubServerConfig) getPull(w http.ResponseWriter, r *http.Request) {
	if pr, ok := c.pullFromPath(w, r); ok {
		writeJSON(w, http.StatusOK, pr)
	}
}

func (c *MockGitHubServerConfig) editPull(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	// The API sends simple fields like {"base": "branch-name"} not {"base": {"ref": "branch-name"}}
	var update struct {
		Title *string `json:"title,omitempty"`
		Body  *string `json:"body,omitempty"`
		State *string `json:"state,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	if update.Title != nil {
		pr.Title = update.Title
	}
	if update.Body != nil {
		pr.Body = update.Body
	}
	if update.State != nil {
		pr.State = update.State
	}
	writeJSON(w, http.StatusOK, pr)
}

func (c *MockGitHubServerConfig) listPullCommits(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	result := []*github.RepositoryCommit{}
	for sha, numbers := range c.CommitPRs {
		for _, n := range numbers {
			if n == pr.GetNumber() {
				if commit, ok := c.Commits[sha]; ok {
					result = append(result, commit)
				}
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GetSHA() < result[j].GetSHA() })
	writeJSON(w, http.StatusOK, result)
}

func (c *MockGitHubServerConfig) addLabels(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	for _, name := range names {
		exists := false
		for _, l := range pr.Labels {
			if l.GetName() == name {
				exists = true
				break
			}
		}
		if !exists {
			pr.Labels = append(pr.Labels, &github.Label{Name: github.String(name)})
		}
	}
	writeJSON(w, http.StatusOK, pr.Labels)
}

func (c *MockGitHubServerConfig) removeLabel(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	name, err := url.PathUnescape(r.PathValue("name"))
	if err != nil {
		name = r.PathValue("name")
	}
	for i, l := range pr.Labels {
		if l.GetName() == name {
			pr.Labels = append(pr.Labels[:i], pr.Labels[i+1:]...)
			writeJSON(w, http.StatusOK, pr.Labels)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Label does not exist"})
}

func (c *MockGitHubServerConfig) addAssignees(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Assignees []string `json:"assignees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	c.Assignees[pr.GetNumber()] = append(c.Assignees[pr.GetNumber()], req.Assignees...)
	writeJSON(w, http.StatusCreated, &github.Issue{Number: pr.Number})
}

func (c *MockGitHubServerConfig) createComment(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	var comment github.IssueComment
	if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	c.Comments[pr.GetNumber()] = append(c.Comments[pr.GetNumber()], comment.GetBody())
	writeJSON(w, http.StatusCreated, comment)
}

func (c *MockGitHubServerConfig) listEvents(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(r.PathValue("number"))
	events := c.IssueEvents[number]
	if events == nil {
		events = []*github.IssueEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (c *MockGitHubServerConfig) editIssue(w http.ResponseWriter, r *http.Request) {
	pr, ok := c.pullFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Milestone *int `json:"milestone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Milestone != nil {
		for _, m := range c.Milestones {
			if m.GetNumber() == *req.Milestone {
				pr.Milestone = m
			}
		}
	}
	writeJSON(w, http.StatusOK, &github.Issue{Number: pr.Number, Milestone: pr.Milestone})
}

func (c *MockGitHubServerConfig) listMilestones(w http.ResponseWriter, _ *http.Request) {
	result := c.Milestones
	if result == nil {
		result = []*github.Milestone{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *MockGitHubServerConfig) createMilestone(w http.ResponseWriter, r *http.Request) {
	var m github.Milestone
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}
	m.Number = github.Int(len(c.Milestones) + 1)
	c.Milestones = append(c.Milestones, &m)
	writeJSON(w, http.StatusCreated, &m)
}

func (c *MockGitHubServerConfig) commitsBySHA(shas []string) []*github.RepositoryCommit {
	result := []*github.RepositoryCommit{}
	for _, sha := range shas {
		if commit, ok := c.Commits[sha]; ok {
			result = append(result, commit)
		}
	}
	return result
}

func (c *MockGitHubServerConfig) listCommits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.commitsBySHA(c.BranchCommits[r.URL.Query().Get("sha")]))
}

func (c *MockGitHubServerConfig) getCommit(w http.ResponseWriter, r *http.Request) {
	commit, ok := c.Commits[r.PathValue("sha")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (c *MockGitHubServerConfig) listCommitPulls(w http.ResponseWriter, r *http.Request) {
	result := []*github.PullRequest{}
	for _, number := range c.CommitPRs[r.PathValue("sha")] {
		if pr, ok := c.PRs[number]; ok {
			result = append(result, pr)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *MockGitHubServerConfig) compare(w http.ResponseWriter, r *http.Request) {
	shas, ok := c.Comparisons[r.PathValue("basehead")]
	if !ok {
		notFound(w)
		return
	}
	commits := c.commitsBySHA(shas)
	writeJSON(w, http.StatusOK, &github.CommitsComparison{
		TotalCommits: github.Int(len(commits)),
		Commits:      commits,
	})
}

func (c *MockGitHubServerConfig) listTags(w http.ResponseWriter, r *http.Request) {
	result := []*github.RepositoryTag{}
	for _, name := range c.Tags[r.PathValue("owner")+"/"+r.PathValue("repo")] {
		result = append(result, &github.RepositoryTag{Name: github.String(name)})
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *MockGitHubServerConfig) getContents(w http.ResponseWriter, r *http.Request) {
	key := fmt.Sprintf("%s/%s/%s@%s", r.PathValue("owner"), r.PathValue("repo"),
		strings.TrimPrefix(r.PathValue("path"), "/"), r.URL.Query().Get("ref"))
	content, ok := c.Files[key]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, &github.RepositoryContent{
		Type:     github.String("file"),
		Name:     github.String(r.PathValue("path")),
		Path:     github.String(r.PathValue("path")),
		Encoding: github.String("base64"),
		Content:  github.String(base64.StdEncoding.EncodeToString([]byte(content))),
	})
}

func (c *MockGitHubServerConfig) getUser(w http.ResponseWriter, r *http.Request) {
	user, ok := c.Users[r.PathValue("login")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
