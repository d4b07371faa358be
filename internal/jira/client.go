// Package jira is a minimal client for the Jira Cloud REST API (v3).
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	bperrors "backport.dev/backport/internal/errors"
)

const (
	apiPath        = "/rest/api/3/"
	defaultTimeout = 30 * time.Second
	// DefaultRequestsPerSecond paces calls when no rate is configured
	DefaultRequestsPerSecond = 5
)

// Client provides HTTP access to a Jira instance
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for baseURL authenticating with auth in "user:token" form.
// requestsPerSecond <= 0 selects DefaultRequestsPerSecond.
func NewClient(baseURL, auth string, requestsPerSecond float64) (*Client, error) {
	username, token, ok := strings.Cut(auth, ":")
	if !ok || username == "" || token == "" {
		return nil, fmt.Errorf("jira auth must be user:token: %w", bperrors.ErrMissingCredentials)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("jira base URL not configured")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		apiToken:   token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}, nil
}

// GetIssue fetches a single issue by key
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	endpoint := "issue/" + url.PathEscape(key) + "?fields=summary,issuetype,parent,project"
	var issue Issue
	if err := c.do(ctx, "get issue", http.MethodGet, endpoint, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// SearchIssues runs a JQL query and returns up to maxResults issues
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	params := url.Values{
		"jql":        {jql},
		"fields":     {"summary,issuetype,parent"},
		"maxResults": {fmt.Sprintf("%d", maxResults)},
	}
	var result struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.do(ctx, "search", http.MethodGet, "search/jql?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// CreateSubtask creates a sub-task and returns its key
func (c *Client) CreateSubtask(ctx context.Context, req SubtaskRequest) (string, error) {
	fields := map[string]interface{}{
		"project":     map[string]string{"key": ProjectKey(req.ParentKey)},
		"parent":      map[string]string{"key": req.ParentKey},
		"summary":     req.Summary,
		"description": req.Description,
		"issuetype":   map[string]string{"name": "Sub-task"},
	}
	if req.AssigneeAccountID != "" {
		fields["assignee"] = map[string]string{"accountId": req.AssigneeAccountID}
	}

	var created struct {
		Key string `json:"key"`
	}
	payload := map[string]interface{}{"fields": fields}
	if err := c.do(ctx, "create issue", http.MethodPost, "issue", payload, &created); err != nil {
		return "", err
	}
	if created.Key == "" {
		return "", bperrors.NewRemoteAPIError("jira", "create issue", 0, fmt.Errorf("response carried no issue key"))
	}
	return created.Key, nil
}

// FindUserByEmail returns the account id of the first user matching email, or "" if none
func (c *Client) FindUserByEmail(ctx context.Context, email string) (string, error) {
	var users []UserField
	endpoint := "user/search?" + url.Values{"query": {email}}.Encode()
	if err := c.do(ctx, "search users", http.MethodGet, endpoint, nil, &users); err != nil {
		return "", err
	}
	for _, u := range users {
		if u.AccountID != "" {
			return u.AccountID, nil
		}
	}
	return "", nil
}

// AssignIssue assigns an issue to an account
func (c *Client) AssignIssue(ctx context.Context, key, accountID string) error {
	payload := map[string]string{"accountId": accountID}
	return c.do(ctx, "assign issue", http.MethodPut, "issue/"+url.PathEscape(key)+"/assignee", payload, nil)
}

// AddComment comments on an issue
func (c *Client) AddComment(ctx context.Context, key string, body Document) error {
	payload := map[string]interface{}{"body": body}
	return c.do(ctx, "add comment", http.MethodPost, "issue/"+url.PathEscape(key)+"/comment", payload, nil)
}

// do executes an authenticated, paced request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return bperrors.NewRemoteAPIError("jira", op, 0, err)
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.apiToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return bperrors.NewRemoteAPIError("jira", op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return bperrors.NewRemoteAPIError("jira", op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bperrors.NewRemoteAPIError("jira", op, resp.StatusCode,
			fmt.Errorf("jira API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return bperrors.NewRemoteAPIError("jira", op, resp.StatusCode, fmt.Errorf("parse response: %w", err))
	}
	return nil
}
