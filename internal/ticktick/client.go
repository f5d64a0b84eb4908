// Package ticktick is a small client for the TickTick Open API.
package ticktick

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL    = "https://api.ticktick.com"
	DefaultRateLimit = 5.0
	DefaultBurst     = 5
	DefaultTimeout   = 15 * time.Second

	inboxProjectID = "inbox"
	maxBodyBytes   = 4 << 20
)

var (
	ErrTaskNotFound = fmt.Errorf("ticktick: %w", model.ErrSourceTaskMissing)
	ErrNoToken      = errors.New("ticktick: access token not set")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticktick: api error (%d): %s", e.StatusCode, e.Body)
}

type Config struct {
	APIURL      string        `koanf:"api_url"`
	WebURL      string        `koanf:"web_url"`
	AccessToken string        `koanf:"access_token"`
	RateLimit   float64       `koanf:"rate_limit"`
	Timeout     time.Duration `koanf:"timeout"`
}

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type apiTask struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	DueDate   string `json:"dueDate"`
	Priority  int    `json:"priority"`
	Status    int    `json:"status"`
}

type projectData struct {
	Project Project   `json:"project"`
	Tasks   []apiTask `json:"tasks"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a client that authenticates with a static bearer token.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrNoToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = timeout

	return &Client{
		httpClient: hc,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), DefaultBurst),
		logger:     logger.Named("ticktick"),
	}, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/open/v1/project", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTasks returns the open tasks of the inbox and every open project.
func (c *Client) ListTasks(ctx context.Context) ([]model.SourceTask, error) {
	ids, err := c.projectIDs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]model.SourceTask, 0)
	for _, pid := range ids {
		tasks, err := c.projectTasks(ctx, pid)
		if err != nil {
			return nil, err
		}
		for _, task := range tasks {
			if seen[task.ID] {
				continue
			}
			seen[task.ID] = true
			out = append(out, task)
		}
	}
	return out, nil
}

// GetTask finds a task by id. The Open API addresses tasks by project, so the
// lookup walks the inbox and the open projects and stops at the first hit.
// Use GetTaskInProject when the project is already known.
func (c *Client) GetTask(ctx context.Context, taskID string) (model.SourceTask, error) {
	ids, err := c.projectIDs(ctx)
	if err != nil {
		return model.SourceTask{}, err
	}
	for _, pid := range ids {
		tasks, err := c.projectTasks(ctx, pid)
		if err != nil {
			return model.SourceTask{}, err
		}
		for _, t := range tasks {
			if t.ID == taskID {
				return t, nil
			}
		}
	}
	return model.SourceTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

func (c *Client) projectIDs(ctx context.Context) ([]string, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{inboxProjectID}
	for _, p := range projects {
		if !p.Closed && p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// projectTasks lists one project. A missing inbox is an empty list.
func (c *Client) projectTasks(ctx context.Context, pid string) ([]model.SourceTask, error) {
	var data projectData
	if err := c.do(ctx, http.MethodGet, "/open/v1/project/"+url.PathEscape(pid)+"/data", &data); err != nil {
		var apiErr *APIError
		if pid == inboxProjectID && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list tasks of project %s: %w", pid, err)
	}
	out := make([]model.SourceTask, 0, len(data.Tasks))
	for _, raw := range data.Tasks {
		if raw.ID == "" {
			continue
		}
		task, convErr := toSourceTask(raw, pid)
		if convErr != nil {
			c.logger.Warn("skipping task with unparsable due date", zap.String("task_id", raw.ID), zap.Error(convErr))
			task.DueAt = nil
		}
		out = append(out, task)
	}
	return out, nil
}

// GetTaskInProject fetches a task from a known project with a single request.
func (c *Client) GetTaskInProject(ctx context.Context, projectID, taskID string) (model.SourceTask, error) {
	var raw apiTask
	path := "/open/v1/project/" + url.PathEscape(projectID) + "/task/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return model.SourceTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return model.SourceTask{}, err
	}
	return toSourceTask(raw, projectID)
}

func (c *Client) CompleteTask(ctx context.Context, projectID, taskID string) error {
	path := "/open/v1/project/" + url.PathEscape(projectID) + "/task/" + url.PathEscape(taskID) + "/complete"
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ticktick: rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ticktick: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ticktick: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("ticktick: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ticktick: decode %s: %w", path, err)
	}
	return nil
}

func toSourceTask(raw apiTask, fallbackProject string) (model.SourceTask, error) {
	task := model.SourceTask{
		ID:        raw.ID,
		ProjectID: raw.ProjectID,
		Title:     raw.Title,
		Content:   raw.Content,
		Priority:  raw.Priority,
		Status:    raw.Status,
	}
	if task.ProjectID == "" && fallbackProject != inboxProjectID {
		task.ProjectID = fallbackProject
	}
	due, err := ParseDate(raw.DueDate)
	if err != nil {
		return task, err
	}
	task.DueAt = due
	return task, nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseDate reads TickTick's dueDate format. An empty string is no due date.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if tm, err := time.Parse(layout, raw); err == nil {
			utc := tm.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("ticktick: unrecognised date %q", raw)
}
