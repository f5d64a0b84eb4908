package ticktick

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/taskpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), Config{APIURL: srv.URL, AccessToken: "tok", RateLimit: 1000}, nil)
	require.NoError(t, err)
	return c
}

func fakeAPI(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/open/v1/project", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id":"P1","name":"Work"},{"id":"P2","name":"Old","closed":true}]`)
	})
	mux.HandleFunc("/open/v1/project/inbox/data", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"project":{"id":"inbox"},"tasks":[{"id":"T0","projectId":"inbox123","title":"Inbox item","priority":0,"status":0}]}`)
	})
	mux.HandleFunc("/open/v1/project/P1/data", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"project":{"id":"P1"},"tasks":[
			{"id":"T1","projectId":"P1","title":"Write report","content":"Q3","dueDate":"2026-03-01T17:00:00.000+0000","priority":5,"status":0},
			{"id":"T2","title":"Call bank","dueDate":"not a date","priority":1,"status":0}
		]}`)
	})
	mux.HandleFunc("/open/v1/project/P2/data", func(w http.ResponseWriter, r *http.Request) {
		t.Error("closed projects must not be listed")
	})
	return mux
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestListTasks(t *testing.T) {
	c := newTestClient(t, fakeAPI(t))

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, "T0", tasks[0].ID)
	assert.Equal(t, "inbox123", tasks[0].ProjectID)

	assert.Equal(t, "T1", tasks[1].ID)
	assert.Equal(t, "P1", tasks[1].ProjectID)
	assert.Equal(t, 5, tasks[1].Priority)
	require.NotNil(t, tasks[1].DueAt)
	assert.True(t, tasks[1].DueAt.Equal(time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)))

	// project id falls back to the listing project, bad dates are dropped
	assert.Equal(t, "P1", tasks[2].ProjectID)
	assert.Nil(t, tasks[2].DueAt)
}

func TestGetTask(t *testing.T) {
	c := newTestClient(t, fakeAPI(t))

	task, err := c.GetTask(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "P1", task.ProjectID)

	_, err = c.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTaskStopsAtFirstMatch(t *testing.T) {
	var projectCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/open/v1/project", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"P1"},{"id":"P2"}]`)
	})
	mux.HandleFunc("/open/v1/project/inbox/data", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/open/v1/project/P1/data", func(w http.ResponseWriter, r *http.Request) {
		projectCalls.Add(1)
		fmt.Fprint(w, `{"tasks":[{"id":"T1","projectId":"P1","title":"Write report"}]}`)
	})
	mux.HandleFunc("/open/v1/project/P2/data", func(w http.ResponseWriter, r *http.Request) {
		t.Error("lookup must stop once the task is found")
	})
	c := newTestClient(t, mux)

	task, err := c.GetTask(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "P1", task.ProjectID)
	assert.EqualValues(t, 1, projectCalls.Load())
}

func TestTaskNotFoundMatchesModelSentinel(t *testing.T) {
	require.ErrorIs(t, ErrTaskNotFound, model.ErrSourceTaskMissing)
}

func TestGetTaskInProject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/open/v1/project/P1/task/T1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"T1","projectId":"P1","title":"Write report"}`)
	})
	c := newTestClient(t, mux)

	task, err := c.GetTaskInProject(context.Background(), "P1", "T1")
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)

	_, err = c.GetTaskInProject(context.Background(), "P1", "T9")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestCompleteTask(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/open/v1/project/P1/task/T1/complete", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		calls.Add(1)
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.CompleteTask(context.Background(), "P1", "T1"))
	assert.EqualValues(t, 1, calls.Load())
}

func TestAPIErrorSurface(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := c.ListTasks(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, fakeAPI(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListTasks(ctx)
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T17:00:00.000+0000", time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)},
		{"2026-03-01T19:00:00+0200", time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)},
		{"2026-03-01T17:00:00Z", time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		require.NoError(t, err, tc.in)
		require.NotNil(t, got)
		assert.True(t, got.Equal(tc.want), tc.in)
		assert.Equal(t, time.UTC, got.Location())
	}

	got, err := ParseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("yesterday")
	require.Error(t, err)
}
