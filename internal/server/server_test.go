// ABOUTME: API scenario tests over a fully wired server with a fake provider
// ABOUTME: Covers auth, resource REST, dialogues, SSE streaming, and actions

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/assistant/internal/action"
	"github.com/taskstream/assistant/internal/chat"
	"github.com/taskstream/assistant/internal/config"
	"github.com/taskstream/assistant/internal/llm"
	"github.com/taskstream/assistant/internal/store"
)

// scriptedProvider returns fixed text, no tool calls.
type scriptedProvider struct {
	text string
}

func (p *scriptedProvider) Complete(_ context.Context, _ []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	return &llm.Response{Content: p.text}, nil
}

func (p *scriptedProvider) Stream(_ context.Context, _ []llm.Message, _ []llm.Tool, onText llm.TextFunc) (*llm.Response, error) {
	if err := onText(p.text); err != nil {
		return nil, err
	}
	return &llm.Response{Content: p.text}, nil
}

type apiFixture struct {
	t       *testing.T
	ts      *httptest.Server
	store   *store.SQLiteStore
	actions *action.Registry
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Chat.ConfirmTimeout = time.Second
	cfg.Chat.ContextTurns = config.DefaultContextTurns
	cfg.Chat.MaxRounds = 3

	actions := action.NewRegistry(nil)
	runs := chat.NewRuns()
	factory := func(_ *llm.Config) llm.Provider { return &scriptedProvider{text: "Hello!"} }
	orch := chat.NewOrchestrator(st, actions, runs, cfg.Chat, cfg.LLM, factory, nil)

	srv := New(cfg, st, orch, actions, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	f := &apiFixture{t: t, ts: ts, store: st, actions: actions}
	f.token = f.register("alice", "hunter2")
	return f
}

func (f *apiFixture) register(username, password string) string {
	f.t.Helper()
	status, body := f.do(http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": username, "password": password})
	require.Equal(f.t, http.StatusCreated, status, "register: %s", body)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(f.t, json.Unmarshal(body, &resp))
	require.NotEmpty(f.t, resp.Token)
	return resp.Token
}

// do performs one JSON request and returns status and raw body.
func (f *apiFixture) do(method, path, token string, payload any) (int, []byte) {
	f.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(f.t, err)
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.ts.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","active_runs":0}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	// Duplicate username.
	status, body := f.do(http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "alice", "password": "other"})
	assert.Equal(t, http.StatusConflict, status, "%s", body)

	// Login with good and bad credentials.
	status, body = f.do(http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "alice", "password": "hunter2"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "token")

	status, _ = f.do(http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Protected routes reject missing tokens.
	status, _ = f.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTaskREST_RoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/api/tasks", f.token, map[string]any{
		"title":         "Buy milk",
		"status":        store.StatusTodo,
		"assigned_date": "2026-08-28",
		"tags":          []string{"errand"},
	})
	require.Equal(t, http.StatusCreated, status, "%s", body)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotZero(t, created.ID)

	status, body = f.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), f.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "Buy milk")

	status, body = f.do(http.MethodPut, fmt.Sprintf("/api/tasks/%d", created.ID), f.token, map[string]any{
		"title":         "Buy milk",
		"status":        store.StatusDone,
		"assigned_date": "2026-08-28",
	})
	require.Equal(t, http.StatusOK, status, "%s", body)

	status, body = f.do(http.MethodGet, "/api/tasks?start_date=2026-08-28&end_date=2026-08-28", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, float64(store.StatusDone), listed[0]["status"])

	status, _ = f.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), f.token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), f.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskREST_OwnershipHidesForeignTask(t *testing.T) {
	f := newAPIFixture(t)
	otherToken := f.register("bob", "secret")

	status, body := f.do(http.MethodPost, "/api/tasks", f.token,
		map[string]any{"title": "private"})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	status, _ = f.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLongTermREST_ProgressFollowsMembers(t *testing.T) {
	f := newAPIFixture(t)

	var memberIDs []int64
	for _, title := range []string{"part 1", "part 2"} {
		status, body := f.do(http.MethodPost, "/api/tasks", f.token,
			map[string]any{"title": title, "status": store.StatusTodo})
		require.Equal(t, http.StatusCreated, status)
		var created struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(body, &created))
		memberIDs = append(memberIDs, created.ID)
	}

	status, body := f.do(http.MethodPost, "/api/long-term-tasks", f.token, map[string]any{
		"title": "Ship feature",
		"sub_task_ids": map[string]float64{
			fmt.Sprint(memberIDs[0]): 0.5,
			fmt.Sprint(memberIDs[1]): 0.5,
		},
	})
	require.Equal(t, http.StatusCreated, status, "%s", body)
	var ltt struct {
		ID       int64   `json:"id"`
		Progress float64 `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(body, &ltt))
	assert.Zero(t, ltt.Progress)

	// Completing one member moves the aggregate to 0.5.
	status, _ = f.do(http.MethodPut, fmt.Sprintf("/api/tasks/%d", memberIDs[0]), f.token,
		map[string]any{"title": "part 1", "status": store.StatusDone})
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(http.MethodGet, fmt.Sprintf("/api/long-term-tasks/%d", ltt.ID), f.token, nil)
	require.Equal(t, http.StatusOK, status)
	var got struct {
		Progress float64 `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.InDelta(t, 0.5, got.Progress, 1e-9)
}

func TestJournalAndMemoREST(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(http.MethodPut, "/api/journals/2026-08-28", f.token,
		map[string]string{"content": "Shipped the release."})
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(http.MethodGet, "/api/journals/2026-08-28", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "Shipped the release.")

	status, body = f.do(http.MethodGet, "/api/journals?start_date=2026-08-01&end_date=2026-08-31", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]string
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 1)

	status, _ = f.do(http.MethodGet, "/api/journals/2026-01-01", f.token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(http.MethodPut, "/api/memo", f.token,
		map[string]string{"content": "call the plumber"})
	require.Equal(t, http.StatusOK, status)
	status, body = f.do(http.MethodGet, "/api/memo", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"content":"call the plumber"}`, string(body))
}

func TestAssistantConfigREST(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodGet, "/api/assistant/config", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"reminders":[]`)

	status, _ = f.do(http.MethodPut, "/api/assistant/config", f.token, map[string]any{
		"model":     "gpt-4o-mini",
		"character": "gentle",
		"auto_confirm": map[string]bool{
			"create": true,
		},
		"reminders": []map[string]string{
			{"schedule": "0 9 * * *", "message": "stand up"},
		},
	})
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(http.MethodGet, "/api/assistant/config", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	var cfg struct {
		Model       string `json:"model"`
		AutoConfirm struct {
			Create bool `json:"create"`
			Delete bool `json:"delete"`
		} `json:"auto_confirm"`
		Reminders []map[string]string `json:"reminders"`
	}
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.True(t, cfg.AutoConfirm.Create)
	assert.False(t, cfg.AutoConfirm.Delete)
	require.Len(t, cfg.Reminders, 1)
}

func TestDialogueREST(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/api/dialogues", f.token,
		map[string]string{"title": "errands"})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = f.do(http.MethodGet, "/api/dialogues", f.token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)

	status, _ = f.do(http.MethodPatch, fmt.Sprintf("/api/dialogues/%d", created.ID), f.token,
		map[string]string{"title": "weekend errands"})
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(http.MethodGet, fmt.Sprintf("/api/dialogues/%d", created.ID), f.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "weekend errands")

	// A second user cannot see it.
	otherToken := f.register("bob", "secret")
	status, _ = f.do(http.MethodGet, fmt.Sprintf("/api/dialogues/%d", created.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(http.MethodDelete, fmt.Sprintf("/api/dialogues/%d", created.ID), f.token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(http.MethodGet, fmt.Sprintf("/api/dialogues/%d", created.ID), f.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStreamMessage_SSE(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/api/dialogues", f.token,
		map[string]string{"title": "chat"})
	require.Equal(t, http.StatusCreated, status)
	var dlg struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &dlg))

	status, body = f.do(http.MethodPost,
		fmt.Sprintf("/api/dialogues/%d/messages/stream", dlg.ID), f.token,
		map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, status)

	raw := string(body)
	// Event order follows the stream grammar, opened by the padded ready event.
	for _, name := range []string{"ready", "start", "partial_text", "text_done", "end"} {
		assert.Contains(t, raw, "event: "+name+"\n", "missing %s event", name)
	}
	assert.Less(t, strings.Index(raw, "event: ready"), strings.Index(raw, "event: start"))
	assert.Contains(t, raw, `"delta":"Hello!"`)

	// The ready payload is JSON like every other event, padded for proxies.
	const readyPrefix = "event: ready\ndata: "
	idx := strings.Index(raw, readyPrefix)
	require.GreaterOrEqual(t, idx, 0)
	readyJSON, _, found := strings.Cut(raw[idx+len(readyPrefix):], "\n")
	require.True(t, found)
	var ready struct {
		Pad string `json:"pad"`
	}
	require.NoError(t, json.Unmarshal([]byte(readyJSON), &ready))
	assert.Len(t, ready.Pad, 4096)

	// The finished turn is persisted; persistence runs after the stream
	// closes, so poll briefly.
	require.Eventually(t, func() bool {
		status, body := f.do(http.MethodGet, fmt.Sprintf("/api/dialogues/%d", dlg.ID), f.token, nil)
		return status == http.StatusOK && strings.Contains(string(body), "Hello!")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStreamMessage_UnknownDialogue(t *testing.T) {
	f := newAPIFixture(t)
	status, _ := f.do(http.MethodPost, "/api/dialogues/999/messages/stream", f.token,
		map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestActions_ConfirmAndCancel(t *testing.T) {
	f := newAPIFixture(t)

	result := make(chan bool, 1)
	go func() {
		result <- f.actions.Wait(context.Background(), "act-1", 5*time.Second)
	}()
	require.Eventually(t, func() bool { return f.actions.PendingCount() == 1 },
		time.Second, 5*time.Millisecond)

	status, body := f.do(http.MethodPost, "/api/actions/act-1/confirm", f.token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true}`, string(body))

	select {
	case confirmed := <-result:
		assert.True(t, confirmed)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke")
	}

	// Re-resolving or touching an unknown id reports 404.
	status, _ = f.do(http.MethodPost, "/api/actions/act-1/confirm", f.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(http.MethodPost, "/api/actions/nope/cancel", f.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestActions_CancelWakesFalse(t *testing.T) {
	f := newAPIFixture(t)

	result := make(chan bool, 1)
	go func() {
		result <- f.actions.Wait(context.Background(), "act-2", 5*time.Second)
	}()
	require.Eventually(t, func() bool { return f.actions.PendingCount() == 1 },
		time.Second, 5*time.Millisecond)

	status, _ := f.do(http.MethodPost, "/api/actions/act-2/cancel", f.token, nil)
	assert.Equal(t, http.StatusOK, status)

	select {
	case confirmed := <-result:
		assert.False(t, confirmed)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke")
	}
}
