// ABOUTME: Tests for the turn orchestrator with a scripted fake provider
// ABOUTME: Covers the happy path, tool rounds, failures, and persistence policy

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/assistant/internal/action"
	"github.com/taskstream/assistant/internal/config"
	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/history"
	"github.com/taskstream/assistant/internal/llm"
	"github.com/taskstream/assistant/internal/store"
	"github.com/taskstream/assistant/internal/stream"
)

// round is one scripted provider response.
type round struct {
	text      []string
	toolCalls []llm.ToolCall
	err       error
}

// fakeProvider replays scripted rounds.
type fakeProvider struct {
	rounds []round
	calls  int
	seen   [][]llm.Message
}

func (f *fakeProvider) Complete(_ context.Context, _ []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Stream(_ context.Context, messages []llm.Message, _ []llm.Tool, onText llm.TextFunc) (*llm.Response, error) {
	f.seen = append(f.seen, messages)
	if f.calls >= len(f.rounds) {
		// Keep requesting tools forever; used by the round-bound test.
		last := f.rounds[len(f.rounds)-1]
		f.calls++
		return &llm.Response{ToolCalls: last.toolCalls}, nil
	}
	r := f.rounds[f.calls]
	f.calls++
	if r.err != nil {
		return nil, r.err
	}
	var full string
	for _, t := range r.text {
		if err := onText(t); err != nil {
			return nil, err
		}
		full += t
	}
	return &llm.Response{Content: full, ToolCalls: r.toolCalls}, nil
}

type orchFixture struct {
	store *store.SQLiteStore
	orch  *Orchestrator
	runs  *Runs
	user  *store.User
	dlg   *store.Dialogue
}

func newOrchFixture(t *testing.T, provider llm.Provider) *orchFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	user := &store.User{Username: "alice", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(t.Context(), user))
	dlg := &store.Dialogue{UserID: user.ID, Title: "errands"}
	require.NoError(t, st.CreateDialogue(t.Context(), dlg))

	// Auto-confirm everything so tool calls never suspend on the gate.
	require.NoError(t, st.SaveAssistantConfig(t.Context(), &store.AssistantConfig{
		UserID:      user.ID,
		AutoConfirm: store.AutoConfirm{Create: true, Update: true, Delete: true, Reminder: true},
	}))

	chatCfg := config.ChatConfig{
		ConfirmTimeout: time.Second,
		ContextTurns:   config.DefaultContextTurns,
		MaxRounds:      3,
	}
	llmCfg := config.LLMConfig{BaseURL: "http://unused", Model: "test-model"}
	runs := NewRuns()
	factory := func(_ *llm.Config) llm.Provider { return provider }
	orch := NewOrchestrator(st, action.NewRegistry(nil), runs, chatCfg, llmCfg, factory, nil)
	return &orchFixture{store: st, orch: orch, runs: runs, user: user, dlg: dlg}
}

// drain consumes the run's stream until the terminal sentinel.
func drain(t *testing.T, r *Run) []stream.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	var events []stream.Event
	for {
		ev, err := r.Stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func names(events []stream.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}

func TestStartTurn_PlainTextTurn(t *testing.T) {
	provider := &fakeProvider{rounds: []round{
		{text: []string{"Hello", " there"}},
	}}
	f := newOrchFixture(t, provider)

	run, err := f.orch.StartTurn(t.Context(), f.dlg.ID, f.user.ID, "hi")
	require.NoError(t, err)

	events := drain(t, run)
	assert.Equal(t, []string{
		stream.EventStart, stream.EventPartialText, stream.EventPartialText,
		stream.EventTextDone, stream.EventEnd,
	}, names(events))

	require.Eventually(t, func() bool {
		dlg, err := f.store.GetDialogue(t.Context(), f.dlg.ID)
		return err == nil && len(dlg.Turns) == 1
	}, 5*time.Second, 10*time.Millisecond)

	dlg, err := f.store.GetDialogue(t.Context(), f.dlg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", dlg.Turns[0].User)
	assert.Equal(t, "Hello there", dlg.Turns[0].PlainText())
}

func TestStartTurn_ToolRoundCreatesTask(t *testing.T) {
	provider := &fakeProvider{rounds: []round{
		{
			text: []string{"Creating it now."},
			toolCalls: []llm.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: llm.FunctionCall{
					Name:      "create_task",
					Arguments: `{"title":"Buy milk"}`,
				},
			}},
		},
		{text: []string{"Done!"}},
	}}
	f := newOrchFixture(t, provider)

	run, err := f.orch.StartTurn(t.Context(), f.dlg.ID, f.user.ID, "add buy milk")
	require.NoError(t, err)

	events := drain(t, run)
	assert.Equal(t, []string{
		stream.EventStart, stream.EventPartialText, stream.EventCards,
		stream.EventPartialText, stream.EventTextDone, stream.EventEnd,
	}, names(events))

	tasks, err := f.store.ListTasks(t.Context(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)

	// The tool result reached the second round as a tool message.
	require.Len(t, provider.seen, 2)
	secondRound := provider.seen[1]
	last := secondRound[len(secondRound)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Task created with ID")

	// Persisted turn carries the mixed record: text, card, text.
	require.Eventually(t, func() bool {
		dlg, err := f.store.GetDialogue(t.Context(), f.dlg.ID)
		return err == nil && len(dlg.Turns) == 1
	}, 5*time.Second, 10*time.Millisecond)
	dlg, err := f.store.GetDialogue(t.Context(), f.dlg.ID)
	require.NoError(t, err)
	items := dlg.Turns[0].Assistant
	require.Len(t, items, 3)
	assert.Equal(t, "Creating it now.", items[0].Text)
	require.NotNil(t, items[1].Card)
	assert.Equal(t, "Done!", items[2].Text)
}

func TestStartTurn_ProviderFailureEmitsErrorAndSkipsPersist(t *testing.T) {
	provider := &fakeProvider{rounds: []round{
		{err: errors.New("upstream 500")},
	}}
	f := newOrchFixture(t, provider)

	run, err := f.orch.StartTurn(t.Context(), f.dlg.ID, f.user.ID, "hi")
	require.NoError(t, err)

	events := drain(t, run)
	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventError, events[len(events)-1].Name)

	// Failed runs never persist a turn.
	require.Eventually(t, func() bool { return f.runs.Len() == 0 },
		5*time.Second, 10*time.Millisecond)
	dlg, err := f.store.GetDialogue(t.Context(), f.dlg.ID)
	require.NoError(t, err)
	assert.Empty(t, dlg.Turns)
}

func TestStartTurn_RoundBound(t *testing.T) {
	provider := &fakeProvider{rounds: []round{
		{toolCalls: []llm.ToolCall{{
			ID: "call_x", Type: "function",
			Function: llm.FunctionCall{Name: "get_memo", Arguments: `{}`},
		}}},
	}}
	f := newOrchFixture(t, provider)

	run, err := f.orch.StartTurn(t.Context(), f.dlg.ID, f.user.ID, "loop forever")
	require.NoError(t, err)

	events := drain(t, run)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventError, last.Name)
	assert.Contains(t, string(last.Data), "exceeded 3 rounds")
}

func TestStartTurn_ZeroContextTurnsIsUnbounded(t *testing.T) {
	provider := &fakeProvider{rounds: []round{
		{text: []string{"ok"}},
	}}
	f := newOrchFixture(t, provider)

	// Seed more history than the default window holds.
	seeded := history.DefaultWindow + 2
	for i := 0; i < seeded; i++ {
		require.NoError(t, f.store.AppendTurn(t.Context(), f.dlg.ID, content.Turn{
			User:      fmt.Sprintf("msg %d", i),
			Assistant: []content.Item{{Text: "ack"}},
		}))
	}

	chatCfg := config.ChatConfig{
		ConfirmTimeout: time.Second,
		ContextTurns:   0, // unbounded lookback
		MaxRounds:      3,
	}
	factory := func(_ *llm.Config) llm.Provider { return provider }
	orch := NewOrchestrator(f.store, action.NewRegistry(nil), f.runs, chatCfg, config.LLMConfig{}, factory, nil)

	run, err := orch.StartTurn(t.Context(), f.dlg.ID, f.user.ID, "hi")
	require.NoError(t, err)
	drain(t, run)

	// System prompt + two messages per seeded turn + the new user message.
	require.Len(t, provider.seen, 1)
	assert.Len(t, provider.seen[0], 1+2*seeded+1)
	assert.Equal(t, "msg 0", provider.seen[0][1].Content)
}

func TestStartTurn_RejectsForeignDialogue(t *testing.T) {
	f := newOrchFixture(t, &fakeProvider{rounds: []round{{}}})

	other := &store.User{Username: "bob", PasswordHash: "y"}
	require.NoError(t, f.store.CreateUser(t.Context(), other))

	_, err := f.orch.StartTurn(t.Context(), f.dlg.ID, other.ID, "hi")
	assert.ErrorIs(t, err, ErrDialogueNotOwned)
}

func TestStartTurn_UnknownDialogue(t *testing.T) {
	f := newOrchFixture(t, &fakeProvider{rounds: []round{{}}})

	_, err := f.orch.StartTurn(t.Context(), 9999, f.user.ID, "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRuns_TracksInFlight(t *testing.T) {
	runs := NewRuns()
	run := &Run{ID: "r1", DialogueID: 2, UserID: 3, StartedAt: time.Now()}
	runs.add(run)

	assert.Equal(t, 1, runs.Len())
	snap := runs.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "r1", snap[0].ID)
	assert.Equal(t, StateInit, snap[0].State)

	runs.remove("r1")
	assert.Equal(t, 0, runs.Len())
}
