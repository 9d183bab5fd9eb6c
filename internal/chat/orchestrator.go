// ABOUTME: Turn orchestrator: one detached run per inbound user message
// ABOUTME: Drives the tool loop against the provider and persists the finished turn

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskstream/assistant/internal/action"
	"github.com/taskstream/assistant/internal/config"
	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/history"
	"github.com/taskstream/assistant/internal/llm"
	"github.com/taskstream/assistant/internal/llm/openai"
	"github.com/taskstream/assistant/internal/store"
	"github.com/taskstream/assistant/internal/stream"
	"github.com/taskstream/assistant/internal/tools"
)

// ErrDialogueNotOwned is returned when a user addresses someone else's dialogue.
var ErrDialogueNotOwned = errors.New("dialogue does not belong to user")

// State is a run's lifecycle phase. Transitions are strictly forward;
// Failed is reachable from every state before Closed.
type State int

const (
	StateInit State = iota
	StateToolsReady
	StateAgentReady
	StateStreaming
	StatePersisting
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateToolsReady:
		return "tools_ready"
	case StateAgentReady:
		return "agent_ready"
	case StateStreaming:
		return "streaming"
	case StatePersisting:
		return "persisting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ProviderFactory builds a provider for one run's resolved model settings.
type ProviderFactory func(cfg *llm.Config) llm.Provider

// Orchestrator starts a detached run per inbound message. It owns nothing
// per-turn itself; each run gets its own stream, gateway, and tool registry.
type Orchestrator struct {
	store       store.Store
	actions     *action.Registry
	runs        *Runs
	chatCfg     config.ChatConfig
	llmCfg      config.LLMConfig
	newProvider ProviderFactory
	logger      *slog.Logger
}

// NewOrchestrator wires the orchestrator. Pass nil factory to use the
// OpenAI-compatible client; tests inject a fake.
func NewOrchestrator(st store.Store, actions *action.Registry, runs *Runs, chatCfg config.ChatConfig, llmCfg config.LLMConfig, factory ProviderFactory, logger *slog.Logger) *Orchestrator {
	if factory == nil {
		factory = func(cfg *llm.Config) llm.Provider { return openai.New(cfg) }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       st,
		actions:     actions,
		runs:        runs,
		chatCfg:     chatCfg,
		llmCfg:      llmCfg,
		newProvider: factory,
		logger:      logger.With("component", "chat"),
	}
}

// Runs exposes the in-flight run registry.
func (o *Orchestrator) Runs() *Runs {
	return o.runs
}

// Run is one in-flight turn. The HTTP handler that started it drains
// Stream; everything else happens on the run's own goroutine.
type Run struct {
	ID         string
	DialogueID int64
	UserID     int64
	Stream     *stream.Stream
	StartedAt  time.Time

	mu    sync.Mutex
	state State
}

// CurrentState returns the run's lifecycle phase.
func (r *Run) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s State, logger *slog.Logger) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	logger.Debug("run state", "run_id", r.ID, "state", s.String())
}

// StartTurn validates the dialogue, builds the per-turn machinery, and
// launches the run detached. The caller drains run.Stream for delivery; the
// run outlives the inbound request's context.
func (o *Orchestrator) StartTurn(ctx context.Context, dialogueID, userID int64, userMessage string) (*Run, error) {
	dialogue, err := o.store.GetDialogue(ctx, dialogueID)
	if err != nil {
		return nil, fmt.Errorf("loading dialogue %d: %w", dialogueID, err)
	}
	if dialogue.UserID != userID {
		return nil, ErrDialogueNotOwned
	}

	assistantCfg, err := o.store.GetAssistantConfig(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading assistant config: %w", err)
	}

	run := &Run{
		ID:         uuid.NewString(),
		DialogueID: dialogueID,
		UserID:     userID,
		Stream:     stream.New(o.actions, o.chatCfg.ConfirmTimeout, o.logger),
		StartedAt:  time.Now(),
	}
	o.runs.add(run)

	go o.execute(context.WithoutCancel(ctx), run, dialogue, assistantCfg, userMessage)
	return run, nil
}

// execute drives one run to a final state. Exactly one terminal stream event
// is emitted on every path, and a turn is persisted only on success.
func (o *Orchestrator) execute(ctx context.Context, run *Run, dialogue *store.Dialogue, assistantCfg *store.AssistantConfig, userMessage string) {
	logger := o.logger.With("run_id", run.ID, "dialogue_id", run.DialogueID, "user_id", run.UserID)
	defer o.runs.remove(run.ID)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("run panicked", "panic", rec)
			run.Stream.SendError("internal error")
			run.setState(StateFailed, logger)
		}
	}()

	gateway := tools.NewGateway(o.store, run.Stream, run.UserID, assistantCfg.AutoConfirm, logger)
	registry := tools.NewRegistry()
	tools.RegisterAll(registry, gateway)
	run.setState(StateToolsReady, logger)

	provider := o.newProvider(o.resolveLLMConfig(assistantCfg))
	run.setState(StateAgentReady, logger)

	if err := run.Stream.Start(run.DialogueID); err != nil {
		logger.Error("starting stream", "error", err)
		run.Stream.SendError("internal error")
		run.setState(StateFailed, logger)
		return
	}
	run.setState(StateStreaming, logger)

	if err := o.agentLoop(ctx, run, provider, registry, dialogue, assistantCfg, userMessage); err != nil {
		logger.Error("turn failed", "error", err)
		run.Stream.SendError(err.Error())
		run.setState(StateFailed, logger)
		return
	}

	run.setState(StatePersisting, logger)
	run.Stream.EndStream(run.DialogueID)
	turn := content.Turn{User: userMessage, Assistant: run.Stream.FinalContent()}
	if err := o.store.AppendTurn(ctx, run.DialogueID, turn); err != nil {
		// The client already saw the full turn; losing the record is an
		// operational error, not a stream error.
		logger.Error("persisting turn", "error", err)
		run.setState(StateFailed, logger)
		return
	}
	run.setState(StateClosed, logger)
}

// agentLoop runs the bounded multi-round tool loop. Visible tokens route to
// the stream as they arrive; tool calls execute through the gateway and feed
// their results back as tool messages for the next round.
func (o *Orchestrator) agentLoop(ctx context.Context, run *Run, provider llm.Provider, registry *tools.Registry, dialogue *store.Dialogue, assistantCfg *store.AssistantConfig, userMessage string) error {
	window := o.chatCfg.ContextTurns
	if window == 0 {
		window = -1 // unbounded lookback
	}

	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: BuildSystemPrompt(assistantCfg, time.Now()),
	}}
	messages = append(messages, history.Decode(dialogue.Turns, window)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	llmTools := registry.AsLLMTools()
	maxRounds := o.chatCfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = config.DefaultMaxRounds
	}

	for round := 0; round < maxRounds; round++ {
		resp, err := provider.Stream(ctx, messages, llmTools, run.Stream.StreamText)
		if err != nil {
			return fmt.Errorf("provider round %d: %w", round, err)
		}
		if len(resp.ToolCalls) == 0 {
			return nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := o.executeTool(ctx, registry, call)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return fmt.Errorf("tool loop exceeded %d rounds", maxRounds)
}

// executeTool resolves and runs one tool call. Domain failures come back as
// strings from the tool itself; infrastructure errors are folded into a
// string too, so a single bad call never kills the turn.
func (o *Orchestrator) executeTool(ctx context.Context, registry *tools.Registry, call llm.ToolCall) string {
	tool, ok := registry.Get(call.Function.Name)
	if !ok {
		return fmt.Sprintf("Unknown tool %q.", call.Function.Name)
	}
	result, err := tool.Execute(ctx, []byte(call.Function.Arguments))
	if err != nil {
		o.logger.Error("tool execution failed", "tool", call.Function.Name, "error", err)
		return fmt.Sprintf("Tool %s failed: %v", call.Function.Name, err)
	}
	return result
}

// resolveLLMConfig applies the user's per-assistant overrides on top of the
// server defaults.
func (o *Orchestrator) resolveLLMConfig(assistantCfg *store.AssistantConfig) *llm.Config {
	cfg := &llm.Config{
		BaseURL: o.llmCfg.BaseURL,
		APIKey:  o.llmCfg.APIKey,
		Model:   o.llmCfg.Model,
	}
	if assistantCfg.BaseURL != "" {
		cfg.BaseURL = assistantCfg.BaseURL
	}
	if assistantCfg.APIKey != "" {
		cfg.APIKey = assistantCfg.APIKey
	}
	if assistantCfg.Model != "" {
		cfg.Model = assistantCfg.Model
	}
	return cfg
}
