// Package agent implements the tool-augmented answer loop: one reasoning
// call, at most one round of tool calls, then one final call.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookrag/bookrag/internal/metrics"
	"github.com/bookrag/bookrag/internal/schema"
	"github.com/bookrag/bookrag/internal/shared/llmutils"
)

// ErrBackendUnavailable is set on Result.Err when the tool backend is absent,
// closed or unhealthy.
var ErrBackendUnavailable = errors.New("tool backend unavailable")

// Fixed user-facing responses.
const (
	NoContentMessage          = "I'm not sure how to answer that. Could you rephrase your question?"
	EmptyAfterToolsMessage    = "I searched the catalog but couldn't put together an answer. Please try asking again."
	ApologyMessage            = "Sorry, something went wrong while answering your request. Please try again in a moment."
	BackendUnavailableMessage = "The book search service is currently unavailable. Please try again later."
)

// State is a step of the answer loop.
type State string

const (
	StateStart          State = "Start"
	StateToolsListed    State = "ToolsListed"
	StateFirstInference State = "FirstInference"
	StateDirectAnswer   State = "DirectAnswer"
	StateToolsRequested State = "ToolsRequested"
	StateToolsExecuted  State = "ToolsExecuted"
	StateFinalInference State = "FinalInference"
	StateDone           State = "Done"
)

// ToolBackend lists and executes the tools offered to the model.
type ToolBackend interface {
	ListTools(ctx context.Context) ([]schema.ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// healthReporter is implemented by backends that track connection health.
type healthReporter interface {
	Healthy() bool
}

// Request is one user query with caller-held history and optional
// structured filters.
type Request struct {
	Query   string
	History []schema.Turn
	Filters map[string]any
}

// Result is the outcome of Respond. Response is always user-readable.
type Result struct {
	Response     string
	Conversation schema.Messages
	// State is the last state reached before Done: DirectAnswer or
	// FinalInference on success, the failing state otherwise.
	State State
	Err   error
}

// Assistant runs the answer loop. It holds no per-request state and is safe
// for concurrent use.
type Assistant struct {
	provider schema.LLMProvider
	backend  ToolBackend
	context  *ContextBuilder
	settings schema.AgentSettings
	metrics  *metrics.Metrics
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

func NewAssistant(provider schema.LLMProvider, backend ToolBackend, settings schema.AgentSettings, opts ...Option) *Assistant {
	a := &Assistant{
		provider: provider,
		backend:  backend,
		context:  NewContextBuilder(settings.HistoryWindow),
		settings: settings,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// turn tracks one request's progress so a recovered panic can still report
// where it happened.
type turn struct {
	state        State
	conversation schema.Messages
}

func (t *turn) enter(s State) {
	t.state = s
	slog.Debug("agent: state", "state", s)
}

// Respond answers req. It never panics and never returns a raw error to the
// caller; failures are reported through Result.Response and Result.Err.
func (a *Assistant) Respond(ctx context.Context, req Request) (res Result) {
	t := &turn{state: StateStart}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent: recovered panic", "state", t.state, "panic", r, "stack", string(debug.Stack()))
			res = Result{
				Response:     ApologyMessage,
				Conversation: t.conversation,
				State:        t.state,
				Err:          fmt.Errorf("agent panic in %s: %v", t.state, r),
			}
		}
		a.metrics.ObserveChat(string(res.State), time.Since(start))
	}()

	return a.run(ctx, req, t)
}

func (a *Assistant) run(ctx context.Context, req Request, t *turn) Result {
	fail := func(msg string, err error) Result {
		return Result{Response: msg, Conversation: t.conversation, State: t.state, Err: err}
	}

	// Start
	if !a.backendReady() {
		return fail(BackendUnavailableMessage, ErrBackendUnavailable)
	}
	t.conversation = a.context.BuildMessages(req.History, req.Query, req.Filters)

	// ToolsListed
	specs, err := a.backend.ListTools(ctx)
	if err != nil {
		slog.Warn("agent: listing tools failed", "err", err)
		return fail(BackendUnavailableMessage, fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	}
	t.enter(StateToolsListed)

	byName := make(map[string]schema.ToolSpec, len(specs))
	defs := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
		defs = append(defs, s.Definition())
	}

	// FirstInference
	t.enter(StateFirstInference)
	resp, err := a.chat(ctx, "first", t.conversation, defs)
	if err != nil {
		slog.Error("agent: LLM error", "phase", "first", "err", err)
		return fail(ApologyMessage, err)
	}

	if !resp.HasToolCalls() {
		t.enter(StateDirectAnswer)
		t.conversation.AddAssistant(resp.Content, nil, resp.ReasoningContent)
		answer := ""
		if resp.Content != nil {
			answer = llmutils.StripThink(*resp.Content)
		}
		if strings.TrimSpace(answer) == "" {
			answer = NoContentMessage
		}
		return Result{Response: answer, Conversation: t.conversation, State: t.state}
	}

	// ToolsRequested
	t.enter(StateToolsRequested)
	slog.Info("agent: tools requested", "tools", llmutils.ToolHint(resp.ToolCalls))

	for i, tc := range resp.ToolCalls {
		id := tc.Id
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		if spec, ok := byName[tc.Name]; ok && spec.HasProperty("filters") {
			args = overlayFilters(args, req.Filters)
		}

		// the model's text accompanies only the first call
		var content *string
		if i == 0 {
			content = resp.Content
		}
		t.conversation.AddAssistant(content, []schema.ToolCall{{ID: id, Name: tc.Name, Arguments: args}}, nil)
		t.conversation.AddToolResult(id, tc.Name, a.callTool(ctx, tc.Name, args))
	}
	t.enter(StateToolsExecuted)

	// FinalInference
	t.enter(StateFinalInference)
	final, err := a.chat(ctx, "final", t.conversation, nil)
	if err != nil {
		slog.Error("agent: LLM error", "phase", "final", "err", err)
		return fail(ApologyMessage, err)
	}
	t.conversation.AddAssistant(final.Content, nil, final.ReasoningContent)

	answer := ""
	if final.Content != nil {
		answer = llmutils.StripThink(*final.Content)
	}
	if strings.TrimSpace(answer) == "" {
		answer = EmptyAfterToolsMessage
	}
	return Result{Response: answer, Conversation: t.conversation, State: t.state}
}

func (a *Assistant) backendReady() bool {
	if a.backend == nil {
		return false
	}
	if h, ok := a.backend.(healthReporter); ok {
		return h.Healthy()
	}
	return true
}

func (a *Assistant) chat(ctx context.Context, phase string, conversation schema.Messages, defs []map[string]any) (schema.LLMResponse, error) {
	start := time.Now()
	resp, err := a.provider.Chat(ctx, conversation, defs,
		schema.NewChatOptions(a.settings.Model, a.settings.MaxTokens, a.settings.Temperature))
	a.metrics.ObserveLLM(phase, time.Since(start))
	return resp, err
}

// callTool executes one call. Failures become the tool result text so the
// model can still answer.
func (a *Assistant) callTool(ctx context.Context, name string, args map[string]any) string {
	argsJSON, _ := json.Marshal(args)
	slog.Info("Tool call", "name", name, "args", llmutils.Truncate(string(argsJSON), 200))

	result, err := a.backend.CallTool(ctx, name, args)
	if err != nil {
		slog.Warn("Tool call failed", "name", name, "err", err)
		a.metrics.ToolCall(name, "error")
		return fmt.Sprintf("Error: %v", err)
	}
	a.metrics.ToolCall(name, "ok")
	return result
}

// overlayFilters merges the caller's structured filters into the model's
// filters argument. Caller values win.
func overlayFilters(args, filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return args
	}
	merged := map[string]any{}
	if existing, ok := args["filters"].(map[string]any); ok {
		maps.Copy(merged, existing)
	}
	maps.Copy(merged, filters)

	out := maps.Clone(args)
	out["filters"] = merged
	return out
}
