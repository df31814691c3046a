package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bookrag/bookrag/internal/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chatCall struct {
	messages schema.Messages
	tools    []map[string]any
	opts     schema.ChatOptions
}

type fakeProvider struct {
	responses []schema.LLMResponse
	errs      []error
	calls     []chatCall
	panicOn   int // 1-based call number; 0 disables
}

func (f *fakeProvider) Chat(_ context.Context, messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	f.calls = append(f.calls, chatCall{messages: messages.Clone(), tools: tools, opts: opts})
	n := len(f.calls)
	if n == f.panicOn {
		panic("boom")
	}
	var err error
	if n <= len(f.errs) {
		err = f.errs[n-1]
	}
	if err != nil {
		return schema.LLMResponse{}, err
	}
	if n > len(f.responses) {
		return schema.LLMResponse{}, nil
	}
	return f.responses[n-1], nil
}

func (f *fakeProvider) DefaultModel() string { return "test-model" }

type toolInvocation struct {
	name string
	args map[string]any
}

type fakeBackend struct {
	specs    []schema.ToolSpec
	listErr  error
	results  map[string]string
	callErrs map[string]error
	calls    []toolInvocation
}

func (b *fakeBackend) ListTools(context.Context) ([]schema.ToolSpec, error) {
	return b.specs, b.listErr
}

func (b *fakeBackend) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	b.calls = append(b.calls, toolInvocation{name: name, args: args})
	if err := b.callErrs[name]; err != nil {
		return "", err
	}
	return b.results[name], nil
}

type unhealthyBackend struct{ fakeBackend }

func (unhealthyBackend) Healthy() bool { return false }

func ptr(s string) *string { return &s }

func catalogSpecs() []schema.ToolSpec {
	return []schema.ToolSpec{
		{
			Name:        "context_search",
			Description: "semantic search",
			Parameters:  []byte(`{"type":"object","properties":{"query":{"type":"string"},"filters":{"type":"object"}},"required":["query"]}`),
		},
		{
			Name:        "detail_lookup",
			Description: "lookup",
			Parameters:  []byte(`{"type":"object","properties":{"isbn":{"type":"string"}},"required":["isbn"]}`),
		},
	}
}

func newTestAssistant(p *fakeProvider, b ToolBackend) *Assistant {
	return NewAssistant(p, b, schema.NewAgentSettings("test-model", 0.2, 512, 4))
}

func TestRespond_DirectAnswer(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: ptr("Hello! How can I help?")}}}
	b := &fakeBackend{specs: catalogSpecs()}

	res := newTestAssistant(p, b).Respond(context.Background(), Request{Query: "hi"})

	require.NoError(t, res.Err)
	assert.Equal(t, "Hello! How can I help?", res.Response)
	assert.Equal(t, StateDirectAnswer, res.State)
	require.Len(t, p.calls, 1)
	assert.Len(t, p.calls[0].tools, 2)
	assert.Equal(t, "test-model", p.calls[0].opts.Model)
	for _, m := range res.Conversation.Messages {
		assert.NotEqual(t, "tool", m.Role)
	}
	assert.Empty(t, b.calls)
}

func TestRespond_DirectAnswerDropsThinkBlock(t *testing.T) {
	raw := "<think>greeting</think>\n**Hello!** Ask me about books."
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: ptr(raw)}}}

	res := newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{Query: "hi"})

	require.NoError(t, res.Err)
	assert.Equal(t, "**Hello!** Ask me about books.", res.Response)
	last := res.Conversation.Messages[len(res.Conversation.Messages)-1]
	assert.Equal(t, "assistant", last.Role)
	content, ok := last.Content.(*string)
	require.True(t, ok)
	assert.Equal(t, raw, *content)
}

func TestRespond_EmptyDirectAnswerUsesFallback(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: ptr("  ")}}}
	res := newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{Query: "hi"})
	assert.Equal(t, NoContentMessage, res.Response)
	assert.NoError(t, res.Err)
}

func TestRespond_ToolRoundPairsCalls(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{
		{
			Content: ptr("Let me check."),
			ToolCalls: []schema.ToolCallRequest{
				{Id: "c1", Name: "context_search", Arguments: map[string]any{"query": "space opera"}},
				{Id: "c2", Name: "detail_lookup", Arguments: map[string]any{"isbn": "9780441172719"}},
			},
		},
		{Content: ptr("<think>pick one</think>Try Dune.")},
	}}
	b := &fakeBackend{
		specs:   catalogSpecs(),
		results: map[string]string{"context_search": "1. Dune", "detail_lookup": "Title: Dune"},
	}

	res := newTestAssistant(p, b).Respond(context.Background(), Request{Query: "space opera please"})

	require.NoError(t, res.Err)
	assert.Equal(t, "Try Dune.", res.Response)
	assert.Equal(t, StateFinalInference, res.State)
	require.Len(t, p.calls, 2)
	assert.Empty(t, p.calls[1].tools, "final call must not offer tools")

	// system, user, (assistant, tool) x2
	msgs := p.calls[1].messages.Messages
	require.Len(t, msgs, 6)
	for i, id := range []string{"c1", "c2"} {
		asst := msgs[2+2*i]
		tool := msgs[3+2*i]
		assert.Equal(t, "assistant", asst.Role)
		require.Len(t, asst.ToolCalls, 1)
		assert.Equal(t, id, asst.ToolCalls[0].ID)
		assert.Equal(t, "tool", tool.Role)
		assert.Equal(t, id, tool.ToolCallID)
	}
	assert.Equal(t, "Let me check.", msgs[2].Text())
	assert.Empty(t, msgs[4].Text())
	assert.Equal(t, "1. Dune", msgs[3].Text())
	assert.Equal(t, "Title: Dune", msgs[5].Text())
}

func TestRespond_ToolErrorBecomesResultText(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{
		{ToolCalls: []schema.ToolCallRequest{{Id: "c1", Name: "context_search", Arguments: map[string]any{"query": "x"}}}},
		{Content: ptr("Sorry, nothing found.")},
	}}
	b := &fakeBackend{specs: catalogSpecs(), callErrs: map[string]error{"context_search": errors.New("store down")}}

	res := newTestAssistant(p, b).Respond(context.Background(), Request{Query: "x"})

	require.NoError(t, res.Err)
	assert.Equal(t, "Sorry, nothing found.", res.Response)
	msgs := p.calls[1].messages.Messages
	assert.Equal(t, "Error: store down", msgs[len(msgs)-1].Text())
}

func TestRespond_MissingArgsAndIDs(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{
		{ToolCalls: []schema.ToolCallRequest{{Name: "detail_lookup"}}},
		{Content: ptr("done")},
	}}
	b := &fakeBackend{specs: catalogSpecs(), results: map[string]string{"detail_lookup": "Error: isbn is required"}}

	res := newTestAssistant(p, b).Respond(context.Background(), Request{Query: "x"})

	require.NoError(t, res.Err)
	require.Len(t, b.calls, 1)
	assert.Equal(t, map[string]any{}, b.calls[0].args)

	msgs := p.calls[1].messages.Messages
	id := msgs[2].ToolCalls[0].ID
	assert.NotEmpty(t, id)
	assert.Equal(t, id, msgs[3].ToolCallID)
}

func TestRespond_EmptyFinalUsesFallback(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{
		{ToolCalls: []schema.ToolCallRequest{{Id: "c1", Name: "context_search", Arguments: map[string]any{"query": "x"}}}},
		{},
	}}
	res := newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{Query: "x"})
	assert.Equal(t, EmptyAfterToolsMessage, res.Response)
	assert.NoError(t, res.Err)
}

func TestRespond_FiltersOverlaidOnFilterableTools(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{
		{ToolCalls: []schema.ToolCallRequest{
			{Id: "c1", Name: "context_search", Arguments: map[string]any{
				"query":   "mystery",
				"filters": map[string]any{"maxPrice": 99999, "categoryName": "Novel"},
			}},
			{Id: "c2", Name: "detail_lookup", Arguments: map[string]any{"isbn": "1"}},
		}},
		{Content: ptr("ok")},
	}}
	b := &fakeBackend{specs: catalogSpecs()}

	newTestAssistant(p, b).Respond(context.Background(), Request{
		Query:   "mystery",
		Filters: map[string]any{"maxPrice": 15000},
	})

	require.Len(t, b.calls, 2)
	assert.Equal(t, map[string]any{"maxPrice": 15000, "categoryName": "Novel"}, b.calls[0].args["filters"])
	assert.NotContains(t, b.calls[1].args, "filters")
}

func TestRespond_FiltersReachSystemPrompt(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: ptr("hi")}}}
	newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{
		Query:   "hi",
		Filters: map[string]any{"maxPrice": 20000},
	})
	assert.Contains(t, p.calls[0].messages.Messages[0].Text(), "Maximum price: 20000 won")
}

func TestRespond_BackendUnavailable(t *testing.T) {
	cases := map[string]ToolBackend{
		"nil":        nil,
		"unhealthy":  &unhealthyBackend{fakeBackend{specs: catalogSpecs()}},
		"list fails": &fakeBackend{listErr: errors.New("connection refused")},
	}
	for name, backend := range cases {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{}
			res := newTestAssistant(p, backend).Respond(context.Background(), Request{Query: "x"})
			assert.Equal(t, BackendUnavailableMessage, res.Response)
			assert.ErrorIs(t, res.Err, ErrBackendUnavailable)
			assert.Empty(t, p.calls)
		})
	}
}

func TestRespond_LLMErrorApologizes(t *testing.T) {
	for name, errs := range map[string][]error{
		"first": {errors.New("HTTP 500")},
		"final": {nil, errors.New("HTTP 500")},
	} {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{
				errs: errs,
				responses: []schema.LLMResponse{
					{ToolCalls: []schema.ToolCallRequest{{Id: "c1", Name: "context_search", Arguments: map[string]any{"query": "x"}}}},
				},
			}
			res := newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{Query: "x"})
			assert.Equal(t, ApologyMessage, res.Response)
			assert.Error(t, res.Err)
		})
	}
}

func TestRespond_PanicIsRecovered(t *testing.T) {
	p := &fakeProvider{panicOn: 1}
	res := newTestAssistant(p, &fakeBackend{specs: catalogSpecs()}).Respond(context.Background(), Request{Query: "x"})
	assert.Equal(t, ApologyMessage, res.Response)
	assert.Equal(t, StateFirstInference, res.State)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
}

func TestBuildMessages_WindowAndFiltering(t *testing.T) {
	cb := NewContextBuilder(2)
	cb.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	history := []schema.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply one"},
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "  "},
		{Role: "user", Content: "second"},
		{Role: "assistant", Content: "reply two"},
	}
	msgs := cb.BuildMessages(history, "third", nil)

	require.Len(t, msgs.Messages, 4)
	assert.Equal(t, "system", msgs.Messages[0].Role)
	assert.Contains(t, msgs.Messages[0].Text(), "2024-05-01 09:00")
	assert.NotContains(t, msgs.Messages[0].Text(), "Active Filters")
	assert.Equal(t, "second", msgs.Messages[1].Text())
	assert.Equal(t, "reply two", msgs.Messages[2].Text())
	assert.Equal(t, "third", msgs.Messages[3].Text())
}

func TestSummarizeFilters(t *testing.T) {
	cb := NewContextBuilder(0)
	prompt := cb.BuildSystemPrompt(map[string]any{
		"categoryName":       "Essay",
		"minRating":          4.5,
		"minPublicationDate": "2020-01-15",
	})
	assert.Contains(t, prompt, "- Category: Essay")
	assert.Contains(t, prompt, "- Minimum rating: 4.5")
	assert.Contains(t, prompt, "- Published on or after: 2020-01-15")
}
