package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/bookrag/bookrag/internal/schema"
)

// OpenAIProvider calls any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client       openai.Client
	apiBase      string
	defaultModel string
	spec         *ProviderSpec
}

// NewOpenAIProvider constructs a provider from raw config values.
// The caller extracts these from config.Config to avoid an import cycle.
func NewOpenAIProvider(apiKey, apiBase, defaultModel, providerName string, extraHeaders map[string]string) *OpenAIProvider {
	spec := FindByName(providerName)
	if spec == nil {
		spec = FindByModel(defaultModel)
	}

	effectiveBase := apiBase
	if effectiveBase == "" && spec != nil {
		effectiveBase = spec.DefaultAPIBase
	}
	if effectiveBase == "" {
		effectiveBase = defaultAPIBase
	}
	effectiveBase = strings.TrimRight(effectiveBase, "/") + "/"

	opts := []option.RequestOption{
		option.WithBaseURL(effectiveBase),
		option.WithAPIKey(apiKey),
	}
	for k, v := range extraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &OpenAIProvider{
		client:       openai.NewClient(opts...),
		apiBase:      effectiveBase,
		defaultModel: defaultModel,
		spec:         spec,
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Chat implements schema.LLMProvider. Transport and API errors are returned
// as errors; the caller decides how to present them.
func (p *OpenAIProvider) Chat(
	ctx context.Context,
	messages schema.Messages,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.resolveModel(model)),
		Messages:  toWireMessages(messages),
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = toWireTools(tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return schema.LLMResponse{}, fmt.Errorf("chat completion: HTTP %d: %s", apiErr.StatusCode, friendlyError(apiErr))
		}
		return schema.LLMResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return schema.LLMResponse{}, errors.New("chat completion: no choices in response")
	}

	choice := resp.Choices[0]
	out := schema.LLMResponse{
		FinishReason: string(choice.FinishReason),
		Usage: map[string]int{
			"input_tokens":  int(resp.Usage.PromptTokens),
			"output_tokens": int(resp.Usage.CompletionTokens),
		},
	}
	if content := choice.Message.Content; content != "" {
		out.Content = &content
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCallRequest{
			Id:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArguments(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return out, nil
}

// resolveModel strips a known provider-name prefix ("deepseek/deepseek-chat").
func (p *OpenAIProvider) resolveModel(model string) string {
	if p.spec != nil && p.spec.KeepModelPrefix {
		return model
	}
	if i := strings.Index(model, "/"); i > 0 {
		if FindByName(strings.ReplaceAll(strings.ToLower(model[:i]), "-", "_")) != nil {
			return model[i+1:]
		}
	}
	return model
}

// ---------------------------------------------------------------------------
// Wire conversion
// ---------------------------------------------------------------------------

func toWireMessages(messages schema.Messages) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Text()))
		case "user":
			out = append(out, openai.UserMessage(m.Text()))
		case "tool":
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID))
		case "assistant":
			asst := openai.ChatCompletionAssistantMessageParam{}
			if s := m.Text(); s != "" {
				asst.Content.OfString = openai.String(s)
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return out
}

func toWireTools(defs []map[string]any) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		fn, _ := d["function"].(map[string]any)
		if fn == nil {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)

		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(desc),
				Parameters:  shared.FunctionParameters(params),
			},
		})
	}
	return out
}

// parseArguments decodes a tool call's argument JSON. Anything that is not a
// JSON object becomes an empty argument map.
func parseArguments(tool, raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		slog.Warn("LLM returned malformed tool arguments", "tool", tool, "err", err)
		return map[string]any{}
	}
	return out
}

func friendlyError(e *openai.Error) string {
	if e.StatusCode == 429 {
		return "rate limit exceeded"
	}
	s := strings.TrimSpace(e.Message)
	if s == "" {
		s = strings.TrimSpace(e.RawJSON())
	}
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
