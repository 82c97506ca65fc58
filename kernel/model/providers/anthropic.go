package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/barqworks/barqcoder/kernel/model"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicProvider implements model.LLM over the official Anthropic SDK.
type AnthropicProvider struct {
	client    anthropic.Client
	modelName anthropic.Model
	maxTokens int64
}

func NewAnthropic(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	name := cfg.Model
	if name == "" {
		name = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		modelName: anthropic.Model(name),
		maxTokens: maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("providers: request is nil"))
			return
		}
		messages, system := toAnthropicMessages(req.Messages)
		params := anthropic.MessageNewParams{
			Model:     p.modelName,
			Messages:  messages,
			MaxTokens: p.maxTokens,
		}
		if len(system) > 0 {
			params.System = system
		}
		if len(req.Tools) > 0 {
			params.Tools = toAnthropicTools(req.Tools)
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		acc := anthropic.Message{}
		text := ""
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				yield(nil, fmt.Errorf("providers: anthropic accumulate: %w", err))
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
					text += textDelta.Text
					if !yield(&model.Response{
						Token:    textDelta.Text,
						Partial:  true,
						Model:    string(p.modelName),
						Provider: p.Name(),
					}, nil) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, fmt.Errorf("providers: anthropic stream: %w", err))
			return
		}

		final := model.ParseAgentResponse(text)
		// Native tool-use blocks win over prompt-protocol tool calls.
		if calls := anthropicToolCalls(acc.Content); len(calls) > 0 {
			final.ToolCalls = calls
			final.FinalAnswer = nil
		}
		yield(&model.Response{
			Final:    final,
			Model:    string(p.modelName),
			Provider: p.Name(),
		}, nil)
	}
}

func toAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case model.RoleTool:
			// Tool results travel as user turns; the correlation id rides in
			// the rendered content.
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(renderToolResult(msg))))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out, system
}

func toAnthropicTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := def.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := def.Parameters["required"].([]string); ok && len(required) > 0 {
			schema.Required = required
		}
		param := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if def.Description != "" {
			param.OfTool.Description = anthropic.String(def.Description)
		}
		out = append(out, param)
	}
	return out
}

func anthropicToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var calls []model.ToolCall
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		args := map[string]any{}
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			continue
		}
		calls = append(calls, model.ToolCall{
			ID:        toolUse.ID,
			Name:      toolUse.Name,
			Arguments: args,
		})
	}
	return calls
}

func renderToolResult(msg model.Message) string {
	if msg.ToolCallID == "" {
		return msg.Content
	}
	return fmt.Sprintf("[tool result %s]\n%s", msg.ToolCallID, msg.Content)
}
