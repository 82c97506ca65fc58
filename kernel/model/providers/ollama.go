package providers

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/barqworks/barqcoder/kernel/model"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "qwen2.5-coder:14b"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// OllamaProvider implements model.LLM over the official Ollama api client.
type OllamaProvider struct {
	client    *api.Client
	modelName string
}

func NewOllama(cfg OllamaConfig) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("providers: invalid ollama base url %q: %w", baseURL, err)
	}
	name := cfg.Model
	if name == "" {
		name = defaultOllamaModel
	}
	return &OllamaProvider{
		client:    api.NewClient(parsed, http.DefaultClient),
		modelName: name,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("providers: request is nil"))
			return
		}
		stream := true
		chatReq := &api.ChatRequest{
			Model:    p.modelName,
			Messages: toOllamaMessages(req.Messages),
			Tools:    toOllamaTools(req.Tools),
			Stream:   &stream,
		}

		text := ""
		var nativeCalls []model.ToolCall
		stopped := false
		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				text += resp.Message.Content
				if !yield(&model.Response{
					Token:    resp.Message.Content,
					Partial:  true,
					Model:    p.modelName,
					Provider: p.Name(),
				}, nil) {
					stopped = true
					return context.Canceled
				}
			}
			for _, call := range resp.Message.ToolCalls {
				nativeCalls = append(nativeCalls, model.ToolCall{
					ID:        uuid.NewString(),
					Name:      call.Function.Name,
					Arguments: map[string]any(call.Function.Arguments),
				})
			}
			return nil
		})
		if stopped {
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("providers: ollama chat: %w", err))
			return
		}

		final := model.ParseAgentResponse(text)
		if len(nativeCalls) > 0 {
			final.ToolCalls = nativeCalls
			final.FinalAnswer = nil
		}
		yield(&model.Response{
			Final:    final,
			Model:    p.modelName,
			Provider: p.Name(),
		}, nil)
	}
}

func toOllamaMessages(messages []model.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		role := string(msg.Role)
		content := msg.Content
		if msg.Role == model.RoleTool {
			role = "tool"
			content = renderToolResult(msg)
		}
		out = append(out, api.Message{Role: role, Content: content})
	}
	return out
}

func toOllamaTools(tools []model.ToolDefinition) []api.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]api.Tool, 0, len(tools))
	for _, def := range tools {
		fn := api.ToolFunction{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  toOllamaParameters(def.Parameters),
		}
		out = append(out, api.Tool{Type: "function", Function: fn})
	}
	return out
}

func toOllamaParameters(parameters map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Properties: map[string]api.ToolProperty{},
	}
	if required, ok := parameters["required"].([]string); ok {
		params.Required = required
	}
	props, ok := parameters["properties"].(map[string]any)
	if !ok {
		return params
	}
	for name, raw := range props {
		prop := api.ToolProperty{}
		if m, ok := raw.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				prop.Type = api.PropertyType{t}
			}
			if desc, ok := m["description"].(string); ok {
				prop.Description = desc
			}
		}
		params.Properties[name] = prop
	}
	return params
}
