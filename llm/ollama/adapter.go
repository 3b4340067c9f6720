//go:build !noollama

package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// Adapter sends conversations to a local or remote Ollama server. Ollama
// needs no API key; the key argument is accepted for a uniform constructor.
type Adapter struct {
	*llm.BaseAdapter
	client *Client
}

// NewAdapter creates an Ollama adapter for model. The base URL option sets
// the Ollama host.
func NewAdapter(model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	o := llm.BuildAdapterOptions(opts...)
	client, err := NewClient(o.BaseURL, o.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	base, err := llm.NewBaseAdapter(llm.ProviderOllama, model, VerifiedModels, o)
	if err != nil {
		return nil, err
	}
	return &Adapter{BaseAdapter: base, client: client}, nil
}

// GenerateChatAnswer implements llm.ChatAdapter.
func (a *Adapter) GenerateChatAnswer(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	return a.Generate(ctx, messages, opts, a.complete)
}

// Chat implements llm.ChatAdapter.
func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	return a.GenerateChatAnswer(ctx, messages, opts...)
}

func (a *Adapter) complete(ctx context.Context, c llm.Completion) (*llm.ChatResponse, error) {
	options := map[string]any{
		"temperature": c.Params.Temperature,
		"top_p":       c.Params.TopP,
	}
	if c.Params.MaxTokens > 0 {
		options["num_predict"] = c.Params.MaxTokens
	}

	resp, err := a.client.Chat(ctx, &api.ChatRequest{
		Model:    c.Model,
		Messages: ToOllamaMessages(c.System, c.Turns),
		Options:  options,
	})
	if err != nil {
		return nil, err
	}
	return FromOllamaResponse(resp)
}

// ToOllamaMessages builds the flat message array with the system
// instruction in-band as the first message.
func ToOllamaMessages(system string, turns []llm.Message) []api.Message {
	msgs := lo.Map(turns, func(m llm.Message, _ int) api.Message {
		return api.Message{Role: string(m.Role), Content: m.Content}
	})
	if system == "" {
		return msgs
	}
	return append([]api.Message{{Role: string(llm.RoleSystem), Content: system}}, msgs...)
}

// FromOllamaResponse normalizes a chat response. Ollama reports prompt and
// eval counts; the total is derived.
func FromOllamaResponse(resp *api.ChatResponse) (*llm.ChatResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}

	out := &llm.ChatResponse{
		Model:        llm.StringPtr(resp.Model),
		Usage:        llm.NewUsage(int64(resp.PromptEvalCount), int64(resp.EvalCount)),
		Content:      resp.Message.Content,
		FinishReason: llm.StringPtr(resp.DoneReason),
	}
	if !resp.CreatedAt.IsZero() {
		created := resp.CreatedAt.Unix()
		out.Timestamp = &created
	}
	return out, nil
}
