package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// VerifiedModels are the models this adapter is known to work with.
var VerifiedModels = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-opus-20240229",
	"claude-3-sonnet-20240229",
	"claude-3-haiku-20240307",
}

// Adapter sends conversations to Anthropic.
type Adapter struct {
	*llm.BaseAdapter
	client *Client
}

// NewAdapter creates an Anthropic adapter for model.
func NewAdapter(model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	o := llm.BuildAdapterOptions(opts...)
	client, err := NewClient(apiKey, o.BaseURL, o.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	base, err := llm.NewBaseAdapter(llm.ProviderAnthropic, model, VerifiedModels, o)
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
	// max_tokens is mandatory on this API
	maxTokens := int64(c.Params.MaxTokens)
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.Model),
		MaxTokens:   maxTokens,
		Messages:    ToMessageParams(c.Turns),
		Temperature: anthropic.Float(c.Params.Temperature),
		TopP:        anthropic.Float(c.Params.TopP),
	}
	if c.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.System}}
	}

	message, err := a.client.Messages(ctx, params)
	if err != nil {
		return nil, err
	}
	return FromAnthropicResponse(message)
}

// ToMessageParams converts turns to Anthropic message params. The system
// instruction travels in its own field and is never part of this list.
func ToMessageParams(turns []llm.Message) []anthropic.MessageParam {
	return lo.Map(turns, func(m llm.Message, _ int) anthropic.MessageParam {
		if m.Role == llm.RoleAssistant {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
		}
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	})
}

// FromAnthropicResponse normalizes a message. The total token count is
// derived from input and output tokens.
func FromAnthropicResponse(message *anthropic.Message) (*llm.ChatResponse, error) {
	if message == nil {
		return nil, fmt.Errorf("empty response")
	}

	texts := lo.FilterMap(message.Content, func(block anthropic.ContentBlockUnion, _ int) (string, bool) {
		return block.Text, block.Type == "text"
	})

	return &llm.ChatResponse{
		Model:        llm.StringPtr(string(message.Model)),
		ResponseID:   llm.StringPtr(message.ID),
		Usage:        llm.NewUsage(message.Usage.InputTokens, message.Usage.OutputTokens),
		Content:      strings.Join(texts, ""),
		FinishReason: llm.StringPtr(string(message.StopReason)),
	}, nil
}
