package openai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// VerifiedModels are the models this adapter is known to work with.
var VerifiedModels = []string{
	"gpt-4o-mini",
	"gpt-4o",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-4-turbo-preview",
	"gpt-3.5-turbo",
}

// Adapter sends conversations to OpenAI.
type Adapter struct {
	*llm.BaseAdapter
	client *Client
}

// NewAdapter creates an OpenAI adapter for model.
func NewAdapter(model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	o := llm.BuildAdapterOptions(opts...)
	client, err := NewClient(apiKey, o.BaseURL, o.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	base, err := llm.NewBaseAdapter(llm.ProviderOpenAI, model, VerifiedModels, o)
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
	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    ToOpenAIMessages(c.System, c.Turns),
		MaxTokens:   c.Params.MaxTokens,
		Temperature: nonZero(c.Params.Temperature),
		TopP:        nonZero(c.Params.TopP),
	}
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = req.MaxTokens
		req.MaxTokens = 0
	}
	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return FromOpenAIResponse(resp)
}

// nonZero keeps an explicit 0 on the wire. go-openai omits zero sampling
// fields, and the API would then apply its default of 1.
func nonZero(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

// Reasoning models reject max_tokens in favour of max_completion_tokens.
func isReasoningModel(model string) bool {
	return lo.SomeBy([]string{"o1", "o3", "o4", "gpt-5"}, func(prefix string) bool {
		return strings.HasPrefix(model, prefix)
	})
}

// ToOpenAIMessages builds the flat message array. OpenAI carries the system
// instruction in-band as the first message.
func ToOpenAIMessages(system string, turns []llm.Message) []openai.ChatCompletionMessage {
	msgs := lo.Map(turns, func(m llm.Message, _ int) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{Role: toOpenAIRole(m.Role), Content: m.Content}
	})
	if system == "" {
		return msgs
	}
	return append([]openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	}}, msgs...)
}

func toOpenAIRole(role llm.Role) string {
	switch role {
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// FromOpenAIResponse normalizes a chat completion. Usage totals are taken as
// reported.
func FromOpenAIResponse(resp openai.ChatCompletionResponse) (*llm.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	choice := resp.Choices[0]

	out := &llm.ChatResponse{
		Model:      llm.StringPtr(resp.Model),
		ResponseID: llm.StringPtr(resp.ID),
		Usage: &llm.Usage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		Content:      choice.Message.Content,
		FinishReason: llm.StringPtr(string(choice.FinishReason)),
	}
	if resp.Created != 0 {
		created := resp.Created
		out.Timestamp = &created
	}
	return out, nil
}
