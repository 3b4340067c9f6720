package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// VerifiedModels are the models this adapter is known to work with.
var VerifiedModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-1.5-pro",
}

// Gemini names the assistant role "model".
const roleModel = "model"

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
}

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// GenerateContentResponse is the subset of the generateContent response this
// package reads.
type GenerateContentResponse struct {
	Candidates    []Candidate   `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion,omitempty"`
	ResponseID    string        `json:"responseId,omitempty"`
}

// Adapter sends conversations to Gemini.
type Adapter struct {
	*llm.BaseAdapter
	client *Client
}

// NewAdapter creates a Gemini adapter for model.
func NewAdapter(model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	o := llm.BuildAdapterOptions(opts...)
	client, err := NewClient(apiKey, o.BaseURL, o.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	base, err := llm.NewBaseAdapter(llm.ProviderGoogle, model, VerifiedModels, o)
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
	history, final := c.Turns[:len(c.Turns)-1], c.Turns[len(c.Turns)-1]
	payload := BuildRequest(c.System, history, final, c.Params)

	resp, err := a.client.GenerateContent(ctx, c.Model, payload)
	if err != nil {
		return nil, err
	}
	return FromGoogleResponse(resp)
}

// BuildRequest lays out a chat session: the history followed by the turn
// being sent, with the system instruction in its own field.
func BuildRequest(system string, history []llm.Message, final llm.Message, params llm.GenerationParams) GenerateContentRequest {
	req := GenerateContentRequest{
		Contents: append(lo.Map(history, func(m llm.Message, _ int) Content {
			return toContent(m)
		}), toContent(final)),
		GenerationConfig: GenerationConfig{
			MaxOutputTokens: params.MaxTokens,
			Temperature:     params.Temperature,
			TopP:            params.TopP,
		},
	}
	if system != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	return req
}

func toContent(m llm.Message) Content {
	role := "user"
	if m.Role == llm.RoleAssistant {
		role = roleModel
	}
	return Content{Role: role, Parts: []Part{{Text: m.Content}}}
}

// FromGoogleResponse normalizes a generateContent response. Token counts,
// including the total, are taken as reported.
func FromGoogleResponse(resp *GenerateContentResponse) (*llm.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]

	texts := lo.Map(candidate.Content.Parts, func(p Part, _ int) string { return p.Text })
	return &llm.ChatResponse{
		Model:      llm.StringPtr(resp.ModelVersion),
		ResponseID: llm.StringPtr(resp.ResponseID),
		Usage: &llm.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
		Content:      strings.Join(texts, ""),
		FinishReason: llm.StringPtr(candidate.FinishReason),
	}, nil
}
