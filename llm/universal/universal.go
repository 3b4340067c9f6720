// Package universal selects a provider adapter by organization name and
// forwards calls to it.
package universal

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm"
	"github.com/aschepis/backscratcher/llmadapter/llm/anthropic"
	"github.com/aschepis/backscratcher/llmadapter/llm/google"
	"github.com/aschepis/backscratcher/llmadapter/llm/ollama"
	"github.com/aschepis/backscratcher/llmadapter/llm/openai"
)

// Factory builds an adapter for a model.
type Factory func(model, apiKey string, opts ...llm.AdapterOption) (llm.ChatAdapter, error)

var factories = map[string]Factory{
	llm.ProviderOpenAI: func(model, apiKey string, opts ...llm.AdapterOption) (llm.ChatAdapter, error) {
		return openai.NewAdapter(model, apiKey, opts...)
	},
	llm.ProviderAnthropic: func(model, apiKey string, opts ...llm.AdapterOption) (llm.ChatAdapter, error) {
		return anthropic.NewAdapter(model, apiKey, opts...)
	},
	llm.ProviderGoogle: func(model, apiKey string, opts ...llm.AdapterOption) (llm.ChatAdapter, error) {
		return google.NewAdapter(model, apiKey, opts...)
	},
	llm.ProviderOllama: func(model, apiKey string, opts ...llm.AdapterOption) (llm.ChatAdapter, error) {
		return ollama.NewAdapter(model, apiKey, opts...)
	},
}

// Method names accepted by Call.
const (
	MethodGenerateChatAnswer = "generate_chat_answer"
	MethodChat               = "chat"
)

// Attribute names accepted by Attr.
const (
	AttrCompany        = "company"
	AttrModel          = "model"
	AttrVerifiedModels = "verified_models"
	AttrPricing        = "pricing"
)

// Adapter wraps the adapter selected for an organization. Method calls are
// forwarded through the embedded interface.
type Adapter struct {
	llm.ChatAdapter
	organization string
}

// Organizations lists the registered organizations in sorted order.
func Organizations() []string {
	orgs := lo.Keys(factories)
	sort.Strings(orgs)
	return orgs
}

// New selects the adapter registered for organization. There is no
// fallback: an unknown organization is an error.
func New(organization, model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	factory, ok := factories[organization]
	if !ok {
		return nil, &llm.UnsupportedOrganizationError{Organization: organization, Supported: Organizations()}
	}
	adapter, err := factory(model, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{ChatAdapter: adapter, organization: organization}, nil
}

// Organization returns the organization the adapter was selected for.
func (a *Adapter) Organization() string { return a.organization }

// Call invokes a generation method by name.
func (a *Adapter) Call(ctx context.Context, method string, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	switch method {
	case MethodGenerateChatAnswer:
		return a.GenerateChatAnswer(ctx, messages, opts...)
	case MethodChat:
		return a.Chat(ctx, messages, opts...)
	default:
		return nil, &llm.AttributeNotFoundError{Name: method, Adapter: a.organization}
	}
}

// Attr reads an adapter attribute by name.
func (a *Adapter) Attr(name string) (any, error) {
	switch name {
	case AttrCompany:
		return a.Company(), nil
	case AttrModel:
		return a.Model(), nil
	case AttrVerifiedModels:
		return a.VerifiedModels(), nil
	case AttrPricing:
		return a.Pricing(), nil
	default:
		return nil, &llm.AttributeNotFoundError{Name: name, Adapter: a.organization}
	}
}
