//go:build noollama

package ollama

import (
	"context"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// Adapter is unavailable in this build.
type Adapter struct {
	*llm.BaseAdapter
}

// NewAdapter always fails with *llm.LibraryNotAvailableError.
func NewAdapter(model, apiKey string, opts ...llm.AdapterOption) (*Adapter, error) {
	return nil, &llm.LibraryNotAvailableError{Provider: llm.ProviderOllama, BuildTag: BuildTag}
}

func (a *Adapter) GenerateChatAnswer(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	return nil, &llm.LibraryNotAvailableError{Provider: llm.ProviderOllama, BuildTag: BuildTag}
}

func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	return a.GenerateChatAnswer(ctx, messages, opts...)
}
