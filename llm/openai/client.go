package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// DefaultBaseURL is the OpenAI API root; requests go to {base}/chat/completions.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client speaks the OpenAI chat completions protocol.
type Client struct {
	client *openai.Client
}

// NewClient creates a new Client.
// If apiKey is empty, it will return an error.
// If baseURL is empty, it will use the default OpenAI API endpoint.
func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &Client{client: openai.NewClientWithConfig(config)}, nil
}

// ChatCompletion issues one POST to /chat/completions. Failures are returned
// already classified as *llm.Error.
func (c *Client) ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, convertOpenAIError(err)
	}
	return resp, nil
}

// convertOpenAIError converts OpenAI API errors to llm.Error types. The error
// code is tried before the error type.
func convertOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return llm.NewAPIError(llm.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message, err, code, apiErr.Type)
	}

	// Non-2xx response whose body is not an OpenAI error document
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewStatusError(llm.ProviderOpenAI, reqErr.HTTPStatusCode, reqErr.HTTPStatus, err)
	}

	return llm.MapError(llm.ProviderOpenAI, err)
}
