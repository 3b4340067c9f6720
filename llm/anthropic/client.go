package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// DefaultBaseURL is the Anthropic API root; requests go to {base}/v1/messages.
const DefaultBaseURL = "https://api.anthropic.com/"

// Client speaks the Anthropic messages protocol.
type Client struct {
	client *anthropic.Client
}

// NewClient creates a new Client with the given API key. SDK retries are
// disabled so each call performs exactly one request.
func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := anthropic.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Messages issues one POST to /v1/messages. Failures are returned already
// classified as *llm.Error.
func (c *Client) Messages(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var httpResp *http.Response
	message, err := c.client.Messages.New(ctx, params, option.WithResponseInto(&httpResp))
	if err != nil {
		mapped := convertAnthropicError(err, httpResp)
		var llmErr *llm.Error
		if httpResp != nil && errors.As(mapped, &llmErr) {
			llmErr.RetryAfter = llm.ParseRetryAfter(httpResp.Header.Get("Retry-After"))
		}
		return nil, mapped
	}
	return message, nil
}

// convertAnthropicError classifies by the error.type field of the response
// body. When the body is not an Anthropic error document the HTTP status is
// used instead.
func convertAnthropicError(err error, httpResp *http.Response) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		raw := apiErr.RawJSON()
		errType := gjson.Get(raw, "error.type")
		if !gjson.Valid(raw) || !errType.Exists() {
			return llm.NewStatusError(llm.ProviderAnthropic, apiErr.StatusCode, raw, err)
		}
		return llm.NewAPIError(llm.ProviderAnthropic, apiErr.StatusCode, gjson.Get(raw, "error.message").String(), err, errType.String())
	}

	// The SDK surfaces the JSON decoding error itself when an error body is
	// not JSON; the saved response still carries the status.
	if httpResp != nil && httpResp.StatusCode >= http.StatusBadRequest {
		return llm.NewStatusError(llm.ProviderAnthropic, httpResp.StatusCode, httpResp.Status, err)
	}

	return llm.MapError(llm.ProviderAnthropic, err)
}
