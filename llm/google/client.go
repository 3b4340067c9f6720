package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

const (
	// DefaultBaseURL is the Gemini API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	apiVersion      = "v1beta"
	contentTypeJSON = "application/json"
	maxErrorBody    = 64 * 1024
)

// Client speaks the Gemini generateContent protocol over plain HTTP.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a new Client.
// If apiKey is empty, it will return an error.
// If baseURL is empty, it will use the default Gemini endpoint.
func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}, nil
}

// GenerateContent issues one POST to models/{model}:generateContent. Failures
// are returned already classified as *llm.Error.
func (c *Client) GenerateContent(ctx context.Context, model string, payload GenerateContentRequest) (*GenerateContentResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, apiVersion, url.PathEscape(model))

	httpReq, err := c.newRequest(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewTransportError(llm.ProviderGoogle, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, parseAPIError(httpResp)
	}

	var resp GenerateContentResponse
	if err := decodeJSON(httpResp.Body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("x-goog-api-key", c.apiKey)
	return req, nil
}

// parseAPIError classifies a Gemini error body. Candidate identifiers are the
// error detail reasons followed by error.status. A body that is not a Gemini
// error document is classified by status code alone.
func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return llm.NewStatusError(llm.ProviderGoogle, resp.StatusCode, "", fmt.Errorf("read error body: %w", err))
	}

	var mapped *llm.Error
	status := gjson.GetBytes(body, "error.status")
	if !gjson.ValidBytes(body) || !status.Exists() {
		mapped = llm.NewStatusError(llm.ProviderGoogle, resp.StatusCode, strings.TrimSpace(string(body)), nil)
	} else {
		candidates := make([]string, 0, 4)
		for _, reason := range gjson.GetBytes(body, "error.details.#.reason").Array() {
			candidates = append(candidates, reason.String())
		}
		candidates = append(candidates, status.String())
		message := gjson.GetBytes(body, "error.message").String()
		mapped = llm.NewAPIError(llm.ProviderGoogle, resp.StatusCode, message, nil, candidates...)
	}

	mapped.RetryAfter = llm.ParseRetryAfter(resp.Header.Get("Retry-After"))
	return mapped
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
