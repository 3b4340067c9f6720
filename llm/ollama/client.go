//go:build !noollama

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

// Client speaks the Ollama chat protocol.
type Client struct {
	client *api.Client
}

// NewClient creates a new Client.
// If host is empty, it will use OLLAMA_HOST or http://localhost:11434.
func NewClient(host string, httpClient *http.Client) (*Client, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultHost
	}
	baseURL, err := parseHost(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}
	recording := *httpClient
	recording.Transport = &statusRecorder{next: httpClient.Transport}

	return &Client{client: api.NewClient(baseURL, &recording)}, nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(strings.TrimRight(host, "/"))
}

// Chat issues one non-streaming POST to /api/chat. Failures are returned
// already classified as *llm.Error.
func (c *Client) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	stream := false
	req.Stream = &stream

	status := new(int)
	var chatResp api.ChatResponse
	err := c.client.Chat(withStatusSink(ctx, status), req, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, convertOllamaError(err, *status)
	}
	return &chatResp, nil
}

// convertOllamaError classifies by the snake-cased HTTP status text, so a 429
// becomes "too_many_requests". Errors that carry no status of their own fall
// back to the status observed on the wire.
func convertOllamaError(err error, observed int) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llm.NewAPIError(llm.ProviderOllama, statusErr.StatusCode, statusErr.ErrorMessage, err, statusIdentifier(statusErr.StatusCode))
	}
	if observed >= http.StatusBadRequest {
		return llm.NewAPIError(llm.ProviderOllama, observed, err.Error(), err, statusIdentifier(observed))
	}
	return llm.MapError(llm.ProviderOllama, err)
}

func statusIdentifier(status int) string {
	text := strings.ToLower(http.StatusText(status))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(text)
}

type statusSinkKey struct{}

func withStatusSink(ctx context.Context, status *int) context.Context {
	return context.WithValue(ctx, statusSinkKey{}, status)
}

// statusRecorder writes each response status into the sink carried by the
// request context.
type statusRecorder struct {
	next http.RoundTripper
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	next := s.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if sink, ok := req.Context().Value(statusSinkKey{}).(*int); ok && resp != nil {
		*sink = resp.StatusCode
	}
	return resp, err
}
