package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/llmadapter/llm"
	"github.com/aschepis/backscratcher/llmadapter/llm/registry"
)

const messageBody = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-haiku-20240307",
	"content": [{"type": "text", "text": "Hello from mocked Anthropic!"}],
	"stop_reason": "end_turn",
	"stop_sequence": null,
	"usage": {"input_tokens": 5, "output_tokens": 7}
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewAdapter("claude-3-haiku-20240307", "test-key", llm.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return adapter
}

func TestGenerateChatAnswerPricing(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})
	adapter.SetPricing(&registry.Pricing{InPerToken: 1, OutPerToken: 1, Currency: "USD"})

	resp, err := adapter.GenerateChatAnswer(context.Background(), []llm.Message{llm.UserMessage("Hi")})
	if err != nil {
		t.Fatalf("GenerateChatAnswer() error = %v", err)
	}
	if resp.Usage.PromptTokens != 5 || resp.Usage.CompletionTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Errorf("TotalTokens = %d, want sum of parts", resp.Usage.TotalTokens)
	}
	if resp.CostInput != 5 || resp.CostOutput != 7 || resp.CostTotal != 12 {
		t.Errorf("costs = %v/%v/%v, want 5/7/12", resp.CostInput, resp.CostOutput, resp.CostTotal)
	}
	if resp.Content != "Hello from mocked Anthropic!" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason == nil || *resp.FinishReason != "end_turn" {
		t.Errorf("FinishReason = %v", resp.FinishReason)
	}
	if resp.ResponseID == nil || *resp.ResponseID != "msg_01" {
		t.Errorf("ResponseID = %v", resp.ResponseID)
	}
}

func TestRequestShape(t *testing.T) {
	var got map[string]any
	var headers http.Header
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	_, err := adapter.Chat(context.Background(), []llm.Message{
		llm.Prompt("Be brief."),
		llm.UserMessage("Hi"),
		llm.AIMessage("Hello"),
		llm.UserMessage("Bye"),
	}, llm.WithTemperature(0.3), llm.WithTopP(0.9))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if headers.Get("x-api-key") != "test-key" {
		t.Errorf("x-api-key = %q", headers.Get("x-api-key"))
	}
	if headers.Get("anthropic-version") == "" {
		t.Error("expected anthropic-version header")
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %v, want three turns without system", got["messages"])
	}
	system, _ := got["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system = %v", got["system"])
	}
	if block, _ := system[0].(map[string]any); block["text"] != "Be brief." {
		t.Errorf("system block = %v", system[0])
	}
	if got["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	if got["temperature"] != 0.3 || got["top_p"] != 0.9 {
		t.Errorf("temperature/top_p = %v/%v", got["temperature"], got["top_p"])
	}
}

func TestGenerateChatAnswerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"authentication", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, llm.ErrAuthorization},
		{"rate limit", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, llm.ErrRateLimit},
		{"invalid request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, llm.ErrClient},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, llm.ErrServer},
		{"billing", 400, `{"type":"error","error":{"type":"billing_error","message":"pay up"}}`, llm.ErrUsageLimit},
		{"unknown type", 400, `{"type":"error","error":{"type":"novel_error","message":"?"}}`, llm.ErrUnmapped},
		{"malformed 500", 500, `<html>oops</html>`, llm.ErrServer},
		{"malformed 403", 403, `forbidden`, llm.ErrAuthorization},
		{"json without type", 429, `{"detail":"slow"}`, llm.ErrRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := adapter.GenerateChatAnswer(context.Background(), []llm.Message{llm.UserMessage("Hi")})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want kind of %v", err, tt.want)
			}
			var llmErr *llm.Error
			if errors.As(err, &llmErr) && llmErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", llmErr.StatusCode, tt.status)
			}
		})
	}
}

func TestErrorMessageCarriesProviderText(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`))
	})
	_, err := adapter.GenerateChatAnswer(context.Background(), []llm.Message{llm.UserMessage("Hi")})
	want := "Rate limit exceeded. Number of requests has exceeded your rate limit"
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}

func TestTimeoutMapsToTimeout(t *testing.T) {
	block := make(chan struct{})
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := adapter.GenerateChatAnswer(ctx, []llm.Message{llm.UserMessage("Hi")})
	if !errors.Is(err, llm.ErrTimeout) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestFromAnthropicResponseNil(t *testing.T) {
	if _, err := FromAnthropicResponse(nil); err == nil {
		t.Error("expected error for nil message")
	}
}

func TestRetryAfterHeader(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})
	_, err := adapter.GenerateChatAnswer(context.Background(), []llm.Message{llm.UserMessage("Hi")})
	if !llm.IsRetryableError(err) {
		t.Fatalf("error = %v, want retryable", err)
	}
	if got := llm.ExtractRetryAfter(err); got == nil || *got != 3*time.Second {
		t.Errorf("ExtractRetryAfter() = %v, want 3s", got)
	}
}
