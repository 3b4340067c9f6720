package llm

// Role represents the role of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single conversation turn. Messages are compared by value.
type Message struct {
	Role    Role
	Content string
}

// Prompt creates a system instruction.
func Prompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AIMessage creates an assistant turn.
func AIMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SplitSystem lifts the system instruction out of a conversation. When more
// than one system message is present the last one wins. The remaining turns
// keep their order.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

// Usage represents token usage information from a response.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// NewUsage builds a Usage whose total is derived from its parts.
func NewUsage(prompt, completion int64) *Usage {
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// ChatResponse is the provider-neutral result of a chat request.
// Cost fields stay zero and Currency stays empty until ApplyPricing runs.
type ChatResponse struct {
	Model        *string
	ResponseID   *string
	Timestamp    *int64 // unix seconds
	Usage        *Usage
	Content      string
	FinishReason *string

	CostInput  float64
	CostOutput float64
	CostTotal  float64
	Currency   string
}

// ApplyPricing computes cost from usage and per-token rates in place.
// A response without usage is costed at zero tokens.
func (r *ChatResponse) ApplyPricing(inPerToken, outPerToken float64, currency string) {
	var prompt, completion int64
	if r.Usage != nil {
		prompt = r.Usage.PromptTokens
		completion = r.Usage.CompletionTokens
	}
	r.CostInput = float64(prompt) * inPerToken
	r.CostOutput = float64(completion) * outPerToken
	r.CostTotal = r.CostInput + r.CostOutput
	r.Currency = currency
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
