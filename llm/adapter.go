package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm/registry"
)

// ChatAdapter is the caller-facing contract every provider adapter satisfies.
type ChatAdapter interface {
	Company() string
	Model() string
	VerifiedModels() []string
	Verified() bool
	Pricing() *registry.Pricing
	SetPricing(p *registry.Pricing)

	// GenerateChatAnswer sends one conversation and returns the normalized,
	// priced response.
	GenerateChatAnswer(ctx context.Context, messages []Message, opts ...GenerateOption) (*ChatResponse, error)

	// Chat is an alias of GenerateChatAnswer.
	Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (*ChatResponse, error)
}

// Completion is a validated request handed to a provider backend. The system
// instruction has already been lifted out of Turns.
type Completion struct {
	Model  string
	System string
	Turns  []Message
	Params GenerationParams
}

// CompletionFunc performs one provider round trip and normalizes the result.
type CompletionFunc func(ctx context.Context, c Completion) (*ChatResponse, error)

// AdapterOptions are the construction settings shared by all adapters.
type AdapterOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Registry   *registry.Spec
}

// AdapterOption customizes adapter construction.
type AdapterOption func(*AdapterOptions)

// WithBaseURL points the backend at a different endpoint root.
func WithBaseURL(baseURL string) AdapterOption {
	return func(o *AdapterOptions) { o.BaseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used by the backend.
func WithHTTPClient(client *http.Client) AdapterOption {
	return func(o *AdapterOptions) { o.HTTPClient = client }
}

// WithLogger sets the adapter logger.
func WithLogger(logger zerolog.Logger) AdapterOption {
	return func(o *AdapterOptions) { o.Logger = logger }
}

// WithRegistry resolves pricing from spec instead of the embedded registry.
func WithRegistry(spec *registry.Spec) AdapterOption {
	return func(o *AdapterOptions) { o.Registry = spec }
}

// BuildAdapterOptions applies opts over the defaults.
func BuildAdapterOptions(opts ...AdapterOption) AdapterOptions {
	o := AdapterOptions{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return o
}

// BaseAdapter carries the behaviour shared by all provider adapters:
// parameter validation, system prompt lifting, pricing, and error mapping.
type BaseAdapter struct {
	company        string
	model          string
	verifiedModels []string
	pricing        *registry.Pricing
	logger         zerolog.Logger
}

// NewBaseAdapter resolves pricing for (company, model) and warns when the
// model is not in verifiedModels. An unverified model is still usable.
func NewBaseAdapter(company, model string, verifiedModels []string, opts AdapterOptions) (*BaseAdapter, error) {
	spec := opts.Registry
	if spec == nil {
		var err error
		spec, err = registry.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load default registry: %w", err)
		}
	}

	b := &BaseAdapter{
		company:        company,
		model:          model,
		verifiedModels: verifiedModels,
		pricing:        spec.Pricing(company, model),
		logger:         opts.Logger.With().Str("provider", company).Str("model", model).Logger(),
	}

	if !b.Verified() {
		b.logger.Warn().
			Strs("verified_models", verifiedModels).
			Msg("Model is not verified for this adapter, continuing with the selected adapter")
	}
	if b.pricing == nil {
		b.logger.Debug().Msg("No pricing registered for model, responses will not be costed")
	}
	return b, nil
}

// Company returns the provider identifier.
func (b *BaseAdapter) Company() string { return b.company }

// Model returns the configured model.
func (b *BaseAdapter) Model() string { return b.model }

// VerifiedModels returns the models known to work with this adapter.
func (b *BaseAdapter) VerifiedModels() []string {
	return append([]string(nil), b.verifiedModels...)
}

// Verified reports whether the configured model is a verified one.
func (b *BaseAdapter) Verified() bool {
	return lo.Contains(b.verifiedModels, b.model)
}

// Pricing returns the pricing applied to responses, or nil.
func (b *BaseAdapter) Pricing() *registry.Pricing { return b.pricing }

// SetPricing overrides the pricing. nil disables cost computation.
// Not safe for use concurrently with requests.
func (b *BaseAdapter) SetPricing(p *registry.Pricing) { b.pricing = p }

// Logger returns the adapter's logger.
func (b *BaseAdapter) Logger() zerolog.Logger { return b.logger }

// Generate validates the request, calls the backend once, maps any failure
// through the error taxonomy, and prices the response.
func (b *BaseAdapter) Generate(ctx context.Context, messages []Message, opts []GenerateOption, call CompletionFunc) (*ChatResponse, error) {
	params, err := ResolveParams(opts...)
	if err != nil {
		return nil, err
	}
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	system, turns := SplitSystem(messages)
	start := time.Now()
	resp, err := call(ctx, Completion{
		Model:  b.model,
		System: system,
		Turns:  turns,
		Params: params,
	})
	if err != nil {
		mapped := MapError(b.company, err)
		b.logger.Warn().Err(mapped).Dur("elapsed", time.Since(start)).Msg("Chat request failed")
		return nil, mapped
	}

	if b.pricing != nil {
		resp.ApplyPricing(b.pricing.InPerToken, b.pricing.OutPerToken, b.pricing.Currency)
	}

	evt := b.logger.Debug().Dur("elapsed", time.Since(start))
	if resp.Usage != nil {
		evt = evt.Int64("prompt_tokens", resp.Usage.PromptTokens).
			Int64("completion_tokens", resp.Usage.CompletionTokens).
			Int64("total_tokens", resp.Usage.TotalTokens)
	}
	evt.Float64("cost_total", resp.CostTotal).Str("currency", resp.Currency).Msg("Chat request completed")
	return resp, nil
}

func validateMessages(messages []Message) error {
	hasTurn := false
	for i, m := range messages {
		if !m.Role.Valid() {
			return &ValidationError{
				Param: fmt.Sprintf("messages[%d].role", i),
				Value: string(m.Role),
				Bound: "one of system, user, assistant",
			}
		}
		if m.Role != RoleSystem {
			hasTurn = true
		}
	}
	if !hasTurn {
		return &ValidationError{
			Param: "messages",
			Value: len(messages),
			Bound: "at least one user or assistant message",
		}
	}
	return nil
}
