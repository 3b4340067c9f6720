// Package registry holds the catalog of providers, models, and per-token
// pricing used to cost chat responses.
package registry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// DefaultCurrency is applied to pricing blocks that do not name one.
const DefaultCurrency = "USD"

//go:embed llm_registry.json
var defaultRegistryJSON []byte

var (
	defaultOnce sync.Once
	defaultSpec *Spec
	defaultErr  error
)

// Pricing is a per-token rate pair.
type Pricing struct {
	InPerToken  float64
	OutPerToken float64
	Currency    string
}

// SetInPer1M sets the input rate from a price per one million tokens.
func (p *Pricing) SetInPer1M(rate float64) {
	p.InPerToken = rate / 1_000_000
}

// SetOutPer1M sets the output rate from a price per one million tokens.
func (p *Pricing) SetOutPer1M(rate float64) {
	p.OutPerToken = rate / 1_000_000
}

// SetCurrency stores the currency code verbatim.
func (p *Pricing) SetCurrency(code string) {
	p.Currency = code
}

// ModelSpec describes one model of a provider.
type ModelSpec struct {
	Name    string
	Pricing *Pricing // nil when the registry carries no pricing for the model
}

// ProviderSpec describes one provider and its models.
type ProviderSpec struct {
	Name   string
	Models map[string]ModelSpec
}

// Spec is a loaded registry document.
type Spec struct {
	SchemaVersion int
	EffectiveDate string
	Providers     map[string]ProviderSpec
}

// ModelSpecFromMap builds a ModelSpec from a decoded JSON object. A missing
// or malformed pricing block yields a spec without pricing.
func ModelSpecFromMap(name string, data map[string]any) ModelSpec {
	spec := ModelSpec{Name: name}
	block, ok := data["pricing"].(map[string]any)
	if !ok {
		return spec
	}
	pricing := &Pricing{Currency: DefaultCurrency}
	pricing.SetInPer1M(number(block["in_per_1m"]))
	pricing.SetOutPer1M(number(block["out_per_1m"]))
	if code, ok := block["currency"].(string); ok && code != "" {
		pricing.SetCurrency(code)
	}
	spec.Pricing = pricing
	return spec
}

// ProviderSpecFromMap builds a ProviderSpec from a decoded JSON object.
func ProviderSpecFromMap(name string, data map[string]any) ProviderSpec {
	spec := ProviderSpec{Name: name, Models: make(map[string]ModelSpec)}
	models, _ := data["models"].(map[string]any)
	for modelName, raw := range models {
		modelData, _ := raw.(map[string]any)
		spec.Models[modelName] = ModelSpecFromMap(modelName, modelData)
	}
	return spec
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// Load reads a registry document from path.
func Load(path string) (*Spec, error) {
	//nolint:gosec // G304: registry path is caller supplied
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: path, Reason: "file not found", Err: err}
		}
		return nil, &LoadError{Path: path, Reason: "file unreadable", Err: err}
	}
	return Parse(path, data)
}

// Parse decodes a registry document. source is only used in error messages.
func Parse(source string, data []byte) (*Spec, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: source, Reason: "invalid JSON", Err: err}
	}
	providers, ok := doc["providers"].(map[string]any)
	if !ok {
		return nil, &LoadError{Path: source, Reason: "missing providers"}
	}

	spec := &Spec{
		SchemaVersion: int(number(doc["schema_version"])),
		Providers:     make(map[string]ProviderSpec, len(providers)),
	}
	spec.EffectiveDate, _ = doc["effective_date"].(string)
	for name, raw := range providers {
		providerData, _ := raw.(map[string]any)
		spec.Providers[name] = ProviderSpecFromMap(name, providerData)
	}
	return spec, nil
}

// Default returns the registry compiled into the binary. It is parsed once.
func Default() (*Spec, error) {
	defaultOnce.Do(func() {
		defaultSpec, defaultErr = Parse("llm_registry.json", defaultRegistryJSON)
	})
	return defaultSpec, defaultErr
}

// Lookup finds a model of a provider.
func (s *Spec) Lookup(provider, model string) (ModelSpec, bool) {
	if s == nil {
		return ModelSpec{}, false
	}
	p, ok := s.Providers[provider]
	if !ok {
		return ModelSpec{}, false
	}
	m, ok := p.Models[model]
	return m, ok
}

// Pricing returns a copy of the model's pricing, or nil when the model is
// unknown or has none. Callers may mutate the copy freely.
func (s *Spec) Pricing(provider, model string) *Pricing {
	m, ok := s.Lookup(provider, model)
	if !ok || m.Pricing == nil {
		return nil
	}
	p := *m.Pricing
	return &p
}

// ProviderNames returns the provider names in sorted order.
func (s *Spec) ProviderNames() []string {
	names := lo.Keys(s.Providers)
	sort.Strings(names)
	return names
}

// ModelNames returns the model names of a provider in sorted order.
func (p ProviderSpec) ModelNames() []string {
	names := lo.Keys(p.Models)
	sort.Strings(names)
	return names
}

// LoadError reports a registry document that could not be loaded.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load registry %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load registry %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
