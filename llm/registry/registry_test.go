package registry

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(1, math.Abs(b))
}

func TestPricingSetters(t *testing.T) {
	p := Pricing{}
	p.SetInPer1M(1500)
	p.SetOutPer1M(2500)
	p.SetCurrency("EUR")

	if !approxEqual(p.InPerToken, 1500.0/1_000_000) {
		t.Errorf("InPerToken = %v, want %v", p.InPerToken, 1500.0/1_000_000)
	}
	if !approxEqual(p.OutPerToken, 2500.0/1_000_000) {
		t.Errorf("OutPerToken = %v, want %v", p.OutPerToken, 2500.0/1_000_000)
	}
	if p.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", p.Currency)
	}
}

func TestPricingRoundTrip(t *testing.T) {
	for _, rate := range []float64{0, 0.075, 1, 3, 15, 1234, 1e6} {
		p := Pricing{}
		p.SetInPer1M(rate)
		p.SetOutPer1M(rate)
		if !approxEqual(p.InPerToken*1_000_000, rate) {
			t.Errorf("rate %v: in per token %v does not round-trip", rate, p.InPerToken)
		}
		if !approxEqual(p.OutPerToken*1_000_000, rate) {
			t.Errorf("rate %v: out per token %v does not round-trip", rate, p.OutPerToken)
		}
	}
}

func TestModelAndProviderFromMap(t *testing.T) {
	modelData := map[string]any{
		"pricing": map[string]any{"in_per_1m": float64(1000), "out_per_1m": float64(2000)},
	}
	model := ModelSpecFromMap("gpt-test", modelData)
	if model.Name != "gpt-test" {
		t.Errorf("Name = %q, want gpt-test", model.Name)
	}
	if model.Pricing == nil {
		t.Fatal("expected pricing")
	}
	if !approxEqual(model.Pricing.InPerToken, 1000.0/1_000_000) {
		t.Errorf("InPerToken = %v", model.Pricing.InPerToken)
	}
	if model.Pricing.Currency != DefaultCurrency {
		t.Errorf("Currency = %q, want %q", model.Pricing.Currency, DefaultCurrency)
	}

	provider := ProviderSpecFromMap("prov", map[string]any{
		"models": map[string]any{"gpt-test": modelData},
	})
	if provider.Name != "prov" {
		t.Errorf("Name = %q, want prov", provider.Name)
	}
	if _, ok := provider.Models["gpt-test"]; !ok {
		t.Error("expected gpt-test in provider models")
	}
}

func TestModelSpecWithoutPricing(t *testing.T) {
	model := ModelSpecFromMap("local", map[string]any{})
	if model.Pricing != nil {
		t.Errorf("expected no pricing, got %+v", model.Pricing)
	}
}

func TestLoad(t *testing.T) {
	content := `{
		"schema_version": 42,
		"effective_date": "2030-01-01",
		"providers": {
			"example_provider": {
				"models": {
					"example-model": {"pricing": {"in_per_1m": 1234, "out_per_1m": 5678, "currency": "EUR"}}
				}
			}
		}
	}`
	path := filepath.Join(t.TempDir(), "llm_registry.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if spec.SchemaVersion != 42 {
		t.Errorf("SchemaVersion = %d, want 42", spec.SchemaVersion)
	}
	if spec.EffectiveDate != "2030-01-01" {
		t.Errorf("EffectiveDate = %q, want 2030-01-01", spec.EffectiveDate)
	}
	model, ok := spec.Lookup("example_provider", "example-model")
	if !ok {
		t.Fatal("expected example-model to be registered")
	}
	if !approxEqual(model.Pricing.InPerToken, 1234.0/1_000_000) {
		t.Errorf("InPerToken = %v", model.Pricing.InPerToken)
	}
	if !approxEqual(model.Pricing.OutPerToken, 5678.0/1_000_000) {
		t.Errorf("OutPerToken = %v", model.Pricing.OutPerToken)
	}
	if model.Pricing.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", model.Pricing.Currency)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	noProviders := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(noProviders, []byte(`{"schema_version": 1}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{"missing file", filepath.Join(dir, "absent.json"), "file not found"},
		{"invalid json", invalid, "invalid JSON"},
		{"missing providers", noProviders, "missing providers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %T (%v)", err, err)
			}
			if loadErr.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", loadErr.Reason, tt.reason)
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	for _, provider := range []string{"anthropic", "google", "ollama", "openai"} {
		if _, ok := spec.Providers[provider]; !ok {
			t.Errorf("default registry is missing provider %q", provider)
		}
	}
	if p := spec.Pricing("openai", "gpt-4o-mini"); p == nil {
		t.Error("expected pricing for gpt-4o-mini")
	}
	if p := spec.Pricing("ollama", "llama3.1"); p != nil {
		t.Errorf("expected no pricing for local model, got %+v", p)
	}
}

func TestPricingReturnsCopy(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	p := spec.Pricing("openai", "gpt-4o")
	p.SetInPer1M(0)

	again := spec.Pricing("openai", "gpt-4o")
	if again.InPerToken == 0 {
		t.Error("mutating a returned pricing changed the registry")
	}
}

func TestProviderNamesSorted(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	names := spec.ProviderNames()
	want := []string{"anthropic", "google", "ollama", "openai"}
	if len(names) != len(want) {
		t.Fatalf("ProviderNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ProviderNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
