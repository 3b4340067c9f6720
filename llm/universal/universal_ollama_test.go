//go:build !noollama

package universal

import "testing"

func TestOllamaNeedsNoKey(t *testing.T) {
	a, err := New("ollama", "llama3.1", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Pricing() != nil {
		t.Errorf("Pricing() = %+v, want none for local models", a.Pricing())
	}
}
