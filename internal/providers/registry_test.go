package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

// stubProvider is a minimal Provider for registry tests.
type stubProvider struct {
	name      string
	available bool
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) Available() bool     { return s.available }
func (s *stubProvider) Models() []ModelInfo { return nil }

func (s *stubProvider) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	return &models.CompletionResult{Text: "stub", Provider: s.name}, nil
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "openai", available: true})
	registry.Register(&stubProvider{name: "anthropic", available: false})

	p, err := registry.Get("openai")
	if err != nil {
		t.Fatalf("Get(openai) error = %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}

	if _, err := registry.Get("anthropic"); err == nil {
		t.Error("Get() on unavailable provider should error")
	} else if !strings.Contains(err.Error(), "credentials") {
		t.Errorf("unavailable error should mention credentials, got %q", err)
	}

	if _, err := registry.Get("missing"); err == nil {
		t.Error("Get() on unregistered provider should error")
	} else if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("missing error should say not configured, got %q", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "anthropic", available: false})

	p, ok := registry.Lookup("anthropic")
	if !ok {
		t.Fatal("Lookup() should find registered providers even without credentials")
	}
	if p.Available() {
		t.Error("Available() = true, want false")
	}

	if _, ok := registry.Lookup("missing"); ok {
		t.Error("Lookup() on unregistered provider should report false")
	}
}

func TestRegistryReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "openai", available: false})
	registry.Register(&stubProvider{name: "openai", available: true})

	if _, err := registry.Get("openai"); err != nil {
		t.Errorf("second registration should win: %v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "ollama", available: true})
	registry.Register(&stubProvider{name: "anthropic", available: true})
	registry.Register(&stubProvider{name: "google", available: false})

	names := registry.Names()
	want := []string{"anthropic", "google", "ollama"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	all := registry.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d providers, want 3", len(all))
	}
	if all[0].Name() != "anthropic" {
		t.Errorf("All() not in name order: first is %q", all[0].Name())
	}
}
