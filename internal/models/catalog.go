// Package models maintains the model catalog: pricing, context windows, and
// lifecycle metadata for the models the harness can target. The runner uses
// it to turn token usage into cost estimates, the run command to warn about
// deprecated targets, and the models command to print what is available.
package models

import (
	"sort"
	"strings"
	"sync"
)

// Model describes one catalog entry. Prices are USD per million tokens.
type Model struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is a human-readable name
	Name string `json:"name"`

	// Provider is the provider key as used in run configuration
	Provider string `json:"provider"`

	// ContextWindow is the maximum context size in tokens
	ContextWindow int `json:"context_window"`

	// MaxOutputTokens is the maximum output size
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// Aliases are alternative names that resolve to this model
	Aliases []string `json:"aliases,omitempty"`

	// Deprecated marks models that should no longer be targeted
	Deprecated bool `json:"deprecated,omitempty"`

	// ReplacedBy is the recommended replacement for deprecated models
	ReplacedBy string `json:"replaced_by,omitempty"`

	// InputPrice is the price per million input tokens (USD)
	InputPrice float64 `json:"input_price,omitempty"`

	// OutputPrice is the price per million output tokens (USD)
	OutputPrice float64 `json:"output_price,omitempty"`
}

// Catalog manages a collection of models.
type Catalog struct {
	mu      sync.RWMutex
	models  map[string]*Model // id -> model
	aliases map[string]string // lowercase alias -> id
}

// NewCatalog creates a catalog seeded with the built-in models.
func NewCatalog() *Catalog {
	c := &Catalog{
		models:  make(map[string]*Model),
		aliases: make(map[string]string),
	}
	c.registerBuiltinModels()
	return c
}

// Register adds a model to the catalog, replacing any existing entry.
func (c *Catalog) Register(model *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models[model.ID] = model
	for _, alias := range model.Aliases {
		c.aliases[strings.ToLower(alias)] = model.ID
	}
}

// Get retrieves a model by ID or alias.
func (c *Catalog) Get(id string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if model, ok := c.models[id]; ok {
		return model, true
	}
	if realID, ok := c.aliases[strings.ToLower(id)]; ok {
		return c.models[realID], true
	}
	return nil, false
}

// List returns all models, sorted by provider then name. A non-empty
// provider restricts the listing.
func (c *Catalog) List(provider string) []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Model
	for _, model := range c.models {
		if provider != "" && model.Provider != provider {
			continue
		}
		result = append(result, model)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Provider != result[j].Provider {
			return result[i].Provider < result[j].Provider
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// Cost estimates the USD cost of a completion from its token counts.
// Returns nil when the model is not in the catalog, so unpriced local
// models stay distinguishable from free ones.
func (c *Catalog) Cost(model string, promptTokens, completionTokens int) *float64 {
	m, ok := c.Get(model)
	if !ok {
		return nil
	}
	cost := (float64(promptTokens)*m.InputPrice + float64(completionTokens)*m.OutputPrice) / 1e6
	return &cost
}

func (c *Catalog) registerBuiltinModels() {
	// Anthropic
	c.Register(&Model{
		ID:              "claude-sonnet-4-20250514",
		Name:            "Claude Sonnet 4",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 64000,
		Aliases:         []string{"claude-sonnet-4", "sonnet-4"},
		InputPrice:      3.0,
		OutputPrice:     15.0,
	})
	c.Register(&Model{
		ID:              "claude-opus-4-20250514",
		Name:            "Claude Opus 4",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 32000,
		Aliases:         []string{"claude-opus-4", "opus-4"},
		InputPrice:      15.0,
		OutputPrice:     75.0,
	})
	c.Register(&Model{
		ID:              "claude-3-5-sonnet-20241022",
		Name:            "Claude 3.5 Sonnet",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 8192,
		Aliases:         []string{"claude-3-5-sonnet", "claude-3-5-sonnet-latest", "sonnet"},
		InputPrice:      3.0,
		OutputPrice:     15.0,
	})
	c.Register(&Model{
		ID:              "claude-3-5-haiku-20241022",
		Name:            "Claude 3.5 Haiku",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 8192,
		Aliases:         []string{"claude-3-5-haiku", "claude-3-5-haiku-latest", "haiku"},
		InputPrice:      0.8,
		OutputPrice:     4.0,
	})
	c.Register(&Model{
		ID:              "claude-3-opus-20240229",
		Name:            "Claude 3 Opus",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 4096,
		Aliases:         []string{"claude-3-opus"},
		InputPrice:      15.0,
		OutputPrice:     75.0,
	})
	c.Register(&Model{
		ID:              "claude-3-haiku-20240307",
		Name:            "Claude 3 Haiku",
		Provider:        "anthropic",
		ContextWindow:   200000,
		MaxOutputTokens: 4096,
		Aliases:         []string{"claude-3-haiku"},
		InputPrice:      0.25,
		OutputPrice:     1.25,
	})
	c.Register(&Model{
		ID:            "claude-2.1",
		Name:          "Claude 2.1",
		Provider:      "anthropic",
		ContextWindow: 200000,
		Deprecated:    true,
		ReplacedBy:    "claude-3-5-sonnet-20241022",
		InputPrice:    8.0,
		OutputPrice:   24.0,
	})

	// OpenAI
	c.Register(&Model{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		Provider:        "openai",
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		Aliases:         []string{"gpt-4o-2024-11-20"},
		InputPrice:      2.5,
		OutputPrice:     10.0,
	})
	c.Register(&Model{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o Mini",
		Provider:        "openai",
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		Aliases:         []string{"gpt-4o-mini-2024-07-18"},
		InputPrice:      0.15,
		OutputPrice:     0.6,
	})
	c.Register(&Model{
		ID:              "gpt-4-turbo",
		Name:            "GPT-4 Turbo",
		Provider:        "openai",
		ContextWindow:   128000,
		MaxOutputTokens: 4096,
		InputPrice:      10.0,
		OutputPrice:     30.0,
	})
	c.Register(&Model{
		ID:              "gpt-4",
		Name:            "GPT-4",
		Provider:        "openai",
		ContextWindow:   8192,
		MaxOutputTokens: 8192,
		InputPrice:      30.0,
		OutputPrice:     60.0,
	})
	c.Register(&Model{
		ID:              "gpt-3.5-turbo",
		Name:            "GPT-3.5 Turbo",
		Provider:        "openai",
		ContextWindow:   16385,
		MaxOutputTokens: 4096,
		InputPrice:      0.5,
		OutputPrice:     1.5,
	})
	c.Register(&Model{
		ID:              "o1",
		Name:            "o1",
		Provider:        "openai",
		ContextWindow:   200000,
		MaxOutputTokens: 100000,
		Aliases:         []string{"o1-2024-12-17"},
		InputPrice:      15.0,
		OutputPrice:     60.0,
	})
	c.Register(&Model{
		ID:              "o3-mini",
		Name:            "o3-mini",
		Provider:        "openai",
		ContextWindow:   200000,
		MaxOutputTokens: 100000,
		InputPrice:      1.1,
		OutputPrice:     4.4,
	})
	c.Register(&Model{
		ID:            "gpt-4-32k",
		Name:          "GPT-4 32k",
		Provider:      "openai",
		ContextWindow: 32768,
		Deprecated:    true,
		ReplacedBy:    "gpt-4o",
		InputPrice:    60.0,
		OutputPrice:   120.0,
	})

	// Google
	c.Register(&Model{
		ID:              "gemini-2.0-flash",
		Name:            "Gemini 2.0 Flash",
		Provider:        "google",
		ContextWindow:   1048576,
		MaxOutputTokens: 8192,
		Aliases:         []string{"gemini-2.0-flash-001"},
		InputPrice:      0.1,
		OutputPrice:     0.4,
	})
	c.Register(&Model{
		ID:              "gemini-2.0-flash-lite",
		Name:            "Gemini 2.0 Flash Lite",
		Provider:        "google",
		ContextWindow:   1048576,
		MaxOutputTokens: 8192,
		InputPrice:      0.075,
		OutputPrice:     0.3,
	})
	c.Register(&Model{
		ID:              "gemini-1.5-pro",
		Name:            "Gemini 1.5 Pro",
		Provider:        "google",
		ContextWindow:   2097152,
		MaxOutputTokens: 8192,
		Aliases:         []string{"gemini-1.5-pro-latest"},
		InputPrice:      1.25,
		OutputPrice:     5.0,
	})
	c.Register(&Model{
		ID:              "gemini-1.5-flash",
		Name:            "Gemini 1.5 Flash",
		Provider:        "google",
		ContextWindow:   1048576,
		MaxOutputTokens: 8192,
		Aliases:         []string{"gemini-1.5-flash-latest"},
		InputPrice:      0.075,
		OutputPrice:     0.3,
	})

	// Bedrock (invocation IDs, priced per AWS on-demand)
	c.Register(&Model{
		ID:              "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Name:            "Claude 3.5 Sonnet (Bedrock)",
		Provider:        "bedrock",
		ContextWindow:   200000,
		MaxOutputTokens: 8192,
		InputPrice:      3.0,
		OutputPrice:     15.0,
	})
	c.Register(&Model{
		ID:              "anthropic.claude-3-haiku-20240307-v1:0",
		Name:            "Claude 3 Haiku (Bedrock)",
		Provider:        "bedrock",
		ContextWindow:   200000,
		MaxOutputTokens: 4096,
		InputPrice:      0.25,
		OutputPrice:     1.25,
	})
	c.Register(&Model{
		ID:              "amazon.titan-text-express-v1",
		Name:            "Titan Text Express",
		Provider:        "bedrock",
		ContextWindow:   8192,
		MaxOutputTokens: 8192,
		InputPrice:      0.2,
		OutputPrice:     0.6,
	})
	c.Register(&Model{
		ID:              "meta.llama3-70b-instruct-v1:0",
		Name:            "Llama 3 70B (Bedrock)",
		Provider:        "bedrock",
		ContextWindow:   8192,
		MaxOutputTokens: 2048,
		InputPrice:      2.65,
		OutputPrice:     3.5,
	})
	c.Register(&Model{
		ID:              "mistral.mistral-7b-instruct-v0:2",
		Name:            "Mistral 7B (Bedrock)",
		Provider:        "bedrock",
		ContextWindow:   32768,
		MaxOutputTokens: 8192,
		InputPrice:      0.15,
		OutputPrice:     0.2,
	})
	c.Register(&Model{
		ID:              "cohere.command-r-plus-v1:0",
		Name:            "Command R+ (Bedrock)",
		Provider:        "bedrock",
		ContextWindow:   128000,
		MaxOutputTokens: 4096,
		InputPrice:      3.0,
		OutputPrice:     15.0,
	})
}

// DefaultCatalog is the global model catalog.
var DefaultCatalog = NewCatalog()

// Get retrieves a model from the default catalog.
func Get(id string) (*Model, bool) {
	return DefaultCatalog.Get(id)
}

// List returns models from the default catalog, optionally by provider.
func List(provider string) []*Model {
	return DefaultCatalog.List(provider)
}

// Cost estimates completion cost from the default catalog.
func Cost(model string, promptTokens, completionTokens int) *float64 {
	return DefaultCatalog.Cost(model, promptTokens, completionTokens)
}
