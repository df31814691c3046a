package config

import (
	"os"
	"strings"

	"github.com/bookrag/bookrag/internal/config/provider"
	"github.com/bookrag/bookrag/internal/providers"
)

// MatchResult is the resolved LLM provider config and registry name for a model.
type MatchResult struct {
	Provider *provider.ProviderConfig
	Name     string // e.g. "openrouter", "deepseek"
}

// usable reports whether a provider can serve requests: it has a key, or it
// is self-hosted and needs none.
func usable(spec providers.ProviderSpec, p *provider.ProviderConfig) bool {
	return p.APIKey != "" || spec.IsLocal
}

// MatchProvider resolves which provider config and registry entry to use for model.
// If model is empty, agent.model is used.
//
// Priority order:
//  1. llm.provider when set
//  2. Explicit provider prefix in model string (e.g. "deepseek/deepseek-chat" → deepseek)
//  3. Keyword match in model name (registry order)
//  4. Fallback: the first provider with an API key
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agent.Model
	}
	if forced := c.LLM.Provider; forced != "" {
		if p := c.LLM.Providers.ByName(forced); p != nil {
			return MatchResult{Provider: p, Name: forced}
		}
	}

	modelLower := strings.ToLower(model)
	modelPrefix, _, _ := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	for _, spec := range providers.PROVIDERS {
		p := c.LLM.Providers.ByName(spec.Name)
		if p == nil {
			continue
		}
		if strings.Contains(modelLower, "/") && normalizedPrefix == spec.Name && usable(spec, p) {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	for _, spec := range providers.PROVIDERS {
		p := c.LLM.Providers.ByName(spec.Name)
		if p == nil || !usable(spec, p) {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(modelLower, kw) {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	for _, spec := range providers.PROVIDERS {
		p := c.LLM.Providers.ByName(spec.Name)
		if p != nil && p.APIKey != "" {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	// No configured credentials: fall back to the conventional env var of the
	// provider the model name points at.
	if spec := providers.FindByModel(model); spec != nil && spec.EnvKey != "" {
		if key := os.Getenv(spec.EnvKey); key != "" {
			return MatchResult{Provider: &provider.ProviderConfig{APIKey: key}, Name: spec.Name}
		}
	}

	return MatchResult{}
}

// GetAPIBase resolves the effective API base URL for model.
// Precedence: configured apiBase > registry default.
func (c *Config) GetAPIBase(model string) string {
	result := c.MatchProvider(model)
	if result.Provider != nil && result.Provider.APIBase != "" {
		return result.Provider.APIBase
	}
	if spec := providers.FindByName(result.Name); spec != nil {
		return spec.DefaultAPIBase
	}
	return ""
}

// GetAPIKey returns the API key for model (or "").
func (c *Config) GetAPIKey(model string) string {
	if p := c.MatchProvider(model).Provider; p != nil {
		return p.APIKey
	}
	return ""
}

// EmbeddingCredentials returns the key and base URL for the embedding
// endpoint, falling back to the chat provider's.
func (c *Config) EmbeddingCredentials() (apiKey, apiBase string) {
	apiKey, apiBase = c.Embedding.APIKey, c.Embedding.APIBase
	if apiKey == "" {
		apiKey = c.GetAPIKey("")
	}
	if apiBase == "" {
		apiBase = c.GetAPIBase("")
	}
	return apiKey, apiBase
}
