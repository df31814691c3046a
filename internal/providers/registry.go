package providers

import "strings"

const defaultAPIBase = "https://api.openai.com/v1"

// ProviderSpec is the metadata record for one OpenAI-compatible LLM endpoint.
type ProviderSpec struct {
	Name        string   // config field name, e.g. "deepseek"
	Keywords    []string // model-name keywords for matching (lowercase)
	EnvKey      string   // conventional env var for the API key
	DisplayName string   // shown in `bookrag status`

	DefaultAPIBase string // fallback base URL when none is configured
	IsLocal        bool   // self-hosted (vLLM, Ollama); no API key needed

	// Gateways route "vendor/model" names and need the prefix kept.
	KeepModelPrefix bool
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// PROVIDERS is the registry. Order = match priority.
var PROVIDERS = []ProviderSpec{
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
	{
		Name:            "openrouter",
		Keywords:        []string{"openrouter"},
		EnvKey:          "OPENROUTER_API_KEY",
		DisplayName:     "OpenRouter",
		DefaultAPIBase:  "https://openrouter.ai/api/v1",
		KeepModelPrefix: true,
	},
	{
		Name:        "openai",
		Keywords:    []string{"openai", "gpt", "o3", "o4"},
		EnvKey:      "OPENAI_API_KEY",
		DisplayName: "OpenAI",
	},
	{
		Name:           "deepseek",
		Keywords:       []string{"deepseek"},
		EnvKey:         "DEEPSEEK_API_KEY",
		DisplayName:    "DeepSeek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name:           "groq",
		Keywords:       []string{"groq", "llama"},
		EnvKey:         "GROQ_API_KEY",
		DisplayName:    "Groq",
		DefaultAPIBase: "https://api.groq.com/openai/v1",
	},
	{
		Name:           "gemini",
		Keywords:       []string{"gemini"},
		EnvKey:         "GEMINI_API_KEY",
		DisplayName:    "Gemini",
		DefaultAPIBase: "https://generativelanguage.googleapis.com/v1beta/openai",
	},
	{
		Name:           "vllm",
		Keywords:       []string{"vllm"},
		DisplayName:    "vLLM",
		DefaultAPIBase: "http://localhost:8000/v1",
		IsLocal:        true,
	},
	{
		Name:           "ollama",
		Keywords:       []string{"ollama"},
		DisplayName:    "Ollama",
		DefaultAPIBase: "http://localhost:11434/v1",
		IsLocal:        true,
	},
}

// FindByModel returns the first spec whose keyword appears in model.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}
