package provider

const (
	ProviderCustom     = "custom"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
	ProviderVLLM       = "vllm"
	ProviderOllama     = "ollama"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey" yaml:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Custom     ProviderConfig `json:"custom" yaml:"custom"`
	OpenRouter ProviderConfig `json:"openrouter" yaml:"openrouter"`
	OpenAI     ProviderConfig `json:"openai" yaml:"openai"`
	DeepSeek   ProviderConfig `json:"deepseek" yaml:"deepseek"`
	Groq       ProviderConfig `json:"groq" yaml:"groq"`
	Gemini     ProviderConfig `json:"gemini" yaml:"gemini"`
	VLLM       ProviderConfig `json:"vllm" yaml:"vllm"`
	Ollama     ProviderConfig `json:"ollama" yaml:"ollama"`
}

// LLMConfig selects and configures the chat model backend. Provider forces a
// registry entry; when empty the provider is matched from the model name.
type LLMConfig struct {
	Provider  string          `json:"provider,omitempty" yaml:"provider,omitempty"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{}
}

// ByName returns a pointer to the ProviderConfig field matching the given
// registry name. Returns nil if the name is unknown.
func (p *ProvidersConfig) ByName(name string) *ProviderConfig {
	switch name {
	case ProviderCustom:
		return &p.Custom
	case ProviderOpenRouter:
		return &p.OpenRouter
	case ProviderOpenAI:
		return &p.OpenAI
	case ProviderDeepSeek:
		return &p.DeepSeek
	case ProviderGroq:
		return &p.Groq
	case ProviderGemini:
		return &p.Gemini
	case ProviderVLLM:
		return &p.VLLM
	case ProviderOllama:
		return &p.Ollama
	}
	return nil
}
