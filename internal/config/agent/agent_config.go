package agent

// AgentConfig holds the answer loop's model parameters.
type AgentConfig struct {
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// HistoryWindow caps the prior turns sent to the model; 0 sends all.
	HistoryWindow int `json:"historyWindow" yaml:"historyWindow"`
	// TopK is the number of documents the context search retrieves.
	TopK int `json:"topK" yaml:"topK"`
	// SessionDir holds CLI chat histories.
	SessionDir string `json:"sessionDir" yaml:"sessionDir"`
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:         "gpt-4o-mini",
		MaxTokens:     2048,
		Temperature:   0.3,
		HistoryWindow: 20,
		TopK:          5,
		SessionDir:    "~/.bookrag/sessions",
	}
}
