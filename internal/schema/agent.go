package schema

// AgentSettings are the per-request model parameters of the answer loop.
type AgentSettings struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	HistoryWindow int // prior turns sent to the model; 0 sends all
}

func NewAgentSettings(model string, temperature float64, maxTokens, historyWindow int) AgentSettings {
	return AgentSettings{
		Model:         model,
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		HistoryWindow: historyWindow,
	}
}

// Turn is one prior exchange entry supplied by a caller, as it appears on the
// wire and in CLI session files.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
