package tool

const (
	// ModeMCP reaches the catalog tools through an MCP tool server.
	ModeMCP = "mcp"
	// ModeLocal runs the catalog tools in-process.
	ModeLocal = "local"
)

// BackendConfig describes where the agent finds its tools. For ModeMCP,
// Command-based configs use stdio; URL-based configs use Transport.
type BackendConfig struct {
	Mode      string            `json:"mode" yaml:"mode"`
	Transport string            `json:"transport,omitempty" yaml:"transport,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Mode:      ModeMCP,
		Transport: "sse",
		URL:       "http://localhost:8081/sse",
	}
}

// ToolServerConfig configures the `toolserver` process.
type ToolServerConfig struct {
	Transport string `json:"transport" yaml:"transport"`
	Addr      string `json:"addr" yaml:"addr"`
}

func DefaultToolServerConfig() ToolServerConfig {
	return ToolServerConfig{Transport: "sse", Addr: ":8081"}
}
