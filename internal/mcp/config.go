package mcp

// Transport names accepted by Connect and Serve.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable-http"
	TransportStdio      = "stdio"
)

// ServerConfig holds the connection parameters for the tool server.
// Command-based configs use stdio; URL-based configs use Transport
// (SSE when empty).
type ServerConfig struct {
	Transport string
	URL       string
	Headers   map[string]string

	Command string
	Args    []string
	Env     map[string]string
}

func (c ServerConfig) transport() string {
	if c.Command != "" {
		return TransportStdio
	}
	if c.Transport == "" {
		return TransportSSE
	}
	return c.Transport
}
