package server

import "fmt"

// ServerConfig holds the chat API listener settings.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// AllowedOrigins restricts CORS and WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Host: "0.0.0.0", Port: 8000}
}

// Addr returns host:port for net.Listen.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
