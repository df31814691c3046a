// Package config defines the configuration schema for bookrag.
//
// Keys use camelCase in both the JSON and YAML forms.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookrag/bookrag/internal/config/agent"
	"github.com/bookrag/bookrag/internal/config/provider"
	"github.com/bookrag/bookrag/internal/config/server"
	"github.com/bookrag/bookrag/internal/config/tool"
)

// EmbeddingConfig configures the embedding endpoint used by the document store.
// Empty APIKey and APIBase fall back to the matched chat provider's values.
type EmbeddingConfig struct {
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

func defaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{Model: "text-embedding-3-small"}
}

const (
	StoreChromem = "chromem"
	StoreQdrant  = "qdrant"
)

// ChromemStoreConfig configures the embedded store.
type ChromemStoreConfig struct {
	Path     string `json:"path" yaml:"path"` // empty keeps the database in memory
	Compress bool   `json:"compress" yaml:"compress"`
}

// QdrantStoreConfig configures the remote store.
type QdrantStoreConfig struct {
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	UseTLS bool   `json:"useTls" yaml:"useTls"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend    string             `json:"backend" yaml:"backend"`
	Collection string             `json:"collection" yaml:"collection"`
	Chromem    ChromemStoreConfig `json:"chromem" yaml:"chromem"`
	Qdrant     QdrantStoreConfig  `json:"qdrant" yaml:"qdrant"`
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:    StoreChromem,
		Collection: "books",
		Chromem:    ChromemStoreConfig{Path: "~/.bookrag/chromem", Compress: true},
		Qdrant:     QdrantStoreConfig{Host: "localhost", Port: 6334},
	}
}

// CatalogConfig configures the live catalog REST API.
type CatalogConfig struct {
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`
	APIKey         string `json:"apiKey" yaml:"apiKey"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

func defaultCatalogConfig() CatalogConfig {
	return CatalogConfig{TimeoutSeconds: 5}
}

// Timeout returns the HTTP client timeout.
func (c CatalogConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HeartbeatConfig configures the tool backend health check.
type HeartbeatConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Schedule is a cron spec with a seconds field, e.g. "*/30 * * * * *" or "@every 30s".
	Schedule string `json:"schedule" yaml:"schedule"`
}

func defaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{Enabled: true, Schedule: "@every 30s"}
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug | info | warn | error
	Format string `json:"format" yaml:"format"` // text | json
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "text"}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.bookrag/config.json.
type Config struct {
	LLM         provider.LLMConfig    `json:"llm" yaml:"llm"`
	Embedding   EmbeddingConfig       `json:"embedding" yaml:"embedding"`
	Store       StoreConfig           `json:"store" yaml:"store"`
	Catalog     CatalogConfig         `json:"catalog" yaml:"catalog"`
	ToolBackend tool.BackendConfig    `json:"toolBackend" yaml:"toolBackend"`
	ToolServer  tool.ToolServerConfig `json:"toolServer" yaml:"toolServer"`
	Server      server.ServerConfig   `json:"server" yaml:"server"`
	Heartbeat   HeartbeatConfig       `json:"heartbeat" yaml:"heartbeat"`
	Logging     LoggingConfig         `json:"logging" yaml:"logging"`
	Agent       agent.AgentConfig     `json:"agent" yaml:"agent"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		LLM:         provider.DefaultLLMConfig(),
		Embedding:   defaultEmbeddingConfig(),
		Store:       defaultStoreConfig(),
		Catalog:     defaultCatalogConfig(),
		ToolBackend: tool.DefaultBackendConfig(),
		ToolServer:  tool.DefaultToolServerConfig(),
		Server:      server.DefaultServerConfig(),
		Heartbeat:   defaultHeartbeatConfig(),
		Logging:     defaultLoggingConfig(),
		Agent:       agent.DefaultAgentConfig(),
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// ChromemPath returns the expanded chromem persistence directory.
func (c *Config) ChromemPath() string {
	return ExpandHome(c.Store.Chromem.Path)
}

// SessionDir returns the expanded CLI session directory.
func (c *Config) SessionDir() string {
	dir := c.Agent.SessionDir
	if dir == "" {
		dir = filepath.Join(DataDir(), "sessions")
	}
	return ExpandHome(dir)
}
