package dependency

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bookrag/bookrag/internal/agent"
	"github.com/bookrag/bookrag/internal/catalog"
	"github.com/bookrag/bookrag/internal/config"
	"github.com/bookrag/bookrag/internal/config/tool"
	"github.com/bookrag/bookrag/internal/heartbeat"
	"github.com/bookrag/bookrag/internal/httpapi"
	"github.com/bookrag/bookrag/internal/mcp"
	"github.com/bookrag/bookrag/internal/metrics"
	"github.com/bookrag/bookrag/internal/providers"
	"github.com/bookrag/bookrag/internal/retrieval"
	"github.com/bookrag/bookrag/internal/schema"
	"github.com/bookrag/bookrag/internal/store"
	"github.com/bookrag/bookrag/internal/tools"
)

// Version is reported by the MCP tool server.
var Version = "0.1.0"

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	model := cfg.Agent.Model
	result := cfg.MatchProvider(model)

	spec := providers.FindByName(result.Name)
	if result.Provider == nil || (result.Provider.APIKey == "" && (spec == nil || !spec.IsLocal)) {
		return nil, fmt.Errorf("no API key configured for model %q; edit %s", model, config.ConfigPath())
	}

	return providers.New(providers.Params{
		APIKey:       result.Provider.APIKey,
		APIBase:      cfg.GetAPIBase(model),
		ExtraHeaders: result.Provider.ExtraHeaders,
		DefaultModel: model,
		ProviderName: result.Name,
	}), nil
}

func resolveLLMModel(cfg *config.Config, p schema.LLMProvider) LLMModel {
	m := cfg.Agent.Model
	if m == "" {
		m = p.DefaultModel()
	}
	return LLMModel(m)
}

func newEmbedFunc(cfg *config.Config) store.EmbedFunc {
	key, base := cfg.EmbeddingCredentials()
	return store.NewOpenAIEmbedder(key, base, cfg.Embedding.Model).Embed
}

func newStore(cfg *config.Config, embed store.EmbedFunc, cl *closerSet) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Backend {
	case "", config.StoreChromem:
		s, err = store.NewChromem(store.ChromemConfig{
			Path:       cfg.ChromemPath(),
			Collection: cfg.Store.Collection,
			Compress:   cfg.Store.Chromem.Compress,
		}, embed)
	case config.StoreQdrant:
		q := cfg.Store.Qdrant
		s, err = store.NewQdrant(store.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: cfg.Store.Collection,
		}, embed)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	cl.add(s)
	return s, nil
}

// newLiveCatalog returns nil when no catalog API is configured; results are
// then served from the index alone.
func newLiveCatalog(cfg *config.Config) (retrieval.LiveCatalog, error) {
	if cfg.Catalog.BaseURL == "" {
		slog.Warn("catalog.baseUrl not set; live enrichment and keyword search are disabled")
		return nil, nil
	}
	c, err := catalog.New(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.Catalog.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newEngine(cfg *config.Config, docs store.Store, live retrieval.LiveCatalog, m *metrics.Metrics) *retrieval.Engine {
	return retrieval.NewEngine(docs, live, retrieval.WithTopK(cfg.Agent.TopK), retrieval.WithMetrics(m))
}

func newCatalogRegistry(e *retrieval.Engine) CatalogRegistry {
	return CatalogRegistry{tools.NewRegistryBuilder().WithCatalogTools(e).Build()}
}

func newToolBackend(ctx context.Context, cfg *config.Config, load registryLoader, cl *closerSet) (agent.ToolBackend, error) {
	tb := cfg.ToolBackend
	switch tb.Mode {
	case tool.ModeLocal:
		reg, err := load()
		if err != nil {
			return nil, err
		}
		return tools.NewLocalBackend(reg.Registry), nil
	case "", tool.ModeMCP:
		b := mcp.NewBackend(ctx, mcpServerConfig(tb))
		cl.add(b)
		return b, nil
	default:
		return nil, fmt.Errorf("unknown tool backend mode %q", tb.Mode)
	}
}

func mcpServerConfig(tb tool.BackendConfig) mcp.ServerConfig {
	return mcp.ServerConfig{
		Transport: tb.Transport,
		URL:       tb.URL,
		Headers:   tb.Headers,
		Command:   tb.Command,
		Args:      tb.Args,
		Env:       tb.Env,
	}
}

func newAssistant(p schema.LLMProvider, b agent.ToolBackend, cfg *config.Config, model LLMModel, m *metrics.Metrics) *agent.Assistant {
	settings := schema.NewAgentSettings(string(model), cfg.Agent.Temperature, cfg.Agent.MaxTokens, cfg.Agent.HistoryWindow)
	return agent.NewAssistant(p, b, settings, agent.WithMetrics(m))
}

// newHeartbeat returns nil for backends that cannot go down (local mode) or
// when the heartbeat is disabled.
func newHeartbeat(cfg *config.Config, b agent.ToolBackend, m *metrics.Metrics) *heartbeat.Service {
	target, ok := b.(heartbeat.Target)
	if !ok || !cfg.Heartbeat.Enabled {
		return nil
	}
	return heartbeat.NewService(target, cfg.Heartbeat.Schedule, m)
}

func newHTTPServer(cfg *config.Config, a *agent.Assistant, b agent.ToolBackend, m *metrics.Metrics) *httpapi.Server {
	healthy := func() bool { return true }
	if h, ok := b.(interface{ Healthy() bool }); ok {
		healthy = h.Healthy
	}
	return httpapi.New(a,
		httpapi.WithBackendHealth(healthy),
		httpapi.WithMetrics(m),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
}

func newMCPServer(reg CatalogRegistry) *server.MCPServer {
	return mcp.NewServer(reg.AllTools(), Version)
}
