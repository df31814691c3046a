// Package dependency wires bookrag services using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/dig"

	"github.com/bookrag/bookrag/internal/agent"
	"github.com/bookrag/bookrag/internal/config"
	"github.com/bookrag/bookrag/internal/heartbeat"
	"github.com/bookrag/bookrag/internal/httpapi"
	"github.com/bookrag/bookrag/internal/metrics"
	"github.com/bookrag/bookrag/internal/retrieval"
	"github.com/bookrag/bookrag/internal/schema"
	"github.com/bookrag/bookrag/internal/store"
	"github.com/bookrag/bookrag/internal/tools"
)

// Container resolves bookrag services on demand. Each service is built at
// most once; a command only pays for the services it asks for.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	d       *dig.Container
	closers *closerSet
}

// LLMModel is a named string type so dig can distinguish it from plain
// strings when injecting the effective model name.
type LLMModel string

// CatalogRegistry wraps the registry holding the three catalog tools.
type CatalogRegistry struct{ *tools.Registry }

// registryLoader defers building the catalog registry (and with it the
// document store) until a component actually needs it.
type registryLoader func() (CatalogRegistry, error)

// closerSet collects resources to release in Container.Close.
type closerSet struct {
	mu   sync.Mutex
	list []io.Closer
}

func (s *closerSet) add(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, c)
}

// New registers all constructors for cfg. ctx bounds startup work such as
// the initial tool server connection.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{d: dig.New(), closers: &closerSet{}}

	providers := []any{
		func() *config.Config { return cfg },
		func() context.Context { return ctx },
		func() *closerSet { return c.closers },
		func() registryLoader { return func() (CatalogRegistry, error) { return resolve[CatalogRegistry](c) } },
		metrics.New,
		newProvider,
		resolveLLMModel,
		newEmbedFunc,
		newStore,
		newLiveCatalog,
		newEngine,
		newCatalogRegistry,
		newToolBackend,
		newAssistant,
		newHeartbeat,
		newHTTPServer,
		newMCPServer,
	}
	for _, p := range providers {
		if err := c.d.Provide(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func resolve[T any](c *Container) (T, error) {
	var out T
	err := c.d.Invoke(func(v T) { out = v })
	return out, err
}

func (c *Container) Metrics() (*metrics.Metrics, error)      { return resolve[*metrics.Metrics](c) }
func (c *Container) Provider() (schema.LLMProvider, error)   { return resolve[schema.LLMProvider](c) }
func (c *Container) Store() (store.Store, error)             { return resolve[store.Store](c) }
func (c *Container) Engine() (*retrieval.Engine, error)      { return resolve[*retrieval.Engine](c) }
func (c *Container) ToolBackend() (agent.ToolBackend, error) { return resolve[agent.ToolBackend](c) }
func (c *Container) Assistant() (*agent.Assistant, error)    { return resolve[*agent.Assistant](c) }
func (c *Container) HTTPServer() (*httpapi.Server, error)    { return resolve[*httpapi.Server](c) }
func (c *Container) ToolServer() (*server.MCPServer, error)  { return resolve[*server.MCPServer](c) }
func (c *Container) Model() (LLMModel, error)                { return resolve[LLMModel](c) }
func (c *Container) Registry() (CatalogRegistry, error)      { return resolve[CatalogRegistry](c) }

// Heartbeat returns the backend health checker, or nil when the backend needs none.
func (c *Container) Heartbeat() (*heartbeat.Service, error) { return resolve[*heartbeat.Service](c) }

// Close releases every resource opened so far, newest first.
func (c *Container) Close() error {
	c.closers.mu.Lock()
	list := slices.Clone(c.closers.list)
	c.closers.list = nil
	c.closers.mu.Unlock()

	var errs []error
	for _, cl := range slices.Backward(list) {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
