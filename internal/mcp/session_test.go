package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bookrag/bookrag/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSearcher struct {
	err error
}

func (s stubSearcher) ContextSearch(_ context.Context, q string, f map[string]any) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if f != nil {
		return "context:" + q + " filtered", nil
	}
	return "context:" + q, nil
}

func (s stubSearcher) KeywordSearch(_ context.Context, k string, _ map[string]any) (string, error) {
	return "keyword:" + k, nil
}

func (s stubSearcher) DetailLookup(_ context.Context, id string) (string, error) {
	return "detail:" + id, nil
}

func newInProcessSession(t *testing.T, s tools.Searcher) *Session {
	t.Helper()
	list := tools.NewRegistryBuilder().WithCatalogTools(s).Build().AllTools()
	srv := NewServer(list, "test")

	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)

	sess, err := newSession(context.Background(), context.Background(), "inproc", c, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSession_ListTools(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{})

	specs, err := sess.ListTools(context.Background())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range specs {
		names[s.Name] = true
		assert.NotEmpty(t, s.Description)
	}
	assert.True(t, names["context_search"])
	assert.True(t, names["keyword_search"])
	assert.True(t, names["detail_lookup"])

	for _, s := range specs {
		if s.Name == "context_search" {
			assert.True(t, s.HasProperty("filters"))
			assert.True(t, s.HasProperty("query"))
		}
	}
}

func TestSession_CallTool(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{})

	out, err := sess.CallTool(context.Background(), "context_search", map[string]any{
		"query":   "whales",
		"filters": map[string]any{"maxPrice": 15000},
	})
	require.NoError(t, err)
	assert.Equal(t, "context:whales filtered", out)

	out, err = sess.CallTool(context.Background(), "detail_lookup", map[string]any{"isbn": "978"})
	require.NoError(t, err)
	assert.Equal(t, "detail:978", out)
}

func TestSession_ToolErrorBecomesError(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{err: errors.New("store offline")})

	_, err := sess.CallTool(context.Background(), "context_search", map[string]any{"query": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestSession_Ping(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{})
	assert.NoError(t, sess.Ping(context.Background()))
}

func TestSession_UnhealthyFailsFast(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{})
	sess.SetHealthy(false)

	assert.False(t, sess.Healthy())
	_, err := sess.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	sess.SetHealthy(true)
	_, err = sess.ListTools(context.Background())
	assert.NoError(t, err)
}

func TestSession_ClosedFailsFast(t *testing.T) {
	sess := newInProcessSession(t, stubSearcher{})
	require.NoError(t, sess.Close())

	_, err := sess.CallTool(context.Background(), "context_search", map[string]any{"query": "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, sess.Ping(context.Background()), ErrNotConnected)
	assert.NoError(t, sess.Close())
}

func TestSession_NilIsUnavailable(t *testing.T) {
	var sess *Session
	assert.False(t, sess.Healthy())
	_, err := sess.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnect_UnknownTransport(t *testing.T) {
	_, err := Connect(context.Background(), ServerConfig{Transport: "carrier-pigeon", URL: "http://x"})
	assert.Error(t, err)
}
