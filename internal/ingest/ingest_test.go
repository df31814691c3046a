package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bookrag/bookrag/internal/catalog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type upsert struct {
	id, text string
	meta     map[string]any
}

type recordingStore struct {
	mu   sync.Mutex
	got  map[string]upsert
	fail string
}

func (s *recordingStore) Upsert(_ context.Context, id, text string, meta map[string]any) error {
	if id == s.fail {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.got == nil {
		s.got = map[string]upsert{}
	}
	s.got[id] = upsert{id, text, meta}
	return nil
}

const sample = `{"isbn13":"9780441172719","title":"Dune","author":"Frank Herbert","categoryName":"SF","priceSales":18000,"salesPoint":60000,"customerReviewRank":9.6,"pubDate":"1965-08-01","description":"desert planet","usedCount":3}

not json
{"title":"No ISBN"}
{"isbn13":"9780441569595","title":"Neuromancer","author":"William Gibson","categoryName":"SF","priceSales":25000,"pubDate":"unknown"}
`

func TestRun_UpsertsValidLinesAndSkipsBadOnes(t *testing.T) {
	st := &recordingStore{}

	stats, err := Run(context.Background(), st, strings.NewReader(sample), WithConcurrency(2))
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 4, Upserted: 2, Skipped: 2}, stats)

	dune := st.got["9780441172719"]
	assert.Equal(t, "Title: Dune\nAuthor: Frank Herbert\nGenre: SF\nDescription: desert planet", dune.text)
	assert.Equal(t, 19650801, dune.meta["pub_date"])
	assert.Equal(t, 18000, dune.meta["price"])
	assert.Equal(t, 9.6, dune.meta["rating"])
	assert.NotContains(t, dune.meta, "usedCount")

	assert.Equal(t, 0, st.got["9780441569595"].meta["pub_date"])
}

func TestRun_StopsOnUpsertError(t *testing.T) {
	st := &recordingStore{fail: "9780441172719"}

	_, err := Run(context.Background(), st, strings.NewReader(sample), WithConcurrency(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert 9780441172719: disk full")
}

func TestFromCatalog(t *testing.T) {
	item := FromCatalog(catalog.Item{ID: "1", Title: "T", PubDate: "2023-10-25", UsedMinPrice: 100})
	assert.Equal(t, "1", item.ID)
	assert.Equal(t, 20231025, item.PubDate)
}

func (s *recordingStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.got[id]
	return ok
}

func TestWatch_IngestsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.jsonl"),
		[]byte(`{"isbn13":"111","title":"Old"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte(`{"isbn13":"999","title":"Ignored"}`+"\n"), 0o644))

	st := &recordingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, st, dir) }()

	require.Eventually(t, func() bool { return st.has("111") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.jsonl"),
		[]byte(`{"isbn13":"222","title":"New"}`+"\n"), 0o644))
	require.Eventually(t, func() bool { return st.has("222") }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, st.has("999"))
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), &recordingStore{}, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
