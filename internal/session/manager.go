// Package session persists CLI chat histories as JSONL files.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","created_at":"…","updated_at":"…","metadata":{…}}
//	Line 2+: one {"role":"…","content":"…"} turn per line
package session

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bookrag/bookrag/internal/schema"
)

// Manager loads and persists sessions as JSONL files.
type Manager struct {
	dir   string
	cache sync.Map // key → *Session
}

// Info describes one stored session.
type Info struct {
	Key       string
	CreatedAt string
	UpdatedAt string
	Path      string
}

type metadataLine struct {
	Type      string         `json:"_type"`
	Key       string         `json:"key"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// NewManager creates a Manager storing sessions under dir, creating it if
// necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// GetOrCreate returns the cached session for key, loading from disk if needed,
// or creating an empty new one.
func (m *Manager) GetOrCreate(key string) *Session {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Session)
	}

	s := m.load(key)
	if s == nil {
		s = newSession(key)
	}

	actual, _ := m.cache.LoadOrStore(key, s)
	return actual.(*Session)
}

// Save writes the session to disk and updates the cache.
func (m *Manager) Save(s *Session) error {
	path := m.sessionPath(s.Key)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	turns, meta, created := s.snapshot()
	header := metadataLine{
		Type:      "metadata",
		Key:       s.Key,
		CreatedAt: created.UTC().Format(time.RFC3339),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata:  meta,
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	for _, t := range turns {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}

	m.cache.Store(s.Key, s)
	return nil
}

// Delete removes a session from disk and the cache.
func (m *Manager) Delete(key string) error {
	m.cache.Delete(key)
	if err := os.Remove(m.sessionPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

// List returns all stored sessions, newest first.
func (m *Manager) List() []Info {
	entries, _ := filepath.Glob(filepath.Join(m.dir, "*.jsonl"))
	var out []Info

	for _, path := range entries {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			var head metadataLine
			if json.Unmarshal(scanner.Bytes(), &head) == nil && head.Type == "metadata" {
				key := head.Key
				if key == "" {
					key = strings.TrimSuffix(filepath.Base(path), ".jsonl")
				}
				out = append(out, Info{Key: key, CreatedAt: head.CreatedAt, UpdatedAt: head.UpdatedAt, Path: path})
			}
		}
		f.Close()
	}

	// RFC 3339 timestamps sort lexicographically.
	slices.SortFunc(out, func(a, b Info) int { return cmp.Compare(b.UpdatedAt, a.UpdatedAt) })
	return out
}

func (m *Manager) sessionPath(key string) string {
	name := safeFilename(strings.ReplaceAll(key, ":", "_"))
	return filepath.Join(m.dir, name+".jsonl")
}

// safeFilename replaces filesystem-unsafe characters with underscores.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafe, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// load reads a session from disk. Malformed lines are skipped.
func (m *Manager) load(key string) *Session {
	f, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	s := newSession(key)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20) // 1 MB per line
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if bytes.Contains(line, []byte(`"_type"`)) {
			var head metadataLine
			if err := json.Unmarshal(line, &head); err == nil && head.Type == "metadata" {
				if head.Metadata != nil {
					s.Metadata = head.Metadata
				}
				if t, err := time.Parse(time.RFC3339, head.CreatedAt); err == nil {
					s.CreatedAt = t
				}
				continue
			}
		}

		var t schema.Turn
		if err := json.Unmarshal(line, &t); err != nil || t.Role == "" {
			slog.Warn("skipping malformed session line", "key", key, "err", err)
			continue
		}
		s.turns = append(s.turns, t)
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("error reading session file", "key", key, "err", err)
		return nil
	}
	return s
}
