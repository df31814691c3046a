package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bookrag/bookrag/internal/filter"
)

// QdrantConfig configures the remote qdrant store.
type QdrantConfig struct {
	Host       string
	Port       int // gRPC port
	APIKey     string
	UseTLS     bool
	Collection string
}

// Qdrant is a Store backed by a qdrant collection. Catalog keys are mapped to
// deterministic UUID point IDs; the key itself lives in the "isbn" payload field.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	embed      EmbedFunc

	mu     sync.Mutex
	exists bool
}

// NewQdrant connects to qdrant. The collection is created lazily on first upsert,
// once the embedding dimension is known.
func NewQdrant(cfg QdrantConfig, embed EmbedFunc) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "books"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Qdrant{client: client, collection: cfg.Collection, embed: embed}, nil
}

// PointID maps a catalog key to its qdrant point ID.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert embeds text and writes it with metadata under the catalog key.
func (s *Qdrant) Upsert(ctx context.Context, id, text string, metadata map[string]any) error {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(vec)); err != nil {
		return err
	}

	payload := make(map[string]*qdrant.Value, len(metadata)+1)
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("convert metadata %s: %w", k, err)
		}
		payload[k] = val
	}
	payload["isbn"] = qdrant.NewValueString(id)
	payload["content"] = qdrant.NewValueString(text)

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(id)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Query returns up to topK candidates satisfying pred, most similar first.
func (s *Qdrant) Query(ctx context.Context, text string, topK int, pred filter.Predicate) ([]Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}

	qf, err := buildFilter(pred)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if qf != nil && status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("%w: %v", ErrPredicateRejected, err)
		}
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]Candidate, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		meta := payloadToMap(p.GetPayload())
		item, err := decodeItem(p.GetId().GetUuid(), meta)
		if err != nil {
			slog.Warn("skipping undecodable point", "id", p.GetId().GetUuid(), "err", err)
			continue
		}
		out = append(out, Candidate{Item: item, Similarity: p.GetScore()})
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (s *Qdrant) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(n), nil
}

func (s *Qdrant) Close() error {
	return s.client.Close()
}

func (s *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return nil
	}

	ok, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !ok {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	s.exists = true
	return nil
}

// buildFilter converts pred into qdrant Must conditions.
func buildFilter(pred filter.Predicate) (*qdrant.Filter, error) {
	if pred == nil {
		return nil, nil
	}

	var conds []*qdrant.Condition
	for _, c := range pred.Clauses() {
		switch c.Op {
		case filter.OpEq:
			s, ok := c.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string equality on %s", ErrPredicateRejected, c.Field)
			}
			conds = append(conds, qdrant.NewMatch(c.Field, s))
		case filter.OpLte, filter.OpGte:
			bound, ok := numeric(c.Value)
			if !ok {
				return nil, fmt.Errorf("%w: non-numeric bound on %s", ErrPredicateRejected, c.Field)
			}
			r := &qdrant.Range{}
			if c.Op == filter.OpLte {
				r.Lte = qdrant.PtrOf(bound)
			} else {
				r.Gte = qdrant.PtrOf(bound)
			}
			conds = append(conds, qdrant.NewRange(c.Field, r))
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrPredicateRejected, c.Op)
		}
	}
	return &qdrant.Filter{Must: conds}, nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}
