package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

var errNotFound = errors.New("not found")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
// Qdrant persists on its own, so Save is a no-op.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client

	mu  sync.Mutex
	seq int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

type payload struct {
	Chunk domain.Chunk `json:"chunk"`
	Seq   int          `json:"seq"`
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func NewStorage(cfg Config, dimension int) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) Dimension() int { return s.dimension }

// Load checks that the collection exists with the configured vector size,
// creating it when missing. Only an existing, matching collection counts as loaded.
func (s *Storage) Load(ctx context.Context) bool {
	info, err := s.info(ctx)
	if errors.Is(err, errNotFound) {
		log.Warn().Str("collection", s.collection).Msg("qdrant collection missing; creating it")
		if err := s.create(ctx); err != nil {
			log.Error().Err(err).Str("collection", s.collection).Msg("create qdrant collection")
		}
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("collection", s.collection).Msg("qdrant collection not loaded")
		return false
	}
	if size := info.Result.Config.Params.Vectors.Size; size != s.dimension {
		log.Error().Int("stored", size).Int("configured", s.dimension).Str("collection", s.collection).
			Msg("qdrant collection dimension mismatch")
		return false
	}
	s.mu.Lock()
	s.seq = info.Result.PointsCount
	s.mu.Unlock()
	return true
}

func (s *Storage) create(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *Storage) info(ctx context.Context) (collectionInfo, error) {
	var info collectionInfo
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, &info)
	return info, err
}

func (s *Storage) Add(ctx context.Context, chunks []domain.Chunk) error {
	if err := vectorstore.CheckDimensions(chunks, s.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		vec := embedding.Normalize(ch.Embedding)
		ch.Embedding = nil
		points[i] = map[string]any{
			"id":      ch.ID,
			"vector":  vec,
			"payload": payload{Chunk: ch, Seq: s.seq + i},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil); err != nil {
		return err
	}
	s.seq += len(chunks)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}
	req := map[string]any{
		"vector":       embedding.Normalize(vector),
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	sort.SliceStable(resp.Result, func(a, b int) bool {
		ra, rb := resp.Result[a], resp.Result[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		return ra.Payload.Seq < rb.Payload.Seq
	})
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: r.Payload.Chunk, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) Save(context.Context) error { return nil }

func (s *Storage) Stats(ctx context.Context) (domain.IndexStats, error) {
	info, err := s.info(ctx)
	if errors.Is(err, errNotFound) {
		return domain.IndexStats{Dimension: s.dimension}, nil
	}
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{Count: info.Result.PointsCount, Dimension: s.dimension}, nil
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errNotFound)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
