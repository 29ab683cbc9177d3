package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

const (
	payloadKey = "payload"
	seqKey     = "seq"
)

// Config configures the chromem-go backed index.
type Config struct {
	Path          string
	Collection    string
	Compress      bool
	EncryptionKey string
}

// Store keeps chunks in an in-memory chromem-go collection and persists it
// by exporting the collection to a single file.
type Store struct {
	mu         sync.RWMutex
	cfg        Config
	dimension  int
	db         *chromem.DB
	collection *chromem.Collection
	seq        int
}

// NewStore creates an empty store.
func NewStore(cfg Config, dimension int) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	if cfg.Compress && cfg.Path != "" && !strings.HasSuffix(cfg.Path, ".gz") {
		// chromem detects gzip by file extension on import
		cfg.Path += ".gz"
	}
	s := &Store{cfg: cfg, dimension: dimension}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reset() error {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(s.cfg.Collection, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.cfg.Collection, err)
	}
	s.db, s.collection, s.seq = db, c, 0
	return nil
}

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	if err := vectorstore.CheckDimensions(chunks, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]chromem.Document, 0, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		vec := embedding.Normalize(ch.Embedding)
		ch.Embedding = nil
		payload, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
		content := ch.Content
		if content == "" {
			content = ch.Title
		}
		docs = append(docs, chromem.Document{
			ID:        ch.ID,
			Content:   content,
			Embedding: vec,
			Metadata: map[string]string{
				payloadKey: string(payload),
				seqKey:     strconv.Itoa(s.seq + i),
			},
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	s.seq += len(docs)
	return nil
}

type hit struct {
	result domain.SearchResult
	seq    int
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	q := embedding.Normalize(vector)
	zero := isZero(q)
	if zero {
		// chromem cannot normalize a zero query; score everything 0 instead
		q = s.probe()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits, err := s.queryAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if zero {
		for i := range hits {
			hits[i].result.Score = 0
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].seq < hits[b].seq })
	}
	if topK < len(hits) {
		hits = hits[:max(topK, 0)]
	}
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

// queryAll scores every document so ties can be broken by insertion order.
func (s *Store) queryAll(ctx context.Context, q []float32) ([]hit, error) {
	n := s.collection.Count()
	if n == 0 {
		return []hit{}, nil
	}
	res, err := s.collection.QueryEmbedding(ctx, q, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	hits := make([]hit, 0, len(res))
	for _, r := range res {
		var ch domain.Chunk
		if err := json.Unmarshal([]byte(r.Metadata[payloadKey]), &ch); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", r.ID, err)
		}
		seq, err := strconv.Atoi(r.Metadata[seqKey])
		if err != nil {
			return nil, fmt.Errorf("decode sequence of %s: %w", r.ID, err)
		}
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			// stored zero vectors normalize to NaN inside chromem
			score = 0
		}
		hits = append(hits, hit{result: domain.SearchResult{Chunk: ch, Score: score}, seq: seq})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].result.Score != hits[b].result.Score {
			return hits[a].result.Score > hits[b].result.Score
		}
		return hits[a].seq < hits[b].seq
	})
	return hits, nil
}

// Save exports the collection to the configured file.
func (s *Store) Save(_ context.Context) error {
	if s.cfg.Path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return err
	}
	if err := s.db.ExportToFile(s.cfg.Path, s.cfg.Compress, s.cfg.EncryptionKey, s.cfg.Collection); err != nil {
		return fmt.Errorf("export collection: %w", err)
	}
	return nil
}

// Load imports the exported collection. Missing or unreadable exports leave
// the store empty and return false.
func (s *Store) Load(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, c, seq, err := s.read(ctx)
	if err != nil {
		log.Warn().Err(err).Str("path", s.cfg.Path).Msg("chromem collection not loaded; starting empty")
		if rerr := s.reset(); rerr != nil {
			log.Error().Err(rerr).Msg("reset chromem collection")
		}
		return false
	}
	s.db, s.collection, s.seq = db, c, seq
	log.Info().Str("path", s.cfg.Path).Int("count", c.Count()).Msg("chromem collection loaded")
	return true
}

func (s *Store) read(ctx context.Context) (*chromem.DB, *chromem.Collection, int, error) {
	if s.cfg.Path == "" {
		return nil, nil, 0, errors.New("no export path configured")
	}
	if _, err := os.Stat(s.cfg.Path); err != nil {
		return nil, nil, 0, err
	}
	db := chromem.NewDB()
	if err := db.ImportFromFile(s.cfg.Path, s.cfg.EncryptionKey, s.cfg.Collection); err != nil {
		return nil, nil, 0, fmt.Errorf("import collection: %w", err)
	}
	c := db.GetCollection(s.cfg.Collection, nil)
	if c == nil {
		return nil, nil, 0, fmt.Errorf("collection %s missing from export", s.cfg.Collection)
	}
	loaded := &Store{cfg: s.cfg, dimension: s.dimension, db: db, collection: c}
	hits, err := loaded.queryAll(ctx, s.probe())
	if err != nil {
		return nil, nil, 0, err
	}
	next := 0
	for _, h := range hits {
		next = max(next, h.seq+1)
	}
	return db, c, next, nil
}

func (s *Store) probe() []float32 {
	v := make([]float32, s.dimension)
	if len(v) > 0 {
		v[0] = 1
	}
	return v
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func (s *Store) Stats(_ context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.IndexStats{Count: s.collection.Count(), Dimension: s.dimension}, nil
}
