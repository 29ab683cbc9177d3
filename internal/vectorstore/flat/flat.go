package flat

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

// Index is an in-process vector index using brute-force inner product over
// unit vectors. It persists as two files: "<path>.index" holding the vectors
// and "<path>.chunks" holding the chunk payloads.
type Index struct {
	mu        sync.RWMutex
	dimension int
	path      string
	ids       []string
	vectors   [][]float32
	chunks    []domain.Chunk
}

type indexFile struct {
	Dimension int
	IDs       []string
	Vectors   [][]float32
}

// NewIndex creates an empty index. An empty path disables persistence.
func NewIndex(dimension int, path string) *Index {
	return &Index{dimension: dimension, path: path}
}

func (s *Index) Dimension() int { return s.dimension }

// Add appends chunks in order. Nothing is added if any embedding has the wrong size.
func (s *Index) Add(_ context.Context, chunks []domain.Chunk) error {
	if err := vectorstore.CheckDimensions(chunks, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		vec := embedding.Normalize(ch.Embedding)
		ch.Embedding = nil
		s.ids = append(s.ids, ch.ID)
		s.vectors = append(s.vectors, vec)
		s.chunks = append(s.chunks, ch)
	}
	return nil
}

// Search returns up to topK chunks by descending cosine similarity.
func (s *Index) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	q := embedding.Normalize(vector)
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = vectorstore.Dot(s.vectors[i], q)
	}
	idxs := vectorstore.Rank(scores, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// Save writes both artifacts. Callers serialize Add and Save.
func (s *Index) Save(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(indexFile{Dimension: s.dimension, IDs: s.ids, Vectors: s.vectors})
	var payload []byte
	if err == nil {
		payload, err = json.Marshal(s.chunks)
	}
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := vectorstore.WriteFileAtomic(s.path+".index", buf.Bytes()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := vectorstore.WriteFileAtomic(s.path+".chunks", payload); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// Load replaces the contents with the persisted artifacts. On any missing or
// inconsistent artifact it logs the cause, resets to empty and returns false.
func (s *Index) Load(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, vectors, chunks, err := s.read()
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("vector index not loaded; starting empty")
		s.ids, s.vectors, s.chunks = nil, nil, nil
		return false
	}
	s.ids, s.vectors, s.chunks = ids, vectors, chunks
	log.Info().Str("path", s.path).Int("count", len(chunks)).Msg("vector index loaded")
	return true
}

func (s *Index) read() ([]string, [][]float32, []domain.Chunk, error) {
	if s.path == "" {
		return nil, nil, nil, errors.New("no index path configured")
	}
	raw, err := os.ReadFile(s.path + ".index")
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := os.ReadFile(s.path + ".chunks")
	if err != nil {
		return nil, nil, nil, err
	}
	var idx indexFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&idx); err != nil {
		return nil, nil, nil, fmt.Errorf("decode index: %w", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(payload, &chunks); err != nil {
		return nil, nil, nil, fmt.Errorf("decode chunks: %w", err)
	}
	if idx.Dimension != s.dimension {
		return nil, nil, nil, fmt.Errorf("%w: stored %d, configured %d",
			domain.ErrDimensionMismatch, idx.Dimension, s.dimension)
	}
	if len(idx.Vectors) != len(chunks) || len(idx.IDs) != len(chunks) {
		return nil, nil, nil, fmt.Errorf("index holds %d vectors and %d ids but %d chunks",
			len(idx.Vectors), len(idx.IDs), len(chunks))
	}
	for i := range chunks {
		if len(idx.Vectors[i]) != s.dimension {
			return nil, nil, nil, fmt.Errorf("%w: vector %d has %d values", domain.ErrDimensionMismatch, i, len(idx.Vectors[i]))
		}
		if idx.IDs[i] != chunks[i].ID {
			return nil, nil, nil, fmt.Errorf("chunk %d id %q does not match index id %q", i, chunks[i].ID, idx.IDs[i])
		}
	}
	return idx.IDs, idx.Vectors, chunks, nil
}

func (s *Index) Stats(_ context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.IndexStats{Count: len(s.chunks), Dimension: s.dimension}, nil
}
