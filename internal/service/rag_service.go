package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/metrics"
	"docrag/internal/postprocess"
	"docrag/internal/prompt"
	"docrag/internal/retriever"
)

// Fallback is returned to the caller whenever an answer cannot be produced.
const Fallback = "Xin lỗi, tôi không thể tạo câu trả lời cho câu hỏi này."

// Ingestion outcomes of one document.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailure = "failure"
)

// IngestResult records what happened to one document.
type IngestResult struct {
	Source  string `json:"source"`
	Status  string `json:"status"`
	Chunks  int    `json:"chunks"`
	Skipped int    `json:"skipped"`
	Err     string `json:"error,omitempty"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	postprocess.Metadata
	Kind      string `json:"kind"`
	Intent    string `json:"intent,omitempty"`
	Retrieved int    `json:"retrieved"`
	Passages  int    `json:"passages"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Answer is what a query returns to the caller.
type Answer struct {
	Query    string   `json:"query"`
	Response string   `json:"response"`
	Contexts []string `json:"contexts"`
	Sources  []string `json:"sources,omitempty"`
	Metadata Metadata `json:"meta"`
}

// Stats reports the index state and the effective tunables.
type Stats struct {
	Index          domain.IndexStats `json:"index"`
	Embedder       string            `json:"embedder"`
	TopK           int               `json:"top_k"`
	ScoreThreshold float64           `json:"score_threshold"`
	MaxTokens      int               `json:"max_tokens"`
	Overlap        int               `json:"overlap"`
}

// Deps wires the pipeline stages into a service.
type Deps struct {
	Chunker   domain.Chunker
	Embedder  domain.Embedder
	Index     domain.VectorIndex
	Retriever *retriever.Retriever
	Assembler *prompt.Assembler
	Completer domain.Completer
	Metrics   *metrics.Recorder
	// MaxTokens and Overlap are reported by Stats only.
	MaxTokens int
	Overlap   int
}

type RAGService struct {
	deps Deps
	// ingestMu serializes writers of the index.
	ingestMu sync.Mutex
}

func NewRAGService(deps Deps) *RAGService {
	if deps.Assembler == nil {
		deps.Assembler = prompt.NewAssembler(prompt.Options{})
	}
	if deps.Retriever == nil {
		deps.Retriever = retriever.New(deps.Embedder, deps.Index, 0, 0)
	}
	return &RAGService{deps: deps}
}

// Ingest chunks, embeds and indexes documents, then saves the index once.
// A document that fails does not stop the others.
func (s *RAGService) Ingest(ctx context.Context, docs []domain.Document) ([]IngestResult, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	results := make([]IngestResult, 0, len(docs))
	added := 0
	for _, doc := range docs {
		res := s.ingestOne(ctx, doc)
		added += res.Chunks
		results = append(results, res)
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	if added == 0 {
		return results, nil
	}
	if err := s.deps.Index.Save(ctx); err != nil {
		return results, fmt.Errorf("save index: %w", err)
	}
	return results, nil
}

func (s *RAGService) ingestOne(ctx context.Context, doc domain.Document) IngestResult {
	res := IngestResult{Source: doc.Source}
	fail := func(err error) IngestResult {
		res.Status, res.Chunks, res.Err = StatusFailure, 0, err.Error()
		log.Error().Err(err).Str("source", doc.Source).Msg("ingest failed")
		return res
	}

	chunks, err := s.deps.Chunker.Split(doc)
	if err != nil {
		return fail(fmt.Errorf("split: %w", err))
	}
	valid := make([]domain.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if !ch.Valid() {
			res.Skipped++
			log.Warn().Str("source", doc.Source).Int("ordinal", ch.Ordinal).Msg("skipping empty chunk")
			continue
		}
		valid = append(valid, ch)
	}
	s.deps.Metrics.SkipChunks(res.Skipped)
	if len(valid) == 0 {
		return fail(errors.New("no content to index"))
	}

	texts := make([]string, len(valid))
	for i, ch := range valid {
		texts[i] = EmbeddingText(ch)
	}
	vectors, err := s.deps.Embedder.Embed(ctx, texts)
	if err != nil {
		s.deps.Metrics.GatewayFailure("embedding")
		return fail(fmt.Errorf("embed: %w", err))
	}
	if len(vectors) != len(valid) {
		return fail(fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(valid)))
	}
	for i := range valid {
		valid[i].Embedding = vectors[i]
	}
	if err := s.deps.Index.Add(ctx, valid); err != nil {
		return fail(fmt.Errorf("add: %w", err))
	}
	for _, ch := range valid {
		s.deps.Metrics.AddChunks(string(ch.Kind), 1)
	}

	res.Chunks = len(valid)
	res.Status = StatusSuccess
	if res.Skipped > 0 {
		res.Status = StatusPartial
	}
	log.Info().Str("source", doc.Source).Int("chunks", res.Chunks).Int("skipped", res.Skipped).Msg("document indexed")
	return res
}

// EmbeddingText is the text embedded for a chunk: its title and content,
// or the rendered table.
func EmbeddingText(ch domain.Chunk) string {
	if ch.Kind == domain.KindTable {
		return prompt.Render(ch)
	}
	if ch.Title == "" {
		return ch.Content
	}
	return ch.Title + "\n" + ch.Content
}

// Query answers a question. Only a blank question is an error; every other
// failure produces the fallback response.
func (s *RAGService) Query(ctx context.Context, query string) (Answer, error) {
	start := time.Now()
	query = prompt.Sanitize(query)
	if query == "" {
		return Answer{}, domain.ErrEmptyQuery
	}
	ans := Answer{Query: query, Contexts: []string{}}

	var hits []domain.SearchResult
	if prompt.ClassifyQuery(query) == prompt.IntentNone {
		var err error
		hits, err = s.deps.Retriever.Retrieve(ctx, query)
		if err != nil {
			s.deps.Metrics.GatewayFailure("retrieval")
			return s.fallback(ans, "", start, fmt.Errorf("retrieve: %w", err)), nil
		}
	}
	ans.Metadata.Retrieved = len(hits)

	p := s.deps.Assembler.Build(query, hits)
	ans.Metadata.Kind = string(p.Kind)
	ans.Metadata.Intent = string(p.Intent)
	ans.Metadata.Passages = len(p.Passages)
	seen := make(map[string]struct{})
	for _, ps := range p.Passages {
		ans.Contexts = append(ans.Contexts, ps.Text)
		src := ps.Chunk.Metadata["source"]
		if _, ok := seen[src]; ok || src == "" {
			continue
		}
		seen[src] = struct{}{}
		ans.Sources = append(ans.Sources, src)
	}

	raw, err := s.deps.Completer.Complete(ctx, p.Messages)
	if err != nil {
		s.deps.Metrics.GatewayFailure("completion")
		return s.fallback(ans, ans.Metadata.Kind, start, fmt.Errorf("complete: %w", err)), nil
	}

	cleaned, md := postprocess.Clean(raw, query)
	ans.Response = cleaned
	ans.Metadata.Metadata = md
	ans.Metadata.LatencyMS = time.Since(start).Milliseconds()
	s.deps.Metrics.ObserveQuery(md.Category, ans.Metadata.Kind, ans.Metadata.Passages, md.QualityScore, time.Since(start))
	log.Info().
		Str("kind", ans.Metadata.Kind).
		Str("category", md.Category).
		Int("passages", ans.Metadata.Passages).
		Float64("quality", md.QualityScore).
		Int64("latency_ms", ans.Metadata.LatencyMS).
		Msg("query answered")
	return ans, nil
}

func (s *RAGService) fallback(ans Answer, kind string, start time.Time, err error) Answer {
	log.Error().Err(err).Str("query", ans.Query).Msg("answer failed")
	ans.Response = Fallback
	ans.Metadata.Kind = kind
	ans.Metadata.Category = postprocess.Classify(ans.Query)
	ans.Metadata.WordCount = len(strings.Fields(Fallback))
	ans.Metadata.Error = err.Error()
	ans.Metadata.LatencyMS = time.Since(start).Milliseconds()
	s.deps.Metrics.ObserveQuery(ans.Metadata.Category, "failed", ans.Metadata.Passages, 0, time.Since(start))
	return ans
}

// Stats reports the index size and the effective retrieval and chunking settings.
func (s *RAGService) Stats(ctx context.Context) (Stats, error) {
	st, err := s.deps.Index.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("index stats: %w", err)
	}
	return Stats{
		Index:          st,
		Embedder:       s.deps.Embedder.Name(),
		TopK:           s.deps.Retriever.TopK(),
		ScoreThreshold: s.deps.Retriever.Threshold(),
		MaxTokens:      s.deps.MaxTokens,
		Overlap:        s.deps.Overlap,
	}, nil
}
