package domain

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("empty query")
)

// ChunkKind tells text passages apart from tables.
type ChunkKind string

const (
	KindText  ChunkKind = "text"
	KindTable ChunkKind = "table"
)

// BlockKind classifies a block of a structured source.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockHeading   BlockKind = "heading"
	BlockTable     BlockKind = "table"
)

// Block is one paragraph, heading or table of a structured source.
type Block struct {
	Kind BlockKind
	Text string
	Rows [][]string
}

// Document is a source already reduced to text by a loader.
// Sources with Blocks are split structurally, otherwise Text is split as plain text.
type Document struct {
	Source   string
	Text     string
	Blocks   []Block
	Metadata map[string]string
}

// Chunk is the unit of retrievable content.
type Chunk struct {
	ID       string            `json:"id"`
	Kind     ChunkKind         `json:"kind"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content,omitempty"`
	Columns  []string          `json:"columns,omitempty"`
	Rows     [][]string        `json:"rows,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Ordinal  int               `json:"ordinal"`
	// Embedding is stored by the index, not in the chunk payload.
	Embedding []float32 `json:"-"`
}

// Valid reports whether the chunk carries anything worth persisting.
func (c Chunk) Valid() bool {
	if strings.TrimSpace(c.Content) != "" || strings.TrimSpace(c.Title) != "" {
		return true
	}
	return c.Kind == KindTable && (len(c.Columns) > 0 || len(c.Rows) > 0)
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// IndexStats summarizes a vector index.
type IndexStats struct {
	Count     int `json:"count"`
	Dimension int `json:"dimension"`
}

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of a prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenCounter approximates the token length of a text.
type TokenCounter interface {
	Count(text string) int
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Split(document Document) ([]Chunk, error)
}

// Embedder converts texts into fixed-length vectors, one per input, order preserved.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer turns a message sequence into generated text.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// VectorIndex stores chunk vectors and answers top-k similarity queries.
type VectorIndex interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) bool
	Stats(ctx context.Context) (IndexStats, error)
	Dimension() int
}
