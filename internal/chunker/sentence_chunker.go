package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"docrag/internal/domain"
)

var headingRe = regexp.MustCompile(`^\d+(\.\d+)*\s`)

// SentenceChunker packs sentences into chunks bounded by a token budget,
// carrying trailing sentences of a flushed chunk into the next one as overlap.
type SentenceChunker struct {
	maxTokens int
	overlap   int
	counter   domain.TokenCounter
}

// NewSentenceChunker creates a chunker. A nil counter counts whitespace-delimited words.
func NewSentenceChunker(maxTokens, overlap int, counter domain.TokenCounter) *SentenceChunker {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = 0
	}
	if counter == nil {
		counter = WhitespaceCounter{}
	}
	return &SentenceChunker{maxTokens: maxTokens, overlap: overlap, counter: counter}
}

// Split turns a document into chunks. Documents carrying blocks are split
// structurally (headings become titles, tables become table chunks); all other
// documents are split as plain text with no title.
func (c *SentenceChunker) Split(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if len(document.Blocks) > 0 {
		chunks = c.splitBlocks(document.Blocks)
	} else {
		for _, passage := range c.SplitText(document.Text) {
			chunks = append(chunks, domain.Chunk{Kind: domain.KindText, Content: passage})
		}
	}
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].Ordinal = i
		chunks[i].Metadata = chunkMetadata(document, i)
	}
	return chunks, nil
}

// SplitText packs the sentences of text into passages of at most maxTokens tokens.
// A single sentence longer than the budget is emitted alone, unsplit.
func (c *SentenceChunker) SplitText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	var (
		passages []string
		buf      []string
		counts   []int
		total    int
	)
	for _, s := range sentences {
		n := c.counter.Count(s)
		if len(buf) > 0 && total+n > c.maxTokens {
			passages = append(passages, strings.Join(buf, " "))
			buf, counts, total = c.seed(buf, counts, n)
		}
		buf = append(buf, s)
		counts = append(counts, n)
		total += n
	}
	if len(buf) > 0 {
		passages = append(passages, strings.Join(buf, " "))
	}
	return passages
}

// seed returns the trailing sentences of a flushed buffer that fit both the
// overlap budget and, together with the next sentence, the chunk budget.
func (c *SentenceChunker) seed(buf []string, counts []int, next int) ([]string, []int, int) {
	if c.overlap == 0 || len(buf) < 2 {
		return nil, nil, 0
	}
	start := len(buf)
	sum := 0
	for i := len(buf) - 1; i > 0; i-- {
		if sum+counts[i] > c.overlap || sum+counts[i]+next > c.maxTokens {
			break
		}
		sum += counts[i]
		start = i
	}
	if start == len(buf) {
		return nil, nil, 0
	}
	seedBuf := append([]string(nil), buf[start:]...)
	seedCounts := append([]int(nil), counts[start:]...)
	return seedBuf, seedCounts, sum
}

func (c *SentenceChunker) splitBlocks(blocks []domain.Block) []domain.Chunk {
	var (
		chunks  []domain.Chunk
		title   string
		section []string
	)
	flush := func() {
		if len(section) == 0 {
			return
		}
		for _, passage := range c.SplitText(strings.Join(section, " ")) {
			chunks = append(chunks, domain.Chunk{Kind: domain.KindText, Title: title, Content: passage})
		}
		section = nil
	}
	for _, b := range blocks {
		switch {
		case b.Kind == domain.BlockTable:
			flush()
			if table, ok := tableChunk(b.Rows, title); ok {
				chunks = append(chunks, table)
			}
		case b.Kind == domain.BlockHeading || IsHeading(b.Text):
			flush()
			title = strings.TrimSpace(b.Text)
		default:
			if text := strings.TrimSpace(b.Text); text != "" {
				section = append(section, text)
			}
		}
	}
	flush()
	return chunks
}

func tableChunk(rows [][]string, title string) (domain.Chunk, bool) {
	var kept [][]string
	for _, row := range rows {
		cells := make([]string, len(row))
		empty := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				empty = false
			}
		}
		if !empty {
			kept = append(kept, cells)
		}
	}
	if len(kept) == 0 {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		Kind:    domain.KindTable,
		Title:   title,
		Columns: kept[0],
		Rows:    kept[1:],
	}, true
}

// IsHeading reports whether a paragraph reads as a heading: an enumerated
// prefix such as "2.1 " or text written fully in upper case.
func IsHeading(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if headingRe.MatchString(text) {
		return true
	}
	upper := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper = true
		}
	}
	return upper
}

// splitSentences cuts text after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end >= len(text) {
			break
		}
		next, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsSpace(next) {
			continue
		}
		if s := normalizeSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := normalizeSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func chunkMetadata(document domain.Document, ordinal int) map[string]string {
	md := make(map[string]string, len(document.Metadata)+2)
	for k, v := range document.Metadata {
		md[k] = v
	}
	if document.Source != "" {
		md["source"] = document.Source
	}
	md["chunk"] = strconv.Itoa(ordinal)
	return md
}
