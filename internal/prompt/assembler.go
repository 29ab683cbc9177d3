package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
)

// NoInfo is the marker placed in the user message when no passage survives.
const NoInfo = "Không tìm thấy thông tin phù hợp."

// NotFoundReply is the sentence the model is told to use when the context is insufficient.
const NotFoundReply = "Tôi không tìm thấy thông tin phù hợp trong tài liệu được cung cấp."

const systemPolicy = "Bạn là trợ lý AI của BIDV. Nhiệm vụ: trả lời dựa DUY NHẤT vào mục 'Thông tin từ tài liệu' được cung cấp.\n" +
	"QUY TẮC:\n" +
	"1) Ưu tiên trả lời NGẮN GỌN, TRỰC TIẾP (2–5 câu hoặc gạch đầu dòng), xưng hô lịch sự với quý khách.\n" +
	"2) CHỈ dùng thông tin trong ngữ cảnh; KHÔNG suy đoán hay ngoại suy ngoài tài liệu.\n" +
	"3) Nếu ngữ cảnh không đủ để trả lời, trả lời đúng một câu: '" + NotFoundReply + "'\n" +
	"4) Nêu con số, ngày tháng kèm đơn vị và phạm vi áp dụng nếu tài liệu có.\n" +
	"5) Không dùng thuật ngữ nội bộ hoặc viết tắt mơ hồ; nếu buộc phải dùng, giải thích ngắn trong ngoặc.\n" +
	"6) Không chào hỏi, không lời chúc, không đặt thêm câu hỏi hay câu trắc nghiệm.\n" +
	"7) Nếu chỉ có dữ liệu gần nhất nhưng không trùng khớp: đặt nhãn [Liên quan gần nhất] rồi mới nêu.\n" +
	"ĐỊNH DẠNG TRẢ LỜI:\n" +
	"- Dòng 1: câu trả lời cô đọng nhất.\n" +
	"- Sau đó (tuỳ cần): 2–4 gạch đầu dòng chi tiết quan trọng, mỗi gạch không quá 20 từ."

const smallTalkPolicy = "Bạn là trợ lý AI của BIDV. Người dùng đang chào hỏi, cảm ơn, xác nhận hoặc tạm biệt.\n" +
	"Trả lời thân thiện trong 1–2 câu, bắt đầu bằng 'Chào quý khách', không cung cấp thông tin sản phẩm " +
	"và mời quý khách đặt câu hỏi về dịch vụ BIDV nếu cần."

// Kind is the shape of an assembled prompt.
type Kind string

const (
	KindSmallTalk Kind = "smalltalk"
	KindGrounded  Kind = "grounded"
	KindNoContext Kind = "no_context"
)

// Passage is one retrieved chunk as it appears in the prompt.
type Passage struct {
	Text      string
	Chunk     domain.Chunk
	Score     float64
	Truncated bool
}

// Prompt is the system and user message pair sent to the completion gateway.
type Prompt struct {
	Messages []domain.Message
	Kind     Kind
	Intent   Intent
	Passages []Passage
}

// Options tune the assembler.
type Options struct {
	MaxChars        int
	MaxPassages     int
	DedupThreshold  float64
	MinPassageChars int
}

type Assembler struct {
	opts Options
}

func NewAssembler(opts Options) *Assembler {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 4000
	}
	if opts.MaxPassages <= 0 {
		opts.MaxPassages = 3
	}
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = 0.75
	}
	if opts.MinPassageChars <= 0 {
		opts.MinPassageChars = 100
	}
	return &Assembler{opts: opts}
}

// Build assembles the prompt for a query and its retrieved chunks.
// Small-talk queries ignore the chunks.
func (a *Assembler) Build(query string, hits []domain.SearchResult) Prompt {
	query = Sanitize(query)
	if intent := ClassifyQuery(query); intent != IntentNone {
		return Prompt{
			Kind:     KindSmallTalk,
			Intent:   intent,
			Messages: a.pair(smallTalkPolicy, query),
		}
	}

	rendered := make([]string, len(hits))
	for i, h := range hits {
		rendered[i] = Clean(Render(h.Chunk))
	}
	kept := Dedup(rendered, a.opts.DedupThreshold, a.opts.MaxPassages)
	if len(kept) == 0 {
		user := "Câu hỏi: " + query + "\nThông tin từ tài liệu: " + NoInfo + "\nTrả lời:"
		return Prompt{Kind: KindNoContext, Messages: a.pair(systemPolicy, user)}
	}

	header := "Câu hỏi: " + query + "\n\nThông tin từ tài liệu:\n"
	footer := "\n\nDựa trên thông tin trên, hãy trả lời chính xác và đầy đủ:"
	texts := make([]string, len(kept))
	overhead := utf8.RuneCountInString(header) + utf8.RuneCountInString(footer)
	for i, k := range kept {
		texts[i] = rendered[k]
		overhead += utf8.RuneCountInString(label(i))
		if i > 0 {
			overhead++
		}
	}
	texts, cut := fitPassages(texts, a.opts.MaxChars-overhead, a.opts.MinPassageChars)

	var b strings.Builder
	b.WriteString(header)
	passages := make([]Passage, len(kept))
	for i, k := range kept {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label(i))
		b.WriteString(texts[i])
		passages[i] = Passage{Text: texts[i], Chunk: hits[k].Chunk, Score: hits[k].Score, Truncated: cut[i]}
	}
	b.WriteString(footer)
	return Prompt{Kind: KindGrounded, Passages: passages, Messages: a.pair(systemPolicy, b.String())}
}

func (a *Assembler) pair(system, user string) []domain.Message {
	if n := utf8.RuneCountInString(user); n > a.opts.MaxChars {
		log.Warn().Int("chars", n).Int("max_chars", a.opts.MaxChars).Msg("prompt exceeds budget; truncating")
		user = string([]rune(user)[:a.opts.MaxChars])
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}
}

func label(i int) string { return fmt.Sprintf("Đoạn %d: ", i+1) }
