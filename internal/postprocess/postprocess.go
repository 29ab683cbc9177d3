package postprocess

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"docrag/internal/prompt"
)

// Redirect replaces sentences that only say the information is incomplete.
const Redirect = "Quý khách vui lòng liên hệ chi nhánh BIDV gần nhất hoặc tổng đài 1900 9247 để được tư vấn chi tiết."

// Metadata describes a cleaned response for observability.
type Metadata struct {
	Category     string  `json:"category"`
	QualityScore float64 `json:"quality_score"`
	WordCount    int     `json:"word_count"`
	Cleaned      bool    `json:"cleaned"`
}

// canonical replies are passed through untouched
var canonical = []string{
	"Tôi không tìm thấy thông tin phù hợp",
	"Chào quý khách",
}

var (
	questionEndRe   = regexp.MustCompile(`\?$`)
	questionStartRe = regexp.MustCompile(`(?i)^(có bao nhiêu|hãy|liệt kê|mô tả|tại sao)`)
	questionMidRe   = regexp.MustCompile(`(?i)(là gì|như thế nào|ra sao)\?`)
	optionRe        = regexp.MustCompile(`^[a-dA-D][).]`)

	incompleteRe = regexp.MustCompile(`(?i)(thông tin|tài liệu|dữ liệu|ngữ cảnh)[^.!?\n]{0,40}(không đầy đủ|chưa đầy đủ|không đủ|không đề cập|không nêu|không có thông tin|chưa có thông tin|không cung cấp|chưa cung cấp)|(không|chưa) có (đủ )?thông tin (chi tiết|cụ thể|đầy đủ)`)
	leadInRe     = regexp.MustCompile(`(?i)^(dựa (trên|vào) (các )?(thông tin|tài liệu)( (trên|đã cung cấp|được cung cấp))?|theo (thông tin|tài liệu)( (trên|được cung cấp|đã cung cấp))?|căn cứ (vào )?(thông tin|tài liệu)( trên)?)\s*,?\s*`)
	courtesyRe   = regexp.MustCompile(`(?i)^(xin |rất |chân thành )?(cảm ơn|cám ơn|chúc|mong|hân hạnh|kính chào|xin chào|trân trọng)`)

	spacesRe        = regexp.MustCompile(`[ \t\p{Zs}]+`)
	spaceBeforeRe   = regexp.MustCompile(`\s+([.,;:!?])`)
	missingSpaceRe  = regexp.MustCompile(`([.!?;,])(\p{Lu})`)
	numberedRe      = regexp.MustCompile(`^\d{1,3}[.)]\s+`)
	bulletRe        = regexp.MustCompile(`^(?:[•*·●▪]\s*|[–-]\s+)`)
	sentenceStartRe = regexp.MustCompile(`([.!?]\s+)(\p{Ll})`)
)

// Clean removes self-generated questions, collapses boilerplate and
// normalizes formatting of a generated answer. Canonical templated replies are
// returned verbatim.
func Clean(raw, query string) (string, Metadata) {
	md := Metadata{Category: Classify(query)}
	if isCanonical(raw) {
		md.WordCount = len(strings.Fields(raw))
		md.QualityScore = Quality(raw, raw)
		return raw, md
	}
	lines := dropQuestions(raw)
	lines = rewriteIncomplete(lines)
	lines = collapseCourtesy(lines)
	text := format(lines)
	text = terminate(text)
	if strings.TrimSpace(text) == "" {
		// nothing but generated questions; never echo them back
		text = prompt.NotFoundReply
	}
	md.Cleaned = true
	md.WordCount = len(strings.Fields(text))
	md.QualityScore = Quality(raw, text)
	return text, md
}

func isCanonical(raw string) bool {
	for _, c := range canonical {
		if strings.Contains(raw, c) {
			return true
		}
	}
	return false
}

// IsQuestionLine reports whether a line reads like a generated quiz question.
func IsQuestionLine(line string) bool {
	return questionEndRe.MatchString(line) || questionStartRe.MatchString(line) || questionMidRe.MatchString(line)
}

// dropQuestions keeps a single empty line per run of blank lines so later
// steps can tell where a list ends.
func dropQuestions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			continue
		}
		if IsQuestionLine(line) || optionRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// rewriteIncomplete turns "information is incomplete" sentences into one redirect.
func rewriteIncomplete(lines []string) []string {
	redirected := false
	var out []string
	for _, line := range lines {
		if line == "" {
			out = append(out, line)
			continue
		}
		var kept []string
		for _, s := range sentences(line) {
			if !incompleteRe.MatchString(s) {
				kept = append(kept, s)
				continue
			}
			if !redirected {
				kept = append(kept, Redirect)
				redirected = true
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, " "))
		}
	}
	return out
}

// collapseCourtesy strips lead-in fillers and keeps only the first courtesy sentence.
func collapseCourtesy(lines []string) []string {
	seen := false
	var out []string
	for _, line := range lines {
		if line == "" {
			out = append(out, line)
			continue
		}
		var kept []string
		for _, s := range sentences(line) {
			s = leadInRe.ReplaceAllString(s, "")
			if s == "" {
				continue
			}
			if courtesyRe.MatchString(s) {
				if seen {
					continue
				}
				seen = true
			}
			kept = append(kept, s)
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, " "))
		}
	}
	return out
}

// format renumbers each list consecutively. A list ends at a blank line or at
// a line introducing a new one with a trailing colon; detail lines and bullets
// between numbered items keep the count going.
func format(lines []string) string {
	out := make([]string, 0, len(lines))
	n := 0
	for _, line := range lines {
		if line == "" {
			n = 0
			continue
		}
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		line = spaceBeforeRe.ReplaceAllString(line, "$1")
		line = missingSpaceRe.ReplaceAllString(line, "$1 $2")
		prefix := ""
		switch {
		case numberedRe.MatchString(line):
			n++
			prefix = strconv.Itoa(n) + ". "
			line = numberedRe.ReplaceAllString(line, "")
		case bulletRe.MatchString(line):
			prefix = "- "
			line = bulletRe.ReplaceAllString(line, "")
		case strings.HasSuffix(line, ":"):
			n = 0
		}
		line = capitalize(line)
		line = sentenceStartRe.ReplaceAllStringFunc(line, func(m string) string {
			r, size := utf8.DecodeLastRuneInString(m)
			return m[:len(m)-size] + string(unicode.ToUpper(r))
		})
		if line == "" {
			continue
		}
		out = append(out, prefix+line)
	}
	return strings.Join(out, "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func terminate(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	if strings.ContainsRune(".!?…:-–—", last) {
		return s
	}
	return s + "."
}

// sentences splits a line after '.', '!' or '?' followed by whitespace.
func sentences(line string) []string {
	var out []string
	start := 0
	for i, r := range line {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end < len(line) && line[end] == ' ' {
			if s := strings.TrimSpace(line[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(line[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
