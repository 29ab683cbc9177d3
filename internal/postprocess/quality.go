package postprocess

import (
	"regexp"
	"strings"
)

var nestedNumberRe = regexp.MustCompile(`\b\d{1,2}[.)]\s+\d{1,2}[.)]\s`)

// Quality scores an answer in [0, 1]. Incomplete-information language and
// garbled numbering are judged on the raw text, the rest on the cleaned text.
func Quality(raw, cleaned string) float64 {
	score := 1.0
	if incompleteRe.MatchString(raw) {
		score -= 0.3
	}
	if strings.Count(strings.ToLower(cleaned), "quý khách") > 3 {
		score -= 0.2
	}
	if nestedNumberRe.MatchString(raw) {
		score -= 0.2
	}
	switch words := len(strings.Fields(cleaned)); {
	case words < 10:
		score -= 0.2
	case words > 150:
		score -= 0.1
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
