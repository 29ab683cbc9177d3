package prompt

import (
	"unicode"
	"unicode/utf8"
)

// fitPassages shrinks passages so their combined rune length fits available.
// Every passage first keeps up to floor runes; the remaining allowance is
// shared in proportion to what each passage has beyond that.
func fitPassages(passages []string, available, floor int) ([]string, []bool) {
	out := make([]string, len(passages))
	cut := make([]bool, len(passages))
	copy(out, passages)
	lengths := make([]int, len(passages))
	floors := make([]int, len(passages))
	total, reserved, excess := 0, 0, 0
	for i, p := range passages {
		lengths[i] = utf8.RuneCountInString(p)
		floors[i] = min(floor, lengths[i])
		total += lengths[i]
		reserved += floors[i]
		excess += lengths[i] - floors[i]
	}
	if total <= available {
		return out, cut
	}
	remaining := max(available-reserved, 0)
	for i, p := range passages {
		share := floors[i]
		if excess > 0 {
			share += remaining * (lengths[i] - floors[i]) / excess
		}
		if share < lengths[i] {
			out[i] = truncateRunes(p, share)
			cut[i] = true
		}
	}
	return out, cut
}

// truncateRunes cuts s to at most limit runes, preferring the end of a
// sentence, then a word boundary, in the second half of the allowance.
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	r = r[:limit]
	half := limit / 2
	for i := len(r) - 1; i >= half; i-- {
		if isSentenceEnd(r[i]) && (i+1 == len(r) || unicode.IsSpace(r[i+1])) {
			return string(r[:i+1])
		}
	}
	for i := len(r) - 1; i >= half; i-- {
		if unicode.IsSpace(r[i]) {
			return trimRightSpace(r[:i])
		}
	}
	return string(r)
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }

func trimRightSpace(r []rune) string {
	end := len(r)
	for end > 0 && unicode.IsSpace(r[end-1]) {
		end--
	}
	return string(r[:end])
}
