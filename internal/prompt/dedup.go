package prompt

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\p{L}+|\p{N}+`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"và", "của", "là", "có", "các", "những", "cho", "được", "trong", "với", "này", "đó",
		"thì", "mà", "để", "khi", "từ", "theo", "như", "một", "đã", "sẽ", "đang", "bị", "về",
		"tại", "vào", "ra", "lên", "nếu", "hoặc", "nhưng", "cũng", "không", "rất", "nhiều",
		"đến", "trên", "dưới", "sau", "trước", "do", "bởi", "vì", "nên", "thể", "hay", "ở",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[t]; !stop {
			set[t] = struct{}{}
		}
	}
	return set
}

// Jaccard is the token-set similarity of two passages after stop-word removal.
func Jaccard(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b), a == b)
}

func jaccard(a, b map[string]struct{}, same bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		if same {
			return 1
		}
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Dedup drops empty passages and any passage more similar than threshold to
// one already kept, returning at most limit indexes in input order.
func Dedup(passages []string, threshold float64, limit int) []int {
	var (
		kept []int
		sets []map[string]struct{}
	)
	for i, p := range passages {
		if limit > 0 && len(kept) == limit {
			break
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		set := tokenSet(p)
		dup := false
		for j, k := range kept {
			if jaccard(set, sets[j], p == passages[k]) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, i)
			sets = append(sets, set)
		}
	}
	return kept
}
