package prompt

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Intent names a small-talk query that needs no document context.
type Intent string

const (
	IntentNone     Intent = ""
	IntentGreeting Intent = "greeting"
	IntentThanks   Intent = "thanks"
	IntentAck      Intent = "acknowledgment"
	IntentFarewell Intent = "farewell"
)

const address = `(\s+(bạn|em|anh|chị|bot|ad|admin|bidv|ngân hàng|trợ lý|quý khách|mọi người|ơi|ạ|nhé|nha|nhiều|rất nhiều|so much|a lot|cảm ơn|thanks))*`

var smallTalk = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentGreeting, regexp.MustCompile(`^((xin )?chào|hi|hello|hey|alo|allo|good (morning|afternoon|evening))` + address + `$`)},
	{IntentThanks, regexp.MustCompile(`^(xin )?(cảm ơn|cám ơn|thanks?|thank you|tks|thx|many thanks)` + address + `$`)},
	{IntentAck, regexp.MustCompile(`^(ok|oke|okay|okie|vâng|dạ|ừ|ừm|được|được rồi|rồi|đã hiểu|hiểu rồi|tôi hiểu rồi|tuyệt|tốt|got it)` + address + `$`)},
	{IntentFarewell, regexp.MustCompile(`^(tạm biệt|bye|bye bye|goodbye|hẹn gặp lại)` + address + `$`)},
}

var (
	punctRe     = regexp.MustCompile(`[!.,?~;:…"'()\-]+`)
	zeroWidthRe = regexp.MustCompile("[\u200B\u200C\u200D\u2060\uFEFF]")
)

// Sanitize NFC-normalizes text, drops zero-width characters and trims it.
func Sanitize(text string) string {
	return strings.TrimSpace(zeroWidthRe.ReplaceAllString(norm.NFC.String(text), ""))
}

// ClassifyQuery reports whether the query is a greeting, thanks,
// acknowledgment or farewell with nothing else in it.
func ClassifyQuery(query string) Intent {
	q := strings.ToLower(Sanitize(query))
	q = strings.Join(strings.Fields(punctRe.ReplaceAllString(q, " ")), " ")
	if q == "" {
		return IntentNone
	}
	for _, st := range smallTalk {
		if st.re.MatchString(q) {
			return st.intent
		}
	}
	return IntentNone
}
