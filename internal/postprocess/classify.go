package postprocess

import (
	"regexp"
	"strings"
)

var categories = []struct {
	name     string
	keywords []string
}{
	{"loan", []string{"vay", "khoản vay", "thế chấp", "trả góp", "giải ngân", "dư nợ"}},
	{"savings", []string{"tiết kiệm", "tiền gửi", "gửi tiền", "kỳ hạn", "sổ tiết kiệm"}},
	{"card", []string{"thẻ", "visa", "mastercard", "atm", "napas", "jcb"}},
	{"account", []string{"tài khoản", "số dư", "sao kê", "mở tài khoản"}},
	{"digital_banking", []string{"smartbanking", "smart banking", "ibanking", "internet banking", "ứng dụng", "app", "otp", "qr", "trực tuyến"}},
	{"thanks", []string{"cảm ơn", "cám ơn", "thank", "thanks", "tks"}},
	{"greeting", []string{"xin chào", "chào", "hello", "hi", "alo"}},
}

var wordSepRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Classify buckets a query by keyword membership, falling back to general_inquiry.
func Classify(query string) string {
	q := " " + strings.TrimSpace(wordSepRe.ReplaceAllString(strings.ToLower(query), " ")) + " "
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(q, " "+kw+" ") {
				return c.name
			}
		}
	}
	return "general_inquiry"
}
