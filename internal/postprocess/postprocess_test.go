package postprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/prompt"
)

func TestCleanDropsQuestionsAndOptions(t *testing.T) {
	raw := "Lãi suất tiết kiệm 12 tháng là 4,7%/năm.\n" +
		"Lãi suất tiết kiệm là gì?\n" +
		"Hãy liệt kê các kỳ hạn\n" +
		"A. 3 tháng\n" +
		"b) 6 tháng\n" +
		"Kỳ hạn tối thiểu là 1 tháng"

	got, md := Clean(raw, "lãi suất tiết kiệm")

	assert.Equal(t, "Lãi suất tiết kiệm 12 tháng là 4,7%/năm.\nKỳ hạn tối thiểu là 1 tháng.", got)
	assert.True(t, md.Cleaned)
	assert.Equal(t, "savings", md.Category)
	assert.Equal(t, len(strings.Fields(got)), md.WordCount)
}

func TestCleanRewritesIncompleteInformationOnce(t *testing.T) {
	raw := "Thẻ BIDV Visa có hạn mức 50 triệu đồng. Tài liệu không đề cập đến phí thường niên.\n" +
		"Thông tin về lãi suất thẻ chưa đầy đủ."

	got, md := Clean(raw, "hạn mức thẻ visa")

	assert.Equal(t, "Thẻ BIDV Visa có hạn mức 50 triệu đồng. "+Redirect, got)
	assert.Equal(t, 1, strings.Count(got, Redirect))
	assert.Equal(t, "card", md.Category)
	assert.InDelta(t, 0.7, md.QualityScore, 1e-9)
}

func TestCleanPassesCanonicalRepliesThrough(t *testing.T) {
	for _, raw := range []string{
		"Tôi không tìm thấy thông tin phù hợp trong tài liệu được cung cấp.",
		"Chào quý khách! Quý khách cần hỗ trợ gì?\nthêm dòng  lộn xộn",
	} {
		got, md := Clean(raw, "xin chào")
		assert.Equal(t, raw, got)
		assert.False(t, md.Cleaned)
	}
}

func TestCleanCollapsesCourtesyAndLeadIns(t *testing.T) {
	raw := "Dựa trên thông tin trên, lãi suất vay mua nhà là 7,5%/năm. Cảm ơn quý khách đã tin dùng BIDV. Cảm ơn quý khách."

	got, md := Clean(raw, "lãi suất vay mua nhà")

	assert.Equal(t, "Lãi suất vay mua nhà là 7,5%/năm. Cảm ơn quý khách đã tin dùng BIDV.", got)
	assert.Equal(t, "loan", md.Category)
}

func TestCleanFormatsListsAndPunctuation(t *testing.T) {
	raw := "các bước mở thẻ :\n1) Mang CCCD đến quầy\n3.Điền   tờ khai\n•Nhận thẻ sau 7 ngày"

	got, _ := Clean(raw, "mở thẻ")

	assert.Equal(t, "Các bước mở thẻ:\n1. Mang CCCD đến quầy\n2. Điền tờ khai\n- Nhận thẻ sau 7 ngày.", got)
}

func TestCleanAnswersNotFoundWhenEverythingIsDropped(t *testing.T) {
	for _, raw := range []string{
		"  Lãi suất là gì?  ",
		"Lãi suất là gì?\nTại sao vậy?",
		"a) 5%\nb) 6%",
		"\n\n",
	} {
		got, md := Clean(raw, "lãi suất")

		assert.Equal(t, prompt.NotFoundReply, got, raw)
		assert.True(t, md.Cleaned)
		for _, line := range strings.Split(got, "\n") {
			assert.False(t, IsQuestionLine(line), line)
			assert.NotRegexp(t, `^[a-dA-D][).]`, line)
		}
	}
}

func TestCleanKeepsNumberingAcrossDetailLines(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "detail line",
			raw:  "1. Mở tài khoản\nGhi chú thêm\n2. Nộp tiền",
			want: "1. Mở tài khoản\nGhi chú thêm\n2. Nộp tiền.",
		},
		{
			name: "bullet under item",
			raw:  "1. Mở tài khoản\n- mang theo CCCD\n2. Nộp tiền",
			want: "1. Mở tài khoản\n- Mang theo CCCD\n2. Nộp tiền.",
		},
		{
			name: "blank line starts a new list",
			raw:  "1. Mở tài khoản\n2. Nộp tiền\n\n1. Kích hoạt thẻ",
			want: "1. Mở tài khoản\n2. Nộp tiền\n1. Kích hoạt thẻ.",
		},
		{
			name: "colon starts a new list",
			raw:  "Hồ sơ cần có:\n1. CCCD\n2. Sổ hộ khẩu\nCác bước:\n1. Nộp hồ sơ",
			want: "Hồ sơ cần có:\n1. CCCD\n2. Sổ hộ khẩu\nCác bước:\n1. Nộp hồ sơ.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Clean(tt.raw, "mở tài khoản")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanKeepsTerminalPunctuation(t *testing.T) {
	for _, raw := range []string{"Được ạ!", "Các giấy tờ cần có:", "Vâng…", "Phí duy trì 10.000 đồng/tháng –", "Phí duy trì 10.000 đồng/tháng —"} {
		got, _ := Clean(raw, "")
		assert.Equal(t, raw, got)
	}
}

func TestQuality(t *testing.T) {
	long := strings.Repeat("từ ", 151)
	ten := "một hai ba bốn năm sáu bảy tám chín mười"

	tests := []struct {
		name    string
		raw     string
		cleaned string
		want    float64
	}{
		{"clean", ten, ten, 1},
		{"short", "Có.", "Có.", 0.8},
		{"long", long, long, 0.9},
		{"incomplete", "Tài liệu không đề cập " + ten, ten, 0.7},
		{"nested numbering", "1. 2. " + ten, ten, 0.8},
		{"address overuse", ten, strings.Repeat("quý khách ", 4) + ten, 0.8},
		{"all penalties", "Tài liệu không đề cập. 1. 2. quý khách", "quý khách quý khách quý khách quý khách", 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quality(tt.raw, tt.cleaned)
			assert.InDelta(t, tt.want, got, 1e-9)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"Lãi suất vay mua nhà?":       "loan",
		"gửi tiết kiệm 6 tháng":       "savings",
		"Phí thường niên thẻ Visa":    "card",
		"thẻ tín dụng":                "card",
		"Cách xem số dư tài khoản":    "account",
		"Quên mật khẩu SmartBanking":  "digital_banking",
		"Cảm ơn bạn":                  "thanks",
		"Xin chào!":                   "greeting",
		"Giờ làm việc của chi nhánh?": "general_inquiry",
		"":                            "general_inquiry",
	}
	for query, want := range tests {
		assert.Equal(t, want, Classify(query), query)
	}
}

func TestIsQuestionLine(t *testing.T) {
	assert.True(t, IsQuestionLine("Phí chuyển khoản là bao nhiêu?"))
	assert.True(t, IsQuestionLine("Mô tả quy trình mở tài khoản"))
	assert.True(t, IsQuestionLine("có bao nhiêu loại thẻ"))
	assert.True(t, IsQuestionLine("Thủ tục như thế nào? Xem bên dưới"))
	assert.False(t, IsQuestionLine("Phí chuyển khoản là 0 đồng."))
}
