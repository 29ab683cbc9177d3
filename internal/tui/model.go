package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/domain"
	"docrag/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Query(ctx context.Context, query string) (service.Answer, error)
}

type answerMsg struct {
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	service  RAGPort
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	summary  string
	status   string
	cursor   int
	ready    bool
	busy     bool
}

// New creates a chat model. summary is shown under the header.
func New(svc RAGPort, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Nhập câu hỏi và nhấn Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{service: svc, timeout: timeout, input: ti, viewport: vp, summary: summary, status: "Sẵn sàng."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		ans, err := m.service.Query(ctx, q)
		return answerMsg{answer: ans, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, domain.ErrEmptyQuery):
			m.status = "Vui lòng nhập câu hỏi."
		case msg.err != nil:
			m.status = "Lỗi: " + msg.err.Error()
		default:
			ans := msg.answer
			m.answer = &ans
			m.cursor = 0
			m.status = fmt.Sprintf("%s · %s · %d đoạn · %d ms",
				ans.Metadata.Kind, ans.Metadata.Category, len(ans.Contexts), ans.Metadata.LatencyMS)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Đang tìm câu trả lời..."
			m.input.SetValue("")
			return m, m.ask(q)
		case "down":
			if n := m.passages(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if n := m.passages(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) passages() int {
	if m.answer == nil {
		return 0
	}
	return len(m.answer.Contexts)
}

// View renders the header, answer pane, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("BIDV Document Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "Chưa có câu trả lời."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Response))
	if n := len(m.answer.Contexts); n > 0 {
		fmt.Fprintf(&b, "\n\nĐoạn %d/%d", m.cursor+1, n)
		if m.cursor < len(m.answer.Sources) {
			b.WriteString("  " + m.answer.Sources[m.cursor])
		}
		b.WriteString("\n")
		b.WriteString(highlightBestSentence(m.answer.Contexts[m.cursor], m.answer.Query))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]+\s+`)
)

func highlightBestSentence(text, query string) string {
	sentences, best := bestSentence(text, query)
	if best < 0 {
		return strings.Join(sentences, " ")
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

// bestSentence splits text into sentences and returns the index of the one
// sharing the most tokens with the query, or -1 when the query has no tokens.
func bestSentence(text, query string) ([]string, int) {
	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	qTokens := toTokenSet(query)
	if len(sentences) == 0 || len(qTokens) == 0 {
		return sentences, -1
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	return sentences, bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range toTokenSet(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
