package prompt

import (
	"regexp"
	"strings"

	"docrag/internal/domain"
)

var (
	citationRe = regexp.MustCompile(`\[\d{1,3}\]|\(\d{1,3}\)`)
	spaceRe    = regexp.MustCompile(`[ \t\f\v\r\p{Zs}]+`)
)

// Render turns a chunk into plain passage text. Tables become a title line,
// a header line and one pipe-joined line per row; text chunks use their content.
func Render(ch domain.Chunk) string {
	if ch.Kind != domain.KindTable {
		return ch.Content
	}
	var lines []string
	if t := strings.TrimSpace(ch.Title); t != "" {
		lines = append(lines, "Bảng: "+t)
	}
	if len(ch.Columns) > 0 {
		lines = append(lines, strings.Join(ch.Columns, " | "))
	}
	for _, row := range ch.Rows {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n")
}

// Clean strips citation markers such as "[3]" or "(12)" and collapses
// whitespace. Line breaks survive as single newlines.
func Clean(text string) string {
	text = citationRe.ReplaceAllString(text, "")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
