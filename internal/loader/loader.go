// Package loader reduces source files to documents for the chunker.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"

	"docrag/internal/domain"
)

var ErrUnsupported = errors.New("unsupported file format")

// Supported reports whether the file extension is loadable.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Expand resolves glob patterns to a sorted, de-duplicated list of files.
// A pattern matching nothing is kept as a literal path.
func Expand(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Load reads a .txt file as plain text and a Markdown file as headings,
// paragraphs and tables.
func Load(path string) (domain.Document, error) {
	if !Supported(path) {
		return domain.Document{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	source := norm.NFC.Bytes(data)
	doc := domain.Document{
		Source: path,
		Metadata: map[string]string{
			"file_name": filepath.Base(path),
		},
	}
	if strings.ToLower(filepath.Ext(path)) == ".txt" {
		doc.Text = string(source)
		doc.Metadata["format"] = "text"
		return doc, nil
	}
	doc.Blocks = ParseMarkdown(source)
	doc.Metadata["format"] = "markdown"
	return doc, nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ParseMarkdown flattens a Markdown document into blocks in reading order.
func ParseMarkdown(source []byte) []domain.Block {
	root := markdown.Parser().Parse(text.NewReader(source))
	return collect(root, source, nil)
}

func collect(n ast.Node, source []byte, out []domain.Block) []domain.Block {
	switch n := n.(type) {
	case *ast.Heading:
		if t := inline(n, source); t != "" {
			out = append(out, domain.Block{Kind: domain.BlockHeading, Text: t})
		}
		return out
	case *ast.Paragraph, *ast.TextBlock:
		if t := inline(n, source); t != "" {
			out = append(out, domain.Block{Kind: domain.BlockParagraph, Text: t})
		}
		return out
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		if t := strings.TrimSpace(b.String()); t != "" {
			out = append(out, domain.Block{Kind: domain.BlockParagraph, Text: t})
		}
		return out
	case *extast.Table:
		var rows [][]string
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inline(cell, source))
			}
			rows = append(rows, cells)
		}
		return append(out, domain.Block{Kind: domain.BlockTable, Rows: rows})
	case *ast.HTMLBlock, *ast.ThematicBreak:
		return out
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = collect(c, source, out)
	}
	return out
}

// inline concatenates the text of inline descendants, collapsing whitespace.
func inline(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				b.Write(c.Segment.Value(source))
				if c.SoftLineBreak() || c.HardLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(c.Value)
			case *ast.AutoLink:
				b.Write(c.Label(source))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
