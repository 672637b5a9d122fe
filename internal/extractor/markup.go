package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown renders the text of every leaf block, one block per line
type Markdown struct{}

func (Markdown) Kind() string { return "markdown" }

func (Markdown) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	source := []byte(decodeText(data))
	return &Result{Text: markdownText(source)}, nil
}

func markdownText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var (
		blocks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch node := n.(type) {
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					cur.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			case *ast.Text:
				cur.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					cur.WriteByte(' ')
				}
			case *ast.String:
				cur.Write(node.Value)
			case *ast.AutoLink:
				cur.Write(node.Label(source))
				return ast.WalkSkipChildren, nil
			case *ast.RawHTML:
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}

		if n.Type() == ast.TypeBlock && (n.FirstChild() == nil || n.FirstChild().Type() == ast.TypeInline) {
			flush()
		}
		return ast.WalkContinue, nil
	})
	flush()

	return strings.Join(blocks, "\n")
}

// HTML drops script and style elements and collapses the remaining text
type HTML struct{}

func (HTML) Kind() string { return "html" }

func (HTML) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, template").Remove()

	return &Result{Text: strings.Join(strings.Fields(doc.Text()), " ")}, nil
}
