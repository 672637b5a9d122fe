package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Office extracts docx, pptx and xlsx documents
type Office struct{}

func (Office) Kind() string { return "office" }

func (o Office) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return o.extractDocx(path)
	case ".pptx":
		return o.extractPptx(path)
	case ".xlsx":
		return o.extractXlsx(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func (Office) extractDocx(path string) (*Result, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		paras, err := zipParagraphs(f)
		if err != nil {
			return nil, err
		}
		return &Result{Text: strings.Join(paras, "\n"), Method: "docx"}, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml not found", types.ErrMalformedInput)
}

func (Office) extractPptx(path string) (*Result, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	defer reader.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range reader.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	// slide10 sorts after slide2
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var paras []string
	for _, s := range slides {
		p, err := zipParagraphs(s.file)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.num, err)
		}
		paras = append(paras, p...)
	}
	return &Result{Text: strings.Join(paras, "\n"), Method: "pptx", Pages: len(slides)}, nil
}

func (Office) extractXlsx(path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	var rows []string
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		cells, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for _, row := range cells {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				rows = append(rows, line)
			}
		}
	}
	return &Result{Text: strings.Join(rows, "\n"), Method: "xlsx", Pages: len(sheets)}, nil
}

func zipParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	defer rc.Close()
	return xmlParagraphs(rc)
}

// xmlParagraphs collects the text runs (<w:t>, <a:t>) of every paragraph
// (<w:p>, <a:p>) in document order. A paragraph nested inside another, such
// as a text box, is emitted on its own before the enclosing one completes.
func xmlParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []string
		stack  []*strings.Builder
		inText int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				stack = append(stack, &strings.Builder{})
			case "t":
				inText++
			case "br", "cr":
				if len(stack) > 0 {
					stack[len(stack)-1].WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				if len(stack) > 0 {
					paras = append(paras, stack[len(stack)-1].String())
					stack = stack[:len(stack)-1]
				}
			case "t":
				if inText > 0 {
					inText--
				}
			}
		case xml.CharData:
			if inText > 0 && len(stack) > 0 {
				stack[len(stack)-1].Write(el)
			}
		}
	}
	return paras, nil
}
