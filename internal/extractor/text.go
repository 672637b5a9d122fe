package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText reads text-like files as-is
type PlainText struct{}

func (PlainText) Kind() string { return "text" }

func (PlainText) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: decodeText(data)}, nil
}

// Delimited parses CSV and TSV files. Fields are joined with a space, rows
// with a newline. Unparseable input falls back to the raw text.
type Delimited struct{}

func (Delimited) Kind() string { return "delimited" }

func (Delimited) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	text := decodeText(data)

	r := csv.NewReader(strings.NewReader(text))
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return &Result{
			Text:       text,
			Method:     "raw",
			Diagnostic: fmt.Sprintf("delimited parse failed, using raw text: %v", err),
		}, nil
	}

	rows := make([]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, strings.Join(rec, " "))
	}
	return &Result{Text: strings.Join(rows, "\n")}, nil
}

// decodeText strips a UTF-8 BOM and replaces invalid sequences
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
