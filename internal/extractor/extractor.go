package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// ErrUnsupported is returned for files no registered extractor handles
var ErrUnsupported = errors.New("unsupported file type")

// Defaults for the PDF chain
const (
	DefaultMinTextLength = 50
	DefaultOCRDPI        = 300
	DefaultInlineLimit   = 20 << 20 // 20 MiB
	DefaultMaxProbePages = 2000
)

// Result is the text recovered from one file
type Result struct {
	Text       string
	Status     types.ExtractionStatus
	Diagnostic string // Stage errors, partial pages or encryption labels
	Method     string // Stage or format that produced Text
	Pages      int
}

// Extractor recovers plain text from one file format
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
	Kind() string
}

// Registry dispatches extraction by lower-cased file extension
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Register binds e to each extension (with or without the leading dot)
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = e
	}
}

// Lookup returns the extractor for path's extension
func (r *Registry) Lookup(path string) (Extractor, bool) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// Supports reports whether path has a registered extension
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Extensions returns the registered extensions, sorted
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract runs the extractor registered for path. The returned result always
// carries a status: ok when text was found, empty otherwise, unless the
// extractor set one.
func (r *Registry) Extract(ctx context.Context, path string) (*Result, error) {
	e, ok := r.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	res, err := e.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s extraction of %s: %w", e.Kind(), filepath.Base(path), err)
	}
	if res.Method == "" {
		res.Method = e.Kind()
	}
	if res.Status == "" {
		if isBlank(res.Text) {
			res.Status = types.StatusEmpty
		} else {
			res.Status = types.StatusOK
		}
	}
	return res, nil
}

// Options configures NewDefaultRegistry
type Options struct {
	MinTextLength int
	OCRLanguages  []string
	OCRDPI        int
	InlineLimit   int64
	MaxProbePages int

	Renderer   PageRenderer  // nil disables local OCR
	OCR        OCREngine     // nil disables local OCR
	Generator  llm.Generator // nil disables the cloud fallback
	Decrypter  Decrypter     // optional
	Signatures []VendorSignature
	Logger     *zap.Logger

	// OCRPageTimeout bounds rendering plus recognition of a single page
	OCRPageTimeout time.Duration
}

// NewDefaultRegistry registers every supported format
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(PlainText{}, ".txt", ".text", ".log", ".ini", ".cfg", ".json", ".xml", ".yaml", ".yml")
	r.Register(Delimited{}, ".csv", ".tsv")
	r.Register(Office{}, ".docx", ".pptx", ".xlsx")
	r.Register(Markdown{}, ".md", ".markdown")
	r.Register(HTML{}, ".html", ".htm")
	r.Register(NewPDF(opts), ".pdf")
	return r
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// textLength is the length used for the minimum-text threshold, in runes
func textLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
