package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

const (
	pdfMIMEType       = "application/pdf"
	signatureScanSize = 1024
)

var pdfSignature = []byte("%PDF-")

// PDF runs the ordered extraction chain: native text layer, local OCR, cloud
// fallback, optional decrypt helper, then encryption classification.
type PDF struct {
	minLength     int
	languages     []string
	dpi           int
	inlineLimit   int64
	maxProbePages int
	pageTimeout   time.Duration

	renderer   PageRenderer
	ocr        OCREngine
	generator  llm.Generator
	decrypter  Decrypter
	signatures []VendorSignature
	logger     *zap.Logger
}

// NewPDF builds the PDF extractor from opts, filling defaults
func NewPDF(opts Options) *PDF {
	p := &PDF{
		minLength:     opts.MinTextLength,
		languages:     opts.OCRLanguages,
		dpi:           opts.OCRDPI,
		inlineLimit:   opts.InlineLimit,
		maxProbePages: opts.MaxProbePages,
		pageTimeout:   opts.OCRPageTimeout,
		renderer:      opts.Renderer,
		ocr:           opts.OCR,
		generator:     opts.Generator,
		decrypter:     opts.Decrypter,
		signatures:    opts.Signatures,
		logger:        opts.Logger,
	}
	if p.minLength <= 0 {
		p.minLength = DefaultMinTextLength
	}
	if len(p.languages) == 0 {
		p.languages = []string{"eng"}
	}
	if p.dpi <= 0 {
		p.dpi = DefaultOCRDPI
	}
	if p.inlineLimit <= 0 {
		p.inlineLimit = DefaultInlineLimit
	}
	if p.maxProbePages <= 0 {
		p.maxProbePages = DefaultMaxProbePages
	}
	if p.signatures == nil {
		p.signatures = DefaultVendorSignatures
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

func (p *PDF) Kind() string { return "pdf" }

// Extract never fails on insufficient text: it returns an empty or encrypted
// result instead. A file without a PDF signature that matches no encryption
// signal is ErrMalformedInput.
func (p *PDF) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(zap.String("path", path))
	var diagnostics []string
	best := &Result{}

	// Stage 0: embedded text layer
	native, pages, err := nativeText(data)
	if err != nil {
		logger.Debug("native pdf text unavailable", zap.Error(err))
	}
	best.Pages = pages
	if p.accept(native) {
		return &Result{Text: native, Status: types.StatusOK, Method: "native", Pages: pages}, nil
	}
	best.Text, best.Method = native, "native"

	// Stage 1: local OCR
	signed := hasPDFSignature(data)
	if !signed {
		diagnostics = append(diagnostics, "missing %PDF- signature")
	} else if p.renderer != nil && p.ocr != nil {
		ocrRes, err := p.runOCR(ctx, path, pages, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			diagnostics = append(diagnostics, "ocr: "+err.Error())
		} else {
			if p.accept(ocrRes.Text) {
				return ocrRes, nil
			}
			if textLength(ocrRes.Text) > textLength(best.Text) {
				best = ocrRes
			}
		}
	}

	// Stage 2: cloud fallback
	if signed && p.generator != nil {
		cloud, err := p.runCloud(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("cloud pdf extraction failed", zap.Error(err))
			diagnostics = append(diagnostics, "cloud: "+err.Error())
		} else if textLength(cloud) > textLength(best.Text) {
			best = &Result{Text: cloud, Method: "cloud", Pages: best.Pages}
		}
		if p.accept(best.Text) {
			if best.Status == "" {
				best.Status = types.StatusOK
			}
			return best, nil
		}
	}

	// Stage 3: optional decrypt helper
	if p.decrypter != nil {
		text, ok, err := p.decrypter.TryDecrypt(ctx, path)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			diagnostics = append(diagnostics, "decrypt: "+err.Error())
		case ok && !isBlank(text):
			return &Result{Text: text, Status: types.StatusOK, Method: "decrypt", Pages: best.Pages}, nil
		}
	}

	// Stage 4: classify why there is no text
	if encrypted, label := ClassifyEncryption(path, data, p.signatures); encrypted {
		logger.Info("pdf appears encrypted", zap.String("signals", label))
		return &Result{Status: types.StatusEncrypted, Diagnostic: label, Method: "classify", Pages: best.Pages}, nil
	}
	if !signed {
		return nil, fmt.Errorf("%w: no %%PDF- signature in the first %d bytes", types.ErrMalformedInput, signatureScanSize)
	}

	diagnostics = append(diagnostics, fmt.Sprintf("text below minimum length (%d of %d characters)", textLength(best.Text), p.minLength))
	return &Result{
		Status:     types.StatusEmpty,
		Diagnostic: strings.Join(diagnostics, "; "),
		Method:     best.Method,
		Pages:      best.Pages,
	}, nil
}

func (p *PDF) accept(text string) bool {
	return textLength(text) >= p.minLength
}

// runOCR renders and recognizes every page. When pageCount is 0 it probes
// page 1, 2, … until the renderer fails. Per-page failures are skipped and
// mark the result partial.
func (p *PDF) runOCR(ctx context.Context, path string, pageCount int, logger *zap.Logger) (*Result, error) {
	outDir, err := os.MkdirTemp("", "filewise-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	probing := pageCount <= 0
	last := pageCount
	if probing {
		last = p.maxProbePages
	}

	var (
		texts     []string
		failed    []int
		processed int
	)
	for page := 1; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, rendered, err := p.ocrPage(ctx, path, page, outDir)
		if !rendered && probing {
			break // past the last page
		}
		processed++
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("ocr page failed", zap.Int("page", page), zap.Error(err))
			failed = append(failed, page)
			continue
		}
		if !isBlank(text) {
			texts = append(texts, strings.TrimSpace(text))
		}
	}

	if processed == 0 {
		return nil, errors.New("no pages rendered")
	}

	res := &Result{
		Text:   strings.Join(texts, "\n"),
		Status: types.StatusOK,
		Method: "ocr",
		Pages:  processed,
	}
	if len(failed) > 0 {
		res.Status = types.StatusPartial
		res.Diagnostic = fmt.Errorf("%w: ocr failed on pages %s", types.ErrPartialExtraction, joinInts(failed)).Error()
	}
	return res, nil
}

// ocrPage returns the page text and whether the page rendered at all
func (p *PDF) ocrPage(ctx context.Context, path string, page int, outDir string) (string, bool, error) {
	if p.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pageTimeout)
		defer cancel()
	}

	img, err := p.renderer.RenderPage(ctx, path, page, p.dpi, outDir)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = os.Remove(img) }()

	text, err := p.ocr.Recognize(ctx, img, p.languages)
	return text, true, err
}

// runCloud sends small files inline and uploads larger ones
func (p *PDF) runCloud(ctx context.Context, data []byte) (string, error) {
	if int64(len(data)) < p.inlineLimit {
		return p.generator.GenerateWithInline(ctx, data, pdfMIMEType, llm.ExtractPDFPrompt)
	}
	return p.generator.GenerateWithUpload(ctx, bytes.NewReader(data), pdfMIMEType, llm.ExtractPDFPrompt)
}

// nativeText reads the embedded text layer. The pdf package panics on some
// malformed inputs, so panics become errors.
func nativeText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf parser panic: %v", types.ErrMalformedInput, r)
		}
	}()

	off := signatureOffset(data)
	if off < 0 {
		return "", 0, fmt.Errorf("%w: missing %%PDF- signature", types.ErrMalformedInput)
	}
	body := data[off:]

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}

	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		t, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t)
	}
	return b.String(), pages, nil
}

// hasPDFSignature scans the first KiB for %PDF-, tolerating leading garbage
func hasPDFSignature(data []byte) bool {
	return signatureOffset(data) >= 0
}

// signatureOffset returns where %PDF- starts within the first KiB, or -1.
// Cross-reference offsets are relative to that position.
func signatureOffset(data []byte) int {
	head := data
	if len(head) > signatureScanSize {
		head = head[:signatureScanSize]
	}
	return bytes.Index(head, pdfSignature)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
