package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PageRenderer rasterizes one 1-based PDF page into an image under outDir
// and returns the image path. Rendering a page past the end fails.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int, outDir string) (string, error)
}

// OCREngine recognizes the text in an image
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string, langs []string) (string, error)
}

// PdftoppmRenderer renders pages with poppler's pdftoppm
type PdftoppmRenderer struct {
	Binary string
}

// NewPdftoppmRenderer locates pdftoppm on PATH
func NewPdftoppmRenderer() (*PdftoppmRenderer, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not available: %w", err)
	}
	return &PdftoppmRenderer{Binary: bin}, nil
}

func (r *PdftoppmRenderer) RenderPage(ctx context.Context, pdfPath string, page, dpi int, outDir string) (string, error) {
	prefix := filepath.Join(outDir, fmt.Sprintf("page-%d", page))
	p := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, r.Binary,
		"-r", strconv.Itoa(dpi),
		"-f", p, "-l", p,
		"-png", "-singlefile",
		pdfPath, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm page %d failed: %v, stderr: %s", page, err, strings.TrimSpace(stderr.String()))
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image for page %d: %w", page, err)
	}
	return out, nil
}

// TesseractEngine recognizes text with the tesseract CLI
type TesseractEngine struct {
	Binary string
}

// NewTesseractEngine locates tesseract on PATH
func NewTesseractEngine() (*TesseractEngine, error) {
	bin, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract not available: %w", err)
	}
	return &TesseractEngine{Binary: bin}, nil
}

func (t *TesseractEngine) Recognize(ctx context.Context, imagePath string, langs []string) (string, error) {
	args := []string{imagePath, "stdout"}
	if len(langs) > 0 {
		args = append(args, "-l", strings.Join(langs, "+"))
	}

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
