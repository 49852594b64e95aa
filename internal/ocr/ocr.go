// Package ocr extracts best-effort text from PDFs and images. Digital PDFs go
// through pdftotext; scanned PDFs are rasterized with pdftoppm and each page is
// handed to a Recognizer.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrUnsupportedImage is returned for image extensions the recognizer cannot read.
var ErrUnsupportedImage = errors.New("unsupported image type")

// Recognizer turns one image file into text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Config points at the poppler binaries and tunes the fallback.
type Config struct {
	PdfToTextPath string
	PdfToPPMPath  string
	TesseractPath string
	Languages     string
	DPI           int
	// MinTextChars is the trimmed length pdftotext output must exceed to be
	// accepted without rasterizing.
	MinTextChars int
}

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Extractor struct {
	cfg        Config
	recognizer Recognizer
	run        runFunc
	logger     *zap.Logger
}

func NewExtractor(cfg Config, recognizer Recognizer, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:        cfg,
		recognizer: recognizer,
		run:        runCommand,
		logger:     logger,
	}
}

// ExtractPDF returns the text of a PDF. A pdftotext failure is not fatal; the
// document is then treated as scanned.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "ledger-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}

	out, err := e.run(ctx, e.cfg.PdfToTextPath, "-layout", pdfPath, "-")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		e.logger.Warn("pdftotext failed, falling back to OCR", zap.Error(err))
	} else if text := string(out); utf8.RuneCountInString(strings.TrimSpace(text)) > e.cfg.MinTextChars {
		e.logger.Info("Extracted text with pdftotext", zap.Int("chars", len(text)))
		return text, nil
	}

	pages, err := e.rasterize(ctx, pdfPath, dir)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, page := range pages {
		text, err := e.recognizer.Recognize(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			e.logger.Warn("Page recognition failed", zap.String("page", filepath.Base(page)), zap.Error(err))
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	e.logger.Info("Extracted text with OCR", zap.Int("pages", len(pages)), zap.Int("chars", b.Len()))
	return b.String(), nil
}

// ExtractImage recognizes a single image; ext includes the dot.
func (e *Extractor) ExtractImage(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}

	dir, err := os.MkdirTemp("", "ledger-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "image"+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	text, err := e.recognizer.Recognize(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to recognize image: %w", err)
	}
	return text, nil
}

func (e *Extractor) rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	if _, err := e.run(ctx, e.cfg.PdfToPPMPath, "-png", "-r", strconv.Itoa(e.cfg.DPI), pdfPath, prefix); err != nil {
		return nil, fmt.Errorf("failed to rasterize pdf: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(pages)
	return pages, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
