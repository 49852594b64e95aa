//go:build !tesseract

package ocr

import (
	"context"
	"strings"
)

// cliRecognizer shells out to the tesseract binary.
type cliRecognizer struct {
	path      string
	languages string
	run       runFunc
}

// NewRecognizer returns the tesseract recognizer. Without the tesseract build
// tag the command line tool is used.
func NewRecognizer(cfg Config) (Recognizer, error) {
	return &cliRecognizer{path: cfg.TesseractPath, languages: cfg.Languages, run: runCommand}, nil
}

func (r *cliRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout"}
	if r.languages != "" {
		args = append(args, "-l", r.languages)
	}
	out, err := r.run(ctx, r.path, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\f\n"), nil
}
