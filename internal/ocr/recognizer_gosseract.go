//go:build tesseract

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// gosseractRecognizer links libtesseract through cgo. A client is not safe for
// concurrent use, so one is created per page.
type gosseractRecognizer struct {
	languages []string
}

// NewRecognizer returns the tesseract recognizer backed by libtesseract.
func NewRecognizer(cfg Config) (Recognizer, error) {
	var langs []string
	for _, l := range strings.Split(cfg.Languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &gosseractRecognizer{languages: langs}, nil
}

func (r *gosseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(r.languages) > 0 {
		if err := client.SetLanguage(r.languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", err
	}
	return client.Text()
}
