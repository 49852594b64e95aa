// Command ingest runs the ingestion pipeline on local files and prints the
// computed records as JSON. PDFs and images go through OCR first.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/documents"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/ocr"
	"luma-ledger/ledger-backend/internal/pipeline"
	"luma-ledger/ledger-backend/pkg/logger"
)

type options struct {
	factorsPath string
	trail       bool
	ocr         ocr.Config
}

type dropOutput struct {
	Supplier string `json:"supplier,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

type fileOutput struct {
	File     string                    `json:"file"`
	Records  []activity.ComputedRecord `json:"records"`
	Dropped  []dropOutput              `json:"dropped,omitempty"`
	FromText bool                      `json:"from_text"`
	Totals   pipeline.Totals           `json:"totals"`
	Error    string                    `json:"error,omitempty"`
}

func main() {
	var (
		opts     options
		logLevel string
	)
	flag.StringVar(&opts.factorsPath, "factors", "configs/emission_factors.yaml", "emission factor seed file")
	flag.BoolVar(&opts.trail, "trail", false, "include the calculation steps of each record")
	flag.StringVar(&opts.ocr.Languages, "lang", "spa+eng", "tesseract languages")
	flag.StringVar(&opts.ocr.TesseractPath, "tesseract", "tesseract", "tesseract binary")
	flag.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.Must(logger.New(logLevel))
	defer log.Sync()

	opts.ocr.PdfToTextPath = "pdftotext"
	opts.ocr.PdfToPPMPath = "pdftoppm"
	opts.ocr.DPI = 300
	opts.ocr.MinTextChars = 50

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed, err := run(ctx, opts, flag.Args(), os.Stdout, log)
	if err != nil {
		log.Fatal("Ingest failed", zap.Error(err))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// run processes every file in order. A file that cannot be processed is
// reported in the output and counted; it does not stop the others.
func run(ctx context.Context, opts options, files []string, out io.Writer, log *zap.Logger) (int, error) {
	seed, err := factors.LoadYAMLFile(opts.factorsPath)
	if err != nil {
		return 0, err
	}
	table, err := factors.NewTable(seed)
	if err != nil {
		return 0, fmt.Errorf("invalid factor seed: %w", err)
	}

	p := pipeline.NewDefault(factors.NewStore(table), log.Named("pipeline"))

	var extractor *ocr.Extractor
	textExtractor := func() (*ocr.Extractor, error) {
		if extractor == nil {
			recognizer, err := ocr.NewRecognizer(opts.ocr)
			if err != nil {
				return nil, err
			}
			extractor = ocr.NewExtractor(opts.ocr, recognizer, log.Named("ocr"))
		}
		return extractor, nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	failed := 0
	for _, file := range files {
		result, err := ingestFile(ctx, p, textExtractor, file)
		output := fileOutput{File: file, Records: []activity.ComputedRecord{}}
		if err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			failed++
			output.Error = err.Error()
		} else {
			output.FromText = result.FromText
			output.Totals = result.Totals
			for _, r := range result.Records {
				if !opts.trail {
					r.Steps = nil
				}
				output.Records = append(output.Records, r)
			}
			for _, d := range result.Drops {
				output.Dropped = append(output.Dropped, dropOutput{
					Supplier: d.Entry.SupplierName(),
					Unit:     d.Entry.UnitName(),
					Reason:   string(d.Reason),
					Error:    d.Err.Error(),
				})
			}
		}
		if err := enc.Encode(output); err != nil {
			return failed, fmt.Errorf("failed to write output: %w", err)
		}
	}
	return failed, nil
}

func ingestFile(ctx context.Context, p *pipeline.Pipeline, textExtractor func() (*ocr.Extractor, error), file string) (*pipeline.Result, error) {
	fileType, err := documents.DetectFileType(file)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	switch fileType {
	case documents.FileTypeCSV:
		return p.Run(ctx, pipeline.KindCSV, bytes.NewReader(data))
	case documents.FileTypeXLSX:
		return p.Run(ctx, pipeline.KindSpreadsheet, bytes.NewReader(data))
	}

	extractor, err := textExtractor()
	if err != nil {
		return nil, err
	}
	var text string
	if fileType == documents.FileTypePDF {
		text, err = extractor.ExtractPDF(ctx, data)
	} else {
		text, err = extractor.ExtractImage(ctx, data, strings.ToLower(filepath.Ext(file)))
	}
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, pipeline.ErrNoDataExtracted
	}
	return p.RunText(ctx, text)
}
