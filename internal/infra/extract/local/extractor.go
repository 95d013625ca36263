// Package local extracts a PDF on this host with poppler-utils: the text
// layer page by page, a PNG raster of every page, and optionally tesseract
// OCR for pages without a text layer.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/executor"
)

type Config struct {
	Pdfinfo   string // default "pdfinfo"
	Pdftotext string // default "pdftotext"
	Pdftoppm  string // default "pdftoppm"
	Tesseract string // default "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // raster resolution, default 150
	MaxPages      int    // 0 = all pages
	Rasterize     bool
	OCRFallback   bool // OCR rasters of pages whose text layer is empty
}

type Extractor struct {
	cfg    Config
	runner executor.Runner
	logger *slog.Logger
}

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

func NewExtractor(cfg Config, runner executor.Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = executor.NewRunner(logger)
	}
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract fails only when the document as a whole cannot be read. Per-page
// raster or OCR failures are logged and the page is skipped.
func (e *Extractor) Extract(ctx context.Context, f review.FileHandle) (review.ExtractedDocument, error) {
	tmpDir, err := os.MkdirTemp("", "apr-local-*")
	if err != nil {
		return review.ExtractedDocument{}, &review.ExtractionError{File: f.Name, Cause: err}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("local.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(path, f.Data, 0o600); err != nil {
		return review.ExtractedDocument{}, &review.ExtractionError{File: f.Name, Cause: err}
	}

	pages, err := e.pageCount(ctx, path)
	if err != nil {
		return review.ExtractedDocument{}, &review.ExtractionError{File: f.Name, Cause: err}
	}
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
	}

	doc := review.ExtractedDocument{PageCount: pages}
	var text, ocr strings.Builder
	for n := 1; n <= pages; n++ {
		pageText, err := e.pageText(ctx, path, n)
		if err != nil {
			return review.ExtractedDocument{}, &review.ExtractionError{File: f.Name, Cause: fmt.Errorf("page %d: %w", n, err)}
		}
		if strings.TrimSpace(pageText) != "" {
			writePage(&text, n, pageText)
		}

		needOCR := e.cfg.OCRFallback && strings.TrimSpace(pageText) == ""
		if !e.cfg.Rasterize && !needOCR {
			continue
		}
		img, imgPath, err := e.rasterize(ctx, path, tmpDir, n)
		if err != nil {
			e.logger.Warn("local.rasterize.page_failed", "file", f.Name, "page", n, "error", err)
			continue
		}
		if e.cfg.Rasterize {
			doc.Images = append(doc.Images, img)
		}
		if needOCR {
			recognized, err := e.recognize(ctx, imgPath)
			if err != nil {
				e.logger.Warn("local.ocr.page_failed", "file", f.Name, "page", n, "error", err)
				continue
			}
			if strings.TrimSpace(recognized) != "" {
				writePage(&ocr, n, recognized)
			}
		}
	}

	doc.TextContent = strings.TrimSpace(text.String())
	doc.OCRContent = strings.TrimSpace(ocr.String())
	e.logger.Info("local.extract.ok",
		"file", f.Name,
		"pages", pages,
		"text_len", len(doc.TextContent),
		"ocr_len", len(doc.OCRContent),
		"images", len(doc.Images),
	)
	return doc, nil
}

func writePage(b *strings.Builder, n int, text string) {
	fmt.Fprintf(b, "\n--- Page %d ---\n%s\n", n, strings.TrimSpace(text))
}

func (e *Extractor) pageCount(ctx context.Context, path string) (int, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdfinfo, path)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return 0, errors.New("read pdf: page count not reported")
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	if n == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}

func (e *Extractor) pageText(ctx context.Context, path string, n int) (string, error) {
	page := strconv.Itoa(n)
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext,
		"-f", page, "-l", page, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(errb)))
	}
	return strings.ReplaceAll(string(out), "\f", ""), nil
}

func (e *Extractor) rasterize(ctx context.Context, path, dir string, n int) ([]byte, string, error) {
	page := strconv.Itoa(n)
	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", n))
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-png", "-r", strconv.Itoa(e.cfg.DPI), "-f", page, "-l", page, "-singlefile", path, prefix)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(errb)))
	}
	imgPath := prefix + ".png"
	img, err := os.ReadFile(imgPath)
	if err != nil {
		return nil, "", err
	}
	return img, imgPath, nil
}

func (e *Extractor) recognize(ctx context.Context, imgPath string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, imgPath, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}
