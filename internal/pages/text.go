package pages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// Source yields the text of every page of a document, index i being page i (0-based).
// Non-paginated documents yield a single element.
type Source interface {
	PageTexts(ctx context.Context, doc entity.Document) ([]string, error)
}

// Config names the external tools and OCR fallback thresholds.
type Config struct {
	Pdftotext    string
	Pdftoppm     string
	Tesseract    string
	TessLang     string
	DPI          int
	MinPageChars int // pages with less extractable text are OCR'd
}

// Extractor implements Source with poppler-utils and tesseract.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TessLang == "" {
		cfg.TessLang = "spa+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

func (e *Extractor) PageTexts(ctx context.Context, doc entity.Document) ([]string, error) {
	start := time.Now()
	switch doc.Format {
	case constants.XML:
		return []string{strings.TrimSpace(string(doc.Data))}, nil
	case constants.PDF, constants.IMAGE:
	default:
		return nil, fmt.Errorf("pages: unsupported format %q for %s", doc.Format, doc.Name)
	}

	tmpDir, err := os.MkdirTemp("", "glosa-pages-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("pages.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "doc"+filepath.Ext(doc.Name))
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("pages: write temp: %w", err)
	}

	if doc.Format == constants.IMAGE {
		txt, err := e.tesseract(ctx, path)
		if err != nil {
			return nil, err
		}
		return []string{Normalize(txt)}, nil
	}

	texts, err := e.pdfToText(ctx, path, doc.PageCount)
	if err != nil {
		return nil, err
	}
	ocrd := 0
	for i, t := range texts {
		if len(strings.TrimSpace(t)) >= e.cfg.MinPageChars {
			texts[i] = Normalize(t)
			continue
		}
		txt, err := e.ocrPage(ctx, path, tmpDir, i)
		if err != nil {
			e.logger.Warn("pages.ocr_failed", "doc", doc.Name, "page", i+1, "error", err)
			texts[i] = Normalize(t)
			continue
		}
		ocrd++
		texts[i] = Normalize(txt)
	}

	e.logger.Info("pages.text.ok",
		"doc", doc.Name,
		"pages", len(texts),
		"ocr_pages", ocrd,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return texts, nil
}

// pdfToText returns one string per page; pdftotext ends every page with a form feed.
func (e *Extractor) pdfToText(ctx context.Context, path string, pageCount int) ([]string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	texts := strings.Split(string(out), "\f")
	if len(texts) > 1 && strings.TrimSpace(texts[len(texts)-1]) == "" {
		texts = texts[:len(texts)-1]
	}
	for pageCount > len(texts) {
		texts = append(texts, "")
	}
	return texts, nil
}

func (e *Extractor) ocrPage(ctx context.Context, path, tmpDir string, page int) (string, error) {
	n := strconv.Itoa(page + 1)
	prefix := filepath.Join(tmpDir, "page-"+n)
	// pdftoppm -f N -l N -r 300 -png <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-f", n, "-l", n, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}
	matches, _ := filepath.Glob(prefix + "*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %s", n)
	}
	return e.tesseract(ctx, matches[0])
}

func (e *Extractor) tesseract(ctx context.Context, img string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.TessLang, "--psm", "6")
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
