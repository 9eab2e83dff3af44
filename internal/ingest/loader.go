// Package ingest turns files on disk into documents for review.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

var ErrUnsupportedExt = errors.New("unsupported or missing extension")

// PageCounter counts PDF pages; split.Engine satisfies it.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// FileResult is the per-file load outcome.
type FileResult struct {
	Path         string `json:"path"`
	HashHex      string `json:"hash,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Loader reads expediente files from the local filesystem.
type Loader struct {
	pages  PageCounter
	logger *slog.Logger
}

func NewLoader(pages PageCounter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{pages: pages, logger: logger}
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// LoadFile reads one file, hashing it and counting PDF pages.
func (l *Loader) LoadFile(_ context.Context, path string) (entity.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.Document{}, err
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return entity.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedExt, ext)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return entity.Document{}, err
	}
	sum := sha256.Sum256(data)

	doc := entity.Document{
		Name:       filepath.Base(abs),
		Format:     constants.MapExtToFormat(ext),
		MediaType:  constants.MediaType(ext),
		SourcePath: abs,
		HashHex:    hex.EncodeToString(sum[:]),
		Data:       data,
	}
	if doc.Paginated() && l.pages != nil {
		n, err := l.pages.PageCount(data)
		if err != nil {
			return entity.Document{}, fmt.Errorf("%s: %w", doc.Name, err)
		}
		doc.PageCount = n
	}
	return doc, nil
}

// LoadDirectory loads every allowed file directly under root or below it, in path order.
// Byte-identical copies are loaded once so a duplicated file cannot fake a second pedimento.
func (l *Loader) LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.Document, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		paths   []string
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, results, stats, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)

	var docs []entity.Document
	seen := map[string]string{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, results, stats, err
		}
		stats.Matched++
		doc, err := l.LoadFile(ctx, p)
		if err != nil {
			results = append(results, FileResult{Path: p, Err: err.Error()})
			stats.Failed++
			l.logger.Warn("ingest.file.failed", "path", p, "error", err)
			continue
		}
		stats.Succeeded++
		if first, dup := seen[doc.HashHex]; dup {
			stats.Deduplicated++
			results = append(results, FileResult{Path: p, HashHex: doc.HashHex, Deduplicated: true})
			l.logger.Info("ingest.file.deduplicated", "path", p, "same_as", first)
			continue
		}
		seen[doc.HashHex] = p
		results = append(results, FileResult{Path: p, HashHex: doc.HashHex})
		docs = append(docs, doc)
	}

	l.logger.Info("ingest.directory.ok",
		"root", root,
		"documents", len(docs),
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated,
	)
	return docs, results, stats, nil
}
