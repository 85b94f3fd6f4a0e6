// Package document turns files and web pages into ordered text chunks for extraction.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/docminer/constants"
	"github.com/joseph-ayodele/docminer/internal/async"
	"github.com/joseph-ayodele/docminer/internal/extract"
)

// ErrUnsupportedType is returned for sources whose type cannot be read.
var ErrUnsupportedType = errors.New("unsupported document type")

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

// Loader reads documents and chunks them.
type Loader struct {
	cfg       ProcessingConfig
	logger    *slog.Logger
	runner    Runner
	http      *http.Client
	pdftotext string
	tesseract string
}

type Option func(*Loader)

// WithRunner replaces the external command runner used for OCR and layout PDF text.
func WithRunner(r Runner) Option {
	return func(l *Loader) {
		if r != nil {
			l.runner = r
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.http = c
		}
	}
}

// WithBinaries overrides the pdftotext and tesseract executables.
func WithBinaries(pdftotext, tesseract string) Option {
	return func(l *Loader) {
		if pdftotext != "" {
			l.pdftotext = pdftotext
		}
		if tesseract != "" {
			l.tesseract = tesseract
		}
	}
}

func NewLoader(cfg ProcessingConfig, logger *slog.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		http:      &http.Client{Timeout: 30 * time.Second},
		pdftotext: "pdftotext",
		tesseract: "tesseract",
	}
	l.runner = execRunner{logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Config is the effective processing configuration.
func (l *Loader) Config() ProcessingConfig { return l.cfg }

// Load reads every source concurrently and returns its chunks keyed by source. A source
// that fails to load is logged and maps to an empty list.
func (l *Loader) Load(ctx context.Context, sources ...string) (map[string][]extract.Chunk, error) {
	pool, err := async.New(
		async.WithWorkers(min(l.cfg.MaxWorkers, max(len(sources), 1))),
		async.WithName("document"),
		async.WithLogger(l.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer pool.Shutdown(context.WithoutCancel(ctx))

	out := make(map[string][]extract.Chunk, len(sources))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		err := pool.Submit(ctx, func() {
			defer wg.Done()
			chunks := l.loadOne(ctx, src)
			mu.Lock()
			out[src] = chunks
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			out[src] = []extract.Chunk{}
			mu.Unlock()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Chunks loads sources and flattens their chunks in source order.
func (l *Loader) Chunks(ctx context.Context, sources ...string) ([]extract.Chunk, error) {
	m, err := l.Load(ctx, sources...)
	if err != nil {
		return nil, err
	}
	return Flatten(m, sources), nil
}

// Flatten concatenates per-source chunks following order and assigns global indices.
func Flatten(m map[string][]extract.Chunk, order []string) []extract.Chunk {
	var out []extract.Chunk
	for _, src := range order {
		for _, c := range m[src] {
			c.Index = len(out)
			out = append(out, c)
		}
	}
	return out
}

func (l *Loader) loadOne(ctx context.Context, src string) []extract.Chunk {
	start := time.Now()
	chunks, err := l.LoadSource(ctx, src)
	if err != nil {
		l.logger.Error("document.load.error", "source", src, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return []extract.Chunk{}
	}
	l.logger.Info("document.load.ok", "source", src, "chunks", len(chunks),
		"elapsed_ms", time.Since(start).Milliseconds())
	return chunks
}

// LoadSource reads and chunks a single source.
func (l *Loader) LoadSource(ctx context.Context, src string) ([]extract.Chunk, error) {
	dt, err := constants.DocumentTypeFromSource(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	elems, err := l.elements(ctx, src, dt)
	if err != nil {
		return nil, err
	}
	if l.cfg.RemoveHeaders && dt == constants.PDF {
		elems = dropPageFurniture(elems)
	}
	if l.cfg.RemoveReferences {
		elems = dropReferences(elems)
	}
	if l.cfg.FilterEmptyElements {
		elems = dropEmpty(elems)
	}

	name := src
	if !constants.IsURL(src) {
		name = filepath.Base(src)
	}
	var pieces []piece
	if l.cfg.Splitter != nil {
		for _, t := range l.cfg.Splitter(combine(elems)) {
			if strings.TrimSpace(t) != "" {
				pieces = append(pieces, piece{Text: t, Page: 1})
			}
		}
	} else {
		pieces = chunkWords(elems, l.cfg.ChunkSize)
	}

	chunks := make([]extract.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = extract.Chunk{
			Index: i,
			Text:  p.Text,
			Source: extract.SourceRef{
				Filename:    name,
				FileType:    dt.MIMEType(),
				PageNumber:  p.Page,
				ChunkNumber: i + 1,
				Source:      src,
			},
		}
	}
	return chunks, nil
}

func (l *Loader) elements(ctx context.Context, src string, dt constants.DocumentType) ([]element, error) {
	if constants.IsURL(src) {
		body, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return extractHTML(bytes.NewReader(body), l.cfg)
	}

	switch {
	case dt == constants.PDF:
		if l.cfg.HiResPDF {
			elems, err := extractPDFLayout(ctx, l.runner, l.pdftotext, src)
			if err == nil {
				return elems, nil
			}
			l.logger.Warn("document.pdf.layout_fallback", "source", src, "error", err)
		}
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return extractPDF(f)
	case dt == constants.HTML:
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return extractHTML(f, l.cfg)
	case dt.IsImage():
		if !l.cfg.OCRForImages {
			return nil, fmt.Errorf("%w: %s needs OCR, enable OCRForImages", ErrUnsupportedType, dt)
		}
		img := src
		if dt == constants.HEIC {
			png, cleanup, err := convertHEIC(ctx, l.runner, l.cfg.HEICConverter, src)
			if err != nil {
				return nil, err
			}
			defer cleanup()
			img = png
		}
		text, err := tesseract(ctx, l.runner, l.tesseract, l.cfg.OCRLanguage, img)
		if err != nil {
			return nil, err
		}
		return []element{{Text: normalizeLines(text), Page: 1}}, nil
	default:
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		return []element{{Text: string(b), Page: 1}}, nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(url), "www.") {
		url = "https://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}
