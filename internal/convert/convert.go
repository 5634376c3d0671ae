// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a document into markdown one page image at a time
// using a vision model.
//
// A run fetches the document into a private working directory, optionally
// cuts it down to the selected pages, rasterizes each page, converts the
// page images concurrently (or sequentially when formatting must carry
// across pages) and aggregates the results in page order.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pagescribe/internal/bbox"
	"github.com/pdiddy/pagescribe/internal/fetch"
	"github.com/pdiddy/pagescribe/internal/model"
	"github.com/pdiddy/pagescribe/internal/ocr"
	"github.com/pdiddy/pagescribe/internal/pdf"
	"github.com/pdiddy/pagescribe/internal/store"
	"github.com/pdiddy/pagescribe/pkg/types"
)

const workDirPrefix = "pagescribe-"

// Fetcher places the input document in a directory.
type Fetcher interface {
	Fetch(ctx context.Context, ref, destDir string) (string, error)
}

// PageSelector writes a PDF holding only the requested pages.
type PageSelector interface {
	Select(src string, pages []int, destDir string) (string, []int, error)
}

// DocumentStore persists a finished run.
type DocumentStore interface {
	Save(ctx context.Context, doc *types.DocumentOutput, source string) error
}

// Pipeline runs conversions. Collaborators left nil get production defaults
// at Run time; a Pipeline may be reused for any number of runs.
type Pipeline struct {
	// Models supplies model clients. Nil creates a registry per run that
	// reads keys from RunConfig.SecretsDir.
	Models *model.Registry

	Fetcher  Fetcher
	Renderer pdf.Rasterizer
	Pages    PageSelector
	OCR      bbox.Extractor

	// Store receives the document when set. Otherwise RunConfig.DatabasePath,
	// when set, is opened for the run.
	Store DocumentStore

	Log logrus.FieldLogger

	// Progress receives human-readable per-page status lines.
	Progress io.Writer

	// newGate builds the concurrency gate for independent mode.
	newGate func(n int) Gate
}

// NewPipeline returns a Pipeline with the production collaborators.
func NewPipeline(log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		Fetcher:  &fetch.Fetcher{Log: log},
		Renderer: pdf.NewRenderer(log),
		Pages:    pdf.NewSelector(),
		OCR:      ocr.NewTesseract(),
		Log:      log,
		Progress: io.Discard,
	}
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return p.Log
}

func (p *Pipeline) progress() io.Writer {
	if p.Progress == nil {
		return io.Discard
	}
	return p.Progress
}

// Run converts cfg.FilePath and returns the ordered pages with token and
// timing totals. Precondition failures (missing file reference, missing
// credentials, unreachable file, out-of-range pages) return before any page
// is sent to the model. Page failures are dropped from the output and
// counted in the summary unless cfg.ErrorMode is throw.
func (p *Pipeline) Run(ctx context.Context, cfg types.RunConfig) (*types.DocumentOutput, error) {
	start := time.Now()
	cfg = cfg.WithDefaults()
	log := p.logger()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("%w: no file path given", types.ErrFileUnavailable)
	}

	registry := p.Models
	if registry == nil {
		registry = model.NewRegistry(cfg.SecretsDir)
		registry.Log = log
	}
	client, err := registry.Client(cfg.Model)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	workDir := filepath.Join(cfg.TempDir, workDirPrefix+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	if cfg.Cleanup {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				log.WithError(err).WithField("dir", workDir).Warn("could not remove working directory")
			}
		}()
	}

	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = &fetch.Fetcher{Log: log}
	}
	local, err := fetcher.Fetch(ctx, cfg.FilePath, workDir)
	if err != nil {
		return nil, err
	}
	log = log.WithField("file", filepath.Base(local))

	tasks, err := p.prepare(ctx, cfg, local, workDir, log)
	if err != nil {
		return nil, err
	}

	w := newWorker(client, p.extractor(cfg), cfg, log)
	abort := cfg.ErrorMode == types.ErrorModeThrow

	var outcomes []pageOutcome
	if cfg.MaintainFormat {
		outcomes, err = runSequential(ctx, w, tasks, abort)
	} else {
		outcomes, err = runIndependent(ctx, w, tasks, p.gate(cfg.Concurrency), abort)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := p.aggregate(outcomes)
	doc.FileName = FileName(local)

	if err := unusableModel(doc, outcomes); err != nil {
		return nil, err
	}

	if cfg.OutputDir != "" {
		if err := writeOutputs(cfg.OutputDir, doc, cfg.FilePath, cfg.Separator); err != nil {
			return nil, err
		}
	}
	if err := p.save(ctx, cfg, doc); err != nil {
		return nil, err
	}

	doc.CompletionTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return doc, nil
}

// prepare turns the local file into ordered page tasks. Images are used as a
// single page; PDFs are cut to the selected pages and rasterized.
func (p *Pipeline) prepare(ctx context.Context, cfg types.RunConfig, local, workDir string, log logrus.FieldLogger) ([]pageTask, error) {
	if isImage(local) {
		if len(cfg.SelectPages) > 0 {
			log.Warn("page selection ignored for image input")
		}
		return []pageTask{{index: 0, page: 1, imagePath: local}}, nil
	}

	src := local
	var pageNumbers []int
	if len(cfg.SelectPages) > 0 {
		pages := p.Pages
		if pages == nil {
			pages = pdf.NewSelector()
		}
		var err error
		src, pageNumbers, err = pages.Select(local, cfg.SelectPages, workDir)
		if err != nil {
			return nil, err
		}
	}

	renderer := p.Renderer
	if renderer == nil {
		renderer = pdf.NewRenderer(log)
	}
	images, err := renderer.Render(ctx, src, workDir, cfg.Render)
	if err != nil {
		return nil, err
	}
	if pageNumbers != nil && len(pageNumbers) != len(images) {
		return nil, fmt.Errorf("rendered %d images for %d selected pages", len(images), len(pageNumbers))
	}

	tasks := make([]pageTask, len(images))
	for i, img := range images {
		n := i + 1
		if pageNumbers != nil {
			n = pageNumbers[i]
		}
		tasks[i] = pageTask{index: i, page: n, imagePath: img}
	}
	return tasks, nil
}

func (p *Pipeline) extractor(cfg types.RunConfig) bbox.Extractor {
	if !cfg.BoundingBox || p.OCR != nil {
		return p.OCR
	}
	return ocr.NewTesseract()
}

func (p *Pipeline) gate(n int) Gate {
	if p.newGate != nil {
		return p.newGate(n)
	}
	return NewGate(n)
}

// aggregate sums tokens over successful pages, drops empty pages and prints
// per-page status in page order.
func (p *Pipeline) aggregate(outcomes []pageOutcome) *types.DocumentOutput {
	w := p.progress()
	doc := &types.DocumentOutput{Pages: []types.Page{}}
	doc.Summary.TotalPages = len(outcomes)

	for _, out := range outcomes {
		if out.Err != nil {
			fmt.Fprintf(w, "failed:  page %d (%v)\n", out.Page.Page, out.Err)
			doc.Summary.Failed++
			doc.Summary.FailedPages = append(doc.Summary.FailedPages, out.Page.Page)
			continue
		}
		fmt.Fprintf(w, "converted: page %d\n", out.Page.Page)
		doc.Summary.Successful++
		doc.InputTokens += out.InputTokens
		doc.OutputTokens += out.OutputTokens
		if out.Page.Content != "" {
			doc.Pages = append(doc.Pages, out.Page)
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d failed (total: %d)\n",
		doc.Summary.Successful, doc.Summary.Failed, doc.Summary.TotalPages)
	return doc
}

// unusableModel reports a model that rejected every page for a reason no
// page could avoid, such as a bad key or a model without image input.
func unusableModel(doc *types.DocumentOutput, outcomes []pageOutcome) error {
	if doc.Summary.TotalPages == 0 || doc.Summary.Successful > 0 {
		return nil
	}
	for _, out := range outcomes {
		if permanent(out.Err) {
			return out.Err
		}
	}
	return nil
}

func (p *Pipeline) save(ctx context.Context, cfg types.RunConfig, doc *types.DocumentOutput) error {
	if p.Store != nil {
		return p.Store.Save(ctx, doc, cfg.FilePath)
	}
	if cfg.DatabasePath == "" {
		return nil
	}
	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	saveErr := s.Save(ctx, doc, cfg.FilePath)
	return errors.Join(saveErr, s.Close())
}
