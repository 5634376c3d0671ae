// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/pagescribe/internal/bbox"
	"github.com/pdiddy/pagescribe/internal/model"
	"github.com/pdiddy/pagescribe/pkg/types"
)

// backoffBase controls the base duration for exponential backoff between
// model call attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Gate bounds the number of model calls in flight.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

type weightedGate struct {
	sem *semaphore.Weighted
}

// NewGate returns a Gate admitting at most n holders.
func NewGate(n int) Gate {
	return &weightedGate{sem: semaphore.NewWeighted(int64(max(n, 1)))}
}

func (g *weightedGate) Acquire(ctx context.Context) error { return g.sem.Acquire(ctx, 1) }
func (g *weightedGate) Release()                          { g.sem.Release(1) }

// pageTask is one page image to convert.
type pageTask struct {
	index     int
	page      int
	imagePath string
}

// pageOutcome is what a worker reports for one page. A failed page has empty
// content, zero tokens, an empty PriorPage and Err set.
type pageOutcome struct {
	Page         types.Page
	InputTokens  int
	OutputTokens int
	PriorPage    string
	Err          error
}

// worker converts single pages. It is shared by all goroutines of a run and
// holds no mutable state.
type worker struct {
	client       model.Client
	ocr          bbox.Extractor
	systemPrompt string
	boundingBox  bool
	maxRetries   int
	timeout      time.Duration
	postProcess  func(string) string
	log          logrus.FieldLogger
}

func newWorker(client model.Client, ocr bbox.Extractor, cfg types.RunConfig, log logrus.FieldLogger) *worker {
	post := cfg.PostProcess
	if post == nil {
		post = FormatMarkdown
	}
	return &worker{
		client:       client,
		ocr:          ocr,
		systemPrompt: model.SystemPrompt(cfg.CustomSystemPrompt, cfg.BoundingBox),
		boundingBox:  cfg.BoundingBox,
		maxRetries:   cfg.Model.MaxRetries,
		timeout:      cfg.Model.Timeout,
		postProcess:  post,
		log:          log,
	}
}

// process converts one page. It never returns an error: failures are logged
// and reported through pageOutcome.Err with an empty page.
func (w *worker) process(ctx context.Context, task pageTask, priorPage string, gate Gate) pageOutcome {
	log := w.log.WithFields(logrus.Fields{"page": task.page, "image": task.imagePath})

	req := model.CompletionRequest{
		ImagePath:      task.imagePath,
		MaintainFormat: true,
		PriorPage:      priorPage,
		SystemPrompt:   w.systemPrompt,
	}
	res, err := w.complete(ctx, req, gate, log)
	if err != nil {
		log.WithError(err).Error("failed to process page")
		return pageOutcome{
			Page: types.Page{Page: task.page},
			Err:  &types.ProcessingError{Page: task.page, Cause: err},
		}
	}

	content := w.postProcess(res.Content)
	page := types.Page{
		Content:       content,
		ContentLength: utf8.RuneCountInString(content),
		Page:          task.page,
	}

	if w.boundingBox && content != "" {
		sections, err := bbox.Annotate(ctx, w.ocr, task.imagePath, content, log)
		if err != nil {
			log.WithError(err).Warn("page sections left without bounding boxes")
		}
		page.Sections = sections
	}

	return pageOutcome{
		Page:         page,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		PriorPage:    content,
	}
}

// complete holds the gate, if any, for the duration of the model call and
// its retries and releases it on every exit path.
func (w *worker) complete(ctx context.Context, req model.CompletionRequest, gate Gate, log logrus.FieldLogger) (types.CompletionResult, error) {
	if gate != nil {
		if err := gate.Acquire(ctx); err != nil {
			return types.CompletionResult{}, err
		}
		defer gate.Release()
	}
	return callWithRetry(ctx, w.client, req, w.maxRetries, w.timeout, log)
}

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	return errors.Is(err, types.ErrModelAccessDenied) || errors.Is(err, types.ErrNotAVisionModel)
}

func callWithRetry(ctx context.Context, client model.Client, req model.CompletionRequest, maxRetries int, timeout time.Duration, log logrus.FieldLogger) (types.CompletionResult, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			log.WithField("attempt", attempt+1).WithError(lastErr).Warn("retrying model call")
			select {
			case <-ctx.Done():
				return types.CompletionResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attempts++
		res, err := callOnce(ctx, client, req, timeout)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if permanent(err) || ctx.Err() != nil {
			break
		}
	}
	return types.CompletionResult{}, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func callOnce(ctx context.Context, client model.Client, req model.CompletionRequest, timeout time.Duration) (types.CompletionResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return client.Completion(ctx, req)
}
