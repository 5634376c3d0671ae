// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pagescribe/internal/model"
	"github.com/pdiddy/pagescribe/internal/pdf"
	"github.com/pdiddy/pagescribe/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
}

// fakeClient answers with "# <image base name>" and usage derived from the
// page image name. Behavior per image can be overridden.
type fakeClient struct {
	mu      sync.Mutex
	calls   []model.CompletionRequest
	fail    map[string]error
	failN   map[string]int // fail the first N calls for an image
	delay   map[string]time.Duration
	content map[string]string
	block   bool
}

func imageKey(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (f *fakeClient) Completion(ctx context.Context, req model.CompletionRequest) (types.CompletionResult, error) {
	key := imageKey(req.ImagePath)

	f.mu.Lock()
	f.calls = append(f.calls, req)
	var err error
	if e, ok := f.fail[key]; ok {
		err = e
	}
	if f.failN[key] > 0 {
		f.failN[key]--
		err = context.DeadlineExceeded
	}
	delay := f.delay[key]
	content, ok := f.content[key]
	if !ok {
		content = "# " + key
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return types.CompletionResult{}, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.CompletionResult{}, ctx.Err()
		}
	}
	if err != nil {
		return types.CompletionResult{}, err
	}

	n := len(key)
	return types.CompletionResult{Content: content, InputTokens: 100 + n, OutputTokens: 10 + n}, nil
}

func (f *fakeClient) requests() []model.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CompletionRequest(nil), f.calls...)
}

// fakeRenderer pretends every page of the input renders to page_<n>.png.
type fakeRenderer struct {
	pages int
	calls int
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, _, outDir string, cfg types.RenderConfig) ([]string, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	paths := make([]string, r.pages)
	for i := range paths {
		paths[i] = filepath.Join(outDir, pdf.PageImageName(i+1, cfg.Format))
	}
	return paths, nil
}

// fakeSelector validates against a fixed page count and narrows the renderer
// to the selected pages.
type fakeSelector struct {
	total    int
	renderer *fakeRenderer
}

func (s *fakeSelector) Select(src string, pages []int, destDir string) (string, []int, error) {
	if err := pdf.ValidatePages(pages, s.total); err != nil {
		return "", nil, err
	}
	selected := pdf.NormalizePages(pages)
	s.renderer.pages = len(selected)
	return filepath.Join(destDir, "selected.pdf"), selected, nil
}

// fakeStore records saved documents.
type fakeStore struct {
	saved  []*types.DocumentOutput
	source string
}

func (s *fakeStore) Save(_ context.Context, doc *types.DocumentOutput, source string) error {
	s.saved = append(s.saved, doc)
	s.source = source
	return nil
}

// countingGate wraps a real gate and records the highest number of
// concurrent holders.
type countingGate struct {
	inner   Gate
	mu      sync.Mutex
	current int
	peak    int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if err := g.inner.Acquire(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	g.current++
	g.peak = max(g.peak, g.current)
	g.mu.Unlock()
	return nil
}

func (g *countingGate) Release() {
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
	g.inner.Release()
}

type harness struct {
	pipeline *Pipeline
	client   *fakeClient
	renderer *fakeRenderer
	hook     *test.Hook
	cfg      types.RunConfig
}

func newHarness(t *testing.T, pages int) *harness {
	t.Helper()
	client := &fakeClient{
		fail:    map[string]error{},
		failN:   map[string]int{},
		delay:   map[string]time.Duration{},
		content: map[string]string{},
	}
	renderer := &fakeRenderer{pages: pages}
	log, hook := test.NewNullLogger()

	reg := &model.Registry{Factory: func(types.ModelConfig) (model.Client, error) { return client, nil }}

	src := filepath.Join(t.TempDir(), "Quarterly Report.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7"), 0o644))

	cfg := types.RunConfig{
		FilePath: src,
		TempDir:  t.TempDir(),
		Cleanup:  true,
		Model:    types.ModelConfig{APIKey: "sk-test", MaxRetries: 0},
	}

	return &harness{
		pipeline: &Pipeline{
			Models:   reg,
			Renderer: renderer,
			Pages:    &fakeSelector{total: pages, renderer: renderer},
			Log:      log,
		},
		client:   client,
		renderer: renderer,
		hook:     hook,
		cfg:      cfg,
	}
}

func pageNumbers(doc *types.DocumentOutput) []int {
	out := make([]int, len(doc.Pages))
	for i, p := range doc.Pages {
		out[i] = p.Page
	}
	return out
}
