// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// mockExecutor simulates pdftocairo and mutool by writing a blank PNG where
// each binary would put its output.
type mockExecutor struct {
	mu        sync.Mutex
	available map[string]bool
	fail      map[string]error
	width     int
	height    int
	calls     []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.available[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found")
}

func (m *mockExecutor) Run(_ context.Context, name string, args ...string) error {
	m.mu.Lock()
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	m.mu.Unlock()

	if err := m.fail[name]; err != nil {
		return err
	}

	var out string
	switch name {
	case binPdftocairo:
		out = args[len(args)-1] + ".png"
	case binMutool:
		out = args[slices.Index(args, "-o")+1]
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, image.NewGray(image.Rect(0, 0, m.width, m.height)))
}

func (m *mockExecutor) callsFor(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, name+" ") {
			out = append(out, c)
		}
	}
	return out
}

func newTestRenderer(exec *mockExecutor, pages int) (*Renderer, *test.Hook) {
	log, hook := test.NewNullLogger()
	return &Renderer{
		exec:  exec,
		count: func(string) (int, error) { return pages, nil },
		log:   log,
	}, hook
}

func renderCfg() types.RenderConfig {
	return types.RenderConfig{DPI: 300, Format: "png", MaxHeight: 100, ThreadCount: 2}
}

func imageHeight(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestRenderPrimary(t *testing.T) {
	exec := &mockExecutor{available: map[string]bool{binPdftocairo: true, binMutool: true}, width: 8, height: 100}
	r, hook := newTestRenderer(exec, 3)
	dir := t.TempDir()

	paths, err := r.Render(context.Background(), "/in/doc.pdf", dir, renderCfg())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "page_1.png"),
		filepath.Join(dir, "page_2.png"),
		filepath.Join(dir, "page_3.png"),
	}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	calls := exec.callsFor(binPdftocairo)
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Contains(t, c, "-r 300")
		assert.Contains(t, c, "-scale-to-y 100")
		assert.Contains(t, c, "-singlefile")
	}
	assert.Empty(t, exec.callsFor(binMutool))
	assert.Empty(t, hook.AllEntries())
}

func TestRenderPrimaryWithoutHeightCap(t *testing.T) {
	exec := &mockExecutor{available: map[string]bool{binPdftocairo: true}, width: 8, height: 3000}
	r, _ := newTestRenderer(exec, 1)

	cfg := renderCfg()
	cfg.MaxHeight = -1
	_, err := r.Render(context.Background(), "/in/doc.pdf", t.TempDir(), cfg)
	require.NoError(t, err)

	calls := exec.callsFor(binPdftocairo)
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0], "-scale-to")
}

func TestRenderFallbackWithoutHeightCapKeepsSize(t *testing.T) {
	exec := &mockExecutor{
		available: map[string]bool{binMutool: true},
		width:     50,
		height:    3000,
	}
	r, _ := newTestRenderer(exec, 1)

	cfg := renderCfg()
	cfg.MaxHeight = -1
	paths, err := r.Render(context.Background(), "/in/doc.pdf", t.TempDir(), cfg)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	w, h := imageHeight(t, paths[0])
	assert.Equal(t, 50, w)
	assert.Equal(t, 3000, h)
}

func TestRenderFallsBackAndRescales(t *testing.T) {
	exec := &mockExecutor{
		available: map[string]bool{binPdftocairo: true, binMutool: true},
		fail:      map[string]error{binPdftocairo: errors.New("syntax error")},
		width:     50,
		height:    400,
	}
	r, hook := newTestRenderer(exec, 2)
	dir := t.TempDir()

	paths, err := r.Render(context.Background(), "/in/doc.pdf", dir, renderCfg())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "page_2.png"), paths[1])

	for _, p := range paths {
		w, h := imageHeight(t, p)
		assert.Equal(t, 100, h)
		assert.Equal(t, 12, w, "aspect ratio preserved: 50*100/400")
	}

	assert.Len(t, exec.callsFor(binMutool), 2)
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, binPdftocairo, hook.LastEntry().Data["renderer"])
}

func TestRenderFallbackWhenPrimaryMissing(t *testing.T) {
	exec := &mockExecutor{available: map[string]bool{binMutool: true}, width: 10, height: 50}
	r, _ := newTestRenderer(exec, 1)

	paths, err := r.Render(context.Background(), "/in/doc.pdf", t.TempDir(), renderCfg())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	_, h := imageHeight(t, paths[0])
	assert.Equal(t, 50, h, "within bounds, left untouched")
}

func TestRenderNoRasterizer(t *testing.T) {
	exec := &mockExecutor{available: map[string]bool{}}
	r, _ := newTestRenderer(exec, 1)

	_, err := r.Render(context.Background(), "/in/doc.pdf", t.TempDir(), renderCfg())
	require.Error(t, err)
	assert.Contains(t, err.Error(), binMutool)
}

func TestTargetHeight(t *testing.T) {
	tests := []struct {
		name          string
		h, minH, maxH int
		want          int
	}{
		{name: "no bounds", h: 500, want: 500},
		{name: "capped", h: 2000, maxH: 1056, want: 1056},
		{name: "raised", h: 200, minH: 400, maxH: 1056, want: 400},
		{name: "within", h: 800, minH: 400, maxH: 1056, want: 800},
		{name: "negative max disables cap", h: 3000, maxH: -1, want: 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetHeight(tt.h, tt.minH, tt.maxH))
		})
	}
}

func TestPageImageName(t *testing.T) {
	assert.Equal(t, "page_1.png", PageImageName(1, "png"))
	assert.Equal(t, "page_12.jpg", PageImageName(12, "jpeg"))
	assert.Equal(t, "page_3.png", PageImageName(3, ""))
}
