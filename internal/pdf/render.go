// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pagescribe/pkg/types"
)

const (
	binPdftocairo = "pdftocairo"
	binMutool     = "mutool"
)

// Rasterizer renders every page of a PDF to an image file.
type Rasterizer interface {
	Render(ctx context.Context, pdfPath, outDir string, cfg types.RenderConfig) ([]string, error)
}

// Renderer rasterizes with poppler's pdftocairo and falls back to MuPDF's
// mutool, rescaling the fallback output to the configured height bounds.
// Both write page_<n>.<ext> for 1-based n.
type Renderer struct {
	exec  executor
	count func(path string) (int, error)
	log   logrus.FieldLogger
}

// NewRenderer returns a Renderer using the system binaries.
func NewRenderer(log logrus.FieldLogger) *Renderer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{exec: defaultExec, count: PageCount, log: log}
}

// PageImageName returns the deterministic file name for page n.
func PageImageName(n int, format string) string {
	return "page_" + strconv.Itoa(n) + "." + imageExt(format)
}

func imageExt(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpg"
	default:
		return "png"
	}
}

// Render writes one image per page into outDir and returns their paths in
// page order.
func (r *Renderer) Render(ctx context.Context, pdfPath, outDir string, cfg types.RenderConfig) ([]string, error) {
	n, err := r.count(pdfPath)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%s has no pages", pdfPath)
	}

	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(outDir, PageImageName(i+1, cfg.Format))
	}

	primaryErr := r.renderPrimary(ctx, pdfPath, outDir, n, cfg)
	if primaryErr == nil {
		return paths, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	r.log.WithFields(logrus.Fields{
		"file":     pdfPath,
		"renderer": binPdftocairo,
	}).WithError(primaryErr).Warn("primary rasterizer failed, falling back")

	if err := r.renderFallback(ctx, pdfPath, paths, cfg); err != nil {
		return nil, fmt.Errorf("rasterizing %s: %w", pdfPath, errors.Join(primaryErr, err))
	}
	return paths, nil
}

func (r *Renderer) renderPrimary(ctx context.Context, pdfPath, outDir string, n int, cfg types.RenderConfig) error {
	if _, err := r.exec.LookPath(binPdftocairo); err != nil {
		return fmt.Errorf("%s not found: %w", binPdftocairo, err)
	}

	fmtFlag := "-png"
	if imageExt(cfg.Format) == "jpg" {
		fmtFlag = "-jpeg"
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.ThreadCount, 1))
	for page := 1; page <= n; page++ {
		page := page
		g.Go(func() error {
			p := strconv.Itoa(page)
			args := []string{fmtFlag, "-r", strconv.Itoa(cfg.DPI), "-f", p, "-l", p, "-singlefile"}
			if cfg.MaxHeight > 0 {
				args = append(args, "-scale-to-x", "-1", "-scale-to-y", strconv.Itoa(cfg.MaxHeight))
			}
			// pdftocairo appends the extension to the output root itself.
			args = append(args, pdfPath, filepath.Join(outDir, "page_"+p))
			return r.exec.Run(ctx, binPdftocairo, args...)
		})
	}
	return g.Wait()
}

func (r *Renderer) renderFallback(ctx context.Context, pdfPath string, paths []string, cfg types.RenderConfig) error {
	if _, err := r.exec.LookPath(binMutool); err != nil {
		return fmt.Errorf("%s not found: %w", binMutool, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.ThreadCount, 1))
	for i, out := range paths {
		i, out := i, out
		g.Go(func() error {
			args := []string{"draw", "-q", "-r", strconv.Itoa(cfg.DPI), "-o", out, pdfPath, strconv.Itoa(i + 1)}
			if err := r.exec.Run(ctx, binMutool, args...); err != nil {
				return err
			}
			return Rescale(out, cfg.MinHeight, cfg.MaxHeight)
		})
	}
	return g.Wait()
}

// TargetHeight applies the height bounds to h. A bound of zero or less is
// ignored.
func TargetHeight(h, minHeight, maxHeight int) int {
	if maxHeight > 0 {
		h = min(h, maxHeight)
	}
	if minHeight > 0 {
		h = max(h, minHeight)
	}
	return h
}

// Rescale resizes the image at path in place so its height satisfies the
// bounds, preserving the aspect ratio. Images already within bounds are
// left untouched.
func Rescale(path string, minHeight, maxHeight int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	src, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	b := src.Bounds()
	h := TargetHeight(b.Dy(), minHeight, maxHeight)
	if h == b.Dy() {
		return nil
	}
	w := max(1, b.Dx()*h/b.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	return writeImage(path, dst, format)
}

func writeImage(path string, img image.Image, format string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rescale-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	encErr := encode(tmp, img, format)
	closeErr := tmp.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func encode(w io.Writer, img image.Image, format string) error {
	if format == "jpeg" {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	}
	return png.Encode(w, img)
}
