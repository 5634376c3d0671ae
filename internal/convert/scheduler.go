// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runIndependent starts every page at once and lets the gate bound how many
// model calls are in flight. Outcomes are stored by task index, so the
// returned slice is in page order whatever the completion order. When
// abortOnFailure is set the first failed page cancels the rest and its
// error is returned.
func runIndependent(ctx context.Context, w *worker, tasks []pageTask, gate Gate, abortOnFailure bool) ([]pageOutcome, error) {
	outcomes := make([]pageOutcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			out := w.process(gctx, task, "", gate)
			outcomes[task.index] = out
			if abortOnFailure && out.Err != nil {
				return out.Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// runSequential converts pages one at a time in page order, passing each
// page's output to the next call. A failed page passes on an empty string.
func runSequential(ctx context.Context, w *worker, tasks []pageTask, abortOnFailure bool) ([]pageOutcome, error) {
	outcomes := make([]pageOutcome, len(tasks))
	prior := ""
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := w.process(ctx, task, prior, nil)
		if abortOnFailure && out.Err != nil {
			return nil, out.Err
		}
		outcomes[task.index] = out
		prior = out.PriorPage
	}
	return outcomes, nil
}
