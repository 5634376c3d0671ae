// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// rateLimited paces calls to the wrapped client.
type rateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit wraps c so that calls are spaced to at most rpm per minute.
// All callers sharing the returned client share the budget. A non-positive
// rpm returns c unchanged.
func WithRateLimit(c Client, rpm int) Client {
	if rpm <= 0 {
		return c
	}
	return &rateLimited{
		next:    c,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (r *rateLimited) Completion(ctx context.Context, req CompletionRequest) (types.CompletionResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return types.CompletionResult{}, err
	}
	return r.next.Completion(ctx, req)
}
