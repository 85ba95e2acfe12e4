package download

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ytget/mgrab/internal/model"
)

// DefaultMaxParallel is the worker pool size used when none is configured.
const DefaultMaxParallel = 5

// Coordinator fans a batch of independent requests out over a bounded worker
// pool and collects one Outcome per request. It is constructed once and
// reused across batches.
//
// Known hazard: two requests that compute the same output filename race on
// the destination directory. The coordinator does not deduplicate or lock
// filenames; the delegate owns file creation.
type Coordinator struct {
	limit  int
	policy Policy
	logger *slog.Logger
}

// NewCoordinator creates a coordinator with the given pool size. A limit
// below 1 falls back to DefaultMaxParallel.
func NewCoordinator(limit int, policy Policy) *Coordinator {
	if limit < 1 {
		limit = DefaultMaxParallel
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{limit: limit, policy: policy, logger: logger}
}

// Limit returns the configured pool size.
func (c *Coordinator) Limit() int {
	return c.limit
}

// Run processes every request through the retry policy, at most limit at a
// time, and returns outcomes aligned to the input order regardless of
// completion order. It blocks until all submitted work has drained; a single
// task's failure never cancels siblings and never escapes as an error.
//
// If ctx is canceled, no new work is submitted: in-flight delegate calls run
// to completion (the delegate owns that networking) and every request that
// never started is reported as canceled.
func (c *Coordinator) Run(ctx context.Context, reqs []model.Request, perform PerformFunc) []model.Outcome {
	outcomes := make([]model.Outcome, len(reqs))
	sem := make(chan struct{}, c.limit)
	var wg sync.WaitGroup

	for i, req := range reqs {
		// Acquire a pool slot, or bail out on cancellation.
		select {
		case <-ctx.Done():
			outcomes[i] = model.Failed(req.Normalized(), model.FailureCanceled, ctx.Err().Error(), 0)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, req model.Request) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = c.policy.Execute(ctx, req, perform)
		}(i, req)
	}

	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	c.logger.Info("batch finished", "total", len(reqs), "failed", failed)

	return outcomes
}
