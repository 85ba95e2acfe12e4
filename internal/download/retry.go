package download

import (
	"context"
	"log/slog"
	"time"

	"github.com/ytget/mgrab/internal/model"
)

// Default retry behavior
const (
	DefaultBackoff = 2 * time.Second
)

// PerformFunc is the opaque delegate operation: it downloads whatever the
// request describes and returns the produced file path. The executor never
// inspects what it does, only whether it fails and how.
type PerformFunc func(ctx context.Context, req model.Request) (string, error)

// Policy is a pure retry policy: max attempts come from the request, the
// error classifier and backoff are injectable so the loop is testable without
// a real network call.
type Policy struct {
	// Backoff is the delay between attempts. Zero means DefaultBackoff.
	Backoff time.Duration

	// Classify reports whether an error is worth retrying. Nil means
	// IsRecoverable.
	Classify func(error) bool

	// Logger receives per-attempt warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// Execute runs perform up to req.Retries times and converts the result into
// exactly one Outcome. A recoverable failure is retried after the backoff; a
// fatal one surfaces immediately as FailureUnexpected. The outcome is always
// returned, never an error: batch callers must not have one task's failure
// raised at them.
func (p Policy) Execute(ctx context.Context, req model.Request, perform PerformFunc) model.Outcome {
	req = req.Normalized()

	backoff := p.Backoff
	if backoff == 0 {
		backoff = DefaultBackoff
	}
	classify := p.Classify
	if classify == nil {
		classify = IsRecoverable
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := req.Validate(); err != nil {
		return model.Failed(req, model.FailureUnexpected, err.Error(), 0)
	}

	var lastErr error
	for attempt := 1; attempt <= req.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return model.Failed(req, model.FailureCanceled, ctx.Err().Error(), attempt-1)
			}
		}

		path, err := perform(ctx, req)
		if err == nil {
			return model.Succeeded(req, path, attempt)
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.Failed(req, model.FailureCanceled, ctx.Err().Error(), attempt)
		}
		if !classify(err) {
			return model.Failed(req, model.FailureUnexpected, err.Error(), attempt)
		}
		if attempt < req.Retries {
			logger.Warn("download attempt failed, retrying",
				"url", req.URL,
				"attempt", attempt,
				"of", req.Retries,
				"error", err)
		}
	}

	return model.Failed(req, model.FailureDownload, lastErr.Error(), req.Retries)
}
