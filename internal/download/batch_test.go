package download

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ytget/mgrab/internal/model"
)

func batchRequests(n int) []model.Request {
	reqs := make([]model.Request, n)
	for i := range reqs {
		reqs[i] = model.Request{
			URL:     fmt.Sprintf("https://youtube.com/watch?v=test%d", i),
			Kind:    model.KindAudio,
			Retries: 2,
		}
	}
	return reqs
}

func TestRunAllSucceedInInputOrder(t *testing.T) {
	coord := NewCoordinator(5, fastPolicy())
	reqs := batchRequests(10)

	perform := func(ctx context.Context, req model.Request) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "/tmp/" + req.URL[len(req.URL)-5:], nil
	}

	outcomes := coord.Run(context.Background(), reqs, perform)

	if len(outcomes) != 10 {
		t.Fatalf("Expected 10 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if !o.OK() {
			t.Errorf("Outcome %d: expected success, got %+v", i, o)
		}
		if o.URL != reqs[i].URL {
			t.Errorf("Outcome %d: expected URL %q, got %q (input order not preserved)", i, reqs[i].URL, o.URL)
		}
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	const limit = 5
	coord := NewCoordinator(limit, fastPolicy())

	var active, peak int64
	var mu sync.Mutex
	perform := func(ctx context.Context, req model.Request) (string, error) {
		n := atomic.AddInt64(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return "/tmp/out", nil
	}

	coord.Run(context.Background(), batchRequests(20), perform)

	mu.Lock()
	defer mu.Unlock()
	if peak > limit {
		t.Errorf("Observed %d concurrent perform calls, limit is %d", peak, limit)
	}
	if peak == 0 {
		t.Error("perform was never called")
	}
}

func TestRunBarrierHolds(t *testing.T) {
	coord := NewCoordinator(3, fastPolicy())

	var finished int64
	perform := func(ctx context.Context, req model.Request) (string, error) {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&finished, 1)
		return "/tmp/out", nil
	}

	outcomes := coord.Run(context.Background(), batchRequests(9), perform)

	if got := atomic.LoadInt64(&finished); got != 9 {
		t.Errorf("Run returned before all tasks finished: %d of 9 done", got)
	}
	for i, o := range outcomes {
		if o.URL == "" {
			t.Errorf("Outcome %d was never written", i)
		}
	}
}

func TestRunMixedSuccessAndFailure(t *testing.T) {
	coord := NewCoordinator(5, fastPolicy())
	reqs := batchRequests(5)

	// Requests 1 and 3 always fail, the rest succeed.
	perform := func(ctx context.Context, req model.Request) (string, error) {
		if strings.HasSuffix(req.URL, "1") || strings.HasSuffix(req.URL, "3") {
			return "", Recoverable(errors.New("always down"))
		}
		return "/tmp/out", nil
	}

	outcomes := coord.Run(context.Background(), reqs, perform)

	var ok, failed int
	for _, o := range outcomes {
		if o.OK() {
			ok++
		} else {
			failed++
		}
	}
	if ok != 3 || failed != 2 {
		t.Fatalf("Expected 3 successes and 2 failures, got %d/%d", ok, failed)
	}

	if outcomes[1].OK() || outcomes[3].OK() {
		t.Error("Failures not reported at their original positions")
	}
	if outcomes[1].Reason != model.FailureDownload {
		t.Errorf("Expected reason %q at position 1, got %q", model.FailureDownload, outcomes[1].Reason)
	}
	if !outcomes[0].OK() || !outcomes[2].OK() || !outcomes[4].OK() {
		t.Error("Successes not reported at their original positions")
	}
}

func TestRunCanceledContextStopsSubmitting(t *testing.T) {
	coord := NewCoordinator(1, fastPolicy())
	ctx, cancel := context.WithCancel(context.Background())

	var calls int64
	perform := func(ctx context.Context, req model.Request) (string, error) {
		atomic.AddInt64(&calls, 1)
		cancel()
		time.Sleep(5 * time.Millisecond)
		return "/tmp/out", nil
	}

	outcomes := coord.Run(ctx, batchRequests(5), perform)

	// With a single worker the first request runs, then cancellation keeps
	// the rest from ever being submitted.
	if got := atomic.LoadInt64(&calls); got >= 5 {
		t.Errorf("Expected cancellation to prevent submissions, got %d perform calls", got)
	}
	canceled := 0
	for _, o := range outcomes {
		if o.Reason == model.FailureCanceled {
			canceled++
		}
	}
	if canceled == 0 {
		t.Error("Expected unstarted requests to be reported as canceled")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	coord := NewCoordinator(5, fastPolicy())
	outcomes := coord.Run(context.Background(), nil, func(ctx context.Context, req model.Request) (string, error) {
		return "", nil
	})
	if len(outcomes) != 0 {
		t.Errorf("Expected empty outcome slice, got %d entries", len(outcomes))
	}
}

func TestNewCoordinatorDefaultLimit(t *testing.T) {
	coord := NewCoordinator(0, Policy{})
	if coord.Limit() != DefaultMaxParallel {
		t.Errorf("Expected default limit %d, got %d", DefaultMaxParallel, coord.Limit())
	}
}
