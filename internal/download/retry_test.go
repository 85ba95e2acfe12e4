package download

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ytget/mgrab/internal/model"
)

func testRequest(retries int) model.Request {
	return model.Request{
		URL:     "https://youtube.com/watch?v=test",
		Kind:    model.KindAudio,
		Retries: retries,
	}
}

func fastPolicy() Policy {
	return Policy{Backoff: time.Millisecond}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	perform := func(ctx context.Context, req model.Request) (string, error) {
		calls++
		return "/tmp/out.mp3", nil
	}

	outcome := fastPolicy().Execute(context.Background(), testRequest(3), perform)

	if !outcome.OK() {
		t.Fatalf("Expected success, got %+v", outcome)
	}
	if outcome.Path != "/tmp/out.mp3" {
		t.Errorf("Expected path /tmp/out.mp3, got %q", outcome.Path)
	}
	if calls != 1 {
		t.Errorf("Expected 1 perform call, got %d", calls)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Expected 1 attempt recorded, got %d", outcome.Attempts)
	}
}

func TestExecuteRetriesRecoverableThenSucceeds(t *testing.T) {
	tests := []struct {
		failures int
		retries  int
	}{
		{1, 3},
		{2, 3},
		{4, 5},
	}

	for _, test := range tests {
		calls := 0
		perform := func(ctx context.Context, req model.Request) (string, error) {
			calls++
			if calls <= test.failures {
				return "", Recoverable(errors.New("connection reset"))
			}
			return "/tmp/out.mp3", nil
		}

		outcome := fastPolicy().Execute(context.Background(), testRequest(test.retries), perform)

		if !outcome.OK() {
			t.Errorf("failures=%d retries=%d: expected success, got %+v", test.failures, test.retries, outcome)
		}
		if calls != test.failures+1 {
			t.Errorf("failures=%d: expected %d perform calls, got %d", test.failures, test.failures+1, calls)
		}
	}
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	calls := 0
	perform := func(ctx context.Context, req model.Request) (string, error) {
		calls++
		return "", Recoverable(errors.New("network unreachable"))
	}

	outcome := fastPolicy().Execute(context.Background(), testRequest(3), perform)

	if outcome.OK() {
		t.Fatal("Expected failure after exhausting retries")
	}
	if outcome.Reason != model.FailureDownload {
		t.Errorf("Expected reason %q, got %q", model.FailureDownload, outcome.Reason)
	}
	if calls != 3 {
		t.Errorf("Expected exactly 3 perform calls, got %d", calls)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Expected 3 attempts recorded, got %d", outcome.Attempts)
	}
}

func TestExecuteFatalErrorNoRetry(t *testing.T) {
	calls := 0
	perform := func(ctx context.Context, req model.Request) (string, error) {
		calls++
		return "", Fatal(errors.New("permission denied"))
	}

	outcome := fastPolicy().Execute(context.Background(), testRequest(3), perform)

	if outcome.OK() {
		t.Fatal("Expected failure for fatal error")
	}
	if outcome.Reason != model.FailureUnexpected {
		t.Errorf("Expected reason %q, got %q", model.FailureUnexpected, outcome.Reason)
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 perform call, got %d", calls)
	}
}

func TestExecuteUnclassifiedErrorNoRetry(t *testing.T) {
	calls := 0
	perform := func(ctx context.Context, req model.Request) (string, error) {
		calls++
		return "", fmt.Errorf("some programming error")
	}

	outcome := fastPolicy().Execute(context.Background(), testRequest(3), perform)

	if outcome.Reason != model.FailureUnexpected {
		t.Errorf("Expected reason %q, got %q", model.FailureUnexpected, outcome.Reason)
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 perform call, got %d", calls)
	}
}

func TestExecuteInvalidRequest(t *testing.T) {
	perform := func(ctx context.Context, req model.Request) (string, error) {
		t.Fatal("perform must not be called for invalid requests")
		return "", nil
	}

	outcome := fastPolicy().Execute(context.Background(), model.Request{}, perform)

	if outcome.Reason != model.FailureUnexpected {
		t.Errorf("Expected reason %q, got %q", model.FailureUnexpected, outcome.Reason)
	}
	if outcome.Attempts != 0 {
		t.Errorf("Expected 0 attempts, got %d", outcome.Attempts)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	perform := func(ctx context.Context, req model.Request) (string, error) {
		calls++
		cancel()
		return "", Recoverable(errors.New("interrupted"))
	}

	outcome := fastPolicy().Execute(ctx, testRequest(3), perform)

	if outcome.Reason != model.FailureCanceled {
		t.Errorf("Expected reason %q, got %q", model.FailureCanceled, outcome.Reason)
	}
	if calls != 1 {
		t.Errorf("Expected no retries after cancellation, got %d calls", calls)
	}
}

func TestExecuteIdempotent(t *testing.T) {
	perform := func(ctx context.Context, req model.Request) (string, error) {
		return "/tmp/same.mp3", nil
	}

	req := testRequest(3)
	first := fastPolicy().Execute(context.Background(), req, perform)
	second := fastPolicy().Execute(context.Background(), req, perform)

	if !first.OK() || !second.OK() {
		t.Fatalf("Expected both executions to succeed: %+v / %+v", first, second)
	}
	if first.Path != second.Path {
		t.Errorf("Expected identical paths, got %q and %q", first.Path, second.Path)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"recoverable delegate error", Recoverable(errors.New("timeout")), true},
		{"fatal delegate error", Fatal(errors.New("bad input")), false},
		{"wrapped recoverable", fmt.Errorf("attempt failed: %w", Recoverable(errors.New("x"))), true},
		{"plain error", errors.New("whatever"), false},
		{"context canceled", context.Canceled, false},
		{"wrapped cancellation", Recoverable(context.Canceled), false},
		{"nil", nil, false},
	}

	for _, test := range tests {
		if got := IsRecoverable(test.err); got != test.expected {
			t.Errorf("%s: IsRecoverable() = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestRecoverableNil(t *testing.T) {
	if Recoverable(nil) != nil {
		t.Error("Recoverable(nil) must be nil")
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) must be nil")
	}
}
