package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel)
	return logger
}

func TestDoWithRetry(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := doWithRetry(context.Background(), testLogger(), "test", func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("doWithRetry() error = %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := doWithRetry(context.Background(), testLogger(), "test", func() error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("doWithRetry() error = %v", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := doWithRetry(context.Background(), testLogger(), "test", func() error {
			calls++
			return errors.New("persistent")
		})
		if err == nil {
			t.Fatal("doWithRetry() error = nil, want persistent failure")
		}
		if calls != maxAttempts {
			t.Errorf("calls = %d, want %d", calls, maxAttempts)
		}
	})

	t.Run("aborts on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := doWithRetry(ctx, testLogger(), "test", func() error {
			calls++
			cancel()
			return errors.New("transient")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("doWithRetry() error = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestRetryAfterDelay(t *testing.T) {
	t.Run("honors Retry-After seconds", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
		if got := retryAfterDelay(resp); got != 7*time.Second {
			t.Errorf("retryAfterDelay() = %v, want 7s", got)
		}
	})

	t.Run("falls back on missing header", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{}}
		if got := retryAfterDelay(resp); got != defaultRetryAfter {
			t.Errorf("retryAfterDelay() = %v, want %v", got, defaultRetryAfter)
		}
	})

	t.Run("falls back on unparseable header", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{"Retry-After": []string{"Wed, 21 Oct 2026 07:28:00 GMT"}}}
		if got := retryAfterDelay(resp); got != defaultRetryAfter {
			t.Errorf("retryAfterDelay() = %v, want %v", got, defaultRetryAfter)
		}
	})
}
