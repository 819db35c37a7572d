package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type flakyEnabler struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyEnabler) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("radio off")
	}
	return nil
}

func TestRetryEnableUntilSuccess(t *testing.T) {
	e := &flakyEnabler{failures: 2}

	err := RetryEnable(context.Background(), e, time.Millisecond)
	if err != nil {
		t.Fatalf("RetryEnable() error = %v", err)
	}
	if e.calls != 3 {
		t.Errorf("Enable calls = %d, want 3", e.calls)
	}
}

func TestRetryEnableStopsOnCancel(t *testing.T) {
	e := &flakyEnabler{failures: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := RetryEnable(ctx, e, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RetryEnable() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
