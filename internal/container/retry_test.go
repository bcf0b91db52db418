// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errOverlayRace = errors.New("error creating overlay mount")
	errBadFile     = errors.New("unknown instruction: FORM")
)

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	// outcomes[i] is what attempt i returns; attempts past the end succeed.
	type outcome struct {
		retry bool
		err   error
	}
	tests := []struct {
		name      string
		attempts  int
		outcomes  []outcome
		wantCalls int
		wantErr   error
	}{
		{"first build succeeds", 3, nil, 1, nil},
		{"overlay race then success", 4, []outcome{{true, errOverlayRace}, {true, errOverlayRace}}, 3, nil},
		{"transient until exhausted", 3, []outcome{{true, errOverlayRace}, {true, errOverlayRace}, {true, errOverlayRace}}, 3, errOverlayRace},
		{"permanent failure stops at once", 5, []outcome{{false, errBadFile}}, 1, errBadFile},
		{"single attempt never waits", 1, []outcome{{true, errOverlayRace}}, 1, errOverlayRace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithBackoff(context.Background(), tt.attempts, time.Millisecond, func(attempt int) (bool, error) {
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				calls++
				if attempt < len(tt.outcomes) {
					return tt.outcomes[attempt].retry, tt.outcomes[attempt].err
				}
				return false, nil
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("RetryWithBackoff() = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("op called %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoff_CancelDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, 3, time.Hour, func(int) (bool, error) {
		calls++
		cancel()
		return true, errOverlayRace
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RetryWithBackoff() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times after cancel, want 1", calls)
	}
}

func TestRetryWithBackoff_DoublesTheWait(t *testing.T) {
	t.Parallel()

	const base = 20 * time.Millisecond
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), 3, base, func(int) (bool, error) {
		return true, errOverlayRace
	})
	// Two waits: base, then 2*base.
	if elapsed := time.Since(start); elapsed < 3*base {
		t.Errorf("three attempts took %v, want at least %v", elapsed, 3*base)
	}
}
