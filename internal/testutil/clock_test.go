// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeClock_Frozen(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
	if got := c.Now(); !got.Equal(epoch) {
		t.Errorf("second Now() = %v, want frozen %v", got, epoch)
	}
}

func TestFakeClock_DefaultTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NewFakeClock(time.Time{}).Now(); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	c.Advance(90 * time.Second)
	if got, want := c.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("after Advance Now() = %v, want %v", got, want)
	}

	later := epoch.Add(24 * time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("after Set Now() = %v, want %v", got, later)
	}
}

func TestFakeClock_AutoAdvance(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	c.AutoAdvance(time.Second)

	a, b := c.Now(), c.Now()
	if !a.Equal(epoch) {
		t.Errorf("first reading = %v, want %v", a, epoch)
	}
	if d := b.Sub(a); d != time.Second {
		t.Errorf("readings %v apart, want 1s", d)
	}

	c.AutoAdvance(0)
	if x, y := c.Now(), c.Now(); !x.Equal(y) {
		t.Errorf("clock moved after AutoAdvance(0): %v then %v", x, y)
	}
}

func TestFakeClock_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	c.AutoAdvance(time.Millisecond)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Now()
		}()
	}
	wg.Wait()

	if got, want := c.Now(), epoch.Add(50*time.Millisecond); !got.Equal(want) {
		t.Errorf("after 50 readings Now() = %v, want %v", got, want)
	}
}
