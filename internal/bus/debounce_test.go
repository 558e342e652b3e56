package bus

import (
	"reflect"
	"testing"
	"time"
)

// fakeTimer lets tests fire debounce flushes deterministically instead
// of sleeping for delayMs in real time.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newFakeAfterFunc() (func(time.Duration, func()) *time.Timer, func() []*fakeTimer) {
	var fired []*fakeTimer
	// time.AfterFunc's real return type is *time.Timer, which we can't
	// fake directly; instead we keep our own registry and return inert
	// real timers scheduled far in the future, while exposing fire()
	// hooks the test calls explicitly.
	var pending []*fakeTimer
	after := func(d time.Duration, f func()) *time.Timer {
		ft := &fakeTimer{fn: f}
		pending = append(pending, ft)
		fired = append(fired, ft)
		return time.AfterFunc(24*time.Hour, func() {}) // never fires in test
	}
	return after, func() []*fakeTimer { return fired }
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var gotKey string
	var gotItems []string
	flushed := make(chan struct{}, 1)

	after, _ := newFakeAfterFunc()
	var lastFire func()
	wrappedAfter := func(d time.Duration, f func()) *time.Timer {
		lastFire = f
		return after(d, f)
	}

	d := NewDebouncerWithTimer(1500*time.Millisecond, 20, func(key string, items []string) {
		gotKey, gotItems = key, items
		flushed <- struct{}{}
	}, wrappedAfter)

	d.Push("wa:u1", "Hi")
	d.Push("wa:u1", " there")
	d.Push("wa:u1", ",")
	d.Push("wa:u1", " bot")

	// Manually invoke the last scheduled timer callback to simulate the
	// quiet period elapsing (scenario 2).
	lastFire()
	<-flushed

	if gotKey != "wa:u1" {
		t.Fatalf("key = %q, want wa:u1", gotKey)
	}
	want := []string{"Hi", " there", ",", " bot"}
	if !reflect.DeepEqual(gotItems, want) {
		t.Fatalf("items = %v, want %v", gotItems, want)
	}
}

func TestDebouncer_FlushesAtBatchCap(t *testing.T) {
	flushCount := 0
	var gotItems []int

	d := NewDebouncer(time.Hour, 3, func(key string, items []int) {
		flushCount++
		gotItems = items
	})

	d.Push("k", 1)
	d.Push("k", 2)
	d.Push("k", 3) // hits maxBatch=3, flushes immediately without waiting

	if flushCount != 1 {
		t.Fatalf("flushCount = %d, want 1", flushCount)
	}
	if !reflect.DeepEqual(gotItems, []int{1, 2, 3}) {
		t.Fatalf("items = %v", gotItems)
	}
}

func TestDebouncer_CancelEmitsNothing(t *testing.T) {
	called := false
	after, _ := newFakeAfterFunc()
	var lastFire func()
	wrappedAfter := func(d time.Duration, f func()) *time.Timer {
		lastFire = f
		return after(d, f)
	}

	d := NewDebouncerWithTimer(time.Second, 20, func(key string, items []string) {
		called = true
	}, wrappedAfter)

	d.Push("k", "a")
	d.Cancel("k")

	if lastFire != nil {
		// Cancel stopped the real timer; even if the fake fire callback
		// is invoked manually, the buffer must already be gone.
		lastFire()
	}
	if called {
		t.Fatalf("cancel must never flush")
	}
}

func TestDebouncer_IndependentKeys(t *testing.T) {
	flushes := map[string][]string{}
	d := NewDebouncer(time.Hour, 100, func(key string, items []string) {
		flushes[key] = items
	})

	d.Push("a", "1")
	d.Push("b", "2")
	d.Push("a", "3")

	if len(flushes) != 0 {
		t.Fatalf("nothing should have flushed yet")
	}
}
