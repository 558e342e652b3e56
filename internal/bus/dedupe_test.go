package bus

import (
	"testing"
	"time"
)

func TestDedupeCache_AddThenDuplicate(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	c := NewDedupeCacheWithClock(60*time.Second, 10, clock)

	if !c.Add("m1") {
		t.Fatalf("first add should succeed")
	}
	if c.Add("m1") {
		t.Fatalf("second add before TTL should report duplicate")
	}
	if !c.Has("m1") {
		t.Fatalf("m1 should still be tracked")
	}
}

func TestDedupeCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	c := NewDedupeCacheWithClock(10*time.Second, 10, clock)

	c.Add("m1")
	now = now.Add(11 * time.Second)

	if c.Has("m1") {
		t.Fatalf("entry should have expired")
	}
	if !c.Add("m1") {
		t.Fatalf("add after expiry should succeed")
	}
}

func TestDedupeCache_CapacityEviction(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	c := NewDedupeCacheWithClock(time.Hour, 3, clock)

	c.Add("a")
	now = now.Add(time.Second)
	c.Add("b")
	now = now.Add(time.Second)
	c.Add("c")
	now = now.Add(time.Second)

	if c.Size() != 3 {
		t.Fatalf("size = %d, want 3", c.Size())
	}

	c.Add("d") // over capacity: evicts oldest insertion ("a")

	if c.Size() > 3 {
		t.Fatalf("size() = %d, want <= 3 immediately after add", c.Size())
	}
	if c.Has("a") {
		t.Fatalf("oldest entry 'a' should have been evicted")
	}
	if !c.Has("d") {
		t.Fatalf("newly added 'd' should be present")
	}
}

func TestDedupeCache_AcrossReconnectScenario(t *testing.T) {
	// End-to-end scenario 1: adapter emits m1 at t=0, replays m1 at
	// t=10s with TTL=60s. Second emission must be dropped.
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	c := NewDedupeCacheWithClock(60*time.Second, 5000, clock)

	if !c.Add("wa:m1") {
		t.Fatalf("first emission should be accepted")
	}
	now = now.Add(10 * time.Second)
	if c.Add("wa:m1") {
		t.Fatalf("replay within TTL should be dropped")
	}
}
