package gatewayclient

import "testing"

func TestReconnector_BackoffSequence(t *testing.T) {
	// Scenario 3: base=100, max=1000, attempts=5 → 100,200,400,800,1000, exhausted.
	r := NewReconnector(100, 1000, 5)
	want := []int64{100, 200, 400, 800, 1000}

	for i, w := range want {
		d := r.Next()
		if d.Exhausted {
			t.Fatalf("call %d: unexpectedly exhausted", i)
		}
		if d.Ms != w {
			t.Fatalf("call %d: got %d, want %d", i, d.Ms, w)
		}
	}

	if d := r.Next(); !d.Exhausted {
		t.Fatalf("6th call should be exhausted, got %+v", d)
	}
}

func TestReconnector_Monotonicity(t *testing.T) {
	r := NewReconnector(50, 400, -1)
	prev := int64(0)
	for i := 0; i < 20; i++ {
		d := r.Next()
		if d.Exhausted {
			t.Fatalf("unlimited reconnector should never exhaust")
		}
		if d.Ms < prev {
			t.Fatalf("call %d: delay decreased (%d < %d)", i, d.Ms, prev)
		}
		if d.Ms > 400 {
			t.Fatalf("call %d: delay %d exceeded cap", i, d.Ms)
		}
		prev = d.Ms
	}
}

func TestReconnector_Reset(t *testing.T) {
	r := NewReconnector(100, 1000, 3)
	r.Next()
	r.Next()
	r.Reset()
	if d := r.Next(); d.Ms != 100 {
		t.Fatalf("after reset, first delay = %d, want 100", d.Ms)
	}
}

func TestReconnector_ZeroAttemptsIsImmediatelyExhausted(t *testing.T) {
	r := NewReconnector(0, 0, 0)
	if d := r.Next(); !d.Exhausted {
		t.Fatalf("maxAttempts=0 should exhaust on the first call, got %+v", d)
	}
}

func TestReconnector_BaseAndMaxFallBackToDefaults(t *testing.T) {
	r := NewReconnector(0, 0, -1)
	if d := r.Next(); d.Ms != DefaultBaseMs {
		t.Fatalf("first delay = %d, want default base %d", d.Ms, DefaultBaseMs)
	}
}
