package pid

import (
	"testing"
)

func TestProportionalOnly(t *testing.T) {
	c := New(Gains{KP: 4})
	if out := c.Update(0.1); out != 0.4 {
		t.Errorf("expected 0.4, got %v", out)
	}
	if out := c.Update(-2); out != -8 {
		t.Errorf("expected -8, got %v", out)
	}
}

func TestIntegralAndDerivativeAreUnitTick(t *testing.T) {
	c := New(Gains{KP: 1, KI: 0.5, KD: 2})

	// First tick: integral=10, derivative=10-0.
	if out := c.Update(10); out != 10+5+20 {
		t.Errorf("tick 1: got %v", out)
	}
	// Second tick: integral=16, derivative=6-10.
	if out := c.Update(6); out != 6+8-8 {
		t.Errorf("tick 2: got %v", out)
	}
	if c.Integral() != 16 || c.PreviousError() != 6 {
		t.Errorf("unexpected state integral=%v prev=%v", c.Integral(), c.PreviousError())
	}
	terms := c.Snapshot()
	if terms.P != 6 || terms.I != 8 || terms.D != -8 {
		t.Errorf("unexpected terms %+v", terms)
	}

	c.Reset()
	if c.Integral() != 0 || c.PreviousError() != 0 {
		t.Error("reset should clear state")
	}
}

func TestWindupGuard(t *testing.T) {
	c := NewWithWindupGuard(Gains{KP: 0.1, KI: 1}, WindupGuard{Floor: 20, Ceiling: DefaultSanityCeiling})

	c.Update(100)
	c.Update(200)
	if c.Integral() != 300 {
		t.Fatalf("expected integral to accumulate to 300, got %v", c.Integral())
	}

	// A spike above the ceiling discards the integral on that tick.
	c.Update(1500)
	if c.Integral() != 0 {
		t.Errorf("expected spike to reset integral, got %v", c.Integral())
	}

	c.Update(100)
	if c.Integral() != 100 {
		t.Errorf("expected accumulation to resume, got %v", c.Integral())
	}

	// Near the target the integral is also discarded.
	c.Update(19)
	if c.Integral() != 0 {
		t.Errorf("expected near-target reset, got %v", c.Integral())
	}
	c.Update(-20)
	if c.Integral() != 0 {
		t.Errorf("floor applies to magnitude, got %v", c.Integral())
	}
}

func TestWindupGuardBoundaries(t *testing.T) {
	g := WindupGuard{Floor: 0, Ceiling: 1000}
	for _, tc := range []struct {
		err   float64
		trips bool
	}{
		{0, true},
		{0.01, false},
		{1000, false},
		{1000.5, true},
		{-1000.5, true},
	} {
		if got := g.trips(tc.err); got != tc.trips {
			t.Errorf("trips(%v) = %v, expected %v", tc.err, got, tc.trips)
		}
	}

	if (WindupGuard{}).trips(1e12) {
		t.Error("zero ceiling should disable the upper check")
	}
}
