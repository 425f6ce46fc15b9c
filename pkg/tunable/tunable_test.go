package tunable

import (
	"math"
	"testing"

	"github.com/tigerbot-team/diffdrive/pkg/pid"
)

func TestAddSteps(t *testing.T) {
	var ts Tunables
	kp := ts.Create("kp", 1, 0.1)

	kp.Add(3)
	if got := kp.Get(); math.Abs(got-1.3) > 1e-9 {
		t.Errorf("after +3 steps got %v, want 1.3", got)
	}
	kp.Add(-100)
	if got := kp.Get(); got != 0 {
		t.Errorf("gains should not go negative, got %v", got)
	}
}

func TestSelectionWraps(t *testing.T) {
	var ts Tunables
	if ts.Current() != nil {
		t.Fatal("empty set should have no selection")
	}
	ts.SelectNext()

	a := ts.Create("a", 0, 1)
	b := ts.Create("b", 0, 1)
	if ts.Current() != a {
		t.Errorf("first tunable should start selected")
	}
	ts.SelectNext()
	if ts.Current() != b {
		t.Errorf("next should select b")
	}
	ts.SelectNext()
	if ts.Current() != a {
		t.Errorf("next should wrap to a")
	}
	ts.SelectPrev()
	if ts.Current() != b {
		t.Errorf("prev should wrap to b")
	}
}

func TestGains(t *testing.T) {
	var ts Tunables
	g := ts.CreateGains("distance", pid.Gains{KP: 4, KI: 0.5, KD: 1}, 0.5)

	g.KI.Add(2)
	got := g.Get()
	want := pid.Gains{KP: 4, KI: 0.6, KD: 1}
	if math.Abs(got.KP-want.KP) > 1e-9 || math.Abs(got.KI-want.KI) > 1e-9 || math.Abs(got.KD-want.KD) > 1e-9 {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if ts.Current() != g.KP {
		t.Errorf("kp should be registered first")
	}
}
