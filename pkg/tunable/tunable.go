// Package tunable holds values the operator can nudge from the joystick
// while the robot runs, for tuning maneuver gains on the field.
package tunable

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tigerbot-team/diffdrive/pkg/pid"
)

type Tunable struct {
	Name string
	// Step is the change per Add(1).
	Step float64
	bits atomic.Uint64
}

func (t *Tunable) Add(steps int) {
	for {
		old := t.bits.Load()
		v := math.Float64frombits(old) + float64(steps)*t.Step
		if v < 0 {
			v = 0
		}
		if t.bits.CompareAndSwap(old, math.Float64bits(v)) {
			fmt.Printf("TUNE: %s = %.4g\n", t.Name, v)
			return
		}
	}
}

func (t *Tunable) Get() float64 {
	return math.Float64frombits(t.bits.Load())
}

func (t *Tunable) Set(v float64) {
	t.bits.Store(math.Float64bits(v))
}

type Tunables struct {
	lock     sync.Mutex
	all      []*Tunable
	selected int
}

func (t *Tunables) Create(name string, value, step float64) *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	newTunable := &Tunable{Name: name, Step: step}
	newTunable.Set(value)
	t.all = append(t.all, newTunable)
	return newTunable
}

func (t *Tunables) SelectNext() {
	t.move(1)
}

func (t *Tunables) SelectPrev() {
	t.move(-1)
}

func (t *Tunables) move(delta int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return
	}
	t.selected = (t.selected + delta + len(t.all)) % len(t.all)
	cur := t.all[t.selected]
	fmt.Printf("TUNE: %s selected, value %.4g\n", cur.Name, cur.Get())
}

// Current returns the selected tunable, or nil if there are none.
func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return nil
	}
	return t.all[t.selected]
}

// Gains is a PID gain set backed by three tunables.
type Gains struct {
	KP, KI, KD *Tunable
}

// CreateGains registers <prefix>-kp, -ki and -kd starting from initial.
func (t *Tunables) CreateGains(prefix string, initial pid.Gains, step float64) Gains {
	return Gains{
		KP: t.Create(prefix+"-kp", initial.KP, step),
		KI: t.Create(prefix+"-ki", initial.KI, step/10),
		KD: t.Create(prefix+"-kd", initial.KD, step),
	}
}

func (g Gains) Get() pid.Gains {
	return pid.Gains{KP: g.KP.Get(), KI: g.KI.Get(), KD: g.KD.Get()}
}
