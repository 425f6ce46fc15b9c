// Package teleop turns two joystick axes into ramp-limited, deadband-filtered
// left/right drive commands.
package teleop

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
)

// Frame is one sample of the operator's sticks, in percent.
type Frame struct {
	Forward int
	Turn    int
}

func (f Frame) clamped() Frame {
	return Frame{
		Forward: drivetrain.Clamp(f.Forward, -100, 100),
		Turn:    drivetrain.Clamp(f.Turn, -100, 100),
	}
}

// Raw mixes the frame into unramped side commands.
func (f Frame) Raw() (left, right float64) {
	f = f.clamped()
	return float64(f.Forward + f.Turn), float64(f.Forward - f.Turn)
}

// RampState is the per-side state carried between ticks.
type RampState struct {
	// Velocity is the ramp ceiling: the largest magnitude the side may be
	// commanded to right now.
	Velocity float64
	LastTick time.Time
	// MustStop is set while the side is being actively driven.
	MustStop bool
}

// Output is what one tick decided for each side.
type Output struct {
	Clamped [2]float64
	Stopped [2]bool
	Driven  [2]bool
}

// Mixer owns the ramp state of both sides.  It is not safe for concurrent use;
// the Controller is its only caller in normal operation.
type Mixer struct {
	cfg   Config
	sides [2]RampState
}

func NewMixer(cfg Config) (*Mixer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mixer{cfg: cfg}, nil
}

func (m *Mixer) Config() Config {
	return m.cfg
}

// State returns a copy of one side's ramp state.
func (m *Mixer) State(side drivetrain.Side) RampState {
	return m.sides[side]
}

// Reset returns both sides to a stopped, zero-ceiling state.
func (m *Mixer) Reset() {
	m.sides = [2]RampState{}
}

// Tick evaluates one period with the given elapsed time.  A side whose
// actuator call fails keeps its previous state; the first error is returned.
func (m *Mixer) Tick(frame Frame, elapsedSeconds float64, act drivetrain.SideActuator) (Output, error) {
	return m.tick(frame, [2]float64{elapsedSeconds, elapsedSeconds}, time.Time{}, act)
}

// TickAt is Tick with the elapsed time measured per side from the last
// successful tick.  The first tick of a side assumes one configured period.
func (m *Mixer) TickAt(frame Frame, now time.Time, act drivetrain.SideActuator) (Output, error) {
	var elapsed [2]float64
	for _, side := range drivetrain.Sides {
		last := m.sides[side].LastTick
		if last.IsZero() {
			elapsed[side] = m.cfg.Period.Seconds()
			continue
		}
		elapsed[side] = now.Sub(last).Seconds()
	}
	return m.tick(frame, elapsed, now, act)
}

func (m *Mixer) tick(frame Frame, elapsed [2]float64, now time.Time, act drivetrain.SideActuator) (Output, error) {
	left, right := frame.Raw()
	raw := m.limitTurn([2]float64{left, right})

	var out Output
	var firstErr error
	for _, side := range drivetrain.Sides {
		next, clamped, action := m.step(m.sides[side], raw[side], elapsed[side])
		out.Clamped[side] = clamped

		var err error
		switch action {
		case actionStop:
			err = act.StopSide(side, drivetrain.Coast)
			out.Stopped[side] = err == nil
		case actionDrive:
			cmd := drivetrain.CommandFromSigned(clamped)
			err = act.Spin(side, cmd.Direction, cmd.Percent)
			out.Driven[side] = err == nil
		}
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "%v side", side)
			}
			continue
		}
		if !now.IsZero() {
			next.LastTick = now
		}
		m.sides[side] = next
	}
	return out, firstErr
}

// limitTurn caps both sides when they are driven in opposite directions.
func (m *Mixer) limitTurn(raw [2]float64) [2]float64 {
	if m.cfg.TurnLimit <= 0 {
		return raw
	}
	if (raw[0] > 0 && raw[1] < 0) || (raw[0] < 0 && raw[1] > 0) {
		for i, r := range raw {
			raw[i] = math.Copysign(math.Min(math.Abs(r), m.cfg.TurnLimit), r)
		}
	}
	return raw
}

type action int

const (
	actionNone action = iota
	actionStop
	actionDrive
)

func (m *Mixer) step(s RampState, raw, elapsed float64) (RampState, float64, action) {
	if elapsed < 0 || math.IsNaN(elapsed) {
		elapsed = 0
	}
	// The ceiling only grows while the side is in use; an idle side holds
	// it at zero so a push after a pause ramps from standstill.
	if math.Abs(raw) > m.cfg.DeadbandThreshold || s.MustStop {
		s.Velocity += m.cfg.AccelerationPercentPerSec * elapsed
	} else {
		s.Velocity = 0
	}
	clamped := math.Copysign(math.Min(math.Abs(raw), s.Velocity), raw)
	if raw == 0 {
		clamped = 0
	}

	if math.Abs(clamped) <= m.cfg.DeadbandThreshold {
		if !s.MustStop {
			return s, clamped, actionNone
		}
		s.MustStop = false
		s.Velocity = 0
		return s, clamped, actionStop
	}
	s.MustStop = true
	return s, clamped, actionDrive
}
