package motion

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/pid"
)

const (
	DefaultPeriod          = 15 * time.Millisecond
	DefaultStallTicks      = 100
	DefaultStallEpsilon    = 0.001
	DefaultMaxPowerPercent = 100
	// DefaultFaultCeiling is the control error magnitude that is treated as a
	// broken sensor rather than a long way to go.
	DefaultFaultCeiling = 10000
)

// Options tune one maneuver.
type Options struct {
	// Tolerance: the maneuver succeeds once |error| drops below this.
	Tolerance float64
	Gains     pid.Gains
	Period    time.Duration

	// The maneuver aborts with ErrStallTimeout if the control error changes
	// by at most StallEpsilon for StallTicks consecutive ticks, or if it runs
	// for longer than MaxDuration (zero means no wall-clock limit).
	StallTicks   int
	StallEpsilon float64
	MaxDuration  time.Duration

	MaxPowerPercent float64

	// Anti-windup for the distance and position maneuvers: the integral is
	// dropped when |error| <= IntegralFloor or |error| > SanityCeiling.
	IntegralFloor float64
	SanityCeiling float64
	// FaultCeiling aborts the maneuver with a sensor fault when |error|
	// exceeds it.
	FaultCeiling float64

	Observer Observer
	Verbose  bool
}

// DefaultOptions fills in everything except the tolerance and gains.  The
// integral floor defaults to the tolerance.
func DefaultOptions(tolerance float64, gains pid.Gains) Options {
	return Options{
		Tolerance:       tolerance,
		Gains:           gains,
		IntegralFloor:   tolerance,
		Period:          DefaultPeriod,
		StallTicks:      DefaultStallTicks,
		StallEpsilon:    DefaultStallEpsilon,
		MaxPowerPercent: DefaultMaxPowerPercent,
		SanityCeiling:   pid.DefaultSanityCeiling,
		FaultCeiling:    DefaultFaultCeiling,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (o Options) Validate() error {
	switch {
	case !(o.Tolerance > 0) || !finite(o.Tolerance):
		return errors.Errorf("tolerance must be positive, not %v", o.Tolerance)
	case !finite(o.Gains.KP) || !finite(o.Gains.KI) || !finite(o.Gains.KD):
		return errors.Errorf("gains must be finite, not %+v", o.Gains)
	case o.Period <= 0:
		return errors.Errorf("period must be positive, not %v", o.Period)
	case o.StallTicks <= 0:
		return errors.Errorf("stall ticks must be positive, not %d", o.StallTicks)
	case o.StallEpsilon < 0 || !finite(o.StallEpsilon):
		return errors.Errorf("stall epsilon must not be negative, not %v", o.StallEpsilon)
	case o.MaxDuration < 0:
		return errors.Errorf("max duration must not be negative, not %v", o.MaxDuration)
	case !(o.MaxPowerPercent > 0) || o.MaxPowerPercent > 100:
		return errors.Errorf("max power must be in (0, 100], not %v", o.MaxPowerPercent)
	case o.IntegralFloor < 0 || !finite(o.IntegralFloor):
		return errors.Errorf("integral floor must not be negative, not %v", o.IntegralFloor)
	case o.SanityCeiling < 0 || !finite(o.SanityCeiling):
		return errors.Errorf("sanity ceiling must not be negative, not %v", o.SanityCeiling)
	case o.FaultCeiling < 0 || math.IsNaN(o.FaultCeiling):
		return errors.Errorf("fault ceiling must not be negative, not %v", o.FaultCeiling)
	}
	return nil
}

func (o Options) windupGuard() pid.WindupGuard {
	return pid.WindupGuard{Floor: o.IntegralFloor, Ceiling: o.SanityCeiling}
}

// Sample is one tick of a maneuver, as seen by an Observer.
type Sample struct {
	Maneuver string
	Tick     int
	Elapsed  time.Duration
	Error    float64
	Terms    pid.Terms
	// Power is the signed percentage sent to the drivetrain after limiting.
	Power float64
}

// Observer is told about every tick.  It is called from the maneuver's
// goroutine and must not block.
type Observer interface {
	Observe(Sample)
}

type ObserverFunc func(Sample)

func (f ObserverFunc) Observe(s Sample) {
	f(s)
}

// Report summarises a finished maneuver.
type Report struct {
	Ticks      int
	FinalError float64
	Elapsed    time.Duration
}
