package teleop

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("teleop: invalid configuration")

const (
	DefaultDeadband     = 5
	DefaultPeriod       = 20 * time.Millisecond
	DefaultAcceleration = 85
)

type Config struct {
	// AccelerationPercentPerSec is how fast each side's ramp ceiling grows
	// while the stick is held.
	AccelerationPercentPerSec float64 `yaml:"acceleration-percent-per-sec"`
	// DeadbandThreshold: clamped commands with magnitude at or below this are
	// treated as no input.
	DeadbandThreshold float64 `yaml:"deadband-threshold"`
	// TurnLimit caps each side's magnitude while spinning in place.  Zero
	// disables the limit.
	TurnLimit float64       `yaml:"turn-limit"`
	Period    time.Duration `yaml:"period"`
	// ResetOnDisable clears ramp and latch state when teleop is disabled.
	// Otherwise the state is kept and re-enabling resumes where it left off.
	ResetOnDisable bool `yaml:"reset-on-disable"`

	ForwardAxis int `yaml:"forward-axis"`
	TurnAxis    int `yaml:"turn-axis"`

	// Verbose logs every tick.
	Verbose bool `yaml:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		AccelerationPercentPerSec: DefaultAcceleration,
		DeadbandThreshold:         DefaultDeadband,
		Period:                    DefaultPeriod,
		ForwardAxis:               1,
		TurnAxis:                  3,
	}
}

func (c Config) Validate() error {
	switch {
	case !(c.AccelerationPercentPerSec > 0) || math.IsInf(c.AccelerationPercentPerSec, 0):
		return errors.Wrapf(ErrInvalidConfig, "acceleration must be positive, not %v", c.AccelerationPercentPerSec)
	case c.DeadbandThreshold < 0 || math.IsNaN(c.DeadbandThreshold):
		return errors.Wrapf(ErrInvalidConfig, "deadband must not be negative, not %v", c.DeadbandThreshold)
	case c.TurnLimit < 0 || math.IsNaN(c.TurnLimit):
		return errors.Wrapf(ErrInvalidConfig, "turn limit must not be negative, not %v", c.TurnLimit)
	case c.Period <= 0:
		return errors.Wrapf(ErrInvalidConfig, "period must be positive, not %v", c.Period)
	case c.ForwardAxis < 0 || c.TurnAxis < 0:
		return errors.Wrap(ErrInvalidConfig, "axis numbers must not be negative")
	case c.ForwardAxis == c.TurnAxis:
		return errors.Wrapf(ErrInvalidConfig, "forward and turn both mapped to axis %d", c.ForwardAxis)
	}
	return nil
}
