package drivetrain

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Motors is the per-side motor hardware, implemented by the real motor
// controller and by the simulator.
type Motors interface {
	// SetVelocity spins one side at a signed percentage of full speed.
	SetVelocity(side Side, percent float64) error
	StopSide(side Side, mode StopMode) error
}

// Actuator drives the whole chassis.
type Actuator interface {
	Drive(dir Direction, percent float64) error
	Turn(dir TurnDirection, percent float64) error
	Stop(mode StopMode) error
}

// SideActuator drives each side independently.
type SideActuator interface {
	Spin(side Side, dir Direction, percent float64) error
	StopSide(side Side, mode StopMode) error
}

// Drivetrain turns chassis-level commands into per-side motor commands.
type Drivetrain struct {
	motors Motors
}

var (
	_ Actuator     = (*Drivetrain)(nil)
	_ SideActuator = (*Drivetrain)(nil)
)

func New(motors Motors) *Drivetrain {
	return &Drivetrain{motors: motors}
}

func (d *Drivetrain) Drive(dir Direction, percent float64) error {
	sign, err := dir.sign()
	if err != nil {
		return err
	}
	p, err := checkPercent(percent)
	if err != nil {
		return err
	}
	for _, s := range Sides {
		if err := d.motors.SetVelocity(s, sign*p); err != nil {
			return errors.Wrapf(err, "drive %v side", s)
		}
	}
	return nil
}

// Turn spins the chassis in place; turning right runs the left side forward.
func (d *Drivetrain) Turn(dir TurnDirection, percent float64) error {
	var leftSign float64
	switch dir {
	case TurnRight:
		leftSign = 1
	case TurnLeft:
		leftSign = -1
	default:
		return errors.Wrapf(ErrInvalidCommand, "unknown %v", dir)
	}
	p, err := checkPercent(percent)
	if err != nil {
		return err
	}
	if err := d.motors.SetVelocity(Left, leftSign*p); err != nil {
		return errors.Wrap(err, "turn left side")
	}
	if err := d.motors.SetVelocity(Right, -leftSign*p); err != nil {
		return errors.Wrap(err, "turn right side")
	}
	return nil
}

func (d *Drivetrain) Stop(mode StopMode) error {
	var firstErr error
	for _, s := range Sides {
		// Always try to stop both sides, even if one fails.
		if err := d.StopSide(s, mode); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Drivetrain) Spin(side Side, dir Direction, percent float64) error {
	if !side.valid() {
		return errors.Wrapf(ErrInvalidCommand, "unknown %v", side)
	}
	sign, err := dir.sign()
	if err != nil {
		return err
	}
	p, err := checkPercent(percent)
	if err != nil {
		return err
	}
	return errors.Wrapf(d.motors.SetVelocity(side, sign*p), "spin %v side", side)
}

func (d *Drivetrain) StopSide(side Side, mode StopMode) error {
	if !side.valid() {
		return errors.Wrapf(ErrInvalidCommand, "unknown %v", side)
	}
	if !mode.valid() {
		return errors.Wrapf(ErrInvalidCommand, "unknown %v", mode)
	}
	return errors.Wrapf(d.motors.StopSide(side, mode), "stop %v side", side)
}

func checkPercent(percent float64) (float64, error) {
	if math.IsNaN(percent) || percent < 0 {
		return 0, errors.Wrapf(ErrInvalidCommand, "power %v%%", percent)
	}
	return Clamp(percent, 0, 100), nil
}

// Clamp limits v to the range [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
