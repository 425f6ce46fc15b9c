package motion

import (
	"context"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

// Position drives forward until the absolute position sensor reports that the
// robot is within tolerance of target.  It does not steer; turn to face the
// target first.
func Position(ctx context.Context, act drivetrain.Actuator, pos sensors.Positioner, target vector.Vector, opts Options) (Report, error) {
	const name = "position"
	if err := opts.Validate(); err != nil {
		return Report{}, invalid(name, err)
	}
	if len(target) != 2 || !finite(target[0]) || !finite(target[1]) {
		return Report{}, invalid(name, errors.Errorf("target %v is not a 2D point", target))
	}

	l := &loop{
		name: name,
		opts: opts,
		act:  act,
		ctrl: pid.NewWithWindupGuard(opts.Gains, opts.windupGuard()),
		readError: func() (float64, error) {
			here, err := CurrentPosition(pos)
			if err != nil {
				return 0, err
			}
			return target.Sub(here).Magnitude(), nil
		},
		apply: applyDrive(act),
	}
	return l.run(ctx)
}

// CurrentPosition reads the position sensor as a vector.
func CurrentPosition(pos sensors.Positioner) (vector.Vector, error) {
	x, y, err := pos.AbsolutePosition()
	if err != nil {
		return nil, sensors.Fault("position", err)
	}
	if err := sensors.CheckPlausible("position", x, 0); err != nil {
		return nil, err
	}
	if err := sensors.CheckPlausible("position", y, 0); err != nil {
		return nil, err
	}
	return vector.Vector{x, y}, nil
}
