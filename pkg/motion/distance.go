package motion

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

// Distance drives straight for targetInches (negative for reverse), measured
// by the wheel encoders, which are reset first.
func Distance(
	ctx context.Context,
	act drivetrain.Actuator,
	enc sensors.Encoders,
	geom chassis.Geometry,
	targetInches float64,
	opts Options,
) (Report, error) {
	const name = "distance"
	if err := opts.Validate(); err != nil {
		return Report{}, invalid(name, err)
	}
	if err := geom.Validate(); err != nil {
		return Report{}, invalid(name, err)
	}
	if !finite(targetInches) {
		return Report{}, invalid(name, errors.Errorf("target %v", targetInches))
	}

	for _, side := range drivetrain.Sides {
		if err := enc.ResetMotorPosition(side); err != nil {
			return Report{}, &ManeuverError{Maneuver: name, Kind: KindSensorFault,
				Err: sensors.Fault("encoders", errors.Wrapf(err, "resetting %v side", side))}
		}
	}

	direction := 1.0
	if targetInches < 0 {
		direction = -1
	}
	goal := math.Abs(targetInches)

	l := &loop{
		name: name,
		opts: opts,
		act:  act,
		ctrl: pid.NewWithWindupGuard(opts.Gains, opts.windupGuard()),
		readError: func() (float64, error) {
			driven, err := DrivenInches(enc, geom)
			if err != nil {
				return 0, err
			}
			return direction * (goal - driven), nil
		},
		apply: applyDrive(act),
	}
	return l.run(ctx)
}

// DrivenInches reads both encoders and converts their mean absolute rotation
// into distance.
func DrivenInches(enc sensors.Encoders, geom chassis.Geometry) (float64, error) {
	var rotations [2]float64
	for _, side := range drivetrain.Sides {
		deg, err := enc.MotorRotationDegrees(side)
		if err != nil {
			return 0, sensors.Fault("encoders", errors.Wrapf(err, "reading %v side", side))
		}
		if err := sensors.CheckPlausible("encoders", deg, 0); err != nil {
			return 0, err
		}
		rotations[side] = deg
	}
	return geom.DrivenInches(chassis.MeanAbsRotation(rotations[:]...)), nil
}
