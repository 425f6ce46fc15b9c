package motion

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/angle"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

const calibrationPoll = 10 * time.Millisecond

// HeadingController turns to headings measured relative to the robot's
// heading when the controller was created.
type HeadingController struct {
	imu sensors.Inertial

	// ShortestPath maps each target onto the nearest equivalent heading, so
	// that turning to 270 turns 90 degrees left.
	ShortestPath bool
}

// NewHeadingController waits for the inertial sensor to finish calibrating
// and then zeroes it.
func NewHeadingController(ctx context.Context, imu sensors.Inertial) (*HeadingController, error) {
	if err := sensors.WaitCalibrated(ctx, imu, calibrationPoll); err != nil {
		return nil, err
	}
	if err := imu.Zero(); err != nil {
		return nil, sensors.Fault("inertial", errors.Wrap(err, "zeroing"))
	}
	return &HeadingController{imu: imu}, nil
}

// Turn rotates in place until the heading is within tolerance of
// targetDegrees (clockwise positive).
func (h *HeadingController) Turn(ctx context.Context, act drivetrain.Actuator, targetDegrees float64, opts Options) (Report, error) {
	const name = "heading"
	if err := opts.Validate(); err != nil {
		return Report{}, invalid(name, err)
	}
	if !finite(targetDegrees) {
		return Report{}, invalid(name, errors.Errorf("target %v", targetDegrees))
	}

	target := targetDegrees
	if h.ShortestPath {
		current, err := h.heading()
		if err != nil {
			return Report{}, &ManeuverError{Maneuver: name, Kind: KindSensorFault, Err: err}
		}
		target = angle.Nearest(current, targetDegrees)
	}

	l := &loop{
		name: name,
		opts: opts,
		act:  act,
		ctrl: pid.New(opts.Gains),
		readError: func() (float64, error) {
			heading, err := h.heading()
			if err != nil {
				return 0, err
			}
			return target - heading, nil
		},
		apply: applyTurn(act),
	}
	return l.run(ctx)
}

func (h *HeadingController) heading() (float64, error) {
	heading, err := h.imu.HeadingDegrees()
	if err != nil {
		return 0, sensors.Fault("inertial", err)
	}
	return heading, sensors.CheckPlausible("inertial", heading, 0)
}

// Heading is a one-shot turn: it builds a HeadingController (waiting for
// calibration and zeroing the sensor) and turns to targetDegrees.
func Heading(ctx context.Context, act drivetrain.Actuator, imu sensors.Inertial, targetDegrees float64, opts Options) (Report, error) {
	if err := opts.Validate(); err != nil {
		return Report{}, invalid("heading", err)
	}
	h, err := NewHeadingController(ctx, imu)
	if err != nil {
		if errors.Is(err, sensors.ErrSensorFault) {
			return Report{}, &ManeuverError{Maneuver: "heading", Kind: KindSensorFault, Err: err}
		}
		return Report{}, &ManeuverError{Maneuver: "heading", Kind: KindCanceled, Err: err}
	}
	return h.Turn(ctx, act, targetDegrees, opts)
}
