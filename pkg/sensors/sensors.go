// Package sensors defines the feedback sources the motion controllers poll:
// wheel encoders, an inertial heading sensor and an absolute position sensor.
// Readings are never cached here; every call goes to the device.
package sensors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
)

// ErrSensorFault is the root of all feedback read failures and implausible
// readings.
var ErrSensorFault = errors.New("sensor fault")

type Encoders interface {
	// MotorRotationDegrees returns the accumulated rotation of one side's
	// motors since the last reset.
	MotorRotationDegrees(side drivetrain.Side) (float64, error)
	ResetMotorPosition(side drivetrain.Side) error
}

type Inertial interface {
	// HeadingDegrees returns the continuous (unwrapped) rotation since the
	// last Zero, clockwise positive.
	HeadingDegrees() (float64, error)
	RateDegreesPerSec() (float64, error)
	IsCalibrating() bool
	Zero() error
}

type Positioner interface {
	AbsolutePosition() (x, y float64, err error)
}

// Fault wraps a read error from the named source as a sensor fault.
func Fault(source string, err error) error {
	if err == nil {
		return nil
	}
	return &FaultError{Source: source, Err: err}
}

// FaultError records which sensor failed.
type FaultError struct {
	Source string
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("sensor fault: %s: %v", e.Source, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

func (e *FaultError) Is(target error) bool {
	return target == ErrSensorFault
}

// CheckPlausible returns a sensor fault if value is NaN, infinite or larger
// in magnitude than ceiling.  A ceiling <= 0 disables the magnitude check.
func CheckPlausible(source string, value, ceiling float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Fault(source, errors.Errorf("non-finite reading %v", value))
	}
	if ceiling > 0 && math.Abs(value) > ceiling {
		return Fault(source, errors.Errorf("reading %.2f exceeds sanity ceiling %.2f", value, ceiling))
	}
	return nil
}

// WaitCalibrated blocks until the inertial sensor reports that it has
// finished calibrating, polling at the given interval.
func WaitCalibrated(ctx context.Context, imu Inertial, poll time.Duration) error {
	lastPrint := time.Now()
	for imu.IsCalibrating() {
		if time.Since(lastPrint) > time.Second {
			fmt.Println("Waiting for inertial sensor to calibrate...")
			lastPrint = time.Now()
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for inertial calibration")
		case <-time.After(poll):
		}
	}
	return nil
}
