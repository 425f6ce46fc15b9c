package sensors

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCheckPlausible(t *testing.T) {
	for _, tc := range []struct {
		value   float64
		ceiling float64
		fault   bool
	}{
		{0, 1000, false},
		{999.9, 1000, false},
		{-1000, 1000, false},
		{1000.1, 1000, true},
		{-5000, 1000, true},
		{math.NaN(), 1000, true},
		{math.Inf(1), 0, true},
		{1e9, 0, false},
	} {
		err := CheckPlausible("test", tc.value, tc.ceiling)
		if tc.fault != errors.Is(err, ErrSensorFault) {
			t.Errorf("CheckPlausible(%v, %v) = %v, expected fault=%v", tc.value, tc.ceiling, err, tc.fault)
		}
	}
}

func TestFaultUnwraps(t *testing.T) {
	cause := errors.New("i2c timeout")
	err := errors.Wrap(Fault("encoder", cause), "distance maneuver")
	if !errors.Is(err, ErrSensorFault) {
		t.Error("expected ErrSensorFault")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
	var fe *FaultError
	if !errors.As(err, &fe) || fe.Source != "encoder" {
		t.Errorf("expected FaultError from encoder, got %v", err)
	}
	if Fault("encoder", nil) != nil {
		t.Error("nil error should not become a fault")
	}
}

type calibratingIMU struct {
	polls int32
	ready int32
}

func (c *calibratingIMU) HeadingDegrees() (float64, error)    { return 0, nil }
func (c *calibratingIMU) RateDegreesPerSec() (float64, error) { return 0, nil }
func (c *calibratingIMU) Zero() error                         { return nil }
func (c *calibratingIMU) IsCalibrating() bool {
	return atomic.AddInt32(&c.polls, 1) <= c.ready
}

func TestWaitCalibrated(t *testing.T) {
	imu := &calibratingIMU{ready: 3}
	if err := WaitCalibrated(context.Background(), imu, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imu.polls != 4 {
		t.Errorf("expected 4 polls, got %d", imu.polls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitCalibrated(ctx, &calibratingIMU{ready: 1000}, time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
