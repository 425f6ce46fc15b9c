package motion_test

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
)

var errBus = errors.New("bus error")

// scriptedEncoders reports a driven distance that is a function of the tick
// number.  Both sides report the same rotation; a tick ends when the right
// side is read.
type scriptedEncoders struct {
	lock   sync.Mutex
	geom   chassis.Geometry
	inches func(tick int) float64
	failAt int // tick on which reads fail, or -1
	tick   int
	resets int
}

func newScriptedEncoders(inches func(int) float64) *scriptedEncoders {
	return &scriptedEncoders{geom: chassis.Default(), inches: inches, failAt: -1}
}

func (s *scriptedEncoders) MotorRotationDegrees(side drivetrain.Side) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	tick := s.tick
	if side == drivetrain.Right {
		s.tick++
	}
	if tick == s.failAt {
		return 0, errBus
	}
	deg := s.geom.RotationForInches(s.inches(tick))
	if side == drivetrain.Right {
		// The right motors are mounted the other way round.
		deg = -deg
	}
	return deg, nil
}

func (s *scriptedEncoders) ResetMotorPosition(side drivetrain.Side) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.resets++
	return nil
}

func (s *scriptedEncoders) Resets() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.resets
}

// scriptedIMU reports a heading that is a function of the number of reads
// since the last Zero.
type scriptedIMU struct {
	lock        sync.Mutex
	heading     func(read int) float64
	reads       int
	calibrating int
	zeros       int
}

func (s *scriptedIMU) HeadingDegrees() (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	h := s.heading(s.reads)
	s.reads++
	return h, nil
}

func (s *scriptedIMU) RateDegreesPerSec() (float64, error) {
	return 0, nil
}

func (s *scriptedIMU) IsCalibrating() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.calibrating > 0 {
		s.calibrating--
		return true
	}
	return false
}

func (s *scriptedIMU) Zero() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.zeros++
	s.reads = 0
	return nil
}

type scriptedPositioner struct {
	position func(read int) (x, y float64)
	reads    int
}

func (s *scriptedPositioner) AbsolutePosition() (float64, float64, error) {
	x, y := s.position(s.reads)
	s.reads++
	return x, y, nil
}
