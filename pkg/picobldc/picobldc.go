// Package picobldc drives a pair of Pico-BLDC boards, one per side of the
// chassis, and reads back their motor encoders.
package picobldc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

// MaxSpeed is the velocity register value for full power.
const MaxSpeed = math.MaxInt16

var ErrBadCountsPerRev = errors.New("pico-bldc: encoder counts per rev must be positive")

type Config struct {
	Bus                 string
	LeftAddress         int
	RightAddress        int
	EncoderCountsPerRev float64
}

// Controller is both sides' boards.  The right side's motors are mounted
// mirrored, so its speeds and counts are negated.
type Controller struct {
	lock         sync.Mutex
	boards       [2]*Board
	trackers     [2]*DistanceTracker
	countsPerRev float64
}

var (
	_ drivetrain.Motors = (*Controller)(nil)
	_ sensors.Encoders  = (*Controller)(nil)
)

func Open(cfg Config) (*Controller, error) {
	left, err := OpenBoard("left", cfg.Bus, cfg.LeftAddress)
	if err != nil {
		return nil, err
	}
	right, err := OpenBoard("right", cfg.Bus, cfg.RightAddress)
	if err != nil {
		_ = left.Close()
		return nil, err
	}
	c, err := NewController(left, right, cfg.EncoderCountsPerRev)
	if err != nil {
		_ = left.Close()
		_ = right.Close()
		return nil, err
	}
	return c, nil
}

func NewController(left, right *Board, countsPerRev float64) (*Controller, error) {
	if !(countsPerRev > 0) {
		return nil, errors.Wrapf(ErrBadCountsPerRev, "got %v", countsPerRev)
	}
	c := &Controller{
		boards:       [2]*Board{left, right},
		countsPerRev: countsPerRev,
	}
	for i, b := range c.boards {
		c.trackers[i] = NewDistanceTracker(b)
		if err := c.trackers[i].Poll(); err != nil {
			return nil, errors.Wrapf(err, "priming %s encoders", b.name)
		}
	}
	return c, nil
}

func (c *Controller) SetVelocity(side drivetrain.Side, percent float64) error {
	b, err := c.board(side)
	if err != nil {
		return err
	}
	if math.IsNaN(percent) {
		return errors.Wrapf(drivetrain.ErrInvalidCommand, "speed %v%%", percent)
	}
	speed := int16(math.Round(drivetrain.Clamp(percent, -100, 100) / 100 * MaxSpeed))
	if side == drivetrain.Right {
		speed = -speed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return b.SetMotorSpeeds(speed, speed)
}

// StopSide holds zero speed under power for Brake and Hold; Coast drops the
// board out of run mode.
func (c *Controller) StopSide(side drivetrain.Side, mode drivetrain.StopMode) error {
	b, err := c.board(side)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	switch mode {
	case drivetrain.Brake, drivetrain.Hold:
		return b.SetMotorSpeeds(0, 0)
	case drivetrain.Coast:
		return b.Freewheel()
	}
	return errors.Wrapf(drivetrain.ErrInvalidCommand, "unknown %v", mode)
}

func (c *Controller) MotorRotationDegrees(side drivetrain.Side) (float64, error) {
	if _, err := c.board(side); err != nil {
		return 0, err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	t := c.trackers[side]
	if err := t.Poll(); err != nil {
		return 0, sensors.Fault(fmt.Sprintf("%v encoders", side), err)
	}
	deg := t.MeanCounts() / c.countsPerRev * 360
	if side == drivetrain.Right {
		deg = -deg
	}
	return deg, nil
}

func (c *Controller) ResetMotorPosition(side drivetrain.Side) error {
	if _, err := c.board(side); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	t := c.trackers[side]
	if err := t.Poll(); err != nil {
		return sensors.Fault(fmt.Sprintf("%v encoders", side), err)
	}
	t.Zero()
	return nil
}

// SetWatchdog makes both boards stop their motors if they are not written
// to within timeout.  Zero disables the watchdog.
func (c *Controller) SetWatchdog(timeout time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, b := range c.boards {
		if err := b.SetWatchdog(timeout); err != nil {
			return err
		}
	}
	return nil
}

// Boards returns the left and right boards for diagnostics.
func (c *Controller) Boards() (left, right *Board) {
	return c.boards[drivetrain.Left], c.boards[drivetrain.Right]
}

// BattVolts reads the supply voltage from the left board.
func (c *Controller) BattVolts() (float32, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.boards[drivetrain.Left].BattVolts()
}

func (c *Controller) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	var firstErr error
	for _, b := range c.boards {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Controller) board(side drivetrain.Side) (*Board, error) {
	switch side {
	case drivetrain.Left, drivetrain.Right:
		return c.boards[side], nil
	}
	return nil, errors.Wrapf(drivetrain.ErrInvalidCommand, "unknown %v", side)
}
