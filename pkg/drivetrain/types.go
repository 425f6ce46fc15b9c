package drivetrain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidCommand is returned for out-of-range directions, sides or powers.
var ErrInvalidCommand = errors.New("drivetrain: invalid command")

type Side uint8

const (
	Left Side = iota
	Right
)

// Sides lists both drive sides in a fixed order.
var Sides = [2]Side{Left, Right}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func (s Side) valid() bool {
	return s == Left || s == Right
}

type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// sign returns +1 for Forward and -1 for Reverse.
func (d Direction) sign() (float64, error) {
	switch d {
	case Forward:
		return 1, nil
	case Reverse:
		return -1, nil
	}
	return 0, errors.Wrapf(ErrInvalidCommand, "unknown %v", d)
}

type TurnDirection uint8

const (
	TurnLeft TurnDirection = iota
	TurnRight
)

func (d TurnDirection) String() string {
	switch d {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return fmt.Sprintf("turn(%d)", uint8(d))
	}
}

type StopMode uint8

const (
	Brake StopMode = iota
	Coast
	Hold
)

func (m StopMode) String() string {
	switch m {
	case Brake:
		return "brake"
	case Coast:
		return "coast"
	case Hold:
		return "hold"
	default:
		return fmt.Sprintf("stop(%d)", uint8(m))
	}
}

func (m StopMode) valid() bool {
	return m <= Hold
}

// Command is a single motor command: a direction and a magnitude in percent.
type Command struct {
	Direction Direction
	Percent   float64
}

// CommandFromSigned converts a signed percentage into a Command.
func CommandFromSigned(percent float64) Command {
	if percent < 0 {
		return Command{Direction: Reverse, Percent: -percent}
	}
	return Command{Direction: Forward, Percent: percent}
}

// Signed returns the command as a signed percentage.
func (c Command) Signed() float64 {
	if c.Direction == Reverse {
		return -c.Percent
	}
	return c.Percent
}

func (c Command) String() string {
	return fmt.Sprintf("%v %.1f%%", c.Direction, c.Percent)
}
