package motion

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrStallTimeout         = errors.New("stall timeout")
	ErrCanceled             = errors.New("maneuver canceled")
	ErrActuator             = errors.New("drivetrain command failed")
)

type Kind int

const (
	KindInvalidConfiguration Kind = iota
	KindSensorFault
	KindStallTimeout
	KindCanceled
	KindActuator
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid configuration"
	case KindSensorFault:
		return "sensor fault"
	case KindStallTimeout:
		return "stall timeout"
	case KindCanceled:
		return "canceled"
	case KindActuator:
		return "actuator failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidConfiguration:
		return ErrInvalidConfiguration
	case KindSensorFault:
		return sensors.ErrSensorFault
	case KindStallTimeout:
		return ErrStallTimeout
	case KindCanceled:
		return ErrCanceled
	case KindActuator:
		return ErrActuator
	}
	return nil
}

// ManeuverError is returned when a maneuver is rejected or aborted.  It
// matches the sentinel for its Kind with errors.Is and unwraps to the
// underlying cause.
type ManeuverError struct {
	Maneuver string
	Kind     Kind
	// Tick is the tick on which the maneuver stopped; LastError is the
	// control error seen on that tick.
	Tick      int
	LastError float64
	Err       error
}

func (e *ManeuverError) Error() string {
	if e.Kind == KindInvalidConfiguration {
		return fmt.Sprintf("%s maneuver rejected: %v", e.Maneuver, e.Err)
	}
	return fmt.Sprintf("%s maneuver aborted on tick %d (error %.3f): %v: %v",
		e.Maneuver, e.Tick, e.LastError, e.Kind, e.Err)
}

func (e *ManeuverError) Unwrap() error {
	return e.Err
}

func (e *ManeuverError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func invalid(maneuver string, err error) error {
	return &ManeuverError{Maneuver: maneuver, Kind: KindInvalidConfiguration, Err: err}
}
