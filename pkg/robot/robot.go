// Package robot is the mode-control surface of the drive core: it switches
// between joystick teleop and blocking closed-loop maneuvers, making sure
// only one of them commands the drivetrain at a time.
package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"

	"github.com/tigerbot-team/diffdrive/pkg/config"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/motion"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
	"github.com/tigerbot-team/diffdrive/pkg/teleop"
)

// Sensors groups the feedback sources.  Positioner may be nil on robots
// without an absolute position sensor.
type Sensors struct {
	Encoders   sensors.Encoders
	Inertial   sensors.Inertial
	Positioner sensors.Positioner
}

type Robot struct {
	cfg     config.Config
	arbiter *drivetrain.Arbiter
	teleop  *teleop.Controller
	sensors Sensors

	// Observer, if set, sees every maneuver tick.
	Observer motion.Observer

	lock         sync.Mutex
	teleopWanted bool
	maneuvers    int
}

func New(cfg config.Config, motors drivetrain.Motors, input teleop.Input, s Sensors) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.Encoders == nil || s.Inertial == nil {
		return nil, errors.New("robot: encoders and inertial sensor are required")
	}
	arbiter := drivetrain.NewArbiter(drivetrain.New(motors))
	tc, err := teleop.NewController(cfg.Teleop, input, arbiter)
	if err != nil {
		return nil, err
	}
	return &Robot{
		cfg:     cfg,
		arbiter: arbiter,
		teleop:  tc,
		sensors: s,
	}, nil
}

// Loop runs the teleop loop until the context is done.  The caller must
// have done wg.Add(1).
func (r *Robot) Loop(ctx context.Context, wg *sync.WaitGroup) {
	r.teleop.Loop(ctx, wg)
}

func (r *Robot) Teleop() *teleop.Controller {
	return r.teleop
}

func (r *Robot) Arbiter() *drivetrain.Arbiter {
	return r.arbiter
}

// SetTeleopEnabled records the operator's choice.  While a maneuver is
// running teleop stays suspended and the choice applies when it finishes.
func (r *Robot) SetTeleopEnabled(enabled bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.teleopWanted = enabled
	if r.maneuvers == 0 {
		r.teleop.SetEnabled(enabled)
	}
}

// TeleopEnabled reports the operator's choice, not whether teleop is
// currently suspended by a maneuver.
func (r *Robot) TeleopEnabled() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.teleopWanted
}

// ManeuverRunning reports whether any maneuver holds or is waiting for the
// drivetrain.
func (r *Robot) ManeuverRunning() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.maneuvers > 0
}

// RunDistanceManeuver drives straight for targetInches, negative for reverse.
func (r *Robot) RunDistanceManeuver(ctx context.Context, targetInches, tolerance float64, gains pid.Gains) error {
	opts := r.options(r.cfg.Distance, tolerance, gains)
	geom := r.cfg.Chassis.Geometry()
	if err := opts.Validate(); err != nil {
		return &motion.ManeuverError{Maneuver: "distance", Kind: motion.KindInvalidConfiguration, Err: err}
	}
	if err := geom.Validate(); err != nil {
		return &motion.ManeuverError{Maneuver: "distance", Kind: motion.KindInvalidConfiguration, Err: err}
	}
	return r.run(ctx, "distance", func(act drivetrain.Actuator) (motion.Report, error) {
		return motion.Distance(ctx, act, r.sensors.Encoders, geom, targetInches, opts)
	})
}

// RunHeadingManeuver zeroes the inertial sensor once it has calibrated and
// then turns targetDegrees, clockwise positive.
func (r *Robot) RunHeadingManeuver(ctx context.Context, targetDegrees, tolerance float64, gains pid.Gains) error {
	opts := r.options(r.cfg.Heading, tolerance, gains)
	if err := opts.Validate(); err != nil {
		return &motion.ManeuverError{Maneuver: "heading", Kind: motion.KindInvalidConfiguration, Err: err}
	}
	return r.run(ctx, "heading", func(act drivetrain.Actuator) (motion.Report, error) {
		return motion.Heading(ctx, act, r.sensors.Inertial, targetDegrees, opts)
	})
}

// RunPositionManeuver drives until the position sensor reads within
// tolerance of (x, y).  The robot must already face the target.
func (r *Robot) RunPositionManeuver(ctx context.Context, x, y, tolerance float64, gains pid.Gains) error {
	opts := r.options(r.cfg.Position, tolerance, gains)
	if r.sensors.Positioner == nil {
		return &motion.ManeuverError{Maneuver: "position", Kind: motion.KindInvalidConfiguration,
			Err: errors.New("no position sensor")}
	}
	if err := opts.Validate(); err != nil {
		return &motion.ManeuverError{Maneuver: "position", Kind: motion.KindInvalidConfiguration, Err: err}
	}
	return r.run(ctx, "position", func(act drivetrain.Actuator) (motion.Report, error) {
		return motion.Position(ctx, act, r.sensors.Positioner, vector.Vector{x, y}, opts)
	})
}

func (r *Robot) options(m config.Maneuver, tolerance float64, gains pid.Gains) motion.Options {
	opts := r.cfg.Options(m)
	opts.Tolerance = tolerance
	opts.Gains = gains
	opts.Observer = r.Observer
	return opts
}

// run suspends teleop, takes the drivetrain, runs the maneuver and leaves
// the drivetrain braked whatever the outcome.
func (r *Robot) run(ctx context.Context, name string, maneuver func(act drivetrain.Actuator) (motion.Report, error)) error {
	r.suspendTeleop()
	defer r.resumeTeleop()

	lease, err := r.arbiter.Acquire(ctx, name)
	if err != nil {
		return &motion.ManeuverError{Maneuver: name, Kind: motion.KindCanceled, Err: err}
	}

	start := time.Now()
	fmt.Printf("ROBOT: %s maneuver started\n", name)
	report, err := maneuver(lease)
	if stopErr := lease.ReleaseWithStop(drivetrain.Brake); stopErr != nil {
		fmt.Printf("ROBOT: failed to brake after %s maneuver: %v\n", name, stopErr)
		if err == nil {
			err = &motion.ManeuverError{Maneuver: name, Kind: motion.KindActuator, Tick: report.Ticks,
				LastError: report.FinalError, Err: errors.Wrap(stopErr, "braking")}
		}
	}
	if err != nil {
		fmt.Printf("ROBOT: %v\n", err)
		return err
	}
	fmt.Printf("ROBOT: %s maneuver done in %d ticks (%v), final error %.3f\n",
		name, report.Ticks, time.Since(start).Round(time.Millisecond), report.FinalError)
	return nil
}

func (r *Robot) suspendTeleop() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.maneuvers++
	r.teleop.SetEnabled(false)
}

func (r *Robot) resumeTeleop() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.maneuvers--
	if r.maneuvers == 0 {
		r.teleop.SetEnabled(r.teleopWanted)
	}
}
