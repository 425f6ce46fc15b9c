// Package sim is a kinematic model of the differential-drive chassis.  It
// stands in for the motor controller, encoders, inertial sensor and position
// sensor so that teleop and maneuvers can run without hardware.
//
// Headings are clockwise positive with 0 facing +Y, matching the inertial
// sensor on the robot.  Distances are in inches.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

type Source int

const (
	Encoders Source = iota
	Inertial
	Position
)

func (s Source) String() string {
	switch s {
	case Encoders:
		return "encoders"
	case Inertial:
		return "inertial"
	case Position:
		return "position"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

type Config struct {
	Geometry         chassis.Geometry
	TrackWidthInches float64
	// MaxMotorRPM is the motor speed at 100% power.
	MaxMotorRPM     float64
	CalibrationTime time.Duration
	Start           vector.Vector
	StartHeading    float64
}

func DefaultConfig() Config {
	return Config{
		Geometry:         chassis.Default(),
		TrackWidthInches: 11.5,
		MaxMotorRPM:      200,
		CalibrationTime:  0,
		Start:            vector.Vector{0, 0},
	}
}

// Robot is safe for concurrent use.
type Robot struct {
	lock sync.Mutex
	cfg  Config

	power    [2]float64
	stopMode [2]drivetrain.StopMode
	rotation [2]float64

	heading    float64
	headingRef float64
	position   vector.Vector

	sinceStart time.Duration
	stalled    bool
	faults     map[Source]error
}

var (
	_ drivetrain.Motors  = (*Robot)(nil)
	_ sensors.Encoders   = (*Robot)(nil)
	_ sensors.Inertial   = (*Robot)(nil)
	_ sensors.Positioner = (*Robot)(nil)
)

func New(cfg Config) (*Robot, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.TrackWidthInches > 0) || !(cfg.MaxMotorRPM > 0) {
		return nil, errors.Errorf("sim: track width and motor RPM must be positive (%v, %v)",
			cfg.TrackWidthInches, cfg.MaxMotorRPM)
	}
	start := vector.Vector{0, 0}
	if len(cfg.Start) == 2 {
		start = vector.Vector{cfg.Start[0], cfg.Start[1]}
	}
	return &Robot{
		cfg:      cfg,
		heading:  cfg.StartHeading,
		position: start,
		faults:   map[Source]error{},
	}, nil
}

// Step advances the model by dt.
func (r *Robot) Step(dt time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sinceStart += dt
	if r.stalled || dt <= 0 {
		return
	}

	degPerSec := r.cfg.MaxMotorRPM * 360 / 60
	var travel [2]float64
	for _, side := range drivetrain.Sides {
		deg := r.power[side] / 100 * degPerSec * dt.Seconds()
		r.rotation[side] += deg
		travel[side] = r.cfg.Geometry.DrivenInches(deg)
	}

	forward := (travel[drivetrain.Left] + travel[drivetrain.Right]) / 2
	turn := (travel[drivetrain.Left] - travel[drivetrain.Right]) / r.cfg.TrackWidthInches

	// Move along the mean heading over the step.
	mid := (r.heading + turn*90/math.Pi) * math.Pi / 180
	r.position = r.position.Add(vector.Vector{math.Sin(mid), math.Cos(mid)}.Scale(forward))
	r.heading += turn * 180 / math.Pi
}

// Loop steps the model in real time until the context is done.  The caller
// must have done wg.Add(1).
func (r *Robot) Loop(ctx context.Context, wg *sync.WaitGroup, period time.Duration) {
	defer wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Step(now.Sub(last))
			last = now
		}
	}
}

// SetStalled jams the wheels: commands are accepted but nothing moves.
func (r *Robot) SetStalled(stalled bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stalled = stalled
}

// SetFault makes every read from the given source fail with err.  A nil err
// clears the fault.
func (r *Robot) SetFault(source Source, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.faults, source)
		return
	}
	r.faults[source] = err
}

func (r *Robot) fault(source Source) error {
	if err := r.faults[source]; err != nil {
		return errors.Wrapf(err, "sim %v", source)
	}
	return nil
}

// Power returns the signed power currently applied to a side.
func (r *Robot) Power(side drivetrain.Side) float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.power[side]
}

// LastStop returns the mode of the most recent stop on a side.
func (r *Robot) LastStop(side drivetrain.Side) drivetrain.StopMode {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.stopMode[side]
}

// Pose returns the true position and heading, ignoring faults and zeroing.
func (r *Robot) Pose() (vector.Vector, float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return vector.Vector{r.position[0], r.position[1]}, r.heading
}

func (r *Robot) SetVelocity(side drivetrain.Side, percent float64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.power[side] = drivetrain.Clamp(percent, -100, 100)
	return nil
}

func (r *Robot) StopSide(side drivetrain.Side, mode drivetrain.StopMode) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.power[side] = 0
	r.stopMode[side] = mode
	return nil
}

func (r *Robot) MotorRotationDegrees(side drivetrain.Side) (float64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Encoders); err != nil {
		return 0, err
	}
	return r.rotation[side], nil
}

func (r *Robot) ResetMotorPosition(side drivetrain.Side) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Encoders); err != nil {
		return err
	}
	r.rotation[side] = 0
	return nil
}

func (r *Robot) HeadingDegrees() (float64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Inertial); err != nil {
		return 0, err
	}
	return r.heading - r.headingRef, nil
}

func (r *Robot) RateDegreesPerSec() (float64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Inertial); err != nil {
		return 0, err
	}
	if r.stalled {
		return 0, nil
	}
	degPerSec := r.cfg.MaxMotorRPM * 360 / 60
	left := r.cfg.Geometry.DrivenInches(r.power[drivetrain.Left] / 100 * degPerSec)
	right := r.cfg.Geometry.DrivenInches(r.power[drivetrain.Right] / 100 * degPerSec)
	return (left - right) / r.cfg.TrackWidthInches * 180 / math.Pi, nil
}

func (r *Robot) IsCalibrating() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.sinceStart < r.cfg.CalibrationTime
}

func (r *Robot) Zero() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Inertial); err != nil {
		return err
	}
	r.headingRef = r.heading
	return nil
}

func (r *Robot) AbsolutePosition() (float64, float64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fault(Position); err != nil {
		return 0, 0, err
	}
	return r.position[0], r.position[1], nil
}
