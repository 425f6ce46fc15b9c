// Package pid is the discrete PID core shared by the motion controllers.
//
// The controller is evaluated once per fixed tick and does not scale by the
// tick period: the integral is the plain sum of errors and the derivative is
// the difference from the previous tick's error.  Gains are therefore tuned
// for a particular tick rate.
package pid

import "math"

// DefaultSanityCeiling is the error magnitude above which the integral is
// discarded; anything larger is treated as a bad reading rather than a real
// distance to go.
const DefaultSanityCeiling = 1000

type Gains struct {
	KP float64 `yaml:"kp"`
	KI float64 `yaml:"ki"`
	KD float64 `yaml:"kd"`
}

// WindupGuard zeroes the accumulated integral when the error is at or below
// Floor (already arrived) or above Ceiling (unreasonable reading).  A Ceiling
// of zero disables the upper check.
type WindupGuard struct {
	Floor   float64
	Ceiling float64
}

func (w WindupGuard) trips(err float64) bool {
	mag := math.Abs(err)
	if mag <= w.Floor {
		return true
	}
	return w.Ceiling > 0 && mag > w.Ceiling
}

// Terms is the breakdown of one update, for logging and tracing.
type Terms struct {
	Error    float64
	Integral float64
	P, I, D  float64
	Output   float64
}

type Controller struct {
	Gains Gains

	guard    *WindupGuard
	integral float64
	prevErr  float64
	last     Terms
}

func New(gains Gains) *Controller {
	return &Controller{Gains: gains}
}

// NewWithWindupGuard returns a controller that applies the given anti-windup
// policy on every update.
func NewWithWindupGuard(gains Gains, guard WindupGuard) *Controller {
	c := New(gains)
	c.guard = &guard
	return c
}

// Update feeds one tick's error and returns the controller output.
func (c *Controller) Update(err float64) float64 {
	c.integral += err
	if c.guard != nil && c.guard.trips(err) {
		c.integral = 0
	}
	derivative := err - c.prevErr
	c.prevErr = err

	p := c.Gains.KP * err
	i := c.Gains.KI * c.integral
	d := c.Gains.KD * derivative
	c.last = Terms{
		Error:    err,
		Integral: c.integral,
		P:        p,
		I:        i,
		D:        d,
		Output:   p + i + d,
	}
	return c.last.Output
}

// Integral returns the accumulated integral.
func (c *Controller) Integral() float64 {
	return c.integral
}

// PreviousError returns the error passed to the last Update.
func (c *Controller) PreviousError() float64 {
	return c.prevErr
}

// Snapshot returns the breakdown of the most recent Update.
func (c *Controller) Snapshot() Terms {
	return c.last
}

// Reset clears integral and derivative state; gains are kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevErr = 0
	c.last = Terms{}
}
