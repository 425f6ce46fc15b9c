package teleop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
)

const leaseOwner = "teleop"

// Input is the operator's controller, polled once per tick.
type Input interface {
	AxisPercent(axis int) (int, error)
}

// Controller runs the mixer on a fixed period against the shared drivetrain.
// It holds the drivetrain lease only while enabled.
type Controller struct {
	mixer   *Mixer
	input   Input
	arbiter *drivetrain.Arbiter

	enabled atomic.Bool

	// Owned by the loop goroutine.
	lease      *drivetrain.Lease
	wasEnabled bool
}

func NewController(cfg Config, input Input, arbiter *drivetrain.Arbiter) (*Controller, error) {
	mixer, err := NewMixer(cfg)
	if err != nil {
		return nil, err
	}
	return &Controller{
		mixer:   mixer,
		input:   input,
		arbiter: arbiter,
	}, nil
}

// SetEnabled gates the loop.  Disabling takes effect on the next tick, which
// stops the drivetrain and hands the lease back.
func (c *Controller) SetEnabled(enabled bool) {
	if c.enabled.Swap(enabled) != enabled {
		fmt.Printf("TELEOP: enabled=%v\n", enabled)
	}
}

func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// Loop ticks until the context is done.  The caller must have done wg.Add(1).
func (c *Controller) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer fmt.Println("TELEOP: loop exited")
	defer c.relinquish()

	ticker := time.NewTicker(c.mixer.Config().Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := c.Step(now); err != nil {
				fmt.Println("TELEOP: skipped tick:", err)
			}
		}
	}
}

// Step runs a single tick.  It is exported so that callers with their own
// scheduling (and tests) can drive the controller directly; it must not be
// called concurrently with Loop.
func (c *Controller) Step(now time.Time) error {
	if !c.enabled.Load() {
		if c.wasEnabled {
			c.wasEnabled = false
			c.relinquish()
			if c.mixer.Config().ResetOnDisable {
				c.mixer.Reset()
			}
		}
		return nil
	}
	if !c.wasEnabled {
		c.wasEnabled = true
		// Don't count the time spent disabled as ramp-up time.
		for _, side := range drivetrain.Sides {
			c.mixer.sides[side].LastTick = time.Time{}
		}
	}

	if c.lease == nil {
		lease, ok := c.arbiter.TryAcquire(leaseOwner)
		if !ok {
			if c.mixer.Config().Verbose {
				fmt.Printf("TELEOP: drivetrain held by %s\n", c.arbiter.Owner())
			}
			return nil
		}
		c.lease = lease
	}

	frame, err := c.readFrame()
	if err != nil {
		return err
	}
	out, err := c.mixer.TickAt(frame, now, c.lease)
	if c.mixer.Config().Verbose {
		fmt.Printf("TELEOP: in=%+v L=%.1f R=%.1f ceiling=%.1f/%.1f\n",
			frame, out.Clamped[drivetrain.Left], out.Clamped[drivetrain.Right],
			c.mixer.State(drivetrain.Left).Velocity, c.mixer.State(drivetrain.Right).Velocity)
	}
	return err
}

// Mixer exposes the ramp state for inspection.
func (c *Controller) Mixer() *Mixer {
	return c.mixer
}

func (c *Controller) readFrame() (Frame, error) {
	cfg := c.mixer.Config()
	fwd, err := c.input.AxisPercent(cfg.ForwardAxis)
	if err != nil {
		return Frame{}, errors.Wrap(err, "reading forward axis")
	}
	turn, err := c.input.AxisPercent(cfg.TurnAxis)
	if err != nil {
		return Frame{}, errors.Wrap(err, "reading turn axis")
	}
	return Frame{Forward: fwd, Turn: turn}, nil
}

func (c *Controller) relinquish() {
	if c.lease == nil {
		return
	}
	if err := c.lease.ReleaseWithStop(drivetrain.Coast); err != nil {
		fmt.Println("TELEOP: failed to stop drivetrain on release:", err)
	}
	c.lease = nil
}
