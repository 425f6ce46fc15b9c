// Package motion drives the chassis to a target distance, heading or position
// with a blocking PID loop.
//
// Every maneuver follows the same shape: options and target are checked
// before anything moves, then once per period the loop reads feedback,
// computes the control error, decides whether it has arrived, stalled or been
// canceled, and otherwise feeds the error through the PID controller and
// commands the drivetrain.  Whatever the outcome, the drivetrain is braked
// before the call returns.
package motion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

type loop struct {
	name string
	opts Options
	act  drivetrain.Actuator
	ctrl *pid.Controller

	// readError returns this tick's control error.
	readError func() (float64, error)
	// apply sends a signed power to the drivetrain.
	apply func(power float64) error
}

func (l *loop) run(ctx context.Context) (Report, error) {
	start := time.Now()
	ticker := time.NewTicker(l.opts.Period)
	defer ticker.Stop()

	var (
		report  Report
		initial float64
		moved   bool
		lastErr float64
		still   int
	)

	abort := func(kind Kind, cause error) (Report, error) {
		report.Elapsed = time.Since(start)
		if err := l.act.Stop(drivetrain.Brake); err != nil {
			fmt.Printf("MOTION: %s: failed to brake after abort: %v\n", l.name, err)
		}
		merr := &ManeuverError{
			Maneuver:  l.name,
			Kind:      kind,
			Tick:      report.Ticks,
			LastError: report.FinalError,
			Err:       cause,
		}
		fmt.Println("MOTION:", merr)
		return report, merr
	}

	for tick := 0; ; tick++ {
		if err := ctx.Err(); err != nil {
			return abort(KindCanceled, err)
		}

		e, err := l.readError()
		if err == nil {
			err = sensors.CheckPlausible(l.name+" error", e, l.opts.FaultCeiling)
		}
		if err != nil {
			if !errors.Is(err, sensors.ErrSensorFault) {
				err = sensors.Fault(l.name, err)
			}
			return abort(KindSensorFault, err)
		}
		report.Ticks = tick + 1
		report.FinalError = e

		if tick == 0 {
			initial = e
			// Only a zero error may finish on the first tick.
			moved = e == 0
		} else if e != initial {
			moved = true
		}
		if moved && math.Abs(e) < l.opts.Tolerance {
			report.Elapsed = time.Since(start)
			if err := l.act.Stop(drivetrain.Brake); err != nil {
				return report, &ManeuverError{Maneuver: l.name, Kind: KindActuator, Tick: report.Ticks, LastError: e,
					Err: errors.Wrap(err, "braking at target")}
			}
			fmt.Printf("MOTION: %s reached target in %d ticks (%v), error %.3f\n",
				l.name, report.Ticks, report.Elapsed.Round(time.Millisecond), e)
			return report, nil
		}

		if tick > 0 {
			if math.Abs(e-lastErr) <= l.opts.StallEpsilon {
				still++
			} else {
				still = 0
			}
			if still >= l.opts.StallTicks {
				return abort(KindStallTimeout, errors.Errorf("no progress for %d ticks", still))
			}
		}
		lastErr = e
		if l.opts.MaxDuration > 0 && time.Since(start) > l.opts.MaxDuration {
			return abort(KindStallTimeout, errors.Errorf("exceeded time budget %v", l.opts.MaxDuration))
		}

		power := l.ctrl.Update(e)
		power = drivetrain.Clamp(power, -l.opts.MaxPowerPercent, l.opts.MaxPowerPercent)
		if err := l.apply(power); err != nil {
			return abort(KindActuator, err)
		}

		if l.opts.Verbose {
			t := l.ctrl.Snapshot()
			fmt.Printf("MOTION: %s %d Error: %.3f Int: %.1f P: %.2f I: %.2f D: %.2f -> %.2f\n",
				l.name, tick, e, t.Integral, t.P, t.I, t.D, power)
		}
		if l.opts.Observer != nil {
			l.opts.Observer.Observe(Sample{
				Maneuver: l.name,
				Tick:     tick,
				Elapsed:  time.Since(start),
				Error:    e,
				Terms:    l.ctrl.Snapshot(),
				Power:    power,
			})
		}

		select {
		case <-ctx.Done():
			return abort(KindCanceled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// applyDrive drives straight, reversing for negative power.
func applyDrive(act drivetrain.Actuator) func(float64) error {
	return func(power float64) error {
		cmd := drivetrain.CommandFromSigned(power)
		return act.Drive(cmd.Direction, cmd.Percent)
	}
}

// applyTurn turns right for positive power, left for negative.
func applyTurn(act drivetrain.Actuator) func(float64) error {
	return func(power float64) error {
		if power < 0 {
			return act.Turn(drivetrain.TurnLeft, -power)
		}
		return act.Turn(drivetrain.TurnRight, power)
	}
}
