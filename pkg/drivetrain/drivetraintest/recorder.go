// Package drivetraintest provides a recording implementation of
// drivetrain.Motors for tests.
package drivetraintest

import (
	"fmt"
	"sync"

	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
)

// Call is one recorded motor call.
type Call struct {
	Side    drivetrain.Side
	Stop    bool
	Mode    drivetrain.StopMode
	Percent float64
}

func (c Call) String() string {
	if c.Stop {
		return fmt.Sprintf("%v:stop(%v)", c.Side, c.Mode)
	}
	return fmt.Sprintf("%v:%.2f", c.Side, c.Percent)
}

// Recorder records every call made to it.  Err, if set, is returned from all
// calls (the call is still recorded).
type Recorder struct {
	lock  sync.Mutex
	calls []Call
	Err   error
}

var _ drivetrain.Motors = (*Recorder)(nil)

func (r *Recorder) SetVelocity(side drivetrain.Side, percent float64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, Call{Side: side, Percent: percent})
	return r.Err
}

func (r *Recorder) StopSide(side drivetrain.Side, mode drivetrain.StopMode) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, Call{Side: side, Stop: true, Mode: mode})
	return r.Err
}

// Calls returns a copy of the calls recorded so far.
func (r *Recorder) Calls() []Call {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Call(nil), r.calls...)
}

// Stops returns only the stop calls.
func (r *Recorder) Stops() []Call {
	var stops []Call
	for _, c := range r.Calls() {
		if c.Stop {
			stops = append(stops, c)
		}
	}
	return stops
}

// Last returns the most recent call for the given side.
func (r *Recorder) Last(side drivetrain.Side) (Call, bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Side == side {
			return calls[i], true
		}
	}
	return Call{}, false
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = nil
}
