package drivetrain

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrLeaseReleased is returned by commands issued through a lease after it
// has been released.
var ErrLeaseReleased = errors.New("drivetrain: lease released")

// Arbiter hands out exclusive leases on a single Drivetrain.  At most one
// lease is live at any time; only the lease holder can command the motors.
type Arbiter struct {
	dt   *Drivetrain
	slot chan struct{}

	lock  sync.Mutex
	owner string
}

func NewArbiter(dt *Drivetrain) *Arbiter {
	return &Arbiter{
		dt:   dt,
		slot: make(chan struct{}, 1),
	}
}

// Acquire blocks until the drivetrain is free or the context is done.
func (a *Arbiter) Acquire(ctx context.Context, owner string) (*Lease, error) {
	select {
	case a.slot <- struct{}{}:
		return a.grant(owner), nil
	default:
	}
	fmt.Printf("LEASE: %s waiting for drivetrain (held by %s)\n", owner, a.Owner())
	select {
	case a.slot <- struct{}{}:
		return a.grant(owner), nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "%s waiting for drivetrain", owner)
	}
}

// TryAcquire returns a lease only if the drivetrain is free right now.
func (a *Arbiter) TryAcquire(owner string) (*Lease, bool) {
	select {
	case a.slot <- struct{}{}:
		return a.grant(owner), true
	default:
		return nil, false
	}
}

// Owner returns the name of the current lease holder, or "" if the drivetrain
// is free.
func (a *Arbiter) Owner() string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.owner
}

func (a *Arbiter) grant(owner string) *Lease {
	a.lock.Lock()
	a.owner = owner
	a.lock.Unlock()
	fmt.Printf("LEASE: %s acquired drivetrain\n", owner)
	return &Lease{arbiter: a, owner: owner}
}

func (a *Arbiter) release(owner string) {
	a.lock.Lock()
	a.owner = ""
	a.lock.Unlock()
	<-a.slot
	fmt.Printf("LEASE: %s released drivetrain\n", owner)
}

// Lease is an exclusive handle on the drivetrain.  It is safe for concurrent
// use; once Release returns no further command reaches the motors through it.
type Lease struct {
	arbiter *Arbiter
	owner   string

	lock     sync.Mutex
	released bool
}

var (
	_ Actuator     = (*Lease)(nil)
	_ SideActuator = (*Lease)(nil)
)

func (l *Lease) Owner() string {
	return l.owner
}

func (l *Lease) do(f func(dt *Drivetrain) error) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.released {
		return errors.Wrapf(ErrLeaseReleased, "lease held by %s", l.owner)
	}
	return f(l.arbiter.dt)
}

func (l *Lease) Drive(dir Direction, percent float64) error {
	return l.do(func(dt *Drivetrain) error { return dt.Drive(dir, percent) })
}

func (l *Lease) Turn(dir TurnDirection, percent float64) error {
	return l.do(func(dt *Drivetrain) error { return dt.Turn(dir, percent) })
}

func (l *Lease) Stop(mode StopMode) error {
	return l.do(func(dt *Drivetrain) error { return dt.Stop(mode) })
}

func (l *Lease) Spin(side Side, dir Direction, percent float64) error {
	return l.do(func(dt *Drivetrain) error { return dt.Spin(side, dir, percent) })
}

func (l *Lease) StopSide(side Side, mode StopMode) error {
	return l.do(func(dt *Drivetrain) error { return dt.StopSide(side, mode) })
}

// Release gives the drivetrain back to the arbiter.  Calling it more than
// once is harmless.
func (l *Lease) Release() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.arbiter.release(l.owner)
}

// ReleaseWithStop stops the motors with the given mode and then releases the
// lease.  The lease is released even if the stop fails.
func (l *Lease) ReleaseWithStop(mode StopMode) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.released {
		return nil
	}
	err := l.arbiter.dt.Stop(mode)
	l.released = true
	l.arbiter.release(l.owner)
	return err
}
