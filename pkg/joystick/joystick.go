// Package joystick reads a Linux joystick device (/dev/input/jsN) and keeps
// the latest stick and button state for polling once per control tick.
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Button and pad mappings for a DualShock 4:
//
// Axes
//
//    D-pad   u/d = 7 (up = -32767; down = +32767)
//            l/r = 6 (left = -32767; right = +32767)
//    L stick u/d = 1 (up = -32767; down = +32767)
//            l/r = 0 (left = -32767; right = +32767)
//    R stick u/d = 4 (up = -32767; down = +32767)
//            l/r = 3 (left = -32767; right = +32767)
//    L2          = 2 (unpressed = -32767; fully-pressed = 32767)
//    R2          = 5 (unpressed = -32767; fully-pressed = 32767)
//
// AxisPercent flips the u/d axes so that up is positive.

type EventType uint8

const (
	EventTypeButton EventType = 1
	EventTypeAxis   EventType = 2

	// Set on the synthetic events the driver sends when the device is opened
	// to report the initial state.
	eventTypeInit = 0x80
)

const (
	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonTriangle = 2
	ButtonSquare   = 3
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonL2       = 6
	ButtonR2       = 7
	ButtonShare    = 8
	ButtonOptions  = 9
	ButtonPS       = 10
	ButtonLStick   = 11
	ButtonRStick   = 12

	AxisLStickX = 0
	AxisLStickY = 1
	AxisL2      = 2
	AxisRStickX = 3
	AxisRStickY = 4
	AxisR2      = 5
	AxisDPadX   = 6
	AxisDPadY   = 7

	maxAxes    = 8
	maxButtons = 16
)

var ErrClosed = errors.New("joystick: device closed")

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time

	lock    sync.Mutex
	axes    [maxAxes]int16
	buttons [maxButtons]bool
	presses [maxButtons]int
	err     error
}

func Open(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

// New reads joystick events from r, which must produce the kernel's 8-byte
// js_event records.
func New(r io.ReadCloser) *Joystick {
	return &Joystick{device: r}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var raw rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &raw)
	if err != nil {
		return nil, err
	}

	if j.wallclockEpoch.IsZero() {
		j.deviceEpoch = raw.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(raw.Time-j.deviceEpoch) * time.Millisecond),
		Value:  raw.Value,
		Type:   EventType(raw.Type &^ eventTypeInit),
		Number: raw.Number,
	}, nil
}

// Loop reads events until the device fails or the context is done, keeping
// the polled state up to date.  Each event is also sent to events, if it is
// not nil.  The caller must have done wg.Add(1).
func (j *Joystick) Loop(ctx context.Context, wg *sync.WaitGroup, events chan<- *Event) {
	defer wg.Done()
	done := make(chan struct{})
	defer close(done)
	go func() {
		// Closing the device unblocks the pending read.
		select {
		case <-ctx.Done():
			_ = j.device.Close()
		case <-done:
		}
	}()

	for {
		event, err := j.ReadEvent()
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				err = ErrClosed
			} else {
				fmt.Println("JOY: Failed to read from joystick:", err)
			}
			j.lock.Lock()
			j.err = err
			j.lock.Unlock()
			return
		}
		j.apply(event)
		if events != nil {
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (j *Joystick) apply(e *Event) {
	j.lock.Lock()
	defer j.lock.Unlock()
	switch e.Type {
	case EventTypeAxis:
		if int(e.Number) < maxAxes {
			j.axes[e.Number] = e.Value
		}
	case EventTypeButton:
		if int(e.Number) < maxButtons {
			down := e.Value != 0
			if down && !j.buttons[e.Number] {
				j.presses[e.Number]++
			}
			j.buttons[e.Number] = down
		}
	}
}

// AxisPercent returns the axis position scaled to [-100, 100], with up and
// right positive.  It fails once the device has gone away, so that callers
// stop driving on stale input.
func (j *Joystick) AxisPercent(axis int) (int, error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.err != nil {
		return 0, j.err
	}
	if axis < 0 || axis >= maxAxes {
		return 0, errors.Errorf("joystick: no axis %d", axis)
	}
	v := float64(j.axes[axis]) / math.MaxInt16 * 100
	switch axis {
	case AxisLStickY, AxisRStickY, AxisDPadY:
		v = -v
	}
	return int(math.Round(math.Max(-100, math.Min(100, v)))), nil
}

// ButtonPressed reports whether the button has been pressed since the last
// call for that button.
func (j *Joystick) ButtonPressed(button int) bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	if button < 0 || button >= maxButtons {
		return false
	}
	pressed := j.presses[button] > 0
	j.presses[button] = 0
	return pressed
}

// ButtonDown reports whether the button is currently held.
func (j *Joystick) ButtonDown(button int) bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	return button >= 0 && button < maxButtons && j.buttons[button]
}

func (j *Joystick) Close() error {
	return j.device.Close()
}
