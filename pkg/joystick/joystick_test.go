package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
)

func encode(t *testing.T, events ...rawEvent) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range events {
		if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
			t.Fatal(err)
		}
	}
	return io.NopCloser(&buf)
}

func TestReadEvent(t *testing.T) {
	j := New(encode(t,
		rawEvent{Time: 1000, Value: 1, Type: 0x81, Number: ButtonCross},
		rawEvent{Time: 1250, Value: -32767, Type: 2, Number: AxisLStickY},
	))

	first, err := j.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if first.Type != EventTypeButton || first.Number != ButtonCross || first.Value != 1 {
		t.Errorf("unexpected first event %v", first)
	}
	second, err := j.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if second.Type != EventTypeAxis || second.String() != "axis(1)=-32767" {
		t.Errorf("unexpected second event %v", second)
	}
	if d := second.Time.Sub(first.Time); d.Milliseconds() != 250 {
		t.Errorf("expected events 250ms apart, got %v", d)
	}
	if _, err := j.ReadEvent(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestLoopTracksState(t *testing.T) {
	j := New(encode(t,
		rawEvent{Value: -32767, Type: 2, Number: AxisLStickY},
		rawEvent{Value: 16384, Type: 2, Number: AxisRStickX},
		rawEvent{Value: 1, Type: 1, Number: ButtonOptions},
		rawEvent{Value: 0, Type: 1, Number: ButtonOptions},
		rawEvent{Value: 1, Type: 1, Number: ButtonCircle},
	))

	events := make(chan *Event, 10)
	var wg sync.WaitGroup
	wg.Add(1)
	j.Loop(context.Background(), &wg, events)
	wg.Wait()

	if len(events) != 5 {
		t.Errorf("expected 5 forwarded events, got %d", len(events))
	}

	// Loop has hit EOF, so polling now reports the device as gone.
	if _, err := j.AxisPercent(AxisLStickY); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	j.err = nil

	if v, _ := j.AxisPercent(AxisLStickY); v != 100 {
		t.Errorf("stick up should be +100, got %v", v)
	}
	if v, _ := j.AxisPercent(AxisRStickX); v != 50 {
		t.Errorf("half right should be 50, got %v", v)
	}
	if _, err := j.AxisPercent(42); err == nil {
		t.Error("expected error for unknown axis")
	}

	if !j.ButtonPressed(ButtonOptions) {
		t.Error("expected options press to be reported")
	}
	if j.ButtonPressed(ButtonOptions) {
		t.Error("a press should only be reported once")
	}
	if j.ButtonDown(ButtonOptions) {
		t.Error("options was released")
	}
	if !j.ButtonDown(ButtonCircle) || !j.ButtonPressed(ButtonCircle) {
		t.Error("circle should be held and pressed")
	}
}
