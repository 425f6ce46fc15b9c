package bno08x

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

func packet(index uint8, yawDegrees float64) []byte {
	buf := make([]byte, packetLen)
	copy(buf, header)
	buf[2] = index
	binary.LittleEndian.PutUint16(buf[3:5], uint16(int16(yawDegrees*100)))
	binary.LittleEndian.PutUint16(buf[13:15], uint16(int16(981)))
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	buf[packetLen-1] = checksum
	return buf
}

func newTestIMU() *BNO08X {
	b := New("unused")
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		clock = clock.Add(ReportInterval)
		return clock
	}
	return b
}

func TestParseReport(t *testing.T) {
	r, err := ParseReport(packet(7, -12.34))
	if err != nil {
		t.Fatal(err)
	}
	if r.Index != 7 || r.Yaw != -1234 || r.ZAccel != 981 {
		t.Errorf("unexpected report %v", r)
	}
	if r.YawDegrees() != -12.34 {
		t.Errorf("unexpected yaw %v", r.YawDegrees())
	}

	bad := packet(7, 10)
	bad[5]++
	if _, err := ParseReport(bad); err == nil {
		t.Error("expected checksum error")
	}
	if _, err := ParseReport(bad[:10]); err == nil {
		t.Error("expected length error")
	}
}

func TestHeadingIsContinuousAndClockwise(t *testing.T) {
	b := newTestIMU()
	var stream bytes.Buffer
	stream.Write([]byte{0x01, 0xaa, 0x02}) // garbage before sync
	for i, yaw := range []float64{170, 179, -179} {
		stream.Write(packet(uint8(i), yaw))
	}
	corrupt := packet(3, 0)
	corrupt[packetLen-1]++
	stream.Write(corrupt)
	stream.Write(packet(4, -170))

	err := b.readReports(context.Background(), &stream)
	if err == nil {
		t.Fatal("expected an error at end of stream")
	}

	// RVC yaw went anticlockwise from 170 through the seam to -170: that is
	// 20 degrees anticlockwise, so -20 clockwise.
	heading, err := b.HeadingDegrees()
	if err != nil {
		t.Fatal(err)
	}
	if heading < -20.01 || heading > -19.99 {
		t.Errorf("expected -20, got %v", heading)
	}
	if b.CurrentReport().Index != 4 {
		t.Errorf("expected the last good report, got %v", b.CurrentReport())
	}

	if err := b.Zero(); err != nil {
		t.Fatal(err)
	}
	if heading, _ := b.HeadingDegrees(); heading != 0 {
		t.Errorf("expected 0 after zeroing, got %v", heading)
	}
}

func TestCalibratingUntilSettled(t *testing.T) {
	b := newTestIMU()
	if !b.IsCalibrating() {
		t.Error("expected calibrating before any reports")
	}
	if _, err := b.HeadingDegrees(); !errors.Is(err, sensors.ErrSensorFault) {
		t.Errorf("expected a sensor fault with no reports, got %v", err)
	}

	var stream bytes.Buffer
	for i := 0; i < settleReports; i++ {
		stream.Write(packet(uint8(i), 0))
	}
	_ = b.readReports(context.Background(), &stream)
	if b.IsCalibrating() {
		t.Error("expected settled after a full run of reports")
	}
}

func TestStaleReportIsFault(t *testing.T) {
	b := newTestIMU()
	var stream bytes.Buffer
	stream.Write(packet(0, 0))
	_ = b.readReports(context.Background(), &stream)

	if _, err := b.HeadingDegrees(); err != nil {
		t.Fatalf("fresh report should be fine: %v", err)
	}
	b.now = func() time.Time { return b.lastReport.Time.Add(time.Second) }
	if _, err := b.HeadingDegrees(); !errors.Is(err, sensors.ErrSensorFault) {
		t.Errorf("expected a sensor fault for a stale report, got %v", err)
	}
}

func TestRate(t *testing.T) {
	b := newTestIMU()
	var stream bytes.Buffer
	// Turning clockwise (RVC yaw decreasing) at 1 degree per report.
	for i := 0; i < 5; i++ {
		stream.Write(packet(uint8(i), -float64(i)))
	}
	_ = b.readReports(context.Background(), &stream)

	rate, err := b.RateDegreesPerSec()
	if err != nil {
		t.Fatal(err)
	}
	if rate < 99 || rate > 101 {
		t.Errorf("expected about 100 deg/s, got %v", rate)
	}
}

func TestWaitForReportAfterHonoursContext(t *testing.T) {
	b := newTestIMU()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.WaitForReportAfter(ctx, time.Now()); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
