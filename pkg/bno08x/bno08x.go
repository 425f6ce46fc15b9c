// Package bno08x reads a BNO08x IMU in UART-RVC mode and presents it as the
// robot's inertial heading sensor.
package bno08x

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/tigerbot-team/diffdrive/pkg/angle"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

const DefaultSerialDevice = "/dev/ttyAMA0"

const ReportFrequency = 100
const ReportInterval = time.Second / ReportFrequency

const (
	packetLen = 19
	// Reports to wait for after (re)sync before the heading is trusted.
	settleReports = 50
	// A heading older than this is a fault.
	staleAfter = 10 * ReportInterval
)

var header = []byte{0xaa, 0xaa}

type IMUReport struct {
	Time   time.Time
	Index  uint8
	Yaw    int16
	Pitch  int16
	Roll   int16
	XAccel int16
	YAccel int16
	ZAccel int16
}

func (i IMUReport) String() string {
	return fmt.Sprintf("[%02x] Y:%7.2f P:%7.2f R:%7.2f X:%7.2f Y:%7.2f Z:%7.2f",
		i.Index, float64(i.Yaw)/100.0, float64(i.Pitch)/100.0, float64(i.Roll)/100.0,
		float64(i.XAccel)/100.0, float64(i.YAccel)/100.0, float64(i.ZAccel)/100.0)
}

// YawDegrees is the raw RVC yaw: anticlockwise positive, in (-180, 180].
func (i IMUReport) YawDegrees() float64 {
	return (float64(i.Yaw)) / 100.0
}

// ParseReport decodes one RVC packet, including its 0xaaaa header.
func ParseReport(buf []byte) (IMUReport, error) {
	if len(buf) != packetLen {
		return IMUReport{}, errors.Errorf("bad packet length %d", len(buf))
	}
	if !bytes.Equal(buf[:2], header) {
		return IMUReport{}, errors.New("lost sync")
	}
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	if buf[packetLen-1] != checksum {
		return IMUReport{}, errors.Errorf("bad checksum %x != %x", buf[packetLen-1], checksum)
	}
	return IMUReport{
		Index:  buf[2],
		Yaw:    int16(binary.LittleEndian.Uint16(buf[3:5])),
		Pitch:  int16(binary.LittleEndian.Uint16(buf[5:7])),
		Roll:   int16(binary.LittleEndian.Uint16(buf[7:9])),
		XAccel: int16(binary.LittleEndian.Uint16(buf[9:11])),
		YAccel: int16(binary.LittleEndian.Uint16(buf[11:13])),
		ZAccel: int16(binary.LittleEndian.Uint16(buf[13:15])),
	}, nil
}

// BNO08X tracks the continuous heading from the report stream.  Headings are
// clockwise positive.
type BNO08X struct {
	device string
	now    func() time.Time

	lock       sync.Mutex
	cond       *sync.Cond
	lastReport IMUReport
	unwrapper  angle.Unwrapper
	rotation   float64
	zero       float64
	rate       float64
	settled    int
}

var _ sensors.Inertial = (*BNO08X)(nil)

func New(device string) *BNO08X {
	b := &BNO08X{device: device, now: time.Now}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *BNO08X) CurrentReport() IMUReport {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastReport
}

// WaitForReportAfter blocks until a report newer than t arrives.
func (b *BNO08X) WaitForReportAfter(ctx context.Context, t time.Time) (IMUReport, error) {
	stop := context.AfterFunc(ctx, func() {
		b.lock.Lock()
		b.cond.Broadcast()
		b.lock.Unlock()
	})
	defer stop()

	b.lock.Lock()
	defer b.lock.Unlock()
	for b.lastReport.Time.Before(t) {
		if ctx.Err() != nil {
			return IMUReport{}, ctx.Err()
		}
		b.cond.Wait()
	}
	return b.lastReport, nil
}

func (b *BNO08X) HeadingDegrees() (float64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.checkFresh(); err != nil {
		return 0, err
	}
	return b.rotation - b.zero, nil
}

func (b *BNO08X) RateDegreesPerSec() (float64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.checkFresh(); err != nil {
		return 0, err
	}
	return b.rate, nil
}

// IsCalibrating is true until the sensor has delivered a run of good reports.
func (b *BNO08X) IsCalibrating() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.settled < settleReports
}

func (b *BNO08X) Zero() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.checkFresh(); err != nil {
		return err
	}
	b.zero = b.rotation
	return nil
}

func (b *BNO08X) checkFresh() error {
	if b.lastReport.Time.IsZero() {
		return sensors.Fault("bno08x", errors.New("no reports yet"))
	}
	if age := b.now().Sub(b.lastReport.Time); age > staleAfter {
		return sensors.Fault("bno08x", errors.Errorf("last report is %v old", age.Round(time.Millisecond)))
	}
	return nil
}

// Loop reads the serial port until the context is done, reopening it after
// errors.  The caller must have done wg.Add(1).
func (b *BNO08X) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		b.lock.Lock()
		b.cond.Broadcast()
		b.lock.Unlock()
	}()
	for ctx.Err() == nil {
		err := b.openAndLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		fmt.Println("BNO08X: loop stopped; will retry", err)
		time.Sleep(100 * time.Millisecond)
	}
}

func (b *BNO08X) openAndLoop(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: 115200,
	}
	s, err := serial.Open(b.device, mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", b.device)
	}
	defer s.Close()
	return b.readReports(ctx, s)
}

// readReports consumes the packet stream from r, resyncing on the header
// after any corrupt packet.
func (b *BNO08X) readReports(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	buf := make([]byte, packetLen)
	for {
		if err := resync(ctx, br); err != nil {
			return err
		}
		b.lock.Lock()
		b.settled = 0
		b.lock.Unlock()

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := io.ReadFull(br, buf); err != nil {
				return errors.Wrap(err, "failed to read from serial")
			}
			report, err := ParseReport(buf)
			if err != nil {
				fmt.Println("BNO08X:", err)
				break
			}
			report.Time = b.now()
			b.setReport(report)
		}
	}
}

func resync(ctx context.Context, br *bufio.Reader) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		buf, err := br.Peek(2)
		if err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		if bytes.Equal(buf, header) {
			return nil
		}
		if _, err := br.Discard(1); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
	}
}

func (b *BNO08X) setReport(report IMUReport) {
	b.lock.Lock()
	defer b.lock.Unlock()

	prevTime := b.lastReport.Time
	before := b.unwrapper.Rotation()
	b.rotation = b.unwrapper.Update(-report.YawDegrees())
	if !prevTime.IsZero() && report.Time.After(prevTime) {
		b.rate = (b.rotation - before) / report.Time.Sub(prevTime).Seconds()
	}
	b.settled++
	b.lastReport = report
	b.cond.Broadcast()
}
