package picobldc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

type Register byte

const (
	RegCtrl Register = iota
	RegStatus
	RegWatchdogTimeout
	RegFaultCount

	RegMot0V
	RegMot1V

	RegMot0Calib
	RegMot1Calib

	// Encoder counts since power on, wrapping at 16 bits.
	RegMot0Dist
	RegMot1Dist

	RegBattV // LSB=4mV
	RegCurrent
	RegPower

	RegTemperature // LSB = 0.01C
)

const (
	BattVLSB       = 0.004
	CurrentLSB     = 0.0001831054688
	PowerLSB       = CurrentLSB * 20
	TemperatureLSB = 0.01
)

const (
	RegCtrlEnableI2CControl uint16 = 1 << iota
	RegCtrlRun
	RegCtrlDoCalib
	RegCtrlReset
	RegCtrlWatchdogEnable
)

type StatusFlag uint16

const (
	RegStatusFault StatusFlag = 1 << iota
	RegStatusCalibDone
	RegStatusWatchdogExpired
)

const (
	writeRetries     = 20
	configRefresh    = 100 * time.Millisecond
	calibrateTimeout = 10 * time.Second
)

var (
	ErrWriteFailed      = errors.New("pico-bldc: write failed")
	ErrCalibrateTimeout = errors.New("pico-bldc: calibration did not finish")
)

// regPort is the slice of *i2c.Device the board needs.
type regPort interface {
	Write(buf []byte) error
	ReadReg(reg byte, buf []byte) error
	Close() error
}

type opener func() (regPort, error)

func i2cOpener(bus string, addr int) opener {
	return func() (regPort, error) {
		dev, err := i2c.Open(&i2c.Devfs{Dev: bus}, addr)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// Board is one Pico-BLDC driving the front and back motor of one side.
type Board struct {
	name string
	open opener
	dev  regPort

	lastConfigWord  uint16
	lastConfigTime  time.Time
	watchdogEnabled bool

	now   func() time.Time
	sleep func(time.Duration)
}

// OpenBoard opens the board at addr on the given I2C bus device.
func OpenBoard(name, bus string, addr int) (*Board, error) {
	return newBoard(name, i2cOpener(bus, addr))
}

func newBoard(name string, open opener) (*Board, error) {
	dev, err := open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s pico-bldc", name)
	}
	return &Board{
		name:  name,
		open:  open,
		dev:   dev,
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// Reset zeroes the motor speeds and drops out of run mode.
func (b *Board) Reset() error {
	return b.configure(true, false)
}

func (b *Board) SetWatchdog(timeout time.Duration) error {
	if timeout == 0 {
		b.watchdogEnabled = false
		return b.configure(false, false)
	}

	ms := timeout.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	if err := b.writeReg(RegWatchdogTimeout, uint16(ms)); err != nil {
		return err
	}
	b.watchdogEnabled = true
	return b.configure(false, false)
}

// SetMotorSpeeds enables the motors and sets both speeds.
func (b *Board) SetMotorSpeeds(front, back int16) error {
	if err := b.configure(false, true); err != nil {
		return err
	}
	if err := b.writeReg(RegMot0V, uint16(front)); err != nil {
		return err
	}
	return b.writeReg(RegMot1V, uint16(back))
}

// Freewheel drops out of run mode so the motors coast.
func (b *Board) Freewheel() error {
	if err := b.writeReg(RegMot0V, 0); err != nil {
		return err
	}
	if err := b.writeReg(RegMot1V, 0); err != nil {
		return err
	}
	return b.configure(false, false)
}

// RawDistancesTraveled returns the wrapping encoder counts of the front and
// back motor.
func (b *Board) RawDistancesTraveled() (counts [2]int16, err error) {
	for i, r := range []Register{RegMot0Dist, RegMot1Dist} {
		v, err := b.readReg(r)
		if err != nil {
			return counts, err
		}
		counts[i] = int16(v)
	}
	return counts, nil
}

func (b *Board) Close() error {
	_ = b.Reset()
	return b.dev.Close()
}

func (b *Board) writeWithRetries(data []byte) error {
	var err error
	for tries := 0; tries < writeRetries; tries++ {
		err = b.dev.Write(data)
		if err == nil {
			if tries > 0 {
				fmt.Printf("PICO: programmed %s board after %d retries\n", b.name, tries)
			}
			return nil
		}
		fmt.Printf("PICO: failed to write to %s board: %v\n", b.name, err)
		b.sleep(time.Millisecond)
		_ = b.dev.Close()
		dev, openErr := b.open()
		if openErr != nil {
			continue
		}
		b.dev = dev
	}
	return errors.Wrapf(ErrWriteFailed, "%s board register %d: %v", b.name, data[0], err)
}

func (b *Board) configure(resetMotorSpeeds bool, enableMotors bool) error {
	var configWord uint16 = RegCtrlEnableI2CControl
	if resetMotorSpeeds {
		configWord |= RegCtrlReset
	}
	if enableMotors {
		configWord |= RegCtrlRun
	}
	if b.watchdogEnabled {
		configWord |= RegCtrlWatchdogEnable
	}

	if configWord == b.lastConfigWord && b.now().Sub(b.lastConfigTime) < configRefresh {
		return nil
	}

	if b.lastConfigWord == 0 {
		calib, err := b.readReg(RegMot1Calib)
		if err != nil {
			return err
		}
		if calib == 0 {
			fmt.Printf("PICO: %s board not calibrated, running calibration...\n", b.name)
			configWord |= RegCtrlDoCalib
		}
	}

	if err := b.writeReg(RegCtrl, configWord); err != nil {
		return err
	}

	if configWord&RegCtrlDoCalib != 0 {
		if err := b.waitForCalibration(); err != nil {
			return err
		}
	}

	if err := b.writeReg(RegStatus, uint16(RegStatusCalibDone)); err != nil {
		return err
	}

	b.lastConfigTime = b.now()
	b.lastConfigWord = configWord &^ (RegCtrlReset | RegCtrlDoCalib)
	return nil
}

func (b *Board) waitForCalibration() error {
	start := b.now()
	var lastPrint time.Time
	for {
		status, err := b.readReg(RegStatus)
		if err != nil {
			fmt.Printf("PICO: failed to read %s status register: %v\n", b.name, err)
		} else if status&uint16(RegStatusCalibDone) != 0 {
			break
		}
		if b.now().Sub(start) > calibrateTimeout {
			return errors.Wrapf(ErrCalibrateTimeout, "%s board", b.name)
		}
		if b.now().Sub(lastPrint) > time.Second {
			fmt.Printf("PICO: waiting for %s calibration, status=%x\n", b.name, status)
			lastPrint = b.now()
		}
		b.sleep(10 * time.Millisecond)
	}

	fmt.Printf("PICO: %s calibration words:", b.name)
	for r := RegMot0Calib; r <= RegMot1Calib; r++ {
		v, err := b.readReg(r)
		if err != nil {
			return err
		}
		fmt.Printf(" %04x", v)
	}
	fmt.Print("\n")
	return nil
}

func (b *Board) BattVolts() (float32, error) {
	raw, err := b.readReg(RegBattV)
	if err != nil {
		return 0, err
	}
	return float32(raw) * BattVLSB, nil
}

func (b *Board) CurrentAmps() (float32, error) {
	raw, err := b.readReg(RegCurrent)
	if err != nil {
		return 0, err
	}
	return float32(raw) * CurrentLSB, nil
}

func (b *Board) PowerWatts() (float32, error) {
	raw, err := b.readReg(RegPower)
	if err != nil {
		return 0, err
	}
	return float32(raw) * PowerLSB, nil
}

func (b *Board) TemperatureC() (float32, error) {
	raw, err := b.readReg(RegTemperature)
	if err != nil {
		return 0, err
	}
	return float32(raw) * TemperatureLSB, nil
}

func (b *Board) Status() (StatusFlag, error) {
	raw, err := b.readReg(RegStatus)
	if err != nil {
		return 0, err
	}
	return StatusFlag(raw), nil
}

func (b *Board) writeReg(reg Register, value uint16) error {
	return b.writeWithRetries([]byte{byte(reg), byte(value >> 8), byte(value)})
}

func (b *Board) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	if err := b.dev.ReadReg(byte(reg), buf[:]); err != nil {
		return 0, errors.Wrapf(err, "reading %s board register %d", b.name, reg)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
