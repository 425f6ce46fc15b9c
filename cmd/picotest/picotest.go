package main

import (
	"fmt"
	"time"

	"github.com/tigerbot-team/diffdrive/pkg/config"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/picobldc"
)

// picotest spins both sides slowly and prints board telemetry and encoder
// readings.
func main() {
	fmt.Println("Pico-BLDC test program")
	hw := config.Default().Hardware
	pico, err := picobldc.Open(picobldc.Config{
		Bus:                 hw.I2CBus,
		LeftAddress:         hw.LeftMotorAddress,
		RightAddress:        hw.RightMotorAddress,
		EncoderCountsPerRev: hw.EncoderCountsPerRev,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println("Opened both boards. Enabling watchdog...")

	if err := pico.SetWatchdog(time.Second); err != nil {
		panic(err)
	}
	fmt.Println("Watchdog enabled.")

	left, right := pico.Boards()
	for {
		for _, side := range drivetrain.Sides {
			_ = pico.SetVelocity(side, 10)
		}
		for name, b := range map[string]*picobldc.Board{"left": left, "right": right} {
			battV, _ := b.BattVolts()
			current, _ := b.CurrentAmps()
			power, _ := b.PowerWatts()
			tempC, _ := b.TemperatureC()
			status, _ := b.Status()
			fmt.Printf("%s: %.1fC %.2fV %.3fA %.3fW Status=%x\n", name, tempC, battV, current, power, status)
		}
		l, _ := pico.MotorRotationDegrees(drivetrain.Left)
		r, _ := pico.MotorRotationDegrees(drivetrain.Right)
		fmt.Printf("Rotation: L=%.1f R=%.1f\n", l, r)
		time.Sleep(500 * time.Millisecond)
	}
}
