package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tigerbot-team/diffdrive/pkg/bno08x"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

// imutests prints the raw IMU reports alongside the unwrapped heading and
// turn rate the heading maneuver sees.
func main() {
	dev := os.Getenv("IMU_DEVICE")
	if dev == "" {
		dev = bno08x.DefaultSerialDevice
	}
	imu := bno08x.New(dev)
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go imu.Loop(ctx, &wg)

	fmt.Println("Waiting for IMU to settle...")
	if err := sensors.WaitCalibrated(ctx, imu, 10*time.Millisecond); err != nil {
		panic(err)
	}
	if err := imu.Zero(); err != nil {
		panic(err)
	}

	last := time.Now()
	for {
		rep, err := imu.WaitForReportAfter(ctx, last)
		if err != nil {
			panic(err)
		}
		last = time.Now()
		heading, herr := imu.HeadingDegrees()
		rate, rerr := imu.RateDegreesPerSec()
		if herr != nil || rerr != nil {
			fmt.Printf("%v heading err=%v rate err=%v\n", rep, herr, rerr)
		} else {
			fmt.Printf("%v heading=%8.2f rate=%7.1f\n", rep, heading, rate)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
