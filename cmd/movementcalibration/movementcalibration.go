package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/config"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/picobldc"
)

// movementcalibration drives straight for a fixed time at a few powers, asks
// for the measured distance and suggests a gear ratio for the config.

const runTime = 3 * time.Second

var powers = []float64{20, 40, 60}

var scanner *bufio.Scanner

func init() {
	scanner = bufio.NewScanner(os.Stdin)
}

func getDisplacement() float64 {
	for {
		fmt.Println("Enter distance driven (inches):")
		if !scanner.Scan() {
			panic(scanner.Err())
		}
		ahead, err := strconv.ParseFloat(scanner.Text(), 64)
		if err == nil {
			return ahead
		}
		fmt.Printf("error: %v, please try again:\n", err)
	}
}

func main() {
	fmt.Println("---- Movement Calibration ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		panic(err)
	}
	pico, err := picobldc.Open(picobldc.Config{
		Bus:                 cfg.Hardware.I2CBus,
		LeftAddress:         cfg.Hardware.LeftMotorAddress,
		RightAddress:        cfg.Hardware.RightMotorAddress,
		EncoderCountsPerRev: cfg.Hardware.EncoderCountsPerRev,
	})
	if err != nil {
		panic(err)
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		_ = pico.Close()
	}()
	dt := drivetrain.New(pico)
	geom := cfg.Chassis.Geometry()

	var ratios []float64
	for i, power := range powers {
		fmt.Printf("Measurement %v/%v: %v%% power for %v...\n", i+1, len(powers), power, runTime)
		for _, side := range drivetrain.Sides {
			if err := pico.ResetMotorPosition(side); err != nil {
				panic(err)
			}
		}
		if err := dt.Drive(drivetrain.Forward, power); err != nil {
			panic(err)
		}
		time.Sleep(runTime)
		if err := dt.Stop(drivetrain.Brake); err != nil {
			panic(err)
		}

		var rotations [2]float64
		for _, side := range drivetrain.Sides {
			rotations[side], err = pico.MotorRotationDegrees(side)
			if err != nil {
				panic(err)
			}
		}
		rotation := chassis.MeanAbsRotation(rotations[drivetrain.Left], rotations[drivetrain.Right])
		measured := getDisplacement()
		predicted := geom.DrivenInches(rotation)
		fmt.Printf("rotation=%.1fdeg predicted=%.2fin measured=%.2fin\n", rotation, predicted, measured)
		if rotation > 0 {
			ratio := measured / (rotation / 360 * geom.WheelCircumferenceInches())
			ratios = append(ratios, ratio)
			fmt.Printf("effective gear ratio %.4f\n", ratio)
		}
	}

	if len(ratios) == 0 {
		fmt.Println("No usable measurements")
		return
	}
	var sum float64
	for _, r := range ratios {
		sum += r
	}
	fmt.Printf("\nSuggested config:\nchassis:\n  gear-ratio: %.4f\n", sum/float64(len(ratios)))
}
