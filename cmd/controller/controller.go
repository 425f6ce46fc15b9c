package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/tigerbot-team/diffdrive/pkg/bno08x"
	"github.com/tigerbot-team/diffdrive/pkg/config"
	"github.com/tigerbot-team/diffdrive/pkg/joystick"
	"github.com/tigerbot-team/diffdrive/pkg/picobldc"
	"github.com/tigerbot-team/diffdrive/pkg/robot"
	"github.com/tigerbot-team/diffdrive/pkg/tunable"
)

type Mode int

const (
	ModeTeleop Mode = iota
	ModeAuto
	ModePause
	numModes
)

func (m Mode) String() string {
	switch m {
	case ModeTeleop:
		return "TELEOP"
	case ModeAuto:
		return "AUTO"
	case ModePause:
		return "PAUSE"
	}
	return fmt.Sprintf("MODE(%d)", int(m))
}

// autoRoutine is run each time AUTO mode is entered.  Gains are read from
// the tunables when each step starts.
func autoRoutine(cfg config.Config, distance, heading tunable.Gains) []robot.Step {
	drive := func(inches float64) robot.Step {
		s := robot.Drive(inches)
		s.Run = func(ctx context.Context, r *robot.Robot) error {
			return r.RunDistanceManeuver(ctx, inches, cfg.Distance.Tolerance, distance.Get())
		}
		return s
	}
	turn := func(degrees float64) robot.Step {
		s := robot.Turn(degrees)
		s.Run = func(ctx context.Context, r *robot.Robot) error {
			return r.RunHeadingManeuver(ctx, degrees, cfg.Heading.Tolerance, heading.Get())
		}
		return s
	}
	return []robot.Step{
		drive(24),
		turn(90),
		drive(12),
		turn(-90),
		drive(-36),
	}
}

func main() {
	fmt.Println("---- diffdrive ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.SaveInUse(cfgPath); err != nil {
		fmt.Println("CONFIG: failed to write in-use config:", err)
	}

	motors, err := picobldc.Open(picobldc.Config{
		Bus:                 cfg.Hardware.I2CBus,
		LeftAddress:         cfg.Hardware.LeftMotorAddress,
		RightAddress:        cfg.Hardware.RightMotorAddress,
		EncoderCountsPerRev: cfg.Hardware.EncoderCountsPerRev,
	})
	if err != nil {
		log.Fatalf("Failed to open motor controllers: %v", err)
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		_ = motors.Close()
	}()
	if err := motors.SetWatchdog(500 * time.Millisecond); err != nil {
		fmt.Println("Failed to enable motor watchdog:", err)
	}

	imu := bno08x.New(cfg.Hardware.IMUPort)
	wg.Add(1)
	go imu.Loop(ctx, &wg)

	// Wait for the joystick and kick off a background thread to read from it.
	joy := waitForJoystick(ctx, cfg.Hardware.JoystickDevice)
	if joy == nil {
		return
	}
	joystickEvents := make(chan *joystick.Event, 10)
	wg.Add(1)
	go func() {
		defer cancel()
		joy.Loop(ctx, &wg, joystickEvents)
	}()

	r, err := robot.New(cfg, motors, joy, robot.Sensors{Encoders: motors, Inertial: imu})
	if err != nil {
		log.Fatalf("Failed to create robot: %v", err)
	}
	wg.Add(1)
	go r.Loop(ctx, &wg)

	// In PAUSE mode the D-pad selects (up/down) and adjusts (left/right) the
	// autonomous gains.
	var tunables tunable.Tunables
	distanceGains := tunables.CreateGains("distance", cfg.Distance.Gains, 0.1)
	headingGains := tunables.CreateGains("heading", cfg.Heading.Gains, 0.05)

	var (
		mode       = ModeTeleop
		autoCancel context.CancelFunc
		autoDone   chan struct{}
	)
	stopAuto := func() {
		if autoCancel == nil {
			return
		}
		autoCancel()
		<-autoDone
		autoCancel = nil
	}
	enterMode := func(m Mode) {
		stopAuto()
		mode = m
		fmt.Printf("----- %s -----\n", mode)
		r.SetTeleopEnabled(mode == ModeTeleop)
		if mode != ModeAuto {
			return
		}
		var autoCtx context.Context
		autoCtx, autoCancel = context.WithCancel(ctx)
		autoDone = make(chan struct{})
		go func() {
			defer close(autoDone)
			if err := r.RunSequence(autoCtx, autoRoutine(cfg, distanceGains, headingGains)...); err != nil {
				fmt.Println("AUTO: routine failed:", err)
				return
			}
			fmt.Println("AUTO: routine complete")
		}()
	}
	enterMode(ModeTeleop)

	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("Context done, shutting down")
			stopAuto()
			wg.Wait()
			return
		case event := <-joystickEvents:
			if event.Type == joystick.EventTypeAxis && mode == ModePause && event.Value != 0 {
				switch event.Number {
				case joystick.AxisDPadY:
					if event.Value < 0 {
						tunables.SelectPrev()
					} else {
						tunables.SelectNext()
					}
				case joystick.AxisDPadX:
					if event.Value < 0 {
						tunables.Current().Add(-1)
					} else {
						tunables.Current().Add(1)
					}
				}
				continue
			}
			// Intercept the Options and Share buttons to implement mode switching.
			if event.Type != joystick.EventTypeButton || event.Value != 1 {
				continue
			}
			switch event.Number {
			case joystick.ButtonOptions:
				fmt.Printf("Options pressed: switching modes >>\n")
				enterMode((mode + 1) % numModes)
			case joystick.ButtonShare:
				fmt.Printf("Share pressed: switching modes <<\n")
				enterMode((mode + numModes - 1) % numModes)
			}
		case <-watchdog.C:
			v, err := motors.BattVolts()
			if err != nil {
				fmt.Println("Main loop still running; failed to read battery:", err)
				continue
			}
			fmt.Printf("Main loop still running; mode=%s battery=%.2fV\n", mode, v)
		}
	}
}

func waitForJoystick(ctx context.Context, device string) *joystick.Joystick {
	if env := os.Getenv("JOYSTICK_DEVICE"); env != "" {
		device = env
	}
	firstLog := true
	for {
		j, err := joystick.Open(device)
		if err == nil {
			fmt.Printf("Opened joystick\n")
			return j
		}
		if firstLog {
			fmt.Printf("Waiting for joystick: %v.\n", err)
			firstLog = false
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
