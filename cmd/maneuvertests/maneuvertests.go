package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/config"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/robot"
	"github.com/tigerbot-team/diffdrive/pkg/sim"
	"github.com/tigerbot-team/diffdrive/pkg/trace"
)

// maneuvertests runs maneuvers against the simulated chassis from an
// interactive prompt, for tuning gains without a robot on the bench.

var CLI struct {
	Quit     QuitCmd     `cmd:"" help:"Quit."`
	Distance DistanceCmd `cmd:"" help:"Drive straight, in inches."`
	Heading  HeadingCmd  `cmd:"" help:"Turn in place, in degrees clockwise."`
	Position PositionCmd `cmd:"" help:"Drive to an absolute position, in inches."`
	Pose     PoseCmd     `cmd:"" help:"Print the simulated pose."`
	Stall    StallCmd    `cmd:"" help:"Jam or free the wheels."`
	Fault    FaultCmd    `cmd:"" help:"Break or fix a sensor."`
	Plot     PlotCmd     `cmd:"" help:"Plot the last maneuver."`
}

type Context struct {
	cfg   config.Config
	robot *robot.Robot
	sim   *sim.Robot
	trace *trace.Recorder
}

type Tuning struct {
	Tolerance float64 `help:"Tolerance; defaults to the configured value." default:"-1"`
	KP        float64 `name:"kp" help:"Proportional gain; defaults to the configured value." default:"-1"`
	KI        float64 `name:"ki" help:"Integral gain." default:"-1"`
	KD        float64 `name:"kd" help:"Derivative gain." default:"-1"`
}

// resolve overrides the configured tuning with any flags that were given.
func (t Tuning) resolve(m config.Maneuver) (float64, pid.Gains) {
	tol, gains := m.Tolerance, m.Gains
	if t.Tolerance >= 0 {
		tol = t.Tolerance
	}
	if t.KP >= 0 {
		gains.KP = t.KP
	}
	if t.KI >= 0 {
		gains.KI = t.KI
	}
	if t.KD >= 0 {
		gains.KD = t.KD
	}
	return tol, gains
}

type DistanceCmd struct {
	Inches float64 `arg:""`
	Tuning
}

func (c *DistanceCmd) Run(ctx *Context) error {
	tol, gains := c.resolve(ctx.cfg.Distance)
	ctx.trace.Reset()
	return ctx.robot.RunDistanceManeuver(context.Background(), c.Inches, tol, gains)
}

type HeadingCmd struct {
	Degrees float64 `arg:""`
	Tuning
}

func (c *HeadingCmd) Run(ctx *Context) error {
	tol, gains := c.resolve(ctx.cfg.Heading)
	ctx.trace.Reset()
	return ctx.robot.RunHeadingManeuver(context.Background(), c.Degrees, tol, gains)
}

type PositionCmd struct {
	X float64 `arg:""`
	Y float64 `arg:""`
	Tuning
}

func (c *PositionCmd) Run(ctx *Context) error {
	tol, gains := c.resolve(ctx.cfg.Position)
	ctx.trace.Reset()
	return ctx.robot.RunPositionManeuver(context.Background(), c.X, c.Y, tol, gains)
}

type PoseCmd struct{}

func (c *PoseCmd) Run(ctx *Context) error {
	pos, heading := ctx.sim.Pose()
	fmt.Printf("x=%.2fin y=%.2fin heading=%.1fdeg\n", pos[0], pos[1], heading)
	return nil
}

type StallCmd struct {
	On bool `arg:"" help:"true to jam the wheels."`
}

func (c *StallCmd) Run(ctx *Context) error {
	ctx.sim.SetStalled(c.On)
	return nil
}

type FaultCmd struct {
	Source string `arg:"" enum:"encoders,inertial,position"`
	On     bool   `arg:""`
}

func (c *FaultCmd) Run(ctx *Context) error {
	source := map[string]sim.Source{
		"encoders": sim.Encoders,
		"inertial": sim.Inertial,
		"position": sim.Position,
	}[c.Source]
	var err error
	if c.On {
		err = errors.New("injected fault")
	}
	ctx.sim.SetFault(source, err)
	return nil
}

type PlotCmd struct {
	Width  int    `default:"70"`
	Height int    `default:"15"`
	PNG    string `name:"png" help:"Also render to this PNG file." type:"path"`
}

func (c *PlotCmd) Run(ctx *Context) error {
	plot, err := ctx.trace.ASCII(c.Width, c.Height)
	if err != nil {
		return err
	}
	fmt.Println(plot)
	if c.PNG == "" {
		return nil
	}
	f, err := os.Create(c.PNG)
	if err != nil {
		return err
	}
	defer f.Close()
	return ctx.trace.RenderPNG(f, 800, 400)
}

type QuitCmd struct{}

func (q *QuitCmd) Run(ctx *Context) error {
	return Quit
}

var Quit = errors.New("Quit")

type centredSticks struct{}

func (centredSticks) AxisPercent(int) (int, error) {
	return 0, nil
}

func main() {
	fmt.Println("---- maneuvertests ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	k, err := kong.New(&CLI, kong.Exit(func(int) {}))
	if err != nil {
		panic(err)
	}

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	simCfg := sim.DefaultConfig()
	simCfg.Geometry = cfg.Chassis.Geometry()
	simCfg.TrackWidthInches = cfg.Chassis.TrackWidthInches
	s, err := sim.New(simCfg)
	if err != nil {
		panic(err)
	}
	r, err := robot.New(cfg, s, centredSticks{}, robot.Sensors{Encoders: s, Inertial: s, Positioner: s})
	if err != nil {
		panic(err)
	}
	rec := trace.NewRecorder(10000)
	r.Observer = rec

	bg, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go s.Loop(bg, &wg, time.Millisecond)
	go r.Loop(bg, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	ctx := &Context{cfg: cfg, robot: r, sim: s, trace: rec}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("Enter a command:")
		if !scanner.Scan() {
			break
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		parsed, err := k.Parse(strings.Fields(command))
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		err = parsed.Run(ctx)
		if err == Quit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
			continue
		}
	}
}
