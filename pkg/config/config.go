// Package config loads the robot's tuning from YAML and writes back the
// effective configuration so the operator can see what is actually in use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/motion"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/teleop"
)

const DefaultPath = "/cfg/diffdrive.yaml"

type Chassis struct {
	GearRatio                float64 `yaml:"gear-ratio"`
	WheelCircumferenceInches float64 `yaml:"wheel-circumference-inches"`
	TrackWidthInches         float64 `yaml:"track-width-inches"`
}

func (c Chassis) Geometry() chassis.Geometry {
	return chassis.Geometry{
		GearRatio:          c.GearRatio,
		WheelCircumference: chassis.FromInches(c.WheelCircumferenceInches),
	}
}

// Maneuver holds the tuning for one kind of maneuver.
type Maneuver struct {
	Tolerance       float64       `yaml:"tolerance"`
	Gains           pid.Gains     `yaml:"gains"`
	Period          time.Duration `yaml:"period"`
	MaxPowerPercent float64       `yaml:"max-power-percent"`
	IntegralFloor   float64       `yaml:"integral-floor"`
}

// Watchdog bounds every maneuver.
type Watchdog struct {
	StallTicks    int           `yaml:"stall-ticks"`
	StallEpsilon  float64       `yaml:"stall-epsilon"`
	MaxDuration   time.Duration `yaml:"max-duration"`
	SanityCeiling float64       `yaml:"sanity-ceiling"`
	FaultCeiling  float64       `yaml:"fault-ceiling"`
}

type Hardware struct {
	JoystickDevice string `yaml:"joystick-device"`
	IMUPort        string `yaml:"imu-port"`
	I2CBus         string `yaml:"i2c-bus"`
	// I2C addresses of the left and right motor controllers.
	LeftMotorAddress  int `yaml:"left-motor-address"`
	RightMotorAddress int `yaml:"right-motor-address"`
	// EncoderCountsPerRev converts controller counts to motor degrees.
	EncoderCountsPerRev float64 `yaml:"encoder-counts-per-rev"`
}

type Config struct {
	Chassis  Chassis       `yaml:"chassis"`
	Teleop   teleop.Config `yaml:"teleop"`
	Distance Maneuver      `yaml:"distance"`
	Heading  Maneuver      `yaml:"heading"`
	Position Maneuver      `yaml:"position"`
	Watchdog Watchdog      `yaml:"watchdog"`
	Hardware Hardware      `yaml:"hardware"`
	Verbose  bool          `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Chassis: Chassis{
			GearRatio:                chassis.DefaultGearRatio,
			WheelCircumferenceInches: chassis.Inches(chassis.DefaultWheelCircumference),
			TrackWidthInches:         11.5,
		},
		Teleop: teleop.DefaultConfig(),
		Distance: Maneuver{
			Tolerance:       0.125,
			Gains:           pid.Gains{KP: 4},
			Period:          motion.DefaultPeriod,
			MaxPowerPercent: 100,
			IntegralFloor:   0.25,
		},
		Heading: Maneuver{
			Tolerance:       1,
			Gains:           pid.Gains{KP: 0.6, KD: 0.2},
			Period:          motion.DefaultPeriod,
			MaxPowerPercent: 60,
		},
		Position: Maneuver{
			Tolerance:       2,
			Gains:           pid.Gains{KP: 0.1},
			Period:          motion.DefaultPeriod,
			MaxPowerPercent: 100,
			IntegralFloor:   20,
		},
		Watchdog: Watchdog{
			StallTicks:    motion.DefaultStallTicks,
			StallEpsilon:  motion.DefaultStallEpsilon,
			MaxDuration:   15 * time.Second,
			SanityCeiling: pid.DefaultSanityCeiling,
			FaultCeiling:  motion.DefaultFaultCeiling,
		},
		Hardware: Hardware{
			JoystickDevice:      "/dev/input/js0",
			IMUPort:             "/dev/ttyAMA0",
			I2CBus:              "/dev/i2c-1",
			LeftMotorAddress:    0x20,
			RightMotorAddress:   0x21,
			EncoderCountsPerRev: 4096,
		},
	}
}

// Options builds maneuver options from one maneuver's tuning plus the shared
// watchdog settings.
func (c Config) Options(m Maneuver) motion.Options {
	return motion.Options{
		Tolerance:       m.Tolerance,
		Gains:           m.Gains,
		Period:          m.Period,
		StallTicks:      c.Watchdog.StallTicks,
		StallEpsilon:    c.Watchdog.StallEpsilon,
		MaxDuration:     c.Watchdog.MaxDuration,
		MaxPowerPercent: m.MaxPowerPercent,
		IntegralFloor:   m.IntegralFloor,
		SanityCeiling:   c.Watchdog.SanityCeiling,
		FaultCeiling:    c.Watchdog.FaultCeiling,
		Verbose:         c.Verbose,
	}
}

// Validate checks every section and reports all the problems at once.
func (c Config) Validate() error {
	var problems []string
	check := func(section string, err error) {
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", section, err))
		}
	}
	check("chassis", c.Chassis.Geometry().Validate())
	if !(c.Chassis.TrackWidthInches > 0) {
		problems = append(problems, fmt.Sprintf("chassis: track width must be positive, not %v", c.Chassis.TrackWidthInches))
	}
	check("teleop", c.Teleop.Validate())
	check("distance", c.Options(c.Distance).Validate())
	check("heading", c.Options(c.Heading).Validate())
	check("position", c.Options(c.Position).Validate())
	if c.Hardware.EncoderCountsPerRev <= 0 {
		problems = append(problems, "hardware: encoder counts per rev must be positive")
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid config:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Load reads the config at path over the defaults.  A missing file is not an
// error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Printf("CONFIG: %s not found, using defaults\n", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "reading %s", path)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, cfg.Validate()
}

// InUsePath is where the effective config for path is written.
func InUsePath(path string) string {
	return strings.TrimSuffix(path, ".yaml") + "-in-use.yaml"
}

// SaveInUse writes the effective config next to the file it was loaded from.
func (c Config) SaveInUse(path string) error {
	out, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	inUse := InUsePath(path)
	if err := os.WriteFile(inUse, out, 0666); err != nil {
		return errors.Wrapf(err, "writing %s", inUse)
	}
	return nil
}
