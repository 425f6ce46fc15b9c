package chassis

import (
	"math"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/physic"
)

// ErrInvalidGeometry is returned by Validate for unusable chassis dimensions.
var ErrInvalidGeometry = errors.New("chassis: invalid geometry")

const (
	// Gearing between motor shaft and wheel on the competition robot.
	DefaultGearRatio = 0.67

	// 4" omni wheel.
	DefaultWheelCircumference = physic.Distance(12.57 * float64(physic.Inch))
)

// Geometry converts motor rotations into distance driven.
type Geometry struct {
	GearRatio          float64
	WheelCircumference physic.Distance
}

func Default() Geometry {
	return Geometry{
		GearRatio:          DefaultGearRatio,
		WheelCircumference: DefaultWheelCircumference,
	}
}

func (g Geometry) Validate() error {
	if !(g.GearRatio > 0) || math.IsInf(g.GearRatio, 0) {
		return errors.Wrapf(ErrInvalidGeometry, "gear ratio must be positive, got %v", g.GearRatio)
	}
	if g.WheelCircumference <= 0 {
		return errors.Wrapf(ErrInvalidGeometry, "wheel circumference must be positive, got %v", g.WheelCircumference)
	}
	return nil
}

// WheelCircumferenceInches returns the wheel circumference in inches.
func (g Geometry) WheelCircumferenceInches() float64 {
	return Inches(g.WheelCircumference)
}

// DrivenInches returns the distance covered by the wheels for the given
// motor rotation in degrees.
func (g Geometry) DrivenInches(rotationDegrees float64) float64 {
	return (rotationDegrees / 360) * g.GearRatio * g.WheelCircumferenceInches()
}

// RotationForInches is the inverse of DrivenInches.
func (g Geometry) RotationForInches(inches float64) float64 {
	return inches / (g.GearRatio * g.WheelCircumferenceInches()) * 360
}

// Inches converts a periph distance to inches.
func Inches(d physic.Distance) float64 {
	return float64(d) / float64(physic.Inch)
}

// FromInches converts inches to a periph distance.
func FromInches(in float64) physic.Distance {
	return physic.Distance(math.Round(in * float64(physic.Inch)))
}

// MeanAbsRotation averages the magnitudes of the given motor rotations, so
// that motors mounted in opposite orientations still count forwards.
func MeanAbsRotation(rotations ...float64) float64 {
	if len(rotations) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rotations {
		sum += math.Abs(r)
	}
	return sum / float64(len(rotations))
}
