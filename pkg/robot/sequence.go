package robot

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Step is one leg of an autonomous routine.
type Step struct {
	Name string
	Run  func(ctx context.Context, r *Robot) error
}

// Drive is a distance maneuver using the configured distance tuning.
func Drive(inches float64) Step {
	return Step{
		Name: fmt.Sprintf("drive %.1fin", inches),
		Run: func(ctx context.Context, r *Robot) error {
			return r.RunDistanceManeuver(ctx, inches, r.cfg.Distance.Tolerance, r.cfg.Distance.Gains)
		},
	}
}

// Turn is a heading maneuver using the configured heading tuning.
func Turn(degrees float64) Step {
	return Step{
		Name: fmt.Sprintf("turn %.1fdeg", degrees),
		Run: func(ctx context.Context, r *Robot) error {
			return r.RunHeadingManeuver(ctx, degrees, r.cfg.Heading.Tolerance, r.cfg.Heading.Gains)
		},
	}
}

// GoTo is a position maneuver using the configured position tuning.
func GoTo(x, y float64) Step {
	return Step{
		Name: fmt.Sprintf("go to (%.1f, %.1f)", x, y),
		Run: func(ctx context.Context, r *Robot) error {
			return r.RunPositionManeuver(ctx, x, y, r.cfg.Position.Tolerance, r.cfg.Position.Gains)
		},
	}
}

// RunSequence runs the steps in order, stopping at the first failure.
// Teleop stays suspended between steps.
func (r *Robot) RunSequence(ctx context.Context, steps ...Step) error {
	r.suspendTeleop()
	defer r.resumeTeleop()

	for i, s := range steps {
		fmt.Printf("ROBOT: step %d/%d: %s\n", i+1, len(steps), s.Name)
		if err := s.Run(ctx, r); err != nil {
			return errors.Wrapf(err, "step %d (%s)", i+1, s.Name)
		}
	}
	return nil
}
