package motion_test

import (
	"context"
	"math"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain"
	"github.com/tigerbot-team/diffdrive/pkg/drivetrain/drivetraintest"
	"github.com/tigerbot-team/diffdrive/pkg/motion"
	"github.com/tigerbot-team/diffdrive/pkg/pid"
	"github.com/tigerbot-team/diffdrive/pkg/sensors"
)

func fastOptions(tolerance float64, gains pid.Gains) motion.Options {
	opts := motion.DefaultOptions(tolerance, gains)
	opts.Period = time.Millisecond
	opts.StallTicks = 20
	return opts
}

func newDrivetrain() (*drivetrain.Drivetrain, *drivetraintest.Recorder) {
	rec := &drivetraintest.Recorder{}
	return drivetrain.New(rec), rec
}

func expectBrakedLast(g *WithT, rec *drivetraintest.Recorder) {
	calls := rec.Calls()
	g.Expect(len(calls)).To(BeNumerically(">=", 2))
	for _, c := range calls[len(calls)-2:] {
		g.Expect(c.Stop).To(BeTrue(), "calls: %v", calls)
		g.Expect(c.Mode).To(Equal(drivetrain.Brake))
	}
}

func TestDistanceReachesTargetAndBrakes(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	progress := []float64{0, 12, 24, 36, 47.9}
	enc := newScriptedEncoders(func(tick int) float64 {
		if tick >= len(progress) {
			return progress[len(progress)-1]
		}
		return progress[tick]
	})

	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Ticks).To(Equal(5))
	g.Expect(report.FinalError).To(BeNumerically("~", 0.1, 1e-6))
	g.Expect(enc.Resets()).To(Equal(2))

	calls := rec.Calls()
	g.Expect(calls[0]).To(Equal(drivetraintest.Call{Side: drivetrain.Left, Percent: 100}))
	g.Expect(rec.Stops()).To(HaveLen(2))
	expectBrakedLast(g, rec)
}

func TestDistanceTerminatesWithSteadyProgress(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return 1.5 * float64(tick) })

	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 30,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Ticks).To(Equal(21))
	g.Expect(math.Abs(report.FinalError)).To(BeNumerically("<", 0.125))
	expectBrakedLast(g, rec)
}

func TestDistanceNeverFinishesOnFirstTick(t *testing.T) {
	g := NewWithT(t)
	dt, _ := newDrivetrain()
	progress := []float64{0, 0.05}
	enc := newScriptedEncoders(func(tick int) float64 {
		if tick >= len(progress) {
			return progress[len(progress)-1]
		}
		return progress[tick]
	})

	// The whole target is inside the tolerance, but tick 0 still can't
	// finish the maneuver.
	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 0.1,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Ticks).To(Equal(2))
}

func TestDistanceZeroTargetIsImmediate(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(int) float64 { return 0 })

	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 0,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(report.Ticks).To(Equal(1))
	g.Expect(rec.Calls()).To(HaveLen(2))
	expectBrakedLast(g, rec)
}

func TestDistanceReverse(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return math.Min(2*float64(tick), 24) })

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), -24,
		fastOptions(0.125, pid.Gains{KP: 2}))

	g.Expect(err).NotTo(HaveOccurred())
	first := rec.Calls()[0]
	g.Expect(first.Stop).To(BeFalse())
	g.Expect(first.Percent).To(Equal(-48.0))
}

func TestDistanceStallTimesOut(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return math.Min(float64(tick), 10) })

	opts := fastOptions(0.125, pid.Gains{KP: 4})
	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48, opts)

	g.Expect(err).To(MatchError(motion.ErrStallTimeout))
	g.Expect(errors.Is(err, sensors.ErrSensorFault)).To(BeFalse())
	var merr *motion.ManeuverError
	g.Expect(errors.As(err, &merr)).To(BeTrue())
	g.Expect(merr.Kind).To(Equal(motion.KindStallTimeout))
	g.Expect(merr.LastError).To(BeNumerically("~", 38, 1e-6))
	// Progress stops on tick 10; the watchdog fires StallTicks ticks later.
	g.Expect(report.Ticks).To(Equal(10 + opts.StallTicks + 1))
	expectBrakedLast(g, rec)
}

func TestDistanceWallClockBudget(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return 0.01 * float64(tick) })

	opts := fastOptions(0.125, pid.Gains{KP: 4})
	opts.MaxDuration = 30 * time.Millisecond
	report, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48, opts)

	g.Expect(err).To(MatchError(motion.ErrStallTimeout))
	g.Expect(report.Elapsed).To(BeNumerically(">=", opts.MaxDuration))
	expectBrakedLast(g, rec)
}

func TestDistanceSensorFault(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return float64(tick) })
	enc.failAt = 3

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).To(MatchError(sensors.ErrSensorFault))
	g.Expect(errors.Is(err, errBus)).To(BeTrue())
	var merr *motion.ManeuverError
	g.Expect(errors.As(err, &merr)).To(BeTrue())
	g.Expect(merr.Tick).To(Equal(3))
	expectBrakedLast(g, rec)
}

func TestDistanceImplausibleReading(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 {
		if tick == 2 {
			return math.Inf(1)
		}
		return float64(tick)
	})

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).To(MatchError(sensors.ErrSensorFault))
	expectBrakedLast(g, rec)
}

func TestDistanceErrorBeyondFaultCeiling(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(int) float64 { return 0 })

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 2*motion.DefaultFaultCeiling,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).To(MatchError(sensors.ErrSensorFault))
	// Nothing but the brake.
	g.Expect(rec.Calls()).To(HaveLen(2))
	expectBrakedLast(g, rec)
}

func TestDistanceRejectsBadConfiguration(t *testing.T) {
	for _, tc := range []struct {
		name   string
		geom   chassis.Geometry
		target float64
		mutate func(*motion.Options)
		cause  error
	}{
		{name: "zero tolerance", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.Tolerance = 0 }},
		{name: "negative tolerance", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.Tolerance = -1 }},
		{name: "zero period", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.Period = 0 }},
		{name: "no stall ticks", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.StallTicks = 0 }},
		{name: "too much power", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.MaxPowerPercent = 150 }},
		{name: "NaN gain", geom: chassis.Default(), target: 10, mutate: func(o *motion.Options) { o.Gains.KI = math.NaN() }},
		{name: "NaN target", geom: chassis.Default(), target: math.NaN()},
		{name: "zero gear ratio", geom: chassis.Geometry{WheelCircumference: chassis.DefaultWheelCircumference}, target: 10, cause: chassis.ErrInvalidGeometry},
		{name: "negative circumference", geom: chassis.Geometry{GearRatio: 1, WheelCircumference: -1}, target: 10, cause: chassis.ErrInvalidGeometry},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			dt, rec := newDrivetrain()
			enc := newScriptedEncoders(func(int) float64 { return 0 })
			opts := fastOptions(0.125, pid.Gains{KP: 4})
			if tc.mutate != nil {
				tc.mutate(&opts)
			}

			_, err := motion.Distance(context.Background(), dt, enc, tc.geom, tc.target, opts)

			g.Expect(err).To(MatchError(motion.ErrInvalidConfiguration))
			if tc.cause != nil {
				g.Expect(errors.Is(err, tc.cause)).To(BeTrue())
			}
			g.Expect(rec.Calls()).To(BeEmpty())
			g.Expect(enc.Resets()).To(BeZero())
		})
	}
}

func TestDistanceCanceled(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return 0.01 * float64(tick) })

	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOptions(0.125, pid.Gains{KP: 4})
	opts.StallTicks = 1000
	opts.Observer = motion.ObserverFunc(func(s motion.Sample) {
		if s.Tick == 5 {
			cancel()
		}
	})

	report, err := motion.Distance(ctx, dt, enc, chassis.Default(), 48, opts)

	g.Expect(err).To(MatchError(motion.ErrCanceled))
	g.Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	g.Expect(report.Ticks).To(Equal(6))
	expectBrakedLast(g, rec)
}

func TestDistanceActuatorFailure(t *testing.T) {
	g := NewWithT(t)
	dt, rec := newDrivetrain()
	rec.Err = errBus
	enc := newScriptedEncoders(func(tick int) float64 { return float64(tick) })

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 48,
		fastOptions(0.125, pid.Gains{KP: 4}))

	g.Expect(err).To(MatchError(motion.ErrActuator))
	g.Expect(errors.Is(err, errBus)).To(BeTrue())
}

func TestObserverSeesEveryTick(t *testing.T) {
	g := NewWithT(t)
	dt, _ := newDrivetrain()
	enc := newScriptedEncoders(func(tick int) float64 { return math.Min(4*float64(tick), 20) })

	var samples []motion.Sample
	opts := fastOptions(0.125, pid.Gains{KP: 1, KI: 0.1})
	opts.Observer = motion.ObserverFunc(func(s motion.Sample) { samples = append(samples, s) })

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 20, opts)
	g.Expect(err).NotTo(HaveOccurred())

	// Ticks 0-4 command the motors; tick 5 reads zero error and stops.
	g.Expect(samples).To(HaveLen(5))
	for i, s := range samples {
		g.Expect(s.Tick).To(Equal(i))
		g.Expect(s.Maneuver).To(Equal("distance"))
		g.Expect(s.Error).To(BeNumerically("~", 20-4*float64(i), 1e-6))
	}
	g.Expect(samples[0].Power).To(BeNumerically("~", 22, 1e-6))
}

func TestDistanceIntegralDropsNearTarget(t *testing.T) {
	g := NewWithT(t)
	g.Expect(motion.DefaultOptions(0.3, pid.Gains{}).IntegralFloor).To(Equal(0.3))

	dt, _ := newDrivetrain()
	// Parks 0.2 inches short: outside tolerance but inside the floor.
	enc := newScriptedEncoders(func(tick int) float64 {
		if tick == 0 {
			return 0
		}
		return 9.8
	})

	var samples []motion.Sample
	opts := fastOptions(0.125, pid.Gains{KP: 1, KI: 1})
	opts.IntegralFloor = 0.25
	opts.Observer = motion.ObserverFunc(func(s motion.Sample) { samples = append(samples, s) })

	_, err := motion.Distance(context.Background(), dt, enc, chassis.Default(), 10, opts)
	g.Expect(err).To(HaveOccurred())

	g.Expect(len(samples)).To(BeNumerically(">", 2))
	g.Expect(samples[0].Terms.Integral).To(BeNumerically("~", 10, 1e-6))
	for _, s := range samples[1:] {
		g.Expect(s.Error).To(BeNumerically("~", 0.2, 1e-6))
		g.Expect(s.Terms.Integral).To(BeZero(), "tick %d", s.Tick)
	}
}
