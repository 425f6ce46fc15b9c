package picobldc

type distanceProvider interface {
	RawDistancesTraveled() ([2]int16, error)
}

// DistanceTracker widens a board's wrapping 16-bit encoder counts into
// running totals.  It must be polled at least once per half wrap.
type DistanceTracker struct {
	board distanceProvider

	doneFirstPoll bool
	lastRawValues [2]int16

	accumulator [2]int64
}

func NewDistanceTracker(board distanceProvider) *DistanceTracker {
	return &DistanceTracker{
		board: board,
	}
}

func (d *DistanceTracker) Poll() error {
	raw, err := d.board.RawDistancesTraveled()
	if err != nil {
		return err
	}

	if d.doneFirstPoll {
		for m, newD := range raw {
			// int16 subtraction wraps, giving the short way round.
			delta := newD - d.lastRawValues[m]
			d.accumulator[m] += int64(delta)
		}
	}

	d.lastRawValues = raw
	d.doneFirstPoll = true
	return nil
}

// MeanCounts averages the front and back totals.
func (d *DistanceTracker) MeanCounts() float64 {
	return float64(d.accumulator[0]+d.accumulator[1]) / 2
}

func (d *DistanceTracker) Zero() {
	d.accumulator = [2]int64{}
}
