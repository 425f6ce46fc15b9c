// Package trace records maneuver ticks for tuning: a Recorder plugs into a
// maneuver as its observer and the samples can then be plotted to the
// terminal or rendered to a PNG.
package trace

import (
	"sync"

	"github.com/tigerbot-team/diffdrive/pkg/motion"
)

// Recorder is a motion.Observer that keeps every sample.  It is safe for
// concurrent use so a UI goroutine can plot while a maneuver runs.
type Recorder struct {
	lock    sync.Mutex
	samples []motion.Sample
	limit   int
}

var _ motion.Observer = (*Recorder)(nil)

// NewRecorder returns a recorder that keeps at most limit samples, dropping
// the oldest.  A limit of zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Observe(s motion.Sample) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.samples = append(r.samples, s)
	if r.limit > 0 && len(r.samples) > r.limit {
		r.samples = r.samples[len(r.samples)-r.limit:]
	}
}

func (r *Recorder) Samples() []motion.Sample {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]motion.Sample(nil), r.samples...)
}

func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.samples = nil
}

// Series splits the samples into error and power series.
func (r *Recorder) Series() (errs, power []float64) {
	for _, s := range r.Samples() {
		errs = append(errs, s.Error)
		power = append(power, s.Power)
	}
	return
}
