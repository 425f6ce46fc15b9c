package trace

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/tigerbot-team/diffdrive/pkg/motion"
)

func record(r *Recorder, n int) {
	for i := 0; i < n; i++ {
		r.Observe(motion.Sample{
			Maneuver: "distance",
			Tick:     i,
			Error:    float64(n - i),
			Power:    4 * float64(n-i),
		})
	}
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(3)
	record(r, 5)
	samples := r.Samples()
	if len(samples) != 3 || samples[0].Tick != 2 {
		t.Errorf("expected the last three samples, got %+v", samples)
	}
	r.Reset()
	if len(r.Samples()) != 0 {
		t.Error("expected reset to drop samples")
	}
}

func TestSeries(t *testing.T) {
	r := NewRecorder(0)
	record(r, 4)
	errs, power := r.Series()
	if len(errs) != 4 || errs[0] != 4 || power[3] != 4 {
		t.Errorf("unexpected series %v %v", errs, power)
	}
}

func TestASCII(t *testing.T) {
	r := NewRecorder(0)
	if _, err := r.ASCII(40, 5); err != ErrNoSamples {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
	record(r, 20)
	plot, err := r.ASCII(40, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plot, "distance error over 20 ticks") {
		t.Errorf("missing caption in plot:\n%s", plot)
	}
}

func TestRenderPNG(t *testing.T) {
	r := NewRecorder(0)
	record(r, 20)

	var buf bytes.Buffer
	if err := r.RenderPNG(&buf, 320, 200); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 200 {
		t.Errorf("unexpected image size %v", b)
	}
}
