// Package bench times the gaze model on the CPU against an accelerator and
// estimates per-frame cost at the camera's resolution.
package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/gaze"
)

// InputSize is the side of the square benchmark input
const InputSize = 448

// Model is a gaze model that can be timed on several devices
type Model interface {
	PredictRaw(input []float32, n int) (gaze.Angles, error)
	To(dev device.Device) error
	Device() device.Device
}

// Options controls a benchmark run
type Options struct {
	Warmup int
	Runs   int
	Now    func() time.Time
}

// DefaultOptions are 3 warm-up and 10 timed runs
func DefaultOptions() Options {
	return Options{Warmup: 3, Runs: 10, Now: time.Now}
}

// Stats summarizes the timed runs on one device
type Stats struct {
	Device  device.Device
	Mean    time.Duration
	StdDev  time.Duration
	Samples []float64 // milliseconds
}

// Report is the outcome of Compare
type Report struct {
	CPU         Stats
	Accelerator *Stats
}

// Speedup is CPU mean over accelerator mean, zero without an accelerator run
func (r Report) Speedup() float64 {
	if r.Accelerator == nil || r.Accelerator.Mean <= 0 {
		return 0
	}
	return float64(r.CPU.Mean) / float64(r.Accelerator.Mean)
}

// Write prints the report
func (r Report) Write(w io.Writer) {
	fmt.Fprintf(w, "CPU inference time: %.1fms (±%.1fms)\n", ms(r.CPU.Mean), ms(r.CPU.StdDev))
	if r.Accelerator == nil {
		fmt.Fprintln(w, "No accelerator available")
		return
	}
	fmt.Fprintf(w, "%s inference time: %.1fms (±%.1fms)\n",
		r.Accelerator.Device, ms(r.Accelerator.Mean), ms(r.Accelerator.StdDev))
	fmt.Fprintf(w, "Speedup: %.1fx\n", r.Speedup())
}

// RandomInput returns n standard-normal images in NCHW layout
func RandomInput(n int) []float32 {
	dist := distuv.UnitNormal
	input := make([]float32, n*3*InputSize*InputSize)
	for i := range input {
		input[i] = float32(dist.Rand())
	}
	return input
}

// Measure runs warm-up passes and then times opts.Runs single-image passes
// on whatever device m is currently bound to.
func Measure(m Model, input []float32, opts Options) (Stats, error) {
	if opts.Runs <= 0 {
		return Stats{}, errors.New("at least one timed run is needed")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	for i := 0; i < opts.Warmup; i++ {
		if _, err := m.PredictRaw(input, 1); err != nil {
			return Stats{}, errors.Wrap(err, "warm-up failed")
		}
	}

	samples := make([]float64, 0, opts.Runs)
	for i := 0; i < opts.Runs; i++ {
		start := opts.Now()
		if _, err := m.PredictRaw(input, 1); err != nil {
			return Stats{}, errors.Wrapf(err, "run %d failed", i)
		}
		samples = append(samples, ms(opts.Now().Sub(start)))
	}

	mean, std := stat.MeanStdDev(samples, nil)
	if len(samples) < 2 {
		std = 0
	}
	return Stats{
		Device:  m.Device(),
		Mean:    fromMS(mean),
		StdDev:  fromMS(std),
		Samples: samples,
	}, nil
}

// Compare times m on the CPU and then, when accel is an accelerator, on
// accel. The model is left bound to the last device measured.
func Compare(m Model, accel device.Device, opts Options, log logrus.FieldLogger) (Report, error) {
	input := RandomInput(1)

	if err := m.To(device.CPUDevice); err != nil {
		return Report{}, errors.Wrap(err, "failed to move model to cpu")
	}
	cpu, err := Measure(m, input, opts)
	if err != nil {
		return Report{}, errors.Wrap(err, "cpu benchmark")
	}
	report := Report{CPU: cpu}

	if !accel.IsAccelerator() {
		return report, nil
	}
	if err := m.To(accel); err != nil {
		return Report{}, errors.Wrapf(err, "failed to move model to %s", accel)
	}
	if got := m.Device(); got != accel {
		log.WithField("device", got.String()).Warnf("%s could not be bound, skipping accelerator run", accel)
		return report, nil
	}
	acc, err := Measure(m, input, opts)
	if err != nil {
		return Report{}, errors.Wrapf(err, "%s benchmark", accel)
	}
	report.Accelerator = &acc
	return report, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMS(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}
