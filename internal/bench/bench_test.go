package bench

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.viam.com/test"

	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/gaze"
)

// fakeModel takes cost[device] of fake time per prediction
type fakeModel struct {
	clock  *fakeClock
	dev    device.Device
	cost   map[device.Device]time.Duration
	stuck  bool
	calls  map[device.Device]int
	failOn int
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (m *fakeModel) PredictRaw(input []float32, n int) (gaze.Angles, error) {
	if m.calls == nil {
		m.calls = map[device.Device]int{}
	}
	m.calls[m.dev]++
	if m.failOn > 0 && m.calls[m.dev] == m.failOn {
		return gaze.Angles{}, errors.New("session lost")
	}
	m.clock.now = m.clock.now.Add(m.cost[m.dev])
	return gaze.Angles{Pitch: make([]float32, n), Yaw: make([]float32, n)}, nil
}

func (m *fakeModel) To(dev device.Device) error {
	if !m.stuck {
		m.dev = dev
	}
	return nil
}

func (m *fakeModel) Device() device.Device { return m.dev }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newModel() (*fakeModel, Options) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := &fakeModel{
		clock: clock,
		dev:   device.CPUDevice,
		cost: map[device.Device]time.Duration{
			device.CPUDevice:   40 * time.Millisecond,
			device.MetalDevice: 10 * time.Millisecond,
		},
	}
	return m, Options{Warmup: 3, Runs: 10, Now: clock.Now}
}

func TestMeasure(t *testing.T) {
	m, opts := newModel()
	s, err := Measure(m, nil, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Device, test.ShouldResemble, device.CPUDevice)
	test.That(t, s.Mean, test.ShouldEqual, 40*time.Millisecond)
	test.That(t, s.StdDev, test.ShouldEqual, time.Duration(0))
	test.That(t, s.Samples, test.ShouldHaveLength, 10)
	test.That(t, m.calls[device.CPUDevice], test.ShouldEqual, 13)
}

func TestMeasureErrors(t *testing.T) {
	m, opts := newModel()
	opts.Runs = 0
	_, err := Measure(m, nil, opts)
	test.That(t, err, test.ShouldNotBeNil)

	m, opts = newModel()
	m.failOn = 5
	_, err = Measure(m, nil, opts)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "session lost")
}

func TestCompare(t *testing.T) {
	m, opts := newModel()
	r, err := Compare(m, device.MetalDevice, opts, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Accelerator, test.ShouldNotBeNil)
	test.That(t, r.Accelerator.Mean, test.ShouldEqual, 10*time.Millisecond)
	test.That(t, r.Speedup(), test.ShouldAlmostEqual, 4.0, 1e-9)

	var buf bytes.Buffer
	r.Write(&buf)
	test.That(t, buf.String(), test.ShouldContainSubstring, "CPU inference time: 40.0ms")
	test.That(t, buf.String(), test.ShouldContainSubstring, "metal inference time: 10.0ms")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Speedup: 4.0x")
}

func TestCompareWithoutAccelerator(t *testing.T) {
	m, opts := newModel()
	r, err := Compare(m, device.CPUDevice, opts, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Accelerator, test.ShouldBeNil)
	test.That(t, r.Speedup(), test.ShouldEqual, 0.0)

	// a provider that silently stays on cpu is not reported as an accelerator run
	m, opts = newModel()
	m.stuck = true
	r, err = Compare(m, device.MetalDevice, opts, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Accelerator, test.ShouldBeNil)

	var buf bytes.Buffer
	r.Write(&buf)
	test.That(t, buf.String(), test.ShouldContainSubstring, "No accelerator available")
}

func TestRandomInput(t *testing.T) {
	in := RandomInput(2)
	test.That(t, in, test.ShouldHaveLength, 2*3*InputSize*InputSize)
}

func TestEstimateFor(t *testing.T) {
	e := EstimateFor(640, 480)
	test.That(t, e.Ratio, test.ShouldEqual, 1.0)
	test.That(t, e.CPU, test.ShouldEqual, 55300*time.Microsecond)
	test.That(t, e.Accelerator, test.ShouldEqual, 31500*time.Microsecond)

	e = EstimateFor(1280, 720)
	test.That(t, e.Pixels(), test.ShouldEqual, 921600)
	test.That(t, e.Ratio, test.ShouldEqual, 3.0)
	test.That(t, ms(e.CPU), test.ShouldAlmostEqual, 165.9, 1e-6)

	var buf bytes.Buffer
	e.Write(&buf)
	test.That(t, buf.String(), test.ShouldContainSubstring, "Camera resolution: 1280x720")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Total pixels: 921,600")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Resolution is 3.0x larger than test")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Expected MPS time: 94.5ms")
}

func TestThousands(t *testing.T) {
	test.That(t, thousands(0), test.ShouldEqual, "0")
	test.That(t, thousands(999), test.ShouldEqual, "999")
	test.That(t, thousands(1000), test.ShouldEqual, "1,000")
	test.That(t, thousands(2073600), test.ShouldEqual, "2,073,600")
}
