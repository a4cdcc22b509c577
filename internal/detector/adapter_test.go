package detector

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.viam.com/test"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
)

type fakeDetector struct {
	gpuID  int
	moves  []device.Device
	moveFn func(device.Device) error
	faces  []Face
	closed bool
}

func (f *fakeDetector) Detect(gocv.Mat) ([]Face, error) { return f.faces, nil }
func (f *fakeDetector) Close() error                     { f.closed = true; return nil }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestAdapterNativeDevices(t *testing.T) {
	var got *fakeDetector
	construct := func(gpuID int) (Detector, error) {
		got = &fakeDetector{gpuID: gpuID}
		return &movableRecorder{got}, nil
	}

	a, err := NewAdapter(construct, device.CPUDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.gpuID, test.ShouldEqual, -1)
	test.That(t, got.moves, test.ShouldBeEmpty)
	test.That(t, a.Device(), test.ShouldResemble, device.CPUDevice)

	a, err = NewAdapter(construct, device.CUDADevice(2), quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.gpuID, test.ShouldEqual, 2)
	test.That(t, got.moves, test.ShouldBeEmpty)
	test.That(t, a.Device(), test.ShouldResemble, device.CUDADevice(2))
}

func TestAdapterMetalTwoPhase(t *testing.T) {
	inner := &fakeDetector{}
	construct := func(gpuID int) (Detector, error) {
		inner.gpuID = gpuID
		return &movableRecorder{inner}, nil
	}

	a, err := NewAdapter(construct, device.MetalDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inner.gpuID, test.ShouldEqual, -1)
	test.That(t, inner.moves, test.ShouldResemble, []device.Device{device.MetalDevice})
	test.That(t, a.Device(), test.ShouldResemble, device.MetalDevice)
}

func TestAdapterMetalUnsupportedStaysOnCPU(t *testing.T) {
	inner := &fakeDetector{moveFn: func(dev device.Device) error {
		return errors.Wrap(ErrUnsupportedDevice, "no metal")
	}}
	construct := func(int) (Detector, error) { return &movableRecorder{inner}, nil }

	a, err := NewAdapter(construct, device.MetalDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Device(), test.ShouldResemble, device.CPUDevice)
	test.That(t, inner.closed, test.ShouldBeFalse)

	// not movable at all
	a, err = NewAdapter(func(int) (Detector, error) { return &fakeDetector{}, nil }, device.MetalDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Device(), test.ShouldResemble, device.CPUDevice)
}

func TestAdapterMoveFailure(t *testing.T) {
	inner := &fakeDetector{moveFn: func(device.Device) error { return errors.New("boom") }}
	construct := func(int) (Detector, error) { return &movableRecorder{inner}, nil }

	_, err := NewAdapter(construct, device.MetalDevice, quietLogger())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, inner.closed, test.ShouldBeTrue)
}

func TestAdapterConstructFailure(t *testing.T) {
	_, err := NewAdapter(func(int) (Detector, error) { return nil, errors.New("missing weights") },
		device.CPUDevice, quietLogger())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing weights")
}

func TestAdapterDetectNoFaces(t *testing.T) {
	a, err := NewAdapter(func(int) (Detector, error) { return &fakeDetector{}, nil }, device.CPUDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)

	img := gocv.NewMat()
	defer img.Close()
	faces, err := a.Detect(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, faces, test.ShouldNotBeNil)
	test.That(t, faces, test.ShouldHaveLength, 0)
}

func TestAdapterDetectDoesNotFilter(t *testing.T) {
	faces := []Face{{Score: 0.01}, {Score: 0.99}}
	a, err := NewAdapter(func(int) (Detector, error) { return &fakeDetector{faces: faces}, nil }, device.CPUDevice, quietLogger())
	test.That(t, err, test.ShouldBeNil)

	img := gocv.NewMat()
	defer img.Close()
	got, err := a.Detect(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, faces)
	test.That(t, a.Close(), test.ShouldBeNil)
}

// movableRecorder records moves on the shared inner fake
type movableRecorder struct{ *fakeDetector }

func (m *movableRecorder) To(dev device.Device) error {
	m.moves = append(m.moves, dev)
	if m.moveFn != nil {
		return m.moveFn(dev)
	}
	return nil
}
