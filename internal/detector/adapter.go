package detector

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
)

// Constructor builds a detector natively on CPU (gpuID < 0) or on a CUDA
// ordinal. It is the only device choice wrapped detectors accept at
// construction time.
type Constructor func(gpuID int) (Detector, error)

// Adapter presents one Detect call regardless of the device the wrapped
// detector runs on.
type Adapter struct {
	det    Detector
	device device.Device
}

// NewAdapter constructs a detector for dev. Devices the constructor cannot
// express (Metal) are reached in two phases: build on CPU, then move.
// If the move is unsupported the detector stays on CPU.
func NewAdapter(construct Constructor, dev device.Device, log logrus.FieldLogger) (*Adapter, error) {
	gpuID := -1
	if dev.Kind == device.CUDA {
		gpuID = dev.Index
	}

	det, err := construct(gpuID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to construct detector for %s", dev)
	}

	a := &Adapter{det: det, device: dev}
	if dev.Kind == device.CUDA || dev.Kind == device.CPU {
		a.device = effective(det, dev)
		return a, nil
	}

	a.device = device.CPUDevice
	m, ok := det.(Movable)
	if !ok {
		log.WithField("device", dev.String()).Warn("face detector cannot be moved, staying on CPU")
		return a, nil
	}
	if err := m.To(dev); err != nil {
		if errors.Is(err, ErrUnsupportedDevice) {
			log.WithFields(logrus.Fields{
				"device": dev.String(),
				"error":  err.Error(),
			}).Warn("face detector device unsupported, staying on CPU")
			return a, nil
		}
		det.Close()
		return nil, errors.Wrapf(err, "failed to move detector to %s", dev)
	}
	a.device = effective(det, dev)
	return a, nil
}

func effective(det Detector, requested device.Device) device.Device {
	if d, ok := det.(interface{ Device() device.Device }); ok {
		return d.Device()
	}
	return requested
}

// Detect runs the wrapped detector. No faces yields an empty slice.
// Scores are not filtered here.
func (a *Adapter) Detect(img gocv.Mat) ([]Face, error) {
	faces, err := a.det.Detect(img)
	if err != nil {
		return nil, err
	}
	if faces == nil {
		faces = []Face{}
	}
	return faces, nil
}

// Device returns the device the wrapped detector runs on
func (a *Adapter) Device() device.Device {
	return a.device
}

// Close releases the wrapped detector
func (a *Adapter) Close() error {
	return a.det.Close()
}
