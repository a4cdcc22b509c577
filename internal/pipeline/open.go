package pipeline

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dudu/metalgaze/internal/detector"
	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/gaze"
	"github.com/dudu/metalgaze/internal/inference"
)

// DetectorKind selects the face detector backend
type DetectorKind string

const (
	DetectorSCRFD DetectorKind = "scrfd"
	DetectorYuNet DetectorKind = "yunet"
)

const (
	// detectorScoreFloor is the detector's own decode threshold; the
	// pipeline threshold is applied on top of it.
	detectorScoreFloor = 0.1
	detectorNMS        = 0.4
	detectorInputSize  = 640
)

// Options describes the models and devices to build a pipeline from
type Options struct {
	Config

	Detector          DetectorKind
	DetectorModelPath string
	GazeModelPath     string
	Arch              string
	RuntimeLibPath    string

	Device         device.Device
	DetectorDevice device.Device
}

// Open loads the detector and gaze model and returns a pipeline owning them
func Open(opts Options, log logrus.FieldLogger) (*Pipeline, error) {
	inference.SetLogger(log)
	if err := inference.Initialize(opts.RuntimeLibPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize inference")
	}

	construct, err := constructor(opts)
	if err != nil {
		return nil, err
	}

	det, err := detector.NewAdapter(construct, opts.DetectorDevice, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create detector")
	}
	log.WithField("device", det.Device().String()).Infof("Face detector (%s) ready", opts.Detector)

	model, err := gaze.NewL2CS(opts.GazeModelPath, opts.Arch, opts.Device)
	if err != nil {
		det.Close()
		return nil, errors.Wrap(err, "failed to create gaze model")
	}
	log.WithField("device", model.Device().String()).Infof("Gaze model (%s) ready", model.Arch())

	p := New(opts.Config, det, model, log)
	p.closers = []func() error{inference.Shutdown, det.Close, model.Close}
	return p, nil
}

func constructor(opts Options) (detector.Constructor, error) {
	switch opts.Detector {
	case DetectorSCRFD, "":
		return func(gpuID int) (detector.Detector, error) {
			return detector.NewSCRFD(opts.DetectorModelPath, gpuID, detectorInputSize, detectorScoreFloor, detectorNMS)
		}, nil
	case DetectorYuNet:
		return func(gpuID int) (detector.Detector, error) {
			dev := device.CPUDevice
			if gpuID >= 0 {
				dev = device.CUDADevice(gpuID)
			}
			return detector.NewYuNet(opts.DetectorModelPath, dev, detectorScoreFloor, detectorNMS)
		}, nil
	}
	return nil, errors.Errorf("unknown detector %q (use %q or %q)", opts.Detector, DetectorSCRFD, DetectorYuNet)
}
