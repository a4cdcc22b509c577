package detector

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
)

// YuNet uses OpenCV's FaceDetectorYN for face detection.
// OpenCV DNN has CPU and CUDA targets only.
type YuNet struct {
	detector      gocv.FaceDetectorYN
	modelPath     string
	confThreshold float32
	nmsThreshold  float32
	device        device.Device
}

// NewYuNet creates a YuNet detector on a CPU or CUDA device
func NewYuNet(modelPath string, dev device.Device, confThreshold, nmsThreshold float32) (*YuNet, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", modelPath)
	}

	y := &YuNet{
		modelPath:     modelPath,
		confThreshold: confThreshold,
		nmsThreshold:  nmsThreshold,
	}
	if err := y.bind(dev); err != nil {
		return nil, err
	}
	return y, nil
}

// To rebuilds the network on dev
func (y *YuNet) To(dev device.Device) error {
	if dev == y.device {
		return nil
	}
	old := y.detector
	if err := y.bind(dev); err != nil {
		return err
	}
	old.Close()
	return nil
}

// Device returns the device the detector runs on
func (y *YuNet) Device() device.Device {
	return y.device
}

func (y *YuNet) bind(dev device.Device) error {
	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	switch dev.Kind {
	case device.CUDA:
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case device.Metal:
		return errors.Wrapf(ErrUnsupportedDevice, "yunet on %s", dev)
	}

	// Input size is updated per image
	y.detector = gocv.NewFaceDetectorYNWithParams(
		y.modelPath,
		"",
		image.Pt(320, 320),
		y.confThreshold,
		y.nmsThreshold,
		5000,
		int(backend),
		int(target),
	)
	y.device = dev
	return nil
}

// Detect finds faces in an image
func (y *YuNet) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	y.detector.Detect(img, &out)

	// Row layout (15 columns): x, y, w, h, five landmark (x, y) pairs, score
	faces := make([]Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		at := func(c int) float32 { return out.GetFloatAt(r, c) }
		pt := func(i int) Point { return Point{X: at(4 + 2*i), Y: at(5 + 2*i)} }

		x, yy, w, h := at(0), at(1), at(2), at(3)
		faces = append(faces, Face{
			BoundingBox: BoundingBox{X1: x, Y1: yy, X2: x + w, Y2: yy + h},
			Landmarks: Landmarks{
				LeftEye:    pt(0),
				RightEye:   pt(1),
				Nose:       pt(2),
				LeftMouth:  pt(3),
				RightMouth: pt(4),
			},
			Score: at(14),
		})
	}
	return faces, nil
}

// Close releases the detector resources
func (y *YuNet) Close() error {
	y.detector.Close()
	return nil
}
