package gaze

import (
	"image"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/inference"
)

const l2csInputSize = 448

// ImageNet normalization, RGB order
var (
	mean = [3]float32{0.485, 0.456, 0.406}
	std  = [3]float32{0.229, 0.224, 0.225}
)

// Architectures lists the L2CS backbones the exported weights come in
var Architectures = []string{"ResNet18", "ResNet34", "ResNet50", "ResNet101", "ResNet152"}

// L2CS is the L2CS-Net gaze model exported to ONNX.
// Outputs are two [N,90] bin-logit tensors for pitch and yaw.
type L2CS struct {
	session *inference.Session
	arch    string
}

// NewL2CS loads the gaze model on dev
func NewL2CS(modelPath, arch string, dev device.Device) (*L2CS, error) {
	session, err := inference.NewSession(modelPath, []string{"input"}, []string{"pitch", "yaw"}, dev)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create L2CS session")
	}
	return &L2CS{session: session, arch: arch}, nil
}

// To moves the model to dev
func (m *L2CS) To(dev device.Device) error {
	return m.session.To(dev)
}

// Device returns the device the model runs on
func (m *L2CS) Device() device.Device {
	return m.session.Device()
}

// Arch returns the backbone name
func (m *L2CS) Arch() string {
	return m.arch
}

// Predict runs the whole batch through the network in one session run
func (m *L2CS) Predict(batch []gocv.Mat) (Angles, error) {
	if len(batch) == 0 {
		return Angles{}, ErrEmptyBatch
	}

	n := len(batch)
	plane := l2csInputSize * l2csInputSize
	input := make([]float32, n*3*plane)
	for i, face := range batch {
		if err := validFace(face); err != nil {
			return Angles{}, errors.Wrapf(err, "face %d", i)
		}

		resized := gocv.NewMat()
		gocv.Resize(face, &resized, image.Pt(l2csInputSize, l2csInputSize), 0, 0, gocv.InterpolationLinear)
		packNCHW(input[i*3*plane:(i+1)*3*plane], resized.ToBytes(), l2csInputSize)
		resized.Close()
	}

	return m.run(input, n)
}

// PredictRaw runs an already normalized [n,3,448,448] input
func (m *L2CS) PredictRaw(input []float32, n int) (Angles, error) {
	if n == 0 {
		return Angles{}, ErrEmptyBatch
	}
	if len(input) != n*3*l2csInputSize*l2csInputSize {
		return Angles{}, errors.Wrapf(ErrInvalidBatch, "input has %d values for batch of %d", len(input), n)
	}
	return m.run(input, n)
}

func (m *L2CS) run(input []float32, n int) (Angles, error) {
	inputTensor, err := inference.CreateTensor([]int64{int64(n), 3, l2csInputSize, l2csInputSize}, input)
	if err != nil {
		return Angles{}, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	pitch, err := inference.CreateEmptyTensor[float32]([]int64{int64(n), numBins})
	if err != nil {
		return Angles{}, errors.Wrap(err, "failed to create pitch tensor")
	}
	defer pitch.Destroy()

	yaw, err := inference.CreateEmptyTensor[float32]([]int64{int64(n), numBins})
	if err != nil {
		return Angles{}, errors.Wrap(err, "failed to create yaw tensor")
	}
	defer yaw.Destroy()

	if err := m.session.Run([]ort.Value{inputTensor}, []ort.Value{pitch, yaw}); err != nil {
		return Angles{}, errors.Wrapf(err, "gaze inference on %s failed", m.session.ModelPath())
	}

	return Decode(pitch.GetData(), yaw.GetData(), n)
}

// Close releases the session
func (m *L2CS) Close() error {
	return m.session.Destroy()
}

func validFace(face gocv.Mat) error {
	if face.Empty() {
		return errors.Wrap(ErrInvalidBatch, "empty face image")
	}
	if face.Type() != gocv.MatTypeCV8UC3 {
		return errors.Wrapf(ErrInvalidBatch, "face image type %v, want 8UC3", face.Type())
	}
	if face.Rows() != FaceSize || face.Cols() != FaceSize {
		return errors.Wrapf(ErrInvalidBatch, "face image %dx%d, want %dx%d",
			face.Cols(), face.Rows(), FaceSize, FaceSize)
	}
	return nil
}

// packNCHW writes an interleaved RGB byte image of size×size into dst as
// three normalized planes
func packNCHW(dst []float32, rgb []byte, size int) {
	plane := size * size
	for p := 0; p < plane; p++ {
		for c := 0; c < 3; c++ {
			v := float32(rgb[p*3+c]) / 255.0
			dst[c*plane+p] = (v - mean[c]) / std[c]
		}
	}
}
