package detector

import (
	"image"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/inference"
)

// SCRFD implements the SCRFD face detector on ONNX Runtime.
//
// Like the RetinaFace wrappers it replaces, the constructor only knows
// about CPU (gpuID < 0) and CUDA ordinals. Other devices are reached by
// moving the constructed detector with To.
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(modelPath string, gpuID int, inputSize int, confThreshold, nmsThreshold float32) (*SCRFD, error) {
	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	dev := device.CPUDevice
	if gpuID >= 0 {
		dev = device.CUDADevice(gpuID)
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames, dev)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SCRFD session")
	}

	return &SCRFD{
		session:        session,
		inputSize:      inputSize,
		confThreshold:  confThreshold,
		nmsThreshold:   nmsThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// To moves the detector weights to dev
func (s *SCRFD) To(dev device.Device) error {
	return s.session.To(dev)
}

// Device returns the device the detector runs on
func (s *SCRFD) Device() device.Device {
	return s.session.Device()
}

// Detect finds faces in an image
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	origHeight := img.Rows()
	origWidth := img.Cols()

	inputData, scale, err := s.preprocess(img)
	if err != nil {
		return nil, err
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(s.inputSize), int64(s.inputSize)}, inputData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 0, 9)
	defer func() {
		for _, t := range outputTensors {
			t.Destroy()
		}
	}()

	// Outputs are ordered scores, bboxes, keypoints; each over the 3 strides
	for kind, width := range []int64{1, 4, 10} {
		for level, stride := range s.featureStrides {
			fm := s.inputSize / stride
			numAnchors := int64(fm * fm * s.numAnchors)

			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, errors.Wrap(err, "failed to create output tensor")
			}
			outputs[kind*3+level] = t
			outputTensors = append(outputTensors, t)
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	faces := s.postprocess(outputs, scale, origWidth, origHeight)

	return nms(faces, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the top-left of a square input
// and normalizes it to an NCHW RGB blob: (x - 127.5) / 128.0
func (s *SCRFD) preprocess(img gocv.Mat) ([]float32, float32, error) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	padded.SetTo(gocv.NewScalar(0, 0, 0, 0))

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read input blob")
	}
	// the blob is released on return
	return append([]float32(nil), data...), scale, nil
}

// postprocess decodes model outputs to faces
func (s *SCRFD) postprocess(outputs []ort.Value, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fmHeight := s.inputSize / stride
		fmWidth := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level].(*ort.Tensor[float32]).GetData()
		bboxData := outputs[level+3].(*ort.Tensor[float32]).GetData()
		kpsData := outputs[level+6].(*ort.Tensor[float32]).GetData()

		anchorIdx := 0
		for y := 0; y < fmHeight; y++ {
			for x := 0; x < fmWidth; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := scoreData[anchorIdx]

					if score > s.confThreshold {
						cx := (float32(x) + 0.5) * st
						cy := (float32(y) + 0.5) * st

						// distance to edges
						b := bboxData[anchorIdx*4 : anchorIdx*4+4]
						box := BoundingBox{
							X1: clamp((cx-b[0]*st)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-b[1]*st)/scale, 0, float32(origHeight)),
							X2: clamp((cx+b[2]*st)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+b[3]*st)/scale, 0, float32(origHeight)),
						}

						k := kpsData[anchorIdx*10 : anchorIdx*10+10]
						kp := func(i int) Point {
							return Point{(cx + k[2*i]*st) / scale, (cy + k[2*i+1]*st) / scale}
						}

						faces = append(faces, Face{
							BoundingBox: box,
							Landmarks: Landmarks{
								LeftEye:    kp(0),
								RightEye:   kp(1),
								Nose:       kp(2),
								LeftMouth:  kp(3),
								RightMouth: kp(4),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
