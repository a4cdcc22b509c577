package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/detector"
	"github.com/dudu/metalgaze/internal/gaze"
)

// ErrInvalidCrop is returned when a face box does not overlap the frame
var ErrInvalidCrop = errors.Wrap(gaze.ErrInvalidBatch, "face crop outside frame")

// Config holds per-frame pipeline configuration
type Config struct {
	DetectionResolution Resolution
	ConfThreshold       float32
}

// Timing holds performance timing information
type Timing struct {
	Detection time.Duration
	Inference time.Duration
	Total     time.Duration
}

// Result holds the faces found in one frame, in native-frame pixels.
// All slices have the same length.
type Result struct {
	Pitch     []float32
	Yaw       []float32
	Boxes     []detector.BoundingBox
	Landmarks []detector.Landmarks
	Scores    []float32
	Timing    Timing
}

// Len returns the number of faces
func (r *Result) Len() int {
	return len(r.Scores)
}

// Empty reports the "no usable face in this frame" outcome
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// Pipeline runs detection and gaze estimation on single frames.
// It carries no state between frames.
type Pipeline struct {
	config   Config
	detector FaceDetector
	model    GazeModel
	log      logrus.FieldLogger
	closers  []func() error
}

// New creates a pipeline around an existing detector and gaze model
func New(config Config, det FaceDetector, model GazeModel, log logrus.FieldLogger) *Pipeline {
	if config.DetectionResolution.Enabled() {
		log.Infof("Face detection resolution: %dx%d",
			config.DetectionResolution.Width, config.DetectionResolution.Height)
	}
	return &Pipeline{
		config:   config,
		detector: det,
		model:    model,
		log:      log,
	}
}

// Step detects faces in frame and estimates their gaze.
// A frame without qualifying faces yields an empty Result and no error;
// the gaze model is not called in that case. Faces whose crop falls
// entirely outside the frame are left out of the Result.
func (p *Pipeline) Step(frame gocv.Mat) (*Result, error) {
	start := time.Now()

	origWidth, origHeight := frame.Cols(), frame.Rows()
	scaleX, scaleY := ScaleFactors(origWidth, origHeight, p.config.DetectionResolution)

	detectionFrame := frame
	if p.config.DetectionResolution.Enabled() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(frame, &resized,
			image.Pt(p.config.DetectionResolution.Width, p.config.DetectionResolution.Height),
			0, 0, gocv.InterpolationLinear)
		detectionFrame = resized
	}

	detectStart := time.Now()
	faces, err := p.detector.Detect(detectionFrame)
	detectTime := time.Since(detectStart)
	if err != nil {
		return nil, errors.Wrap(err, "detection failed")
	}

	faces = lo.Filter(faces, func(f detector.Face, _ int) bool {
		return f.Score >= p.config.ConfThreshold
	})

	result := &Result{
		Pitch:     make([]float32, 0, len(faces)),
		Yaw:       make([]float32, 0, len(faces)),
		Boxes:     make([]detector.BoundingBox, 0, len(faces)),
		Landmarks: make([]detector.Landmarks, 0, len(faces)),
		Scores:    make([]float32, 0, len(faces)),
	}
	result.Timing.Detection = detectTime

	crops := make([]gocv.Mat, 0, len(faces))
	defer func() {
		for _, c := range crops {
			c.Close()
		}
	}()

	for _, f := range faces {
		scaled := Rescale(f, scaleX, scaleY)

		// crop from the full-resolution frame, not the detection frame
		crop, err := cropFace(frame, scaled.BoundingBox)
		if errors.Is(err, ErrInvalidCrop) {
			p.log.WithField("error", err.Error()).Debug("skipping face outside frame")
			continue
		}
		if err != nil {
			return nil, err
		}
		crops = append(crops, crop)

		result.Boxes = append(result.Boxes, scaled.BoundingBox)
		result.Landmarks = append(result.Landmarks, scaled.Landmarks)
		result.Scores = append(result.Scores, scaled.Score)
	}

	if len(crops) == 0 {
		result.Timing.Total = time.Since(start)
		return result, nil
	}

	inferStart := time.Now()
	angles, err := p.model.Predict(crops)
	result.Timing.Inference = time.Since(inferStart)
	if err != nil {
		return nil, errors.Wrap(err, "gaze prediction failed")
	}
	if angles.Len() != len(crops) || len(angles.Yaw) != len(crops) {
		return nil, errors.Errorf("gaze model returned %d/%d angles for %d faces",
			len(angles.Pitch), len(angles.Yaw), len(crops))
	}
	result.Pitch = append(result.Pitch, angles.Pitch...)
	result.Yaw = append(result.Yaw, angles.Yaw...)
	result.Timing.Total = time.Since(start)

	p.log.Info(timingLine(result.Timing))
	return result, nil
}

func timingLine(t Timing) string {
	return fmt.Sprintf("Face detection: %.1fms | Gaze prediction: %.1fms | Total: %.1fms",
		ms(t.Detection), ms(t.Inference), ms(t.Total))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// cropFace cuts box out of frame, converts it to RGB and resizes it to
// the gaze model input size
func cropFace(frame gocv.Mat, box detector.BoundingBox) (gocv.Mat, error) {
	rect := CropRect(box, frame.Cols(), frame.Rows())
	if rect.Empty() {
		return gocv.Mat{}, errors.Wrapf(ErrInvalidCrop, "box (%.1f,%.1f,%.1f,%.1f) in %dx%d frame",
			box.X1, box.Y1, box.X2, box.Y2, frame.Cols(), frame.Rows())
	}

	roi := frame.Region(rect)
	defer roi.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(roi, &rgb, gocv.ColorBGRToRGB)

	face := gocv.NewMat()
	gocv.Resize(rgb, &face, image.Pt(gaze.FaceSize, gaze.FaceSize), 0, 0, gocv.InterpolationLinear)
	return face, nil
}

// Close releases components the pipeline owns
func (p *Pipeline) Close() error {
	var err error
	for i := len(p.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, p.closers[i]())
	}
	p.closers = nil
	return err
}
