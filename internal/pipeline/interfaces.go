package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/detector"
	"github.com/dudu/metalgaze/internal/gaze"
)

// FaceDetector finds face candidates in the detection frame
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
}

// GazeModel predicts gaze angles for a batch of face crops in one call
type GazeModel interface {
	Predict(batch []gocv.Mat) (gaze.Angles, error)
}
