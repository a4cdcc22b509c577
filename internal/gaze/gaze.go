// Package gaze runs the L2CS gaze regressor on batches of face crops.
package gaze

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidBatch marks a batch the model cannot consume
	ErrInvalidBatch = errors.New("invalid gaze batch")
	// ErrEmptyBatch is returned for a batch with no images
	ErrEmptyBatch = errors.Wrap(ErrInvalidBatch, "empty batch")
)

const (
	// FaceSize is the side of the RGB face crops handed to Predict
	FaceSize = 224

	numBins   = 90
	binWidth  = 4.0
	binOffset = 180.0
)

// Angles holds per-face gaze angles in radians, aligned with the batch
type Angles struct {
	Pitch []float32
	Yaw   []float32
}

// Len returns the number of faces
func (a Angles) Len() int {
	return len(a.Pitch)
}

// Model predicts gaze angles for a batch of FaceSize×FaceSize RGB crops
// in a single call.
type Model interface {
	Predict(batch []gocv.Mat) (Angles, error)
	Close() error
}

// Decode turns per-face bin logits into angles. Each row is softmaxed and
// the expected bin index is mapped to degrees, then radians.
func Decode(pitchLogits, yawLogits []float32, n int) (Angles, error) {
	if len(pitchLogits) != n*numBins || len(yawLogits) != n*numBins {
		return Angles{}, errors.Errorf("expected %d logits per output, got %d and %d",
			n*numBins, len(pitchLogits), len(yawLogits))
	}

	out := Angles{
		Pitch: make([]float32, n),
		Yaw:   make([]float32, n),
	}
	for i := 0; i < n; i++ {
		out.Pitch[i] = binsToRadians(pitchLogits[i*numBins : (i+1)*numBins])
		out.Yaw[i] = binsToRadians(yawLogits[i*numBins : (i+1)*numBins])
	}
	return out, nil
}

func binsToRadians(logits []float32) float32 {
	peak := logits[0]
	for _, v := range logits[1:] {
		peak = max(peak, v)
	}

	var sum, expected float64
	for i, v := range logits {
		e := math.Exp(float64(v - peak))
		sum += e
		expected += e * float64(i)
	}
	degrees := expected/sum*binWidth - binOffset
	return float32(degrees * math.Pi / 180.0)
}
