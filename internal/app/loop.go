// Package app drives the capture, inference and display loop.
package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/gaze"
	"github.com/dudu/metalgaze/internal/pipeline"
	"github.com/dudu/metalgaze/internal/render"
)

// DefaultRetryDelay is the pause after the camera returns no frame
const DefaultRetryDelay = 100 * time.Millisecond

const keyEsc = 27

// Source yields camera frames
type Source interface {
	Read(frame *gocv.Mat) bool
}

// Stepper processes one frame
type Stepper interface {
	Step(frame gocv.Mat) (*pipeline.Result, error)
}

// Display shows frames and reports key presses
type Display interface {
	Show(frame *gocv.Mat)
	WaitKey(delayMs int) int
}

// Loop runs frames through the pipeline one at a time until the user quits.
type Loop struct {
	Source   Source
	Pipeline Stepper
	Display  Display
	Log      logrus.FieldLogger

	RetryDelay time.Duration
	Sleep      func(time.Duration)
	Now        func() time.Time
}

// Run processes frames until 'q' or ESC is pressed or ctx is cancelled.
// Camera read failures and invalid face batches are recovered per frame;
// any other pipeline error ends the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.defaults()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			l.Log.Info("Shutting down...")
			return nil
		default:
		}

		if !l.Source.Read(&frame) || frame.Empty() {
			l.Log.Warn("Failed to obtain frame")
			l.Sleep(l.RetryDelay)
			continue
		}
		start := l.Now()

		result, err := l.Pipeline.Step(frame)
		switch {
		case errors.Is(err, gaze.ErrInvalidBatch):
			l.Log.WithField("error", err.Error()).Debug("skipping gaze overlay for frame")
		case err != nil:
			return errors.Wrap(err, "frame processing failed")
		case !result.Empty():
			render.Draw(&frame, result)
		}

		render.DrawFPS(&frame, fps(l.Now().Sub(start)))

		l.Display.Show(&frame)
		if key := l.Display.WaitKey(1); key == 'q' || key == keyEsc {
			l.Log.Info("Quitting...")
			return nil
		}
	}
}

func (l *Loop) defaults() {
	if l.RetryDelay <= 0 {
		l.RetryDelay = DefaultRetryDelay
	}
	if l.Sleep == nil {
		l.Sleep = time.Sleep
	}
	if l.Now == nil {
		l.Now = time.Now
	}
	if l.Log == nil {
		l.Log = logrus.StandardLogger()
	}
}

// fps is the instantaneous frame rate for one frame's processing time
func fps(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return 1.0 / elapsed.Seconds()
}
