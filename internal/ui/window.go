package ui

import (
	"gocv.io/x/gocv"
)

// Window manages the preview display
type Window struct {
	window *gocv.Window
}

// NewWindow creates a new preview window
func NewWindow(name string) *Window {
	return &Window{
		window: gocv.NewWindow(name),
	}
}

// Show displays a frame
func (w *Window) Show(frame *gocv.Mat) {
	w.window.IMShow(*frame)
}

// WaitKey waits for key press, returns key code or -1.
// It must be called every frame for the window to repaint.
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		err := w.window.Close()
		w.window = nil
		return err
	}
	return nil
}
