package camera

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture manages webcam capture. The device is opened once and held
// until Close.
type Capture struct {
	webcam   *gocv.VideoCapture
	deviceID int
	width    int
	height   int
	mu       sync.Mutex
}

// NewCapture opens a camera at its default resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 0, 0)
}

// NewCaptureWithResolution opens a camera and requests a resolution.
// Zero values keep the camera defaults.
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open webcam %d", deviceID)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, errors.Errorf("cannot open webcam %d", deviceID)
	}

	if width > 0 && height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if targetFPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))
	}

	// Get actual dimensions (camera may not support requested resolution)
	return &Capture{
		webcam:   webcam,
		deviceID: deviceID,
		width:    int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height:   int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read captures a frame into the provided Mat
func (c *Capture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}

	return c.webcam.Read(frame)
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
