package detector

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/device"
)

// ErrUnsupportedDevice is returned when a detector cannot run on a device
var ErrUnsupportedDevice = errors.New("device not supported by detector")

// Detector finds faces in an image. An image without faces yields an
// empty slice, not an error.
type Detector interface {
	Detect(img gocv.Mat) ([]Face, error)
	Close() error
}

// Movable is implemented by detectors whose device binding can change
// after construction.
type Movable interface {
	To(dev device.Device) error
}

// Point represents a 2D point
type Point struct {
	X, Y float32
}

// Scale multiplies the point coordinates independently
func (p Point) Scale(sx, sy float32) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	LeftMouth  Point
	RightMouth Point
}

// Scale multiplies every landmark by (sx, sy)
func (l Landmarks) Scale(sx, sy float32) Landmarks {
	return Landmarks{
		LeftEye:    l.LeftEye.Scale(sx, sy),
		RightEye:   l.RightEye.Scale(sx, sy),
		Nose:       l.Nose.Scale(sx, sy),
		LeftMouth:  l.LeftMouth.Scale(sx, sy),
		RightMouth: l.RightMouth.Scale(sx, sy),
	}
}

// Face represents a detected face in the pixel space of the image it was
// detected on
type Face struct {
	BoundingBox BoundingBox
	Landmarks   Landmarks
	Score       float32
}
