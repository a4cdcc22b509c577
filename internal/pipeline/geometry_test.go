package pipeline

import (
	"image"
	"testing"

	"go.viam.com/test"

	"github.com/dudu/metalgaze/internal/detector"
)

func TestScaleFactors(t *testing.T) {
	sx, sy := ScaleFactors(1280, 960, Resolution{Width: 640, Height: 480})
	test.That(t, sx, test.ShouldEqual, float32(2))
	test.That(t, sy, test.ShouldEqual, float32(2))

	sx, sy = ScaleFactors(1920, 1080, Resolution{Width: 640, Height: 480})
	test.That(t, sx, test.ShouldEqual, float32(3))
	test.That(t, sy, test.ShouldEqual, float32(2.25))

	for _, r := range []Resolution{{}, {Width: 640}, {Width: -1, Height: 480}} {
		sx, sy = ScaleFactors(1280, 720, r)
		test.That(t, sx, test.ShouldEqual, float32(1))
		test.That(t, sy, test.ShouldEqual, float32(1))
	}
}

// A face placed at a known native location, projected into detection space
// and rescaled, lands within one pixel of where it started.
func TestRescaleRoundTrip(t *testing.T) {
	truth := detector.BoundingBox{X1: 333, Y1: 217, X2: 611, Y2: 509}
	frames := []image.Point{{640, 480}, {1280, 720}, {1920, 1080}, {1281, 961}}
	resolutions := []Resolution{{}, {Width: 640, Height: 480}, {Width: 320, Height: 240}, {Width: 417, Height: 311}}

	for _, f := range frames {
		for _, r := range resolutions {
			sx, sy := ScaleFactors(f.X, f.Y, r)
			inDet := detector.Face{BoundingBox: detector.BoundingBox{
				X1: truth.X1 / sx, Y1: truth.Y1 / sy,
				X2: truth.X2 / sx, Y2: truth.Y2 / sy,
			}}
			got := Rescale(inDet, sx, sy).BoundingBox

			const tol = 1.0
			test.That(t, got.X1, test.ShouldAlmostEqual, truth.X1, tol)
			test.That(t, got.Y1, test.ShouldAlmostEqual, truth.Y1, tol)
			test.That(t, got.X2, test.ShouldAlmostEqual, truth.X2, tol)
			test.That(t, got.Y2, test.ShouldAlmostEqual, truth.Y2, tol)
		}
	}
}

func TestRescaleExact(t *testing.T) {
	f := detector.Face{
		BoundingBox: detector.BoundingBox{X1: 50, Y1: 50, X2: 100, Y2: 100},
		Score:       0.7,
	}
	got := Rescale(f, 2, 2)
	test.That(t, got.BoundingBox, test.ShouldResemble, detector.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 200})
	test.That(t, got.Score, test.ShouldEqual, float32(0.7))
}

func TestRescaleClampsMinCornerOnly(t *testing.T) {
	f := detector.Face{BoundingBox: detector.BoundingBox{X1: -5, Y1: -1, X2: 400, Y2: 300}}
	got := Rescale(f, 2, 2).BoundingBox
	test.That(t, got.X1, test.ShouldEqual, float32(0))
	test.That(t, got.Y1, test.ShouldEqual, float32(0))
	test.That(t, got.X2, test.ShouldEqual, float32(800))
	test.That(t, got.Y2, test.ShouldEqual, float32(600))
}

func TestCropRect(t *testing.T) {
	r := CropRect(detector.BoundingBox{X1: 100.7, Y1: 100.2, X2: 200.9, Y2: 200.1}, 640, 480)
	test.That(t, r, test.ShouldResemble, image.Rect(100, 100, 200, 200))

	r = CropRect(detector.BoundingBox{X1: 600, Y1: 400, X2: 700, Y2: 520}, 640, 480)
	test.That(t, r, test.ShouldResemble, image.Rect(600, 400, 640, 480))

	r = CropRect(detector.BoundingBox{X1: 700, Y1: 10, X2: 800, Y2: 100}, 640, 480)
	test.That(t, r.Empty(), test.ShouldBeTrue)

	r = CropRect(detector.BoundingBox{X1: 200, Y1: 200, X2: 100, Y2: 100}, 640, 480)
	test.That(t, r.Empty(), test.ShouldBeTrue)
}
