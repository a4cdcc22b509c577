package detector

import (
	"testing"

	"go.viam.com/test"
)

func box(x1, y1, x2, y2 float32) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestNMSKeepsHighestOverlapping(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 100, 100), Score: 0.6},
		{BoundingBox: box(5, 5, 105, 105), Score: 0.9},
		{BoundingBox: box(300, 300, 350, 350), Score: 0.7},
	}

	kept := nms(faces, 0.4)
	test.That(t, kept, test.ShouldHaveLength, 2)
	test.That(t, kept[0].Score, test.ShouldEqual, float32(0.9))
	test.That(t, kept[1].Score, test.ShouldEqual, float32(0.7))
}

func TestNMSTouchingBoxesSurvive(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 50, 50), Score: 0.8},
		{BoundingBox: box(50, 0, 100, 50), Score: 0.9},
		{BoundingBox: box(0, 50, 50, 100), Score: 0.7},
	}
	kept := nms(faces, 0)
	test.That(t, kept, test.ShouldHaveLength, 3)
	test.That(t, kept[0].Score, test.ShouldEqual, float32(0.9))
}

func TestNMSIdenticalBoxes(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(10, 10, 60, 60), Score: 0.5, Landmarks: Landmarks{Nose: Point{1, 1}}},
		{BoundingBox: box(10, 10, 60, 60), Score: 0.5, Landmarks: Landmarks{Nose: Point{2, 2}}},
		{BoundingBox: box(10, 10, 60, 60), Score: 0.4},
	}
	kept := nms(faces, 0.4)
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0].Landmarks.Nose, test.ShouldResemble, Point{1, 1})
}

func TestNMSZeroAreaBox(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(20, 20, 20, 80), Score: 0.95},
		{BoundingBox: box(0, 0, 100, 100), Score: 0.9},
	}
	kept := nms(faces, 0.4)
	test.That(t, kept, test.ShouldHaveLength, 2)
}

func TestNMSEmpty(t *testing.T) {
	test.That(t, nms(nil, 0.4), test.ShouldBeEmpty)
}

func TestIOU(t *testing.T) {
	a := box(0, 0, 10, 10)
	test.That(t, iou(a, a), test.ShouldAlmostEqual, 1.0)
	test.That(t, iou(a, box(20, 20, 30, 30)), test.ShouldEqual, float32(0))
	test.That(t, iou(a, box(10, 0, 20, 10)), test.ShouldEqual, float32(0))
	test.That(t, iou(a, box(5, 5, 5, 5)), test.ShouldEqual, float32(0))
	test.That(t, iou(a, box(5, 0, 15, 10)), test.ShouldAlmostEqual, 50.0/150.0, 1e-6)
}

func TestLandmarksScale(t *testing.T) {
	l := Landmarks{
		LeftEye:    Point{10, 20},
		RightEye:   Point{30, 20},
		Nose:       Point{20, 30},
		LeftMouth:  Point{12, 40},
		RightMouth: Point{28, 40},
	}
	s := l.Scale(2, 0.5)
	test.That(t, s.LeftEye, test.ShouldResemble, Point{20, 10})
	test.That(t, s.Nose, test.ShouldResemble, Point{40, 15})
	test.That(t, s.RightMouth, test.ShouldResemble, Point{56, 20})
}
