package camera

import (
	"testing"

	"go.viam.com/test"
	"gocv.io/x/gocv"
)

func TestClosedCaptureDoesNotRead(t *testing.T) {
	c := &Capture{width: 640, height: 480}
	frame := gocv.NewMat()
	defer frame.Close()

	test.That(t, c.Read(&frame), test.ShouldBeFalse)
	test.That(t, c.Close(), test.ShouldBeNil)
	test.That(t, c.Width(), test.ShouldEqual, 640)
	test.That(t, c.Height(), test.ShouldEqual, 480)
}
