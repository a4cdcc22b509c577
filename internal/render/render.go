// Package render draws gaze results and frame statistics onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/detector"
	"github.com/dudu/metalgaze/internal/pipeline"
)

var (
	gazeColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	fpsColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// GazeVector returns the arrow for one face: it starts at the box centre
// and its length is the box width.
func GazeVector(box detector.BoundingBox, pitch, yaw float32) (image.Point, image.Point) {
	x, y, w, h := drawBox(box)

	// start is truncated, the offset is rounded
	from := image.Pt(int(float64(x)+float64(w)/2), int(float64(y)+float64(h)/2))
	length := float64(w)

	dx := -length * math.Sin(float64(pitch)) * math.Cos(float64(yaw))
	dy := -length * math.Sin(float64(yaw))

	to := image.Pt(int(math.Round(float64(from.X)+dx)), int(math.Round(float64(from.Y)+dy)))
	return from, to
}

// drawBox truncates a box to pixels, clamping negative corners to zero
func drawBox(box detector.BoundingBox) (x, y, w, h int) {
	x1 := max(0, int(box.X1))
	y1 := max(0, int(box.Y1))
	x2 := max(0, int(box.X2))
	y2 := max(0, int(box.Y2))
	return x1, y1, x2 - x1, y2 - y1
}

// Draw overlays each face's gaze arrow and bounding box
func Draw(frame *gocv.Mat, r *pipeline.Result) {
	for i := 0; i < r.Len(); i++ {
		from, to := GazeVector(r.Boxes[i], r.Pitch[i], r.Yaw[i])
		gocv.ArrowedLine(frame, from, to, gazeColor, 2)

		x, y, w, h := drawBox(r.Boxes[i])
		gocv.Rectangle(frame, image.Rect(x, y, x+w, y+h), boxColor, 1)
	}
}

// FPSText formats the frame rate overlay
func FPSText(fps float64) string {
	return fmt.Sprintf("FPS: %.1f", fps)
}

// DrawFPS writes the frame rate in the top-left corner
func DrawFPS(frame *gocv.Mat, fps float64) {
	gocv.PutText(frame, FPSText(fps), image.Pt(10, 20),
		gocv.FontHersheyComplexSmall, 1, fpsColor, 1)
}
