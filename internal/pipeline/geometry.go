package pipeline

import (
	"image"

	"github.com/dudu/metalgaze/internal/detector"
)

// Resolution is the frame size used for face detection only.
// A non-positive dimension disables downscaling.
type Resolution struct {
	Width, Height int
}

// Enabled reports whether frames should be resized before detection
func (r Resolution) Enabled() bool {
	return r.Width > 0 && r.Height > 0
}

// ScaleFactors maps detection-space pixels back to native-frame pixels
func ScaleFactors(origWidth, origHeight int, det Resolution) (float32, float32) {
	if !det.Enabled() {
		return 1, 1
	}
	return float32(origWidth) / float32(det.Width), float32(origHeight) / float32(det.Height)
}

// Rescale maps a face from detection space to native-frame space.
// Only the min corner is clamped to zero; the max corner may lie past the
// frame edge.
func Rescale(f detector.Face, sx, sy float32) detector.Face {
	return detector.Face{
		BoundingBox: detector.BoundingBox{
			X1: max(0, f.BoundingBox.X1*sx),
			Y1: max(0, f.BoundingBox.Y1*sy),
			X2: f.BoundingBox.X2 * sx,
			Y2: f.BoundingBox.Y2 * sy,
		},
		Landmarks: f.Landmarks.Scale(sx, sy),
		Score:     f.Score,
	}
}

// CropRect returns the integer crop rectangle of box inside a frame of the
// given size. Coordinates are truncated, then intersected with the frame,
// so an unclamped max corner is tolerated. The result may be empty.
func CropRect(box detector.BoundingBox, frameWidth, frameHeight int) image.Rectangle {
	// not image.Rect: an inverted box must stay empty rather than be swapped
	r := image.Rectangle{
		Min: image.Pt(int(box.X1), int(box.Y1)),
		Max: image.Pt(int(box.X2), int(box.Y2)),
	}
	return r.Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}
