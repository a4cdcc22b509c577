package detector

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// nms keeps the best-scoring face of every cluster whose pairwise IoU
// exceeds iouThreshold. Equal scores keep their detection order.
func nms(faces []Face, iouThreshold float32) []Face {
	slices.SortStableFunc(faces, func(a, b Face) int {
		return cmp.Compare(b.Score, a.Score)
	})

	kept := make([]Face, 0, len(faces))
	for len(faces) > 0 {
		best := faces[0]
		kept = append(kept, best)
		faces = lo.Filter(faces[1:], func(f Face, _ int) bool {
			return iou(best.BoundingBox, f.BoundingBox) <= iouThreshold
		})
	}
	return kept
}

// iou is zero for disjoint, touching or degenerate boxes
func iou(a, b BoundingBox) float32 {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
