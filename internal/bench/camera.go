package bench

import (
	"fmt"
	"io"
	"time"
)

// Reference per-frame timings measured at 640x480
const (
	referenceWidth  = 640
	referenceHeight = 480

	referenceCPU         = 55300 * time.Microsecond
	referenceAccelerator = 31500 * time.Microsecond
)

// Estimate scales the reference timings to a camera resolution
type Estimate struct {
	Width, Height int
	Ratio         float64
	CPU           time.Duration
	Accelerator   time.Duration
}

// Pixels is the number of pixels in one frame
func (e Estimate) Pixels() int {
	return e.Width * e.Height
}

// EstimateFor assumes cost grows linearly with pixel count
func EstimateFor(width, height int) Estimate {
	ratio := float64(width*height) / float64(referenceWidth*referenceHeight)
	return Estimate{
		Width:       width,
		Height:      height,
		Ratio:       ratio,
		CPU:         time.Duration(float64(referenceCPU) * ratio),
		Accelerator: time.Duration(float64(referenceAccelerator) * ratio),
	}
}

// Write prints the estimate
func (e Estimate) Write(w io.Writer) {
	fmt.Fprintf(w, "Camera resolution: %dx%d\n", e.Width, e.Height)
	fmt.Fprintf(w, "Total pixels: %s\n", thousands(e.Pixels()))
	fmt.Fprintf(w, "\nResolution is %.1fx larger than test\n", e.Ratio)
	fmt.Fprintf(w, "Expected CPU time: %.1fms\n", ms(e.CPU))
	fmt.Fprintf(w, "Expected MPS time: %.1fms\n", ms(e.Accelerator))
}

func thousands(n int) string {
	s := fmt.Sprint(n)
	if n < 0 {
		return "-" + thousands(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
