package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind is a compute backend class
type Kind int

const (
	CPU Kind = iota
	CUDA
	// Metal is the unified-memory Apple Silicon GPU (CoreML / MPS)
	Metal
)

// Device is a concrete compute target
type Device struct {
	Kind  Kind
	Index int // CUDA ordinal, ignored otherwise
}

var (
	CPUDevice   = Device{Kind: CPU}
	MetalDevice = Device{Kind: Metal}
)

// CUDADevice returns the CUDA device with the given ordinal
func CUDADevice(index int) Device {
	return Device{Kind: CUDA, Index: index}
}

func (d Device) String() string {
	switch d.Kind {
	case CUDA:
		return fmt.Sprintf("cuda:%d", d.Index)
	case Metal:
		return "metal"
	default:
		return "cpu"
	}
}

// IsAccelerator reports whether d is anything other than the CPU
func (d Device) IsAccelerator() bool {
	return d.Kind != CPU
}

// Prober reports which accelerators are usable on this host
type Prober interface {
	CUDAAvailable() bool
	MetalAvailable() bool
}

// Select picks the compute device for a request string.
// An empty or "auto" request probes CUDA, then Metal, then falls back to CPU.
// It never fails: CPU is always assumed available.
func Select(request string, p Prober, log logrus.FieldLogger) Device {
	req := strings.ToLower(strings.TrimSpace(request))

	var (
		dev Device
		msg string
	)
	switch {
	case req == "" || req == "auto":
		dev, msg = best(p, 0)
		if !dev.IsAccelerator() {
			msg = "Using CPU (no GPU available)"
		}
	case strings.HasPrefix(req, "cpu"):
		dev, msg = CPUDevice, "Using CPU"
	case strings.HasPrefix(req, "gpu"), strings.HasPrefix(req, "cuda"):
		dev, msg = best(p, ordinal(req))
		if !dev.IsAccelerator() {
			msg = "GPU requested but not available, using CPU"
		}
	case strings.HasPrefix(req, "mps"), strings.HasPrefix(req, "metal"):
		if p.MetalAvailable() {
			dev, msg = MetalDevice, "Using MPS (Apple Silicon GPU) for acceleration"
		} else {
			dev, msg = CPUDevice, "Metal requested but not available, using CPU"
		}
	default:
		dev, msg = CPUDevice, "Using CPU"
	}

	log.WithField("device", dev.String()).Info(msg)
	return dev
}

func best(p Prober, cudaIndex int) (Device, string) {
	if p.CUDAAvailable() {
		return CUDADevice(cudaIndex), "Using CUDA GPU for acceleration"
	}
	if p.MetalAvailable() {
		return MetalDevice, "Using MPS (Apple Silicon GPU) for acceleration"
	}
	return CPUDevice, ""
}

// ordinal extracts N from "gpu:N" / "cuda:N", defaulting to 0
func ordinal(req string) int {
	_, idx, ok := strings.Cut(req, ":")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Parse parses a concrete device name without probing.
func Parse(s string) (Device, error) {
	req := strings.ToLower(strings.TrimSpace(s))
	switch {
	case req == "cpu":
		return CPUDevice, nil
	case req == "metal" || req == "mps":
		return MetalDevice, nil
	case req == "cuda" || req == "gpu" || strings.HasPrefix(req, "cuda:") || strings.HasPrefix(req, "gpu:"):
		return CUDADevice(ordinal(req)), nil
	}
	return Device{}, errors.Errorf("unknown device %q", s)
}
