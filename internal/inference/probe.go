package inference

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/metalgaze/internal/device"
)

// Prober answers accelerator availability by asking ONNX Runtime whether
// the matching execution provider can be attached to a session.
type Prober struct{}

// CUDAAvailable reports whether the CUDA execution provider loads
func (Prober) CUDAAvailable() bool {
	return probe(device.CUDADevice(0))
}

// MetalAvailable reports whether CoreML can run on Apple Silicon
func (Prober) MetalAvailable() bool {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return false
	}
	return probe(device.MetalDevice)
}

func probe(dev device.Device) bool {
	if !ort.IsInitialized() {
		return false
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		return false
	}
	defer options.Destroy()
	return appendProvider(options, dev) == nil
}

// TensorInfo describes one model input or output
type TensorInfo struct {
	Name     string
	Shape    []int64
	DataType string
}

// Info describes an ONNX model file
type Info struct {
	Inputs      []TensorInfo
	Outputs     []TensorInfo
	Producer    string
	Version     int64
	Domain      string
	Description string
}

// ModelInfo reads the input/output signature and metadata of an ONNX model.
// Metadata fields are best effort and left empty when unreadable.
func ModelInfo(modelPath string) (*Info, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model info for %s", modelPath)
	}

	info := &Info{
		Inputs:  convertInfo(inputs),
		Outputs: convertInfo(outputs),
	}

	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return info, nil
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		info.Producer = producer
	}
	if version, err := metadata.GetVersion(); err == nil {
		info.Version = version
	}
	if domain, err := metadata.GetDomain(); err == nil {
		info.Domain = domain
	}
	if desc, err := metadata.GetDescription(); err == nil {
		info.Description = desc
	}
	return info, nil
}

func convertInfo(in []ort.InputOutputInfo) []TensorInfo {
	out := make([]TensorInfo, 0, len(in))
	for _, i := range in {
		out = append(out, TensorInfo{
			Name:     i.Name,
			Shape:    append([]int64(nil), i.Dimensions...),
			DataType: fmt.Sprintf("%v", i.DataType),
		})
	}
	return out
}
