package inference

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/metalgaze/internal/device"
)

// DefaultLibraryPath is where the ONNX Runtime shared library is expected
// unless overridden on the command line.
const DefaultLibraryPath = "lib/libonnxruntime.dylib"

var (
	initialized bool
	initMu      sync.Mutex

	log logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger sets the logger used for provider diagnostics
func SetLogger(l logrus.FieldLogger) {
	log = l
}

// Initialize sets up ONNX Runtime environment (call once at startup)
func Initialize(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if libPath == "" {
		libPath = DefaultLibraryPath
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "failed to initialize ONNX Runtime from %s", libPath)
	}

	initialized = true
	return nil
}

// Shutdown cleans up ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session bound to one device.
// The binding can be changed after construction with To.
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
	device      device.Device
}

// NewSession creates a new inference session from an ONNX model on dev.
// If the execution provider for dev cannot be attached the session runs on CPU.
func NewSession(modelPath string, inputNames, outputNames []string, dev device.Device) (*Session, error) {
	if !initialized {
		return nil, errors.New("ONNX Runtime not initialized, call Initialize() first")
	}

	s := &Session{
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}
	if err := s.bind(dev); err != nil {
		return nil, err
	}
	return s, nil
}

// To moves the session to dev. The old session is released only once the
// new one has been created, so a failed move leaves s usable.
func (s *Session) To(dev device.Device) error {
	if s.session != nil && dev == s.device {
		return nil
	}
	return s.bind(dev)
}

func (s *Session) bind(dev device.Device) error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	actual := dev
	if err := appendProvider(options, dev); err != nil {
		log.WithFields(logrus.Fields{
			"model":  s.modelPath,
			"device": dev.String(),
			"error":  err.Error(),
		}).Warn("execution provider unavailable, using CPU")
		actual = device.CPUDevice
	}

	session, err := ort.NewDynamicAdvancedSession(s.modelPath, s.inputNames, s.outputNames, options)
	if err != nil {
		return errors.Wrapf(err, "failed to create session for %s", s.modelPath)
	}

	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			log.WithField("error", err.Error()).Warn("failed to release previous session")
		}
	}
	s.session = session
	s.device = actual

	log.WithFields(logrus.Fields{
		"model":  s.modelPath,
		"device": actual.String(),
	}).Debug("session bound")
	return nil
}

func appendProvider(options *ort.SessionOptions, dev device.Device) error {
	switch dev.Kind {
	case device.CUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return err
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(map[string]string{"device_id": strconv.Itoa(dev.Index)}); err != nil {
			return err
		}
		return options.AppendExecutionProviderCUDA(cudaOptions)
	case device.Metal:
		if runtime.GOOS != "darwin" {
			return errors.New("CoreML requires macOS")
		}
		// Flag 0 = default settings, use Neural Engine + GPU
		return options.AppendExecutionProviderCoreML(0)
	}
	return nil
}

// Device returns the device the session currently runs on
func (s *Session) Device() device.Device {
	return s.device
}

// ModelPath returns the model file backing the session
func (s *Session) ModelPath() string {
	return s.modelPath
}

// Run executes inference with the given inputs
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	if s.session == nil {
		return errors.New("session destroyed")
	}
	return s.session.Run(inputs, outputs)
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates an uninitialized tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	data := make([]T, size)
	return ort.NewTensor(ort.NewShape(shape...), data)
}
