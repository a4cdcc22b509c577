// Package config holds the runtime configuration of the gaze demo.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/gaze"
	"github.com/dudu/metalgaze/internal/inference"
	"github.com/dudu/metalgaze/internal/pipeline"
)

// Flag names
const (
	FlagDevice         = "device"
	FlagDetectorDevice = "detector-device"
	FlagWeights        = "weights"
	FlagDetectorModel  = "detector-model"
	FlagDetector       = "detector"
	FlagCam            = "cam"
	FlagArch           = "arch"
	FlagFDWidth        = "fd-width"
	FlagFDHeight       = "fd-height"
	FlagThreshold      = "threshold"
	FlagORTLib         = "ort-lib"
	FlagFPS            = "fps"
	FlagLogLevel       = "log-level"
	FlagLogFile        = "log-file"
)

const envPrefix = "METALGAZE_"

// Config is everything the run command needs
type Config struct {
	Device         string
	DetectorDevice string
	Weights        string
	DetectorModel  string
	Detector       string
	Cam            int
	Arch           string
	FDWidth        int
	FDHeight       int
	Threshold      float64
	ORTLib         string
	FPS            int
	LogLevel       string
	LogFile        string
}

// Default returns the configuration used when no flag or variable is set
func Default() Config {
	return Config{
		Weights:       "models/l2cs_gaze360.onnx",
		DetectorModel: "models/scrfd_10g.onnx",
		Detector:      string(pipeline.DetectorSCRFD),
		Arch:          "ResNet50",
		FDWidth:       640,
		FDHeight:      480,
		Threshold:     0.5,
		ORTLib:        inference.DefaultLibraryPath,
		FPS:           30,
		LogLevel:      "info",
	}
}

// LoadEnv loads variables from an optional dotenv file. A missing file is
// not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "failed to load %s", path)
}

func env(name string) []string {
	return []string{envPrefix + name}
}

// Flags returns the CLI flags, defaulted from Default
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagDevice,
			Usage:   "device to run the gaze model on: auto, cpu, gpu[:N], cuda[:N], mps",
			EnvVars: env("DEVICE"),
		},
		&cli.StringFlag{
			Name:    FlagDetectorDevice,
			Usage:   "device for the face detector (defaults to --device)",
			EnvVars: env("DETECTOR_DEVICE"),
		},
		&cli.StringFlag{
			Name:    FlagWeights,
			Aliases: []string{"snapshot"},
			Usage:   "path of the L2CS gaze model",
			Value:   d.Weights,
			EnvVars: env("WEIGHTS"),
		},
		&cli.StringFlag{
			Name:    FlagDetectorModel,
			Usage:   "path of the face detector model",
			Value:   d.DetectorModel,
			EnvVars: env("DETECTOR_MODEL"),
		},
		&cli.StringFlag{
			Name:    FlagDetector,
			Usage:   "face detector backend: scrfd or yunet",
			Value:   d.Detector,
			EnvVars: env("DETECTOR"),
		},
		&cli.IntFlag{
			Name:    FlagCam,
			Usage:   "camera device id",
			Value:   d.Cam,
			EnvVars: env("CAM"),
		},
		&cli.StringFlag{
			Name:    FlagArch,
			Usage:   "network architecture: ResNet18, ResNet34, ResNet50, ResNet101, ResNet152",
			Value:   d.Arch,
			EnvVars: env("ARCH"),
		},
		&cli.IntFlag{
			Name:    FlagFDWidth,
			Usage:   "width to resize frames to for face detection (0 = no resize)",
			Value:   d.FDWidth,
			EnvVars: env("FD_WIDTH"),
		},
		&cli.IntFlag{
			Name:    FlagFDHeight,
			Usage:   "height to resize frames to for face detection (0 = no resize)",
			Value:   d.FDHeight,
			EnvVars: env("FD_HEIGHT"),
		},
		&cli.Float64Flag{
			Name:    FlagThreshold,
			Usage:   "minimum detector score for a face to be processed",
			Value:   d.Threshold,
			EnvVars: env("THRESHOLD"),
		},
		&cli.StringFlag{
			Name:    FlagORTLib,
			Usage:   "path of the ONNX Runtime shared library",
			Value:   d.ORTLib,
			EnvVars: env("ORT_LIB"),
		},
		&cli.IntFlag{
			Name:    FlagFPS,
			Usage:   "requested camera frame rate",
			Value:   d.FPS,
			EnvVars: env("FPS"),
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Usage:   "log level: debug, info, warn, error",
			Value:   d.LogLevel,
			EnvVars: env("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FlagLogFile,
			Usage:   "also write logs to this file, rotated",
			EnvVars: env("LOG_FILE"),
		},
	}
}

// FromContext reads the flags of a CLI invocation. The flags may be given
// before or after the command name; a value set on the command wins.
func FromContext(c *cli.Context) Config {
	return Config{
		Device:         at(c, FlagDevice).String(FlagDevice),
		DetectorDevice: at(c, FlagDetectorDevice).String(FlagDetectorDevice),
		Weights:        at(c, FlagWeights).String(FlagWeights),
		DetectorModel:  at(c, FlagDetectorModel).String(FlagDetectorModel),
		Detector:       at(c, FlagDetector).String(FlagDetector),
		Cam:            at(c, FlagCam).Int(FlagCam),
		Arch:           at(c, FlagArch).String(FlagArch),
		FDWidth:        at(c, FlagFDWidth).Int(FlagFDWidth),
		FDHeight:       at(c, FlagFDHeight).Int(FlagFDHeight),
		Threshold:      at(c, FlagThreshold).Float64(FlagThreshold),
		ORTLib:         at(c, FlagORTLib).String(FlagORTLib),
		FPS:            at(c, FlagFPS).Int(FlagFPS),
		LogLevel:       at(c, FlagLogLevel).String(FlagLogLevel),
		LogFile:        at(c, FlagLogFile).String(FlagLogFile),
	}
}

// at returns the innermost context in which name was set, or c
func at(c *cli.Context, name string) *cli.Context {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx
		}
	}
	return c
}

// Validate checks the configuration before any model is loaded
func (c Config) Validate() error {
	if c.Weights == "" {
		return errors.New("no gaze model weights given")
	}
	if _, err := os.Stat(c.Weights); err != nil {
		return errors.Wrapf(err, "gaze model weights %s", c.Weights)
	}
	if !lo.Contains(gaze.Architectures, c.Arch) {
		return errors.Errorf("unknown architecture %q (one of %v)", c.Arch, gaze.Architectures)
	}
	kind := pipeline.DetectorKind(c.Detector)
	if kind != pipeline.DetectorSCRFD && kind != pipeline.DetectorYuNet {
		return errors.Errorf("unknown detector %q", c.Detector)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Errorf("threshold %v outside [0,1]", c.Threshold)
	}
	if c.DetectorDevice != "" {
		if _, err := device.Parse(c.DetectorDevice); err != nil {
			return err
		}
	}
	return nil
}

// PipelineOptions resolves device requests and returns pipeline options.
// The detector follows the gaze model's device unless overridden.
func (c Config) PipelineOptions(dev device.Device) (pipeline.Options, error) {
	detDev := dev
	if c.DetectorDevice != "" {
		var err error
		if detDev, err = device.Parse(c.DetectorDevice); err != nil {
			return pipeline.Options{}, err
		}
	}
	return pipeline.Options{
		Config: pipeline.Config{
			DetectionResolution: pipeline.Resolution{Width: c.FDWidth, Height: c.FDHeight},
			ConfThreshold:       float32(c.Threshold),
		},
		Detector:          pipeline.DetectorKind(c.Detector),
		DetectorModelPath: c.DetectorModel,
		GazeModelPath:     c.Weights,
		Arch:              c.Arch,
		RuntimeLibPath:    c.ORTLib,
		Device:            dev,
		DetectorDevice:    detDev,
	}, nil
}
