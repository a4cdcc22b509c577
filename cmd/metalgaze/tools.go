package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/tsawler/go-metal/checkpoints"
	"github.com/urfave/cli/v2"
	"gocv.io/x/gocv"

	"github.com/dudu/metalgaze/internal/bench"
	"github.com/dudu/metalgaze/internal/camera"
	"github.com/dudu/metalgaze/internal/config"
	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/gaze"
	"github.com/dudu/metalgaze/internal/inference"
)

const (
	flagWarmup = "warmup"
	flagRuns   = "runs"
)

func benchCommand(c *cli.Context) error {
	cfg := config.FromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	accel, err := selectDevice(cfg)
	if err != nil {
		return err
	}
	defer inference.Shutdown()

	model, err := gaze.NewL2CS(cfg.Weights, cfg.Arch, device.CPUDevice)
	if err != nil {
		return err
	}
	defer model.Close()

	opts := bench.DefaultOptions()
	opts.Warmup = c.Int(flagWarmup)
	opts.Runs = c.Int(flagRuns)

	report, err := bench.Compare(model, accel, opts, logger)
	if err != nil {
		return err
	}
	report.Write(c.App.Writer)
	return nil
}

func cameraCommand(c *cli.Context) error {
	cfg := config.FromContext(c)

	cam, err := camera.NewCapture(cfg.Cam, cfg.FPS)
	if err != nil {
		return errors.Wrap(err, "failed to open camera")
	}
	defer cam.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	if !cam.Read(&frame) || frame.Empty() {
		return errors.Errorf("camera %d returned no frame", cfg.Cam)
	}

	bench.EstimateFor(frame.Cols(), frame.Rows()).Write(c.App.Writer)
	return nil
}

func inspectCommand(c *cli.Context) error {
	cfg := config.FromContext(c)

	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = []string{cfg.Weights, cfg.DetectorModel}
	}

	inference.SetLogger(logger)
	if err := inference.Initialize(cfg.ORTLib); err != nil {
		return err
	}
	defer inference.Shutdown()

	w := c.App.Writer
	for _, path := range paths {
		fmt.Fprintf(w, "Model: %s\n", path)
		info, err := inference.ModelInfo(path)
		if err != nil {
			logger.WithField("model", path).Errorf("ONNX Runtime could not load model: %v", err)
			continue
		}
		writeInfo(w, info)
		writeMetalImport(w, path)
		fmt.Fprintln(w)
	}
	return nil
}

func writeInfo(w io.Writer, info *inference.Info) {
	fmt.Fprintf(w, "\nInputs (%d):\n", len(info.Inputs))
	for _, t := range info.Inputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%s\n", t.Name, t.Shape, t.DataType)
	}
	fmt.Fprintf(w, "\nOutputs (%d):\n", len(info.Outputs))
	for _, t := range info.Outputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%s\n", t.Name, t.Shape, t.DataType)
	}
	fmt.Fprintln(w, "\nMetadata:")
	fmt.Fprintf(w, "  Producer: %s\n", info.Producer)
	fmt.Fprintf(w, "  Version: %d\n", info.Version)
	fmt.Fprintf(w, "  Domain: %s\n", info.Domain)
	fmt.Fprintf(w, "  Description: %s\n", info.Description)
}

// writeMetalImport reports whether go-metal can run the model natively
func writeMetalImport(w io.Writer, path string) {
	checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(path)
	if err != nil {
		fmt.Fprintf(w, "\ngo-metal import: unsupported (%v)\n", err)
		return
	}
	fmt.Fprintf(w, "\ngo-metal import: %d layers, %d weight tensors\n",
		len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Fprintf(w, "  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}
