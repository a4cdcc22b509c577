package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/dudu/metalgaze/internal/app"
	"github.com/dudu/metalgaze/internal/camera"
	"github.com/dudu/metalgaze/internal/config"
	"github.com/dudu/metalgaze/internal/device"
	"github.com/dudu/metalgaze/internal/inference"
	"github.com/dudu/metalgaze/internal/pipeline"
	"github.com/dudu/metalgaze/internal/ui"
)

func runCommand(c *cli.Context) error {
	cfg := config.FromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	dev, err := selectDevice(cfg)
	if err != nil {
		return err
	}
	defer inference.Shutdown()

	opts, err := cfg.PipelineOptions(dev)
	if err != nil {
		return err
	}

	logger.Info("Loading models...")
	p, err := pipeline.Open(opts, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Infof("Opening camera %d...", cfg.Cam)
	cam, err := camera.NewCapture(cfg.Cam, cfg.FPS)
	if err != nil {
		return errors.Wrap(err, "failed to open camera")
	}
	defer cam.Close()
	logger.Infof("Camera opened: %dx%d", cam.Width(), cam.Height())

	window := ui.NewWindow("MetalGaze")
	defer window.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := &app.Loop{
		Source:   cam,
		Pipeline: p,
		Display:  window,
		Log:      logger,
	}
	logger.Info("Running... Press 'q' to quit")
	return loop.Run(ctx)
}

// selectDevice brings up ONNX Runtime so providers can be probed
func selectDevice(cfg config.Config) (device.Device, error) {
	inference.SetLogger(logger)
	if err := inference.Initialize(cfg.ORTLib); err != nil {
		return device.Device{}, err
	}
	return device.Select(cfg.Device, inference.Prober{}, logger), nil
}
