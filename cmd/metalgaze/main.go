// Package main is the metalgaze webcam gaze-estimation demo.
package main

import (
	"log"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dudu/metalgaze/internal/config"
	"github.com/dudu/metalgaze/internal/logging"
)

func init() {
	// OpenCV's highgui must run on the main OS thread on macOS.
	runtime.LockOSThread()
}

var logger *logrus.Logger

func main() {
	if err := config.LoadEnv(""); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:  "metalgaze",
		Usage: "real-time gaze estimation from a webcam",
		Flags: config.Flags(),
		Before: func(c *cli.Context) error {
			var err error
			logger, err = newLogger(config.FromContext(c))
			return err
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "detect faces and draw gaze arrows on the live camera feed",
				Flags:  config.Flags(),
				Before: commandLogger,
				Action: runCommand,
			},
			{
				Name:  "bench",
				Usage: "time the gaze model on the CPU and on the best accelerator",
				Flags: append(config.Flags(),
					&cli.IntFlag{Name: flagWarmup, Value: 3, Usage: "untimed warm-up runs"},
					&cli.IntFlag{Name: flagRuns, Value: 10, Usage: "timed runs"},
				),
				Before: commandLogger,
				Action: benchCommand,
			},
			{
				Name:   "camera",
				Usage:  "print the camera resolution and the expected per-frame cost",
				Flags:  config.Flags(),
				Before: commandLogger,
				Action: cameraCommand,
			},
			{
				Name:      "inspect",
				Usage:     "print model inputs, outputs and metadata",
				ArgsUsage: "[model.onnx...]",
				Flags:     config.Flags(),
				Before:    commandLogger,
				Action:    inspectCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if logger != nil {
			logger.Fatal(err)
		}
		log.Fatal(err)
	}
}

func newLogger(cfg config.Config) (*logrus.Logger, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
}

// commandLogger rebuilds the logger once command-level flags are parsed
func commandLogger(c *cli.Context) error {
	var err error
	logger, err = newLogger(config.FromContext(c))
	return err
}
