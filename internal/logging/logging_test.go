package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"go.viam.com/test"
)

func TestNewDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Output: &buf})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, log.GetLevel(), test.ShouldEqual, logrus.InfoLevel)

	log.Debug("hidden")
	log.WithField("device", "cpu").Info("Using CPU")
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "hidden")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Using CPU")
	test.That(t, buf.String(), test.ShouldContainSubstring, "cpu")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewTeesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "gaze.log")
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", File: file, Output: &buf})
	test.That(t, err, test.ShouldBeNil)

	log.Debug("frame skipped")
	test.That(t, buf.String(), test.ShouldContainSubstring, "frame skipped")

	data, err := os.ReadFile(file)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "frame skipped")
}
