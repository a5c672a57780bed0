package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-smartspar/internal/config"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/pose/posetest"
	"github.com/teslashibe/go-smartspar/pkg/recording"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, k := range []string{config.EnvPort, config.EnvLogLevel, config.EnvDB, config.EnvConfig} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return buf.String(), err
}

func writeRecording(t *testing.T, dir, id string, frames []*pose.Frame) string {
	t.Helper()
	w, err := recording.Create(dir, id)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	start := time.Now()
	for i, f := range frames {
		w.Write(f, start.Add(time.Duration(i)*33*time.Millisecond))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return recording.Path(dir, id)
}

func jabThenGuard() []*pose.Frame {
	var frames []*pose.Frame
	for i := 0; i < 18; i++ {
		frames = append(frames, posetest.Jab())
	}
	for i := 0; i < 10; i++ {
		frames = append(frames, posetest.Guard())
	}
	return frames
}

func TestReplayAndHistory(t *testing.T) {
	isolate(t)
	path := writeRecording(t, t.TempDir(), "ring", jabThenGuard())

	out, err := execute(t, "replay", path, "--save")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Jab") || !strings.Contains(out, `"total_punches": 1`) {
		t.Errorf("unexpected replay output:\n%s", out)
	}

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "replay-ring") {
		t.Errorf("history should list the saved replay:\n%s", out)
	}

	out, err = execute(t, "history", "replay-ring")
	if err != nil {
		t.Fatalf("history get: %v", err)
	}
	if !strings.Contains(out, `"session_id": "replay-ring"`) {
		t.Errorf("unexpected report:\n%s", out)
	}

	out, err = execute(t, "history", "--totals")
	if err != nil {
		t.Fatalf("history totals: %v", err)
	}
	if !strings.Contains(out, "sessions: 1") {
		t.Errorf("unexpected totals:\n%s", out)
	}
}

func TestReplay_Errors(t *testing.T) {
	isolate(t)
	path := writeRecording(t, t.TempDir(), "ring", nil)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"replay", filepath.Join(t.TempDir(), "nope.jsonl.zst")}},
		{"unknown preset", []string{"replay", path, "--preset", "reckless"}},
		{"no args", []string{"replay"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHistory_Empty(t *testing.T) {
	isolate(t)

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No sessions") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "not found, using defaults") || !strings.Contains(out, "[classifier]") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCameraConfigMapping(t *testing.T) {
	c := config.Default().Camera
	c.FPS = 29.97

	got := cameraConfig(c)
	if got.Framerate != 30 || got.Width != 640 || len(got.Devices) != 3 {
		t.Errorf("cameraConfig() = %+v", got)
	}
	if errs := got.Validate(); len(errs) > 0 {
		t.Errorf("mapped default config invalid: %v", errs)
	}
}
