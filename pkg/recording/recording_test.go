package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/pose/posetest"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

var t0 = time.Unix(1_700_000_000, 0)

func record(t *testing.T, frames []*pose.Frame, gap time.Duration) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i, f := range frames {
		if err := w.Write(f, t0.Add(time.Duration(i)*gap)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func compress(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, _ := zstd.NewWriter(&buf)
	enc.Write([]byte(text))
	enc.Close()
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	data := record(t, []*pose.Frame{posetest.Jab(), nil, posetest.Guard()}, 33*time.Millisecond)

	r, err := NewReader(bytes.NewReader(data), false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	origin := r.Clock()

	tests := []struct {
		name   string
		want   *pose.Frame
		offset time.Duration
	}{
		{"jab", posetest.Jab(), 0},
		{"no detection", nil, 33 * time.Millisecond},
		{"guard", posetest.Guard(), 66 * time.Millisecond},
	}

	for _, tt := range tests {
		got, err := r.Next(context.Background())
		if err != nil {
			t.Fatalf("%s: Next: %v", tt.name, err)
		}
		if (got == nil) != (tt.want == nil) {
			t.Fatalf("%s: got frame %v, want %v", tt.name, got, tt.want)
		}
		if got != nil {
			for _, l := range pose.Required {
				gp, _ := got.Get(l)
				wp, _ := tt.want.Get(l)
				if gp != wp {
					t.Errorf("%s: %s = %+v, want %+v", tt.name, l, gp, wp)
				}
			}
		}
		if d := r.Clock().Sub(origin); d != tt.offset {
			t.Errorf("%s: clock offset = %v, want %v", tt.name, d, tt.offset)
		}
	}

	if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}

func TestReader_SkipsBlankLines(t *testing.T) {
	data := compress(t, "\n{\"t_ms\":0,\"landmarks\":null}\n\n{\"t_ms\":40,\"landmarks\":null}\n")

	r, _ := NewReader(bytes.NewReader(data), false)
	defer r.Close()

	n := 0
	for {
		_, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("frames = %d, want 2", n)
	}
}

func TestReader_BadLine(t *testing.T) {
	data := compress(t, "{\"t_ms\":0,\"landmarks\":null}\nnot json\n")

	r, _ := NewReader(bytes.NewReader(data), false)
	defer r.Close()

	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	_, err := r.Next(context.Background())
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestReader_NotZstd(t *testing.T) {
	r, err := NewReader(bytes.NewReader([]byte("plain text")), false)
	if err != nil {
		return
	}
	defer r.Close()
	if _, err := r.Next(context.Background()); err == nil {
		t.Error("expected an error reading a non-zstd stream")
	}
}

func TestReader_Paced(t *testing.T) {
	gap := 40 * time.Millisecond
	data := record(t, []*pose.Frame{nil, nil, nil}, gap)

	r, _ := NewReader(bytes.NewReader(data), true)
	defer r.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := r.Next(context.Background()); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*gap-5*time.Millisecond {
		t.Errorf("paced replay took %v, want at least %v", elapsed, 2*gap)
	}
}

func TestReader_PacedHonoursContext(t *testing.T) {
	data := record(t, []*pose.Frame{nil, nil}, time.Hour)

	r, _ := NewReader(bytes.NewReader(data), true)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r.Next(ctx)
	if _, err := r.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestReader_CloseEndsReplay(t *testing.T) {
	data := record(t, []*pose.Frame{nil, nil}, 0)

	r, _ := NewReader(bytes.NewReader(data), false)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWriter_ClosedRejectsWrites(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf)
	w.Close()

	if err := w.Write(nil, t0); !errors.Is(err, os.ErrClosed) {
		t.Errorf("expected os.ErrClosed, got %v", err)
	}
}

func TestPathAndSessionID(t *testing.T) {
	p := Path("/tmp/rec", "ring-1")
	if p != filepath.Join("/tmp/rec", "ring-1.jsonl.zst") {
		t.Errorf("Path = %s", p)
	}
	if id := SessionID(p); id != "ring-1" {
		t.Errorf("SessionID = %s", id)
	}
}

func TestRecorder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	rec := NewRecorder(dir)

	for i := 0; i < 3; i++ {
		if err := rec.Record("a", posetest.Guard(), t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	rec.Record("b", nil, t0)

	path, err := rec.Finish("a")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if path != Path(dir, "a") {
		t.Errorf("path = %s", path)
	}
	if p, err := rec.Finish("missing"); p != "" || err != nil {
		t.Errorf("Finish(missing) = %q, %v", p, err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	n := 0
	for {
		f, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f == nil {
			t.Error("guard frame replayed as no detection")
		}
		n++
	}
	if n != 3 {
		t.Errorf("frames = %d, want 3", n)
	}
	if _, err := os.Stat(Path(dir, "b")); err != nil {
		t.Errorf("Close should finish every recording: %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "none.jsonl.zst"), false); err == nil {
		t.Error("expected an error opening a missing recording")
	}
}

func TestReplayThroughSession(t *testing.T) {
	// A jab held for 18 frames, then guard: one punch, as when live
	frames := make([]*pose.Frame, 0, 30)
	for i := 0; i < 18; i++ {
		frames = append(frames, posetest.Jab())
	}
	for i := 0; i < 12; i++ {
		frames = append(frames, posetest.Guard())
	}
	data := record(t, frames, 33*time.Millisecond)

	r, _ := NewReader(bytes.NewReader(data), false)
	reg := session.NewRegistry(classifier.DefaultConfig(), r.Clock)
	s := reg.Create()

	if err := s.Run(context.Background(), r, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := s.Stats()
	if st.TotalPunches != 1 || st.PunchCounts[classifier.Jab] != 1 {
		t.Errorf("stats = %+v, want one jab", st)
	}
	if st.SessionDuration < 0.9 || st.SessionDuration > 1.0 {
		t.Errorf("session_duration = %v, want recorded time (~0.96s)", st.SessionDuration)
	}
}
