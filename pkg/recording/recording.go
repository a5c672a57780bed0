// Package recording stores keypoint streams as zstd-compressed JSON lines and
// replays them as session sources.
//
// Each line is one frame:
//
//	{"t_ms": 33, "landmarks": {"NOSE": {"x": 0.5, ...}, ...}}
//
// with "landmarks": null for frames where nobody was detected. t_ms counts
// from the first recorded frame.
package recording

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// Ext is the file extension of recordings.
const Ext = ".jsonl.zst"

// Entry is one recorded frame.
type Entry struct {
	TMs       int64                        `json:"t_ms"`
	Landmarks map[pose.Landmark]pose.Point `json:"landmarks"`
}

// Frame returns the entry as a classifier input. Nil landmarks mean no
// detection.
func (e Entry) Frame() *pose.Frame {
	if e.Landmarks == nil {
		return nil
	}
	return &pose.Frame{Landmarks: e.Landmarks}
}

// Path returns the recording path for a session in dir.
func Path(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+Ext)
}

// SessionID extracts the session ID from a recording path.
func SessionID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

// Writer appends frames to a compressed recording.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *zstd.Encoder
	json   *json.Encoder
	start  time.Time
	frames int
}

// Create creates the recording file for a session in dir.
func Create(dir, sessionID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording dir: %w", err)
	}
	f, err := os.Create(Path(dir, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes a recording to dst. Close flushes the stream but does not
// close dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{enc: enc, json: json.NewEncoder(enc)}, nil
}

// Write records frame as seen at the given time. A nil frame records a
// no-detection frame.
func (w *Writer) Write(frame *pose.Frame, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return os.ErrClosed
	}
	if w.frames == 0 {
		w.start = at
	}

	e := Entry{TMs: max(at.Sub(w.start).Milliseconds(), 0)}
	if frame != nil {
		e.Landmarks = frame.Landmarks
	}
	if err := w.json.Encode(e); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the compressed stream.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	w.enc = nil
	if err != nil {
		err = fmt.Errorf("failed to finalize recording: %w", err)
	}
	if w.file != nil {
		if cerr := w.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Recorder keeps one Writer per session, opened on the session's first frame.
type Recorder struct {
	dir string

	mu      sync.Mutex
	writers map[string]*Writer
}

// NewRecorder creates a recorder writing into dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, writers: make(map[string]*Writer)}
}

// Dir returns the directory recordings are written to.
func (r *Recorder) Dir() string {
	return r.dir
}

// Record appends a frame to the session's recording.
func (r *Recorder) Record(sessionID string, frame *pose.Frame, at time.Time) error {
	r.mu.Lock()
	w, ok := r.writers[sessionID]
	if !ok {
		var err error
		w, err = Create(r.dir, sessionID)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		r.writers[sessionID] = w
		log.Info("recording started", "session", sessionID, "path", Path(r.dir, sessionID))
	}
	r.mu.Unlock()

	return w.Write(frame, at)
}

// Finish closes the session's recording, if any, and returns its path.
func (r *Recorder) Finish(sessionID string) (string, error) {
	r.mu.Lock()
	w, ok := r.writers[sessionID]
	delete(r.writers, sessionID)
	r.mu.Unlock()

	if !ok {
		return "", nil
	}
	path := Path(r.dir, sessionID)
	if err := w.Close(); err != nil {
		return path, err
	}
	log.Info("recording finished", "session", sessionID, "frames", w.Frames())
	return path, nil
}

// Close finishes every open recording.
func (r *Recorder) Close() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.writers))
	for id := range r.writers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if _, err := r.Finish(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
