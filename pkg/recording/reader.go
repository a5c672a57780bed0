package recording

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// maxLine bounds a single recorded frame.
const maxLine = 1 << 20

// Reader replays a recording. It implements session.Source.
//
// With pacing enabled, Next waits so frames come out with the gaps they were
// recorded with. Otherwise frames are returned as fast as they are read; use
// Clock as the session clock so cooldowns still see recorded time.
type Reader struct {
	paced  bool
	origin time.Time

	mu     sync.Mutex
	file   *os.File
	dec    *zstd.Decoder
	sc     *bufio.Scanner
	line   int
	closed chan struct{}
	once   sync.Once

	first   int64 // t_ms of the first frame, -1 before it
	started time.Time
	current atomic.Int64 // t_ms of the most recent frame
}

// Open opens a recording file for replay.
func Open(path string, paced bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	r, err := NewReader(f, paced)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader replays a recording read from src.
func NewReader(src io.Reader, paced bool) (*Reader, error) {
	dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	return &Reader{
		paced:  paced,
		origin: time.Now(),
		dec:    dec,
		sc:     sc,
		closed: make(chan struct{}),
		first:  -1,
	}, nil
}

// Next returns the next recorded frame. It returns io.EOF at the end of the
// recording or once the reader is closed.
func (r *Reader) Next(ctx context.Context) (*pose.Frame, error) {
	e, err := r.read()
	if err != nil {
		return nil, err
	}

	if r.paced {
		if err := r.wait(ctx, e.TMs); err != nil {
			return nil, err
		}
	}
	r.current.Store(e.TMs)
	return e.Frame(), nil
}

func (r *Reader) read() (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		select {
		case <-r.closed:
			return Entry{}, io.EOF
		default:
		}

		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return Entry{}, fmt.Errorf("failed to read recording: %w", err)
			}
			return Entry{}, io.EOF
		}
		r.line++

		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return Entry{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return e, nil
	}
}

func (r *Reader) wait(ctx context.Context, tMs int64) error {
	if r.first < 0 {
		r.first = tMs
		r.started = time.Now()
		return nil
	}

	d := time.Until(r.started.Add(time.Duration(tMs-r.first) * time.Millisecond))
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return io.EOF
	}
}

// Clock returns the recorded time of the most recently returned frame,
// anchored at the moment the reader was created.
func (r *Reader) Clock() time.Time {
	return r.origin.Add(time.Duration(r.current.Load()) * time.Millisecond)
}

// Close stops the replay and releases the decoder and file.
func (r *Reader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.closed)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.dec.Close()
		if r.file != nil {
			err = r.file.Close()
		}
	})
	return err
}
