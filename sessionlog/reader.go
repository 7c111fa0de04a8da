package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/steel-capture/capture"
)

// SessionReader parses a recorded frames.jsonl stream back into
// CaptureFrames. Works with any reader: files, in-memory buffers, stdin.
type SessionReader struct {
	Header Header

	sc   *bufio.Scanner
	done bool
}

// OpenSession validates the header line of a frames.jsonl stream.
func OpenSession(r io.Reader) (*SessionReader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("sessionlog: read header: %w", err)
		}
		return nil, fmt.Errorf("sessionlog: empty file")
	}
	line := strings.TrimSpace(sc.Text())
	if line == "" {
		return nil, fmt.Errorf("sessionlog: empty file")
	}

	var hdr Header
	if err := json.Unmarshal([]byte(line), &hdr); err != nil {
		return nil, fmt.Errorf("sessionlog: parse header: %w", err)
	}
	if hdr.Format == "" {
		return nil, fmt.Errorf("sessionlog: missing format field")
	}
	if hdr.Format != FormatName {
		return nil, fmt.Errorf("sessionlog: unknown format %q", hdr.Format)
	}
	if hdr.RateHz == 0 {
		hdr.RateHz = 60
	}
	return &SessionReader{Header: hdr, sc: sc}, nil
}

// OpenSessionDir opens the frames.jsonl inside a session directory. The
// caller owns the returned closer.
func OpenSessionDir(dir string) (*SessionReader, io.Closer, error) {
	f, err := os.Open(filepath.Join(dir, "frames.jsonl"))
	if err != nil {
		return nil, nil, fmt.Errorf("sessionlog: %w", err)
	}
	sr, err := OpenSession(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return sr, f, nil
}

// Next returns the next frame, io.EOF at end of stream, or a parse error
// for a malformed line. Blank lines are skipped.
func (r *SessionReader) Next() (capture.CaptureFrame, error) {
	if r.done {
		return capture.CaptureFrame{}, io.EOF
	}
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		var cf capture.CompactFrame
		if err := json.Unmarshal([]byte(line), &cf); err != nil {
			return capture.CaptureFrame{}, fmt.Errorf("sessionlog: parse frame: %w", err)
		}
		return cf.Frame(), nil
	}
	r.done = true
	if err := r.sc.Err(); err != nil {
		return capture.CaptureFrame{}, fmt.Errorf("sessionlog: read: %w", err)
	}
	return capture.CaptureFrame{}, io.EOF
}

// ReadAll returns every remaining well-formed frame, skipping malformed
// lines.
func (r *SessionReader) ReadAll() []capture.CaptureFrame {
	var frames []capture.CaptureFrame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames
		}
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
}
