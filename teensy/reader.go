package teensy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/cwbudde/steel-capture/capture"
)

// Port is the minimal interface the reader needs from a serial port, so
// tests can substitute an in-memory stream.
type Port interface {
	io.Reader
	io.Closer
}

// Open opens the named serial port at the protocol's fixed 115200 baud.
func Open(name string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("teensy: open %s: %w", name, err)
	}
	return port, nil
}

// Reader pulls bytes off a serial port, reassembles framed sensor data and
// forwards decoded frames to the capture pipeline.
type Reader struct {
	port  Port
	clock *capture.Clock
	out   chan<- capture.InputEvent
	cal   Calibration

	frames uint64
	errs   uint64
}

// NewReader wraps an open port with default calibration.
func NewReader(port Port, clock *capture.Clock, out chan<- capture.InputEvent) *Reader {
	return &Reader{port: port, clock: clock, out: out, cal: DefaultCalibration()}
}

// WithCalibration replaces the channel calibration.
func (r *Reader) WithCalibration(cal Calibration) *Reader {
	r.cal = cal
	return r
}

// Frames reports how many valid frames have been decoded.
func (r *Reader) Frames() uint64 { return r.frames }

// Errors reports how many frames failed to decode.
func (r *Reader) Errors() uint64 { return r.errs }

// Run reads until the port returns an error or EOF. Partial data and
// garbage between frames are tolerated by scanning for the sync word.
func (r *Reader) Run() error {
	buf := make([]byte, 256)
	frameBuf := make([]byte, 0, FrameSize*4)

	for {
		n, err := r.port.Read(buf)
		if n > 0 {
			frameBuf = append(frameBuf, buf[:n]...)
			frameBuf = r.drain(frameBuf)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("teensy: stream ended", "frames", r.frames, "errors", r.errs)
				return nil
			}
			return fmt.Errorf("teensy: read: %w", err)
		}
	}
}

// drain decodes every complete frame in frameBuf and returns the remainder.
func (r *Reader) drain(frameBuf []byte) []byte {
	for len(frameBuf) >= FrameSize {
		pos := findSync(frameBuf)
		if pos < 0 {
			// Keep the last byte in case it is the first half of a sync
			// word split across reads.
			return append(frameBuf[:0], frameBuf[len(frameBuf)-1])
		}
		if pos > 0 {
			slog.Debug("teensy: skipping to sync", "bytes", pos)
			frameBuf = append(frameBuf[:0], frameBuf[pos:]...)
		}
		if len(frameBuf) < FrameSize {
			return frameBuf
		}

		sf, err := ParseFrame(frameBuf[:FrameSize], r.cal, r.clock.NowMicros())
		if err != nil {
			r.errs++
			slog.Debug("teensy: frame error", "err", err)
			// Skip the corrupt sync word so the scan can move forward.
			frameBuf = append(frameBuf[:0], frameBuf[2:]...)
			continue
		}
		r.frames++
		if r.frames%5000 == 0 {
			slog.Info("teensy: progress", "frames", r.frames, "errors", r.errs)
		}
		r.out <- capture.InputEvent{Sensor: &sf}
		frameBuf = append(frameBuf[:0], frameBuf[FrameSize:]...)
	}
	return frameBuf
}
