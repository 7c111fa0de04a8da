// Package wavin streams a WAV file into the pipeline as audio chunks at
// real-time pace.
//
// Intended for pre-hardware testing: record some playing, run the file
// through the coordinator's audio detection and validate thresholds before
// any hardware exists. The simulator supplies pedal/lever/bar ground truth
// while the file supplies the audio.
package wavin

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/dsp"
	"github.com/cwbudde/steel-capture/internal/wavio"
)

// ChunkSize is samples per emitted chunk, ~21ms at 48 kHz. Small enough
// for detector granularity, large enough to keep channel traffic low.
const ChunkSize = 1024

// pipelineRate is the sample rate the detector and fuser are tuned for.
const pipelineRate = 48000

// Player streams one file.
type Player struct {
	path  string
	out   chan<- capture.InputEvent
	clock *capture.Clock
	paced bool
}

// Option configures a Player.
type Option func(*Player)

// WithoutPacing streams chunks as fast as the consumer accepts them.
func WithoutPacing() Option {
	return func(p *Player) { p.paced = false }
}

// NewPlayer prepares a player for the given WAV path.
func NewPlayer(path string, out chan<- capture.InputEvent, clock *capture.Clock, opts ...Option) *Player {
	p := &Player{path: path, out: out, clock: clock, paced: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run decodes, conditions and streams the file. The signal is mixed to
// mono, resampled to the pipeline rate when needed, and DC-filtered the
// way a hardware input would be.
func (p *Player) Run() error {
	mono, rate, err := wavio.ReadWAVMono(p.path)
	if err != nil {
		return fmt.Errorf("wavin: %w", err)
	}
	slog.Info("wavin: loaded", "path", p.path, "rate", rate,
		"seconds", float64(len(mono))/float64(rate))

	if rate != pipelineRate {
		slog.Info("wavin: resampling", "from", rate, "to", pipelineRate)
		mono, err = wavio.Resample(mono, rate, pipelineRate)
		if err != nil {
			return fmt.Errorf("wavin: resample: %w", err)
		}
	}

	// Strip DC offset so the detector's RMS silence gate works on
	// recordings from imperfect interfaces.
	dc := dsp.NewDCBlocker(pipelineRate)
	dc.ProcessBlock(mono)

	chunkSeconds := float64(ChunkSize) / pipelineRate
	chunkDur := time.Duration(chunkSeconds * float64(time.Second))
	start := time.Now()

	for i := 0; i*ChunkSize < len(mono); i++ {
		if p.paced {
			target := chunkDur * time.Duration(i)
			if elapsed := time.Since(start); elapsed < target {
				time.Sleep(target - elapsed)
			}
		}

		end := (i + 1) * ChunkSize
		if end > len(mono) {
			end = len(mono)
		}
		chunk := capture.AudioChunk{
			TimestampUS: p.now(),
			Samples:     mono[i*ChunkSize : end],
			SampleRate:  pipelineRate,
		}
		p.out <- capture.InputEvent{Audio: &chunk}
	}

	slog.Info("wavin: playback complete")
	return nil
}

func (p *Player) now() uint64 {
	if p.clock != nil {
		return p.clock.NowMicros()
	}
	return 0
}
