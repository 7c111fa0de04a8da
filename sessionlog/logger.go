// Package sessionlog records capture sessions to disk and reads them back.
//
// A session directory contains:
//
//	frames.jsonl   header line, then one compact frame per line
//	audio_raw.bin  raw f32le mono samples, converted to audio.wav at close
//	manifest.json  copedant and channel configuration
//	stats.json     final counts
//
// An index of all sessions in the output directory lives in sessions.db.
package sessionlog

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/internal/wavio"
)

// FormatName identifies steel-capture session files.
const FormatName = "steel-capture"

// Header is the first line of frames.jsonl.
type Header struct {
	Format   string            `json:"format"`
	RateHz   int               `json:"rate_hz"`
	Copedant copedant.Copedant `json:"copedant"`
	Channels []string          `json:"channels"`
}

// ChannelNames lists the sensor channels in wire order.
func ChannelNames() []string {
	names := make([]string, 0, 13)
	for _, p := range copedant.PedalNames {
		names = append(names, "pedal_"+p)
	}
	names = append(names, copedant.LeverNames[:]...)
	names = append(names, "volume")
	names = append(names, "bar_fret0", "bar_fret5", "bar_fret10", "bar_fret15")
	return names
}

// Logger writes one session. Create with NewLogger, feed via Run, and the
// session is finalized when both input channels close.
type Logger struct {
	ID  string
	Dir string

	cop    copedant.Copedant
	rateHz int

	frames      *bufio.Writer
	framesFile  *os.File
	audio       *bufio.Writer
	audioFile   *os.File
	frameCount  uint64
	sampleCount uint64
	sampleRate  int
	started     time.Time
}

// NewLogger creates the session directory under outputDir and writes the
// manifest and the frames.jsonl header.
func NewLogger(outputDir string, cop copedant.Copedant, rateHz int) (*Logger, error) {
	if err := cop.Validate(); err != nil {
		return nil, fmt.Errorf("sessionlog: %w", err)
	}
	id := uuid.NewString()
	dir := filepath.Join(outputDir, fmt.Sprintf("session_%d", time.Now().Unix()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionlog: create %s: %w", dir, err)
	}

	l := &Logger{
		ID:         id,
		Dir:        dir,
		cop:        cop,
		rateHz:     rateHz,
		sampleRate: 48000,
		started:    time.Now(),
	}

	if err := l.writeManifest(); err != nil {
		return nil, err
	}

	ff, err := os.Create(filepath.Join(dir, "frames.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("sessionlog: %w", err)
	}
	l.framesFile = ff
	l.frames = bufio.NewWriter(ff)

	hdr := Header{Format: FormatName, RateHz: rateHz, Copedant: cop, Channels: ChannelNames()}
	line, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: header: %w", err)
	}
	l.frames.Write(line)
	l.frames.WriteByte('\n')

	af, err := os.Create(filepath.Join(dir, "audio_raw.bin"))
	if err != nil {
		return nil, fmt.Errorf("sessionlog: %w", err)
	}
	l.audioFile = af
	l.audio = bufio.NewWriter(af)

	return l, nil
}

// WriteFrame appends one compact frame line.
func (l *Logger) WriteFrame(f capture.CaptureFrame) error {
	line, err := json.Marshal(f.Compact())
	if err != nil {
		return fmt.Errorf("sessionlog: frame: %w", err)
	}
	if _, err := l.frames.Write(line); err != nil {
		return err
	}
	if err := l.frames.WriteByte('\n'); err != nil {
		return err
	}
	l.frameCount++
	if l.frameCount%1000 == 0 {
		l.frames.Flush()
		l.audio.Flush()
		slog.Info("sessionlog: progress", "frames", l.frameCount, "audio_samples", l.sampleCount)
	}
	return nil
}

// WriteAudio appends raw f32le samples.
func (l *Logger) WriteAudio(chunk capture.AudioChunk) error {
	if chunk.SampleRate > 0 {
		l.sampleRate = chunk.SampleRate
	}
	var b [4]byte
	for _, s := range chunk.Samples {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(s))
		if _, err := l.audio.Write(b[:]); err != nil {
			return err
		}
		l.sampleCount++
	}
	return nil
}

// Run drains both channels until they close, then finalizes the session.
// idx may be nil to skip database indexing.
func (l *Logger) Run(frames <-chan capture.CaptureFrame, audio <-chan capture.AudioChunk, idx *Index) error {
	slog.Info("sessionlog: recording", "dir", l.Dir, "id", l.ID)
	for frames != nil || audio != nil {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if err := l.WriteFrame(f); err != nil {
				return err
			}
		case c, ok := <-audio:
			if !ok {
				audio = nil
				continue
			}
			if err := l.WriteAudio(c); err != nil {
				return err
			}
		}
	}
	return l.Close(idx)
}

// Close flushes everything, converts the raw audio to WAV, writes the stats
// file and registers the session in the index.
func (l *Logger) Close(idx *Index) error {
	l.frames.Flush()
	l.framesFile.Close()
	l.audio.Flush()
	l.audioFile.Close()

	if err := l.convertAudio(); err != nil {
		slog.Warn("sessionlog: audio conversion failed", "err", err)
	}

	stats := map[string]any{
		"total_frames":        l.frameCount,
		"total_audio_samples": l.sampleCount,
		"audio_sample_rate":   l.sampleRate,
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionlog: stats: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.Dir, "stats.json"), data, 0o644); err != nil {
		return fmt.Errorf("sessionlog: stats: %w", err)
	}

	if idx != nil {
		if err := idx.Add(SessionRecord{
			ID:           l.ID,
			Dir:          l.Dir,
			StartedAt:    l.started,
			CopedantName: l.cop.Name,
			Frames:       l.frameCount,
			AudioSamples: l.sampleCount,
		}); err != nil {
			slog.Warn("sessionlog: index update failed", "err", err)
		}
	}

	slog.Info("sessionlog: saved", "dir", l.Dir, "frames", l.frameCount, "audio_samples", l.sampleCount)
	return nil
}

// convertAudio turns audio_raw.bin into audio.wav.
func (l *Logger) convertAudio() error {
	if l.sampleCount == 0 {
		return nil
	}
	raw, err := os.ReadFile(filepath.Join(l.Dir, "audio_raw.bin"))
	if err != nil {
		return err
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return wavio.WriteMonoWAV(filepath.Join(l.Dir, "audio.wav"), samples, l.sampleRate)
}

func (l *Logger) writeManifest() error {
	manifest := map[string]any{
		"version":  "0.1.0",
		"system":   FormatName,
		"id":       l.ID,
		"copedant": l.cop,
		"sensor_config": map[string]any{
			"channels":    13,
			"rate_hz":     l.rateHz,
			"pedals":      copedant.PedalNames,
			"knee_levers": copedant.LeverNames,
		},
		"audio_config": map[string]any{
			"format":      "f32le",
			"channels":    1,
			"sample_rate": l.sampleRate,
			"bit_depth":   32,
		},
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionlog: manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.Dir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("sessionlog: manifest: %w", err)
	}
	return nil
}
