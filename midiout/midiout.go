// Package midiout turns capture frames into MIDI: one channel per string,
// note on at each attack, note off on release, and pitch bend tracking the
// bar between frames.
package midiout

import (
	"fmt"
	"log/slog"
	"math"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

// bendRange is the pitch bend span in semitones expected on the receiver.
const bendRange = 2.0

// Writer converts frames to MIDI messages. Each string owns one MIDI
// channel so per-string pitch bend does not interfere.
type Writer struct {
	send func(midi.Message) error

	// Active note per string, -1 when silent.
	notes [copedant.NumStrings]int
}

// NewWriter wraps a raw send function. Use Open for a real port.
func NewWriter(send func(midi.Message) error) *Writer {
	w := &Writer{send: send}
	for i := range w.notes {
		w.notes[i] = -1
	}
	return w
}

// Open connects to the first MIDI output whose name contains portName and
// returns a writer plus a close function.
func Open(portName string) (*Writer, func(), error) {
	out, err := midi.FindOutPort(portName)
	if err != nil {
		return nil, nil, fmt.Errorf("midiout: no output matching %q: %w", portName, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("midiout: open %s: %w", out.String(), err)
	}
	slog.Info("midiout: connected", "port", out.String())
	cleanup := func() {
		out.Close()
		midi.CloseDriver()
	}
	return NewWriter(send), cleanup, nil
}

// Run consumes frames until the channel closes, then silences everything.
func (w *Writer) Run(frames <-chan capture.CaptureFrame) {
	for f := range frames {
		if err := w.WriteFrame(f); err != nil {
			slog.Debug("midiout: send failed", "err", err)
		}
	}
	w.AllNotesOff()
	slog.Info("midiout: shutting down")
}

// WriteFrame emits the MIDI messages implied by one frame.
func (w *Writer) WriteFrame(f capture.CaptureFrame) error {
	for si := 0; si < copedant.NumStrings; si++ {
		ch := uint8(si)
		exact := copedant.HzToMIDI(f.PitchesHz[si])

		switch {
		case f.Attacks[si]:
			if w.notes[si] >= 0 {
				if err := w.send(midi.NoteOff(ch, uint8(w.notes[si]))); err != nil {
					return err
				}
			}
			note := int(math.Round(exact))
			if note < 0 || note > 127 {
				w.notes[si] = -1
				continue
			}
			vel := velocity(f.Amplitude[si], f.Volume)
			if err := w.send(midi.NoteOn(ch, uint8(note), vel)); err != nil {
				return err
			}
			w.notes[si] = note
			if err := w.send(midi.Pitchbend(ch, bendValue(exact-float64(note)))); err != nil {
				return err
			}

		case f.StringActive[si] && w.notes[si] >= 0:
			if err := w.send(midi.Pitchbend(ch, bendValue(exact-float64(w.notes[si])))); err != nil {
				return err
			}

		case !f.StringActive[si] && w.notes[si] >= 0:
			if err := w.send(midi.NoteOff(ch, uint8(w.notes[si]))); err != nil {
				return err
			}
			w.notes[si] = -1
		}
	}
	return nil
}

// AllNotesOff releases every sounding note.
func (w *Writer) AllNotesOff() {
	for si, note := range w.notes {
		if note >= 0 {
			w.send(midi.NoteOff(uint8(si), uint8(note)))
			w.notes[si] = -1
		}
	}
}

// velocity maps envelope and volume pedal to 1..127.
func velocity(amplitude, volume float32) uint8 {
	v := float64(amplitude) * float64(volume) * 127
	if v < 1 {
		v = 1
	}
	if v > 127 {
		v = 127
	}
	return uint8(v)
}

// bendValue maps a semitone offset to the 14-bit signed bend range.
func bendValue(semitones float64) int16 {
	v := semitones / bendRange * 8192
	if v > 8191 {
		v = 8191
	}
	if v < -8192 {
		v = -8192
	}
	return int16(v)
}
