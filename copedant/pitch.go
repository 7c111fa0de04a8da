package copedant

import (
	"fmt"
	"math"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDIToHz converts a fractional MIDI note number to Hz. A4 = MIDI 69 = 440 Hz.
func MIDIToHz(midi float64) float64 {
	return 440.0 * math.Exp2((midi-69.0)/12.0)
}

// HzToMIDI converts Hz to a fractional MIDI note number. Exact inverse of
// MIDIToHz up to floating point rounding.
func HzToMIDI(hz float64) float64 {
	return 69.0 + 12.0*math.Log2(hz/440.0)
}

// NoteName renders a fractional MIDI note number as a note name with cents
// offset, e.g. "E4", "B3+12", "G#3-4". Frequencies below hearing come back
// as "---".
func NoteName(midi float64) string {
	if midi < HzToMIDI(20.0) {
		return "---"
	}
	noteNum := int(math.Round(midi))
	cents := int(math.Round((midi - float64(noteNum)) * 100.0))
	name := noteNames[((noteNum%12)+12)%12]
	octave := noteNum/12 - 1
	switch {
	case cents == 0:
		return fmt.Sprintf("%s%d", name, octave)
	case cents > 0:
		return fmt.Sprintf("%s%d+%d", name, octave, cents)
	default:
		return fmt.Sprintf("%s%d%d", name, octave, cents)
	}
}

// NoteNameHz is NoteName for a frequency in Hz.
func NoteNameHz(hz float64) string {
	if hz < 20.0 {
		return "---"
	}
	return NoteName(HzToMIDI(hz))
}
