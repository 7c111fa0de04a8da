package copedant

import "fmt"

// Engine computes sounding pitches from mechanical state. It is immutable
// after construction; affected-string lookup tables are built once so the
// per-tick paths never walk change lists.
type Engine struct {
	cop          Copedant
	pedalStrings [NumPedals][NumStrings]bool
	leverStrings [NumLevers][NumStrings]bool
}

// NewEngine validates the copedant and builds an engine from it.
func NewEngine(cop Copedant) (*Engine, error) {
	if err := cop.Validate(); err != nil {
		return nil, fmt.Errorf("invalid copedant: %w", err)
	}
	e := &Engine{cop: cop}
	for j, def := range cop.Pedals {
		for _, ch := range def.Changes {
			e.pedalStrings[j][ch.String] = true
		}
	}
	for j, def := range cop.Levers {
		for _, ch := range def.Changes {
			e.leverStrings[j][ch.String] = true
		}
	}
	return e, nil
}

// Copedant returns the tuning document the engine was built from.
func (e *Engine) Copedant() Copedant { return e.cop }

// EffectiveOpenPitches computes each string's effective open pitch (MIDI
// note number) under the given control engagement. "Open" means the pitch
// the string would produce with the bar at the nut. Partial engagement bends
// proportionally; multiple controls on one string sum algebraically.
func (e *Engine) EffectiveOpenPitches(ctl Controls) [NumStrings]float64 {
	midi := e.cop.OpenStrings
	for j, def := range e.cop.Pedals {
		engagement := float64(ctl.Pedals[j])
		if engagement == 0 {
			continue
		}
		for _, ch := range def.Changes {
			midi[ch.String] += ch.Semitones * engagement
		}
	}
	for j, def := range e.cop.Levers {
		engagement := float64(ctl.Levers[j])
		if engagement == 0 {
			continue
		}
		for _, ch := range def.Changes {
			midi[ch.String] += ch.Semitones * engagement
		}
	}
	return midi
}

// PitchesAtBar converts effective open pitches to sounding pitches in Hz
// with the bar at barFret. The bar at fret N raises every string by N
// semitones.
func (e *Engine) PitchesAtBar(open [NumStrings]float64, barFret float32) [NumStrings]float64 {
	var hz [NumStrings]float64
	for i := range open {
		hz[i] = MIDIToHz(open[i] + float64(barFret))
	}
	return hz
}

// Pitches computes sounding pitches from control state and bar position.
// When the bar is absent the strings ring open, which is numerically
// identical to a bar resting at fret 0.
func (e *Engine) Pitches(ctl Controls, barFret float32, barPresent bool) [NumStrings]float64 {
	open := e.EffectiveOpenPitches(ctl)
	if !barPresent {
		barFret = 0
	}
	return e.PitchesAtBar(open, barFret)
}

// InferBarFret inverts the pitch model: given a detected frequency on one
// string, recover the bar position in fret space. Reports ok=false when the
// detected pitch is implausible (behind the nut, absurdly high, or more
// than an octave below the open pitch).
func (e *Engine) InferBarFret(detectedHz float64, stringIdx int, ctl Controls) (float32, bool) {
	if stringIdx < 0 || stringIdx >= NumStrings || detectedHz <= 0 {
		return 0, false
	}
	open := e.EffectiveOpenPitches(ctl)
	openHz := MIDIToHz(open[stringIdx])
	ratio := detectedHz / openHz
	if ratio < 0.5 {
		return 0, false
	}
	fret := HzToMIDI(detectedHz) - open[stringIdx]
	if fret < -0.5 || fret > 30.0 {
		return 0, false
	}
	return float32(fret), true
}

// PedalStrings reports which strings pedal j affects.
func (e *Engine) PedalStrings(j int) [NumStrings]bool { return e.pedalStrings[j] }

// LeverStrings reports which strings lever j affects.
func (e *Engine) LeverStrings(j int) [NumStrings]bool { return e.leverStrings[j] }
