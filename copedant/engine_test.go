package copedant

import (
	"math"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(BuddyEmmonsE9())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestMIDIHzRoundTrip(t *testing.T) {
	if got := MIDIToHz(69); math.Abs(got-440.0) > 0.01 {
		t.Fatalf("MIDIToHz(69) = %v, want 440", got)
	}
	if got := MIDIToHz(60); math.Abs(got-261.63) > 0.1 {
		t.Fatalf("MIDIToHz(60) = %v, want ~261.63", got)
	}
	for _, hz := range []float64{20, 82.41, 110, 123.47, 440, 1244.5, 8372, 15000} {
		back := MIDIToHz(HzToMIDI(hz))
		if math.Abs(HzToMIDI(back)-HzToMIDI(hz)) > 0.001 {
			t.Fatalf("round trip at %v Hz drifted by %v semitones", hz, HzToMIDI(back)-HzToMIDI(hz))
		}
	}
}

func TestOpenStringPitches(t *testing.T) {
	e := newTestEngine(t)
	open := e.EffectiveOpenPitches(Controls{})
	if math.Abs(open[4]-59) > 0.001 {
		t.Fatalf("string 5 open = %v, want B3 (59)", open[4])
	}
	if math.Abs(open[0]-66) > 0.001 {
		t.Fatalf("string 1 open = %v, want F#4 (66)", open[0])
	}
}

func TestPedalARaises(t *testing.T) {
	e := newTestEngine(t)
	var ctl Controls
	ctl.Pedals[0] = 1.0
	open := e.EffectiveOpenPitches(ctl)
	if math.Abs(open[4]-61) > 0.001 {
		t.Fatalf("string 5 with pedal A = %v, want C#4 (61)", open[4])
	}
	if math.Abs(open[9]-49) > 0.001 {
		t.Fatalf("string 10 with pedal A = %v, want C#3 (49)", open[9])
	}
}

func TestPartialPedalBendsProportionally(t *testing.T) {
	e := newTestEngine(t)
	var ctl Controls
	ctl.Pedals[0] = 0.5
	open := e.EffectiveOpenPitches(ctl)
	if math.Abs(open[4]-60) > 0.001 {
		t.Fatalf("string 5 with half pedal A = %v, want C4 (60)", open[4])
	}
}

func TestSimultaneousControlsSum(t *testing.T) {
	// Pedals A and C both raise string 5 by 2; together the string goes up 4.
	e := newTestEngine(t)
	var ctl Controls
	ctl.Pedals[0] = 1.0
	ctl.Pedals[2] = 1.0
	open := e.EffectiveOpenPitches(ctl)
	if math.Abs(open[4]-63) > 0.001 {
		t.Fatalf("string 5 with A+C = %v, want D#4 (63)", open[4])
	}
	if math.Abs(open[3]-66) > 0.001 {
		t.Fatalf("string 4 with A+C = %v, want F#4 (66)", open[3])
	}
	if math.Abs(open[9]-49) > 0.001 {
		t.Fatalf("string 10 with A+C = %v, want C#3 (49)", open[9])
	}
}

func TestLeverChanges(t *testing.T) {
	e := newTestEngine(t)

	var lkl Controls
	lkl.Levers[0] = 1.0
	open := e.EffectiveOpenPitches(lkl)
	if math.Abs(open[3]-65) > 0.001 || math.Abs(open[7]-53) > 0.001 {
		t.Fatalf("LKL: str4=%v str8=%v, want 65/53", open[3], open[7])
	}

	var lkr Controls
	lkr.Levers[1] = 1.0
	open = e.EffectiveOpenPitches(lkr)
	if math.Abs(open[3]-63) > 0.001 || math.Abs(open[4]-58) > 0.001 || math.Abs(open[7]-51) > 0.001 {
		t.Fatalf("LKR: str4=%v str5=%v str8=%v, want 63/58/51", open[3], open[4], open[7])
	}

	var rkl Controls
	rkl.Levers[3] = 1.0
	open = e.EffectiveOpenPitches(rkl)
	if math.Abs(open[0]-66) > 0.001 {
		t.Fatalf("RKL must not move string 1 on this copedant, got %v", open[0])
	}
	if math.Abs(open[1]-64) > 0.001 || math.Abs(open[5]-54) > 0.001 {
		t.Fatalf("RKL: str2=%v str6=%v, want 64/54", open[1], open[5])
	}
}

func TestRKRSoftAndHardStops(t *testing.T) {
	e := newTestEngine(t)

	var hard Controls
	hard.Levers[4] = 1.0
	open := e.EffectiveOpenPitches(hard)
	if math.Abs(open[1]-61) > 0.001 || math.Abs(open[8]-49) > 0.001 {
		t.Fatalf("RKR hard stop: str2=%v str9=%v, want 61/49", open[1], open[8])
	}

	var soft Controls
	soft.Levers[4] = 0.5
	open = e.EffectiveOpenPitches(soft)
	if math.Abs(open[1]-62) > 0.001 {
		t.Fatalf("RKR soft stop: str2=%v, want D4 (62)", open[1])
	}
	if math.Abs(open[8]-49.5) > 0.001 {
		t.Fatalf("RKR soft stop: str9=%v, want 49.5", open[8])
	}
}

func TestAbsentBarEqualsFretZero(t *testing.T) {
	e := newTestEngine(t)
	var ctl Controls
	ctl.Pedals[1] = 0.7
	absent := e.Pitches(ctl, 0, false)
	atNut := e.Pitches(ctl, 0, true)
	for i := range absent {
		if absent[i] != atNut[i] {
			t.Fatalf("string %d: absent bar %v != fret 0 %v", i+1, absent[i], atNut[i])
		}
	}
}

func TestPitchesAtFret(t *testing.T) {
	e := newTestEngine(t)
	hz := e.Pitches(Controls{}, 3.0, true)
	// String 4 at fret 3: E4+3 = G4 ~= 392 Hz.
	if math.Abs(hz[3]-392.0) > 1.0 {
		t.Fatalf("string 4 at fret 3 = %v Hz, want ~392", hz[3])
	}
}

func TestFretRatios(t *testing.T) {
	e := newTestEngine(t)
	nut := e.Pitches(Controls{}, 0, true)
	octave := e.Pitches(Controls{}, 12, true)
	fifth := e.Pitches(Controls{}, 5, true)
	want5 := math.Pow(2, 5.0/12.0)
	for i := range nut {
		if r := octave[i] / nut[i]; math.Abs(r-2.0) > 1e-9 {
			t.Fatalf("string %d: fret 12/fret 0 ratio = %v, want 2", i+1, r)
		}
		if r := fifth[i] / nut[i]; math.Abs(r-want5) > 1e-9 {
			t.Fatalf("string %d: fret 5/fret 0 ratio = %v, want %v", i+1, r, want5)
		}
	}
}

func TestAllOpenStringNames(t *testing.T) {
	want := [NumStrings]string{
		"F#4", "D#4", "G#4", "E4", "B3", "G#3", "F#3", "E3", "D3", "B2",
	}
	cop := BuddyEmmonsE9()
	for i, m := range cop.OpenStrings {
		if got := NoteName(m); got != want[i] {
			t.Fatalf("string %d open = %q (MIDI %v), want %q", i+1, got, m, want[i])
		}
	}
}

func TestInferBarFret(t *testing.T) {
	e := newTestEngine(t)

	// String 4 open = E4 (64); bar at fret 3 sounds G4 (67).
	fret, ok := e.InferBarFret(MIDIToHz(67), 3, Controls{})
	if !ok || math.Abs(float64(fret)-3.0) > 0.01 {
		t.Fatalf("InferBarFret = %v, %v; want ~3.0", fret, ok)
	}

	// With pedal A, string 5 is C#4 (61); bar at fret 5 sounds F#4 (66).
	var ctl Controls
	ctl.Pedals[0] = 1.0
	fret, ok = e.InferBarFret(MIDIToHz(66), 4, ctl)
	if !ok || math.Abs(float64(fret)-5.0) > 0.01 {
		t.Fatalf("InferBarFret with pedal A = %v, %v; want ~5.0", fret, ok)
	}

	// An octave below the open pitch is behind the nut: nonsensical.
	if _, ok := e.InferBarFret(MIDIToHz(64)/3.0, 3, Controls{}); ok {
		t.Fatalf("InferBarFret accepted a pitch far below open")
	}
	if _, ok := e.InferBarFret(0, 3, Controls{}); ok {
		t.Fatalf("InferBarFret accepted zero Hz")
	}
}

func TestAffectedStringLookups(t *testing.T) {
	e := newTestEngine(t)
	a := e.PedalStrings(0)
	if !a[4] || !a[9] || a[0] {
		t.Fatalf("pedal A string map wrong: %v", a)
	}
	rkr := e.LeverStrings(4)
	if !rkr[1] || !rkr[8] || rkr[4] {
		t.Fatalf("RKR string map wrong: %v", rkr)
	}
}

func TestNoteName(t *testing.T) {
	cases := []struct {
		midi float64
		want string
	}{
		{69, "A4"},
		{66, "F#4"},
		{47, "B2"},
		{60.12, "C4+12"},
		{59.96, "C4-4"},
	}
	for _, c := range cases {
		if got := NoteName(c.midi); got != c.want {
			t.Fatalf("NoteName(%v) = %q, want %q", c.midi, got, c.want)
		}
	}
	if got := NoteNameHz(440); got != "A4" {
		t.Fatalf("NoteNameHz(440) = %q", got)
	}
	if got := NoteNameHz(5); got != "---" {
		t.Fatalf("NoteNameHz(5) = %q, want ---", got)
	}
}
