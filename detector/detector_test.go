package detector

import (
	"testing"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/dsp"
)

func testEngine(t *testing.T) *copedant.Engine {
	t.Helper()
	eng, err := copedant.NewEngine(copedant.BuddyEmmonsE9())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func barAt(fret float32) bar.Estimate {
	return bar.Estimate{Position: fret, Present: true, Confidence: 1, Source: bar.SourceSensor}
}

func feed(d *Detector, samples []float32) {
	d.PushAudio(samples, 48000)
}

func TestDetectsSingleString(t *testing.T) {
	eng := testEngine(t)
	d := New()

	// String 3 (idx 2) = G#4 = MIDI 68; at fret 3 it sounds B4 (71).
	feed(d, dsp.SineWave(copedant.MIDIToHz(71), 0.7, 48000, 100))
	active, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)

	if !active[2] {
		t.Fatalf("string 3 should be active")
	}
	if !attacks[2] {
		t.Fatalf("first detection should be an attack")
	}
	others := 0
	for i, a := range active {
		if i != 2 && a {
			others++
		}
	}
	if others > 1 {
		t.Fatalf("%d other strings active, expected at most 1 harmonic coincidence", others)
	}
}

func TestDetectsThreeStringGrip(t *testing.T) {
	eng := testEngine(t)
	d := New()
	open := eng.EffectiveOpenPitches(copedant.Controls{})
	freqs := []float64{
		copedant.MIDIToHz(open[2] + 3),
		copedant.MIDIToHz(open[3] + 3),
		copedant.MIDIToHz(open[4] + 3),
	}
	feed(d, dsp.MultiSine(freqs, 0.17, 48000, 100))
	active, _, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	for _, si := range []int{2, 3, 4} {
		if !active[si] {
			t.Fatalf("string %d should be active, got %v", si+1, active)
		}
	}
}

func TestDetectsWithPedalA(t *testing.T) {
	eng := testEngine(t)
	d := New()
	var ctl copedant.Controls
	ctl.Pedals[0] = 1.0
	open := eng.EffectiveOpenPitches(ctl)
	feed(d, dsp.SineWave(copedant.MIDIToHz(open[4]+5), 0.7, 48000, 100))
	active, _, _ := d.Detect(ctl, barAt(5), eng)
	if !active[4] {
		t.Fatalf("string 5 with pedal A should be detected")
	}
}

func TestSilenceAllInactive(t *testing.T) {
	eng := testEngine(t)
	d := New()
	feed(d, make([]float32, 4800))
	active, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	for i := range active {
		if active[i] || attacks[i] {
			t.Fatalf("string %d flagged during silence", i+1)
		}
	}
}

func TestUnknownBarAllInactive(t *testing.T) {
	eng := testEngine(t)
	d := New()
	feed(d, dsp.SineWave(440, 0.7, 48000, 100))
	active, _, amplitude := d.Detect(copedant.Controls{}, bar.Unknown(), eng)
	for i := range active {
		if active[i] {
			t.Fatalf("string %d active with unknown bar", i+1)
		}
		if amplitude[i] != 0 {
			t.Fatalf("string %d amplitude %v with unknown bar", i+1, amplitude[i])
		}
	}
}

func TestAttackOnlyOnOnset(t *testing.T) {
	eng := testEngine(t)
	d := New()
	open := eng.EffectiveOpenPitches(copedant.Controls{})
	tone := dsp.SineWave(copedant.MIDIToHz(open[3]+3), 0.7, 48000, 100)

	feed(d, tone)
	_, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	if !attacks[3] {
		t.Fatalf("first detection should attack")
	}

	feed(d, tone)
	active, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	if !active[3] {
		t.Fatalf("still active")
	}
	if attacks[3] {
		t.Fatalf("no new attack while already active")
	}
}

func TestReleaseThenReattack(t *testing.T) {
	eng := testEngine(t)
	d := New()
	open := eng.EffectiveOpenPitches(copedant.Controls{})
	tone := dsp.SineWave(copedant.MIDIToHz(open[3]+3), 0.7, 48000, 100)

	feed(d, tone)
	d.Detect(copedant.Controls{}, barAt(3), eng)

	silence := make([]float32, 4800)
	for i := 0; i < 3; i++ {
		feed(d, silence)
		d.Detect(copedant.Controls{}, barAt(3), eng)
	}
	if d.Active()[3] {
		t.Fatalf("should release after silence")
	}

	feed(d, tone)
	_, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	if !attacks[3] {
		t.Fatalf("re-attack after release should register")
	}
}

func TestNotReadyKeepsState(t *testing.T) {
	eng := testEngine(t)
	d := New()
	// Fewer samples than the analysis interval: no new analysis.
	feed(d, make([]float32, 100))
	active, attacks, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	for i := range active {
		if active[i] || attacks[i] {
			t.Fatalf("state changed without enough audio")
		}
	}
}

func TestAmplitudeNormalizedRange(t *testing.T) {
	eng := testEngine(t)
	d := New()
	open := eng.EffectiveOpenPitches(copedant.Controls{})
	feed(d, dsp.SineWave(copedant.MIDIToHz(open[3]+3), 0.7, 48000, 100))
	_, _, amplitude := d.Detect(copedant.Controls{}, barAt(3), eng)
	for i, a := range amplitude {
		if a < 0 || a > 1 {
			t.Fatalf("amplitude[%d] = %v out of [0,1]", i, a)
		}
	}
	if amplitude[3] <= 0 {
		t.Fatalf("active string should have positive amplitude")
	}
}

func TestCalibratedThresholds(t *testing.T) {
	eng := testEngine(t)
	var onset, release [copedant.NumStrings]float64
	for i := range onset {
		// Absurdly high: nothing may trigger.
		onset[i] = 10.0
		release[i] = 5.0
	}
	d := New().WithThresholds(onset, release)
	open := eng.EffectiveOpenPitches(copedant.Controls{})
	feed(d, dsp.SineWave(copedant.MIDIToHz(open[3]+3), 0.7, 48000, 100))
	active, _, _ := d.Detect(copedant.Controls{}, barAt(3), eng)
	if active[3] {
		t.Fatalf("calibrated onset should suppress detection")
	}
}
