package dsp

import (
	"math"
	"testing"
)

func TestGoertzelFindsFrequency(t *testing.T) {
	samples := SineWave(440.0, 0.8, 48000, 100)
	m440 := Goertzel(samples, 440.0, 48000)
	m300 := Goertzel(samples, 300.0, 48000)
	if m440 < m300*5.0 {
		t.Fatalf("440 Hz bin %.1f should dominate 300 Hz bin %.1f", m440, m300)
	}
}

func TestGoertzelEmptyInput(t *testing.T) {
	if got := Goertzel(nil, 440.0, 48000); got != 0 {
		t.Fatalf("Goertzel(nil) = %v, want 0", got)
	}
}

func TestGoertzelSeparatesVoices(t *testing.T) {
	samples := MultiSine([]float64{220.0, 660.0}, 0.3, 48000, 100)
	m220 := Goertzel(samples, 220.0, 48000)
	m660 := Goertzel(samples, 660.0, 48000)
	m440 := Goertzel(samples, 440.0, 48000)
	if m220 < m440*5.0 || m660 < m440*5.0 {
		t.Fatalf("voice bins should dominate: 220=%.1f 660=%.1f gap=%.1f", m220, m660, m440)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v", got)
	}
	// Full-scale sine has RMS 1/sqrt(2).
	samples := SineWave(1000.0, 1.0, 48000, 100)
	got := float64(RMS(samples))
	if math.Abs(got-1.0/math.Sqrt2) > 0.01 {
		t.Fatalf("sine RMS = %v, want ~0.707", got)
	}
}

func TestHighpassPassesBandRejectsDC(t *testing.T) {
	hp := NewDCBlocker(48000)

	// DC offset plus a 440 Hz tone; after settling, the DC should be gone
	// and the tone intact.
	in := SineWave(440.0, 0.5, 48000, 200)
	for i := range in {
		in[i] += 0.3
	}
	hp.ProcessBlock(in)

	tail := in[len(in)/2:]
	var mean float64
	for _, s := range tail {
		mean += float64(s)
	}
	mean /= float64(len(tail))
	if math.Abs(mean) > 0.01 {
		t.Fatalf("residual DC %v after blocker", mean)
	}
	if m := Goertzel(tail, 440.0, 48000); m < float64(len(tail))*0.5*0.4/2 {
		t.Fatalf("tone attenuated too much: %v", m)
	}
}

func TestBiquadReset(t *testing.T) {
	hp := NewHighpass(100, 48000, 0.707)
	hp.Process(1.0)
	hp.Process(-1.0)
	hp.Reset()
	// After reset a zero input must produce exactly zero.
	if got := hp.Process(0); got != 0 {
		t.Fatalf("Process(0) after Reset = %v", got)
	}
}
