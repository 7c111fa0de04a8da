package calib

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/steel-capture/dsp"
)

// analysisWindow matches the detector's analysis window so measured
// energies live on the same scale as its thresholds.
const analysisWindow = 4096

// CollectEnergies slices audio into analysis windows and measures the
// detector's energy metric (fundamental plus weighted 2nd harmonic,
// normalized by window length) at the given frequency.
func CollectEnergies(audio []float32, sampleRate int, freq float64) []float64 {
	sr := float64(sampleRate)
	var energies []float64
	for off := 0; off+analysisWindow <= len(audio); off += analysisWindow {
		energies = append(energies, goertzelPair(audio[off:off+analysisWindow], freq, sr))
	}
	return energies
}

// goertzelPair is the detector's energy metric for one window: fundamental
// plus weighted 2nd harmonic, normalized by window length.
func goertzelPair(window []float32, freq, sr float64) float64 {
	mag := dsp.Goertzel(window, freq, sr)
	var mag2 float64
	if freq*2 < sr/2 {
		mag2 = dsp.Goertzel(window, freq*2, sr)
	}
	return (mag + 0.3*mag2) / float64(len(window))
}

// quantile returns the empirical q-quantile of v.
func quantile(v []float64, q float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// ComputeThresholds derives a hysteresis pair from pluck and silence energy
// distributions.
//
// The upper quartile is used on both sides: the first windows after a pluck
// prompt may still be silent, string energy decays, and the onset should
// catch sustained ringing rather than only the attack spike. Falls back to
// defaults when no pluck energy was measured at all.
func ComputeThresholds(pluck, silence []float64) StringThreshold {
	if len(pluck) == 0 || len(silence) == 0 {
		slog.Warn("calib: no energy samples, using defaults")
		return StringThreshold{Onset: DefaultOnset, Release: DefaultRelease}
	}

	pluckP75 := quantile(pluck, 0.75)
	silenceP75 := quantile(silence, 0.75)

	if pluckP75 < 1e-8 {
		slog.Warn("calib: no pluck energy detected, using defaults", "p75", pluckP75)
		return StringThreshold{Onset: DefaultOnset, Release: DefaultRelease}
	}

	if pluckP75 <= silenceP75 {
		// Pluck indistinguishable from the room. Best effort: sit just
		// above the noise ceiling.
		slog.Warn("calib: pluck below noise floor",
			"pluck_p75", pluckP75, "silence_p75", silenceP75)
		return StringThreshold{Onset: silenceP75 * 1.5, Release: silenceP75 * 1.1}
	}

	onset := (pluckP75 + silenceP75) / 2
	ratio := 1e10
	if silenceP75 > 1e-10 {
		ratio = pluckP75 / silenceP75
	}
	if ratio < 3 {
		slog.Warn("calib: marginal separation", "ratio", ratio)
	}
	return StringThreshold{Onset: onset, Release: onset * 0.4}
}
