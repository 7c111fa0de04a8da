package calib

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

// Fit knobs. Two dimensions per string: the onset level and the
// release-to-onset ratio, both optimized in normalized [0,1] space.
const (
	fitPop   = 10
	fitIters = 40
	// releaseRatioLo/Hi bound the hysteresis gap. Below 0.2 the release
	// never fires on decaying strings, above 0.9 the gap is too narrow to
	// suppress chatter.
	releaseRatioLo = 0.2
	releaseRatioHi = 0.9
)

// labeledWindow is one analysis window's measured energy with its ground
// truth from the recorded session.
type labeledWindow struct {
	energy   float64
	sounding bool
}

// FitOptions tunes the session fitter.
type FitOptions struct {
	Seed int64
}

// FitSession derives per-string thresholds from a recorded session with
// ground-truth string activity, by minimizing hysteresis classification
// error over the session's audio. cop is the copedant the session was
// recorded with; its open pitches anchor the probe frequency for windows
// where the frame carries none.
//
// Strings with no plucked windows in the session fall back to the
// percentile heuristic of ComputeThresholds.
func FitSession(frames []capture.CaptureFrame, audio []float32, sampleRate int, cop copedant.Copedant, opts FitOptions) (*Calibration, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("calib: fit: no frames")
	}
	if len(audio) < analysisWindow {
		return nil, fmt.Errorf("calib: fit: %d audio samples, need at least %d", len(audio), analysisWindow)
	}
	if err := cop.Validate(); err != nil {
		return nil, fmt.Errorf("calib: fit: %w", err)
	}

	cal := &Calibration{Strings: make([]StringThreshold, copedant.NumStrings)}
	for si := 0; si < copedant.NumStrings; si++ {
		windows := labelString(frames, audio, sampleRate, si, cop.OpenStrings[si])
		cal.Strings[si] = fitString(si, windows, opts.Seed+int64(si)*7919)
	}
	return cal, nil
}

// labelString measures the energy at string si's expected frequency in
// every analysis window and attaches the session's ground-truth label.
// Windows where the expected frequency is unknown (bar absent while the
// string was marked sounding) are dropped; silent windows without a pitch
// are probed at the string's open pitch openMIDI.
func labelString(frames []capture.CaptureFrame, audio []float32, sampleRate int, si int, openMIDI float64) []labeledWindow {
	sr := float64(sampleRate)
	t0 := frames[0].TimestampUS

	var out []labeledWindow
	fi := 0
	for off := 0; off+analysisWindow <= len(audio); off += analysisWindow {
		centerUS := t0 + uint64(float64(off+analysisWindow/2)/sr*1e6)
		for fi+1 < len(frames) && frames[fi+1].TimestampUS <= centerUS {
			fi++
		}
		f := frames[fi]

		freq := f.PitchesHz[si]
		if freq < 20 || freq > sr/2 {
			if f.StringActive[si] {
				continue
			}
			// Silent and out of band: measure at the open pitch so the
			// silence distribution still accumulates.
			freq = copedant.MIDIToHz(openMIDI)
		}

		window := audio[off : off+analysisWindow]
		mag := goertzelPair(window, freq, sr)
		out = append(out, labeledWindow{energy: mag, sounding: f.StringActive[si]})
	}
	return out
}

// fitString optimizes one string's hysteresis pair against its labeled
// windows.
func fitString(si int, windows []labeledWindow, seed int64) StringThreshold {
	var pluck, silence []float64
	for _, w := range windows {
		if w.sounding {
			pluck = append(pluck, w.energy)
		} else {
			silence = append(silence, w.energy)
		}
	}
	heuristic := ComputeThresholds(pluck, silence)
	if len(pluck) < 4 || len(silence) < 4 {
		slog.Info("calib: too few labeled windows, using heuristic",
			"string", si+1, "pluck", len(pluck), "silence", len(silence))
		return heuristic
	}

	// Search onset between the silence floor and the pluck ceiling.
	onsetLo := quantile(silence, 0.25)
	onsetHi := quantile(pluck, 0.95)
	if onsetHi <= onsetLo {
		return heuristic
	}

	best := heuristic
	bestErr := hysteresisError(windows, heuristic)

	cfg := newFitConfig(fitPop, 2, fitIters)
	cfg.Rand = rand.New(rand.NewSource(seed))
	cfg.ObjectiveFunc = func(pos []float64) float64 {
		cand := denormalize(pos, onsetLo, onsetHi)
		e := hysteresisError(windows, cand)
		if e < bestErr {
			best = cand
			bestErr = e
		}
		return e
	}

	if _, err := runFit(cfg); err != nil {
		slog.Warn("calib: fit failed, keeping heuristic", "string", si+1, "err", err)
		return heuristic
	}
	slog.Debug("calib: fitted string", "string", si+1,
		"onset", best.Onset, "release", best.Release, "error", bestErr)
	return best
}

// denormalize maps a [0,1]^2 position to a threshold pair. Onset is
// interpolated geometrically since energies span orders of magnitude.
func denormalize(pos []float64, onsetLo, onsetHi float64) StringThreshold {
	lo := math.Max(onsetLo, 1e-9)
	hi := math.Max(onsetHi, lo*1.001)
	onset := lo * math.Pow(hi/lo, clamp01(pos[0]))
	ratio := releaseRatioLo + (releaseRatioHi-releaseRatioLo)*clamp01(pos[1])
	return StringThreshold{Onset: onset, Release: onset * ratio}
}

// hysteresisError simulates the detector's onset/release state machine
// over the window sequence and returns the label mismatch fraction.
func hysteresisError(windows []labeledWindow, th StringThreshold) float64 {
	if len(windows) == 0 {
		return 1
	}
	active := false
	wrong := 0
	for _, w := range windows {
		if active {
			if w.energy < th.Release {
				active = false
			}
		} else if w.energy > th.Onset {
			active = true
		}
		if active != w.sounding {
			wrong++
		}
	}
	return float64(wrong) / float64(len(windows))
}

func newFitConfig(pop, dims, iters int) *mayfly.Config {
	cfg := mayfly.NewDefaultConfig()
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	// The optimizer draws NC/2 parent pairs from both populations.
	cfg.NC = 2 * pop
	cfg.NM = int(math.Max(1, math.Round(0.05*float64(pop))))
	return cfg
}

func runFit(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
