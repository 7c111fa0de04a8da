package bar

import (
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/dsp"
)

// Fuser combines two position sources:
//
//  1. Hall sensor array (primary): works during silence, ~0.1 fret
//     accuracy against the field model.
//  2. Audio spectral matching (refinement): Goertzel bins at the
//     copedant-implied string frequencies for candidate fret positions,
//     parabolic refinement around the best candidate.
//
// Audio is buffered internally, so callers can feed small chunks (48
// samples per millisecond tick) and analysis runs once enough accumulates.
// With both sources in close agreement the result is a blend favoring
// audio; a disagreement above two frets means the audio likely locked onto
// a harmonic alias, and the sensor wins.
type Fuser struct {
	sensor *SensorEstimator

	silenceThreshold float32
	audioWeight      float32
	smoothing        float32
	last             float32
	hasLast          bool

	fretCandidates []float32

	audioBuf             []float32
	analysisWindow       int
	samplesSinceAnalysis int
	analysisInterval     int
	sampleRate           int
}

// NewFuser returns a fuser with the default 4096-sample analysis window
// (~85ms at 48 kHz, enough to resolve B2) re-analyzed every 2048 samples.
func NewFuser() *Fuser {
	candidates := make([]float32, 0, 241)
	for i := 0; i <= 240; i++ {
		candidates = append(candidates, float32(i)/10.0)
	}
	return &Fuser{
		sensor:           NewSensorEstimator(),
		silenceThreshold: 0.005,
		audioWeight:      0.6,
		smoothing:        0.7,
		fretCandidates:   candidates,
		audioBuf:         make([]float32, 0, 8192),
		analysisWindow:   4096,
		analysisInterval: 2048,
		sampleRate:       48000,
	}
}

// WithAudioWeight overrides the audio share of the blend (default 0.6).
func (f *Fuser) WithAudioWeight(w float32) *Fuser {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	f.audioWeight = w
	return f
}

// PushAudio appends samples to the analysis buffer.
func (f *Fuser) PushAudio(samples []float32, sampleRate int) {
	f.sampleRate = sampleRate
	f.audioBuf = append(f.audioBuf, samples...)
	f.samplesSinceAnalysis += len(samples)

	maxLen := f.analysisWindow * 2
	if len(f.audioBuf) > maxLen {
		excess := len(f.audioBuf) - maxLen
		f.audioBuf = append(f.audioBuf[:0], f.audioBuf[excess:]...)
	}
}

func (f *Fuser) ready() bool {
	return len(f.audioBuf) >= f.analysisWindow &&
		f.samplesSinceAnalysis >= f.analysisInterval
}

// Infer produces the fused bar estimate for one tick.
func (f *Fuser) Infer(readings [NumSensors]float32, ctl copedant.Controls, eng *copedant.Engine) Estimate {
	sensorEst := f.sensor.Estimate(readings)
	audioPos, audioConf, audioOK := f.inferAudio(ctl, eng)

	switch {
	case sensorEst.Present && audioOK:
		disagreement := sensorEst.Position - audioPos
		if disagreement < 0 {
			disagreement = -disagreement
		}
		var pos, conf float32
		if disagreement < 2.0 {
			pos = sensorEst.Position*(1-f.audioWeight) + audioPos*f.audioWeight
			conf = sensorEst.Confidence*0.5 + audioConf*0.5
			if conf > 1 {
				conf = 1
			}
		} else {
			pos = sensorEst.Position
			conf = sensorEst.Confidence * 0.8
		}
		return Estimate{
			Position:   f.smooth(pos),
			Present:    true,
			Confidence: conf,
			Source:     SourceFused,
		}

	case sensorEst.Present:
		// No audio confirmation; slightly less confident.
		return Estimate{
			Position:   f.smooth(sensorEst.Position),
			Present:    true,
			Confidence: sensorEst.Confidence * 0.8,
			Source:     SourceSensor,
		}

	case audioOK:
		return Estimate{
			Position:   f.smooth(audioPos),
			Present:    true,
			Confidence: audioConf * 0.7,
			Source:     SourceAudio,
		}

	default:
		f.hasLast = false
		return Unknown()
	}
}

// Reset clears all history, including buffered audio.
func (f *Fuser) Reset() {
	f.sensor.Reset()
	f.hasLast = false
	f.audioBuf = f.audioBuf[:0]
	f.samplesSinceAnalysis = 0
}

func (f *Fuser) smooth(pos float32) float32 {
	if f.hasLast {
		alpha := 1 - f.smoothing
		pos = f.last + alpha*(pos-f.last)
	}
	f.last = pos
	f.hasLast = true
	return pos
}

func (f *Fuser) inferAudio(ctl copedant.Controls, eng *copedant.Engine) (pos, conf float32, ok bool) {
	if !f.ready() {
		return 0, 0, false
	}
	f.samplesSinceAnalysis = 0

	samples := f.audioBuf[len(f.audioBuf)-f.analysisWindow:]
	if dsp.RMS(samples) < f.silenceThreshold {
		return 0, 0, false
	}

	open := eng.EffectiveOpenPitches(ctl)
	sr := float64(f.sampleRate)

	var bestFret float32
	var bestScore, totalScore float64
	for _, fret := range f.fretCandidates {
		score := scoreFret(fret, open, samples, sr)
		if score > bestScore {
			bestScore = score
			bestFret = fret
		}
		totalScore += score
	}
	if bestScore < 1e-10 || totalScore < 1e-10 {
		return 0, 0, false
	}

	// Confidence: how far the best candidate stands out from the average.
	avgScore := totalScore / float64(len(f.fretCandidates))
	c := (bestScore/avgScore - 1.0) / 10.0
	if c < 0.1 {
		c = 0.1
	}
	if c > 1.0 {
		c = 1.0
	}

	return refineFret(bestFret, open, samples, sr), float32(c), true
}

// scoreFret measures how well the audio matches the expected spectrum at a
// candidate fret. A weak prior favors the typical playing range: fret 5 and
// fret 17 can match the same audio in E9 tuning, and the low position is
// almost always the right reading.
func scoreFret(fret float32, openMIDI [copedant.NumStrings]float64, samples []float32, sr float64) float64 {
	var score float64
	for _, midi := range openMIDI {
		freq := copedant.MIDIToHz(midi + float64(fret))
		if freq > sr/2.0 || freq < 20.0 {
			continue
		}
		score += dsp.Goertzel(samples, freq, sr)
	}
	var prior float64
	switch {
	case fret <= 12.0:
		prior = 1.0
	case fret <= 15.0:
		prior = 1.0 - float64(fret-12.0)*0.02
	default:
		prior = 0.94 - float64(fret-15.0)*0.03
	}
	return score * prior
}

// refineFret does parabolic interpolation around the best candidate for
// sub-0.1-fret precision.
func refineFret(best float32, open [copedant.NumStrings]float64, samples []float32, sr float64) float32 {
	const step = 0.1
	below := best - step
	if below < 0 {
		below = 0
	}
	above := best + step
	if above > MaxFret {
		above = MaxFret
	}
	sBelow := scoreFret(below, open, samples, sr)
	sCenter := scoreFret(best, open, samples, sr)
	sAbove := scoreFret(above, open, samples, sr)
	denom := sBelow - 2.0*sCenter + sAbove
	if denom > -1e-20 && denom < 1e-20 {
		return best
	}
	offset := 0.5 * (sBelow - sAbove) / denom
	refined := best + float32(offset)*step
	if refined < 0 {
		return 0
	}
	if refined > MaxFret {
		return MaxFret
	}
	return refined
}
