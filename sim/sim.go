// Package sim generates simulated sensor data and matching synthetic audio,
// exercising the full capture pipeline without any hardware attached.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

// state evolves as gestures are applied.
type state struct {
	pedals     [copedant.NumPedals]float32
	levers     [copedant.NumLevers]float32
	volume     float32
	barFret    float32
	barPresent bool
	active     [copedant.NumStrings]bool
}

// Simulator drives a gesture script, emitting a SensorFrame per tick and,
// while strings sound, one tick's worth of sine audio.
type Simulator struct {
	clock   *capture.Clock
	out     chan<- capture.InputEvent
	eng     *copedant.Engine
	rateHz  int
	tickUS  uint64
	srate   int
	noAudio bool
	paced   bool

	// Monotonic sample counter keeps the synthetic audio phase-continuous
	// across chunks, immune to scheduling jitter.
	sampleCounter uint64
	tickCounter   uint64

	stop     chan struct{}
	stopOnce sync.Once

	st state
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSuppressAudio disables synthetic audio generation; only sensor frames
// are emitted.
func WithSuppressAudio() Option {
	return func(s *Simulator) { s.noAudio = true }
}

// WithoutPacing removes the per-tick sleep so scripts run as fast as the
// consumer accepts them. Timestamps still advance by the nominal tick.
func WithoutPacing() Option {
	return func(s *Simulator) { s.paced = false }
}

// New builds a simulator emitting into out at the given sensor rate.
func New(clock *capture.Clock, out chan<- capture.InputEvent, cop copedant.Copedant, sensorRateHz int, opts ...Option) (*Simulator, error) {
	eng, err := copedant.NewEngine(cop)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if sensorRateHz <= 0 {
		return nil, fmt.Errorf("sim: sensor rate %d out of range", sensorRateHz)
	}
	s := &Simulator{
		clock:  clock,
		out:    out,
		eng:    eng,
		rateHz: sensorRateHz,
		tickUS: 1_000_000 / uint64(sensorRateHz),
		srate:  48000,
		paced:  true,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Play runs the gesture script once, or until Stop is called.
func (s *Simulator) Play(gestures []Gesture) {
	for _, g := range gestures {
		if s.stopped() {
			return
		}
		g.run(s)
	}
}

// HoldForever emits the current state until Stop is called, keeping
// downstream consumers alive after a script ends.
func (s *Simulator) HoldForever() {
	for !s.stopped() {
		s.emitTick()
	}
}

// Stop makes the simulator stop emitting. Safe to call from any goroutine
// and more than once; in-progress gestures wind down without sending
// further events.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Simulator) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Simulator) ticksFor(ms int) int {
	n := int(uint64(ms) * 1000 / s.tickUS)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Simulator) emitTick() {
	if s.stopped() {
		return
	}
	ts := s.now()

	var sensors [bar.NumSensors]float32
	if s.st.barPresent {
		sensors = bar.SimulateReadings(s.st.barFret)
	}
	sf := capture.SensorFrame{
		TimestampUS:  ts,
		Pedals:       s.st.pedals,
		Levers:       s.st.levers,
		Volume:       s.st.volume,
		BarSensors:   sensors,
		StringActive: s.st.active,
	}
	s.out <- capture.InputEvent{Sensor: &sf}

	anyActive := false
	for _, a := range s.st.active {
		if a {
			anyActive = true
		}
	}
	if !s.noAudio && s.st.barPresent && s.st.volume > 0.01 && anyActive {
		chunk := s.generateAudio(ts)
		s.out <- capture.InputEvent{Audio: &chunk}
	}

	s.tickCounter++
	if s.paced {
		time.Sleep(time.Duration(s.tickUS) * time.Microsecond)
	}
}

// now prefers the session clock; without one, timestamps advance by the
// nominal tick so unpaced scripts still produce a coherent timeline.
func (s *Simulator) now() uint64 {
	if s.clock != nil && s.paced {
		return s.clock.NowMicros()
	}
	return s.tickCounter * s.tickUS
}

// generateAudio synthesizes one tick's worth of sine waves at the pitches
// implied by the current state.
func (s *Simulator) generateAudio(ts uint64) capture.AudioChunk {
	ctl := copedant.Controls{Pedals: s.st.pedals, Levers: s.st.levers}
	open := s.eng.EffectiveOpenPitches(ctl)

	n := s.srate / s.rateHz
	samples := make([]float32, n)

	activeCount := 0
	for _, a := range s.st.active {
		if a {
			activeCount++
		}
	}
	ampPerString := s.st.volume * 0.6 / float32(activeCount)

	for si := range s.st.active {
		if !s.st.active[si] {
			continue
		}
		freq := copedant.MIDIToHz(open[si] + float64(s.st.barFret))
		for j := range samples {
			t := float64(s.sampleCounter+uint64(j)) / float64(s.srate)
			samples[j] += ampPerString * float32(math.Sin(2*math.Pi*freq*t))
		}
	}
	s.sampleCounter += uint64(n)

	return capture.AudioChunk{TimestampUS: ts, Samples: samples, SampleRate: s.srate}
}

// Gesture is one scripted playing action.
type Gesture interface {
	run(s *Simulator)
}

// Hold keeps the current state for a duration.
type Hold struct{ MS int }

func (g Hold) run(s *Simulator) {
	slog.Debug("sim: hold", "ms", g.MS)
	for i := 0; i < s.ticksFor(g.MS); i++ {
		s.emitTick()
	}
}

// VolumeSwell eases the volume pedal between two levels.
type VolumeSwell struct {
	From, To float32
	MS       int
}

func (g VolumeSwell) run(s *Simulator) {
	slog.Debug("sim: volume swell", "from", g.From, "to", g.To, "ms", g.MS)
	ticks := s.ticksFor(g.MS)
	for i := 0; i < ticks; i++ {
		t := float32(i) / float32(ticks)
		s.st.volume = lerp(g.From, g.To, smoothstep(t))
		s.emitTick()
	}
	s.st.volume = g.To
}

// BarPlace sets the bar down at a fret without emitting a tick.
type BarPlace struct{ Fret float32 }

func (g BarPlace) run(s *Simulator) {
	slog.Debug("sim: bar place", "fret", g.Fret)
	s.st.barFret = g.Fret
	s.st.barPresent = true
}

// BarLift removes the bar from the strings.
type BarLift struct{}

func (g BarLift) run(s *Simulator) {
	slog.Debug("sim: bar lift")
	s.st.barPresent = false
}

// BarSlide moves the bar smoothly to a new fret.
type BarSlide struct {
	To float32
	MS int
}

func (g BarSlide) run(s *Simulator) {
	from := float32(0)
	if s.st.barPresent {
		from = s.st.barFret
	}
	slog.Debug("sim: bar slide", "from", from, "to", g.To, "ms", g.MS)
	ticks := s.ticksFor(g.MS)
	for i := 0; i < ticks; i++ {
		t := float32(i) / float32(ticks)
		s.st.barFret = lerp(from, g.To, smoothstep(t))
		s.st.barPresent = true
		s.emitTick()
	}
	s.st.barFret = g.To
}

// BarVibrato oscillates the bar around its current position.
type BarVibrato struct {
	Width  float32
	RateHz float32
	MS     int
}

func (g BarVibrato) run(s *Simulator) {
	center := float32(3)
	if s.st.barPresent {
		center = s.st.barFret
	}
	slog.Debug("sim: vibrato", "center", center, "width", g.Width, "rate_hz", g.RateHz, "ms", g.MS)
	ticks := s.ticksFor(g.MS)
	for i := 0; i < ticks; i++ {
		tSec := float32(uint64(i)*s.tickUS) / 1e6
		s.st.barFret = center + g.Width*float32(math.Sin(2*math.Pi*float64(g.RateHz*tSec)))
		s.st.barPresent = true
		s.emitTick()
	}
	s.st.barFret = center
}

// PedalEngage presses a pedal fully over a duration.
type PedalEngage struct {
	Index int
	MS    int
}

func (g PedalEngage) run(s *Simulator) {
	slog.Debug("sim: pedal engage", "pedal", copedant.PedalNames[g.Index], "ms", g.MS)
	rampControl(s, &s.st.pedals[g.Index], 1.0, g.MS)
}

// PedalRelease lets a pedal back up over a duration.
type PedalRelease struct {
	Index int
	MS    int
}

func (g PedalRelease) run(s *Simulator) {
	slog.Debug("sim: pedal release", "pedal", copedant.PedalNames[g.Index], "ms", g.MS)
	rampControl(s, &s.st.pedals[g.Index], 0.0, g.MS)
}

// LeverEngage engages a knee lever fully over a duration.
type LeverEngage struct {
	Index int
	MS    int
}

func (g LeverEngage) run(s *Simulator) {
	slog.Debug("sim: lever engage", "lever", copedant.LeverNames[g.Index], "ms", g.MS)
	rampControl(s, &s.st.levers[g.Index], 1.0, g.MS)
}

// LeverRelease releases a knee lever over a duration.
type LeverRelease struct {
	Index int
	MS    int
}

func (g LeverRelease) run(s *Simulator) {
	slog.Debug("sim: lever release", "lever", copedant.LeverNames[g.Index], "ms", g.MS)
	rampControl(s, &s.st.levers[g.Index], 0.0, g.MS)
}

// PickStrings replaces the set of sounding strings.
type PickStrings struct{ Strings []int }

func (g PickStrings) run(s *Simulator) {
	slog.Debug("sim: pick", "strings", g.Strings)
	s.st.active = [copedant.NumStrings]bool{}
	for _, si := range g.Strings {
		if si >= 0 && si < copedant.NumStrings {
			s.st.active[si] = true
		}
	}
}

// MuteAll silences every string.
type MuteAll struct{}

func (g MuteAll) run(s *Simulator) {
	slog.Debug("sim: mute all")
	s.st.active = [copedant.NumStrings]bool{}
}

func rampControl(s *Simulator, ctl *float32, target float32, ms int) {
	from := *ctl
	ticks := s.ticksFor(ms)
	for i := 0; i < ticks; i++ {
		t := float32(i) / float32(ticks)
		*ctl = lerp(from, target, smoothstep(t))
		s.emitTick()
	}
	*ctl = target
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func smoothstep(t float32) float32 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}
