package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/detector"
)

// Envelope constants, applied once per sensor tick.
const (
	attackCeiling  = 1.0
	activeDecay    = 0.98
	inactiveDecay  = 0.6
	envelopeFloor  = 0.01
	pedalThreshold = 0.5
)

type consumer struct {
	ch      chan CaptureFrame
	dropped atomic.Uint64
}

// Coordinator is the sole owner of mutable session state. It consumes
// sensor frames and audio chunks from a single input channel, runs the bar
// estimator, the copedant engine and the string detector, advances the
// per-string amplitude envelopes, and fans out immutable CaptureFrames to
// registered consumers.
type Coordinator struct {
	mu sync.Mutex

	eng   *copedant.Engine
	fuser *bar.Fuser
	det   *detector.Detector

	// audioDetection resolves string activity from audio instead of the
	// ground-truth flags carried in SensorFrame.
	audioDetection bool
	audioTap       chan<- AudioChunk
	tapDropped     atomic.Uint64

	in <-chan InputEvent

	consumers map[string]*consumer

	active     [copedant.NumStrings]bool
	amplitude  [copedant.NumStrings]float32
	prevPedals [copedant.NumPedals]float32
	prevLevers [copedant.NumLevers]float32
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithAudioDetection switches string activity resolution from the
// simulator's ground-truth flags to the audio detector.
func WithAudioDetection() Option {
	return func(c *Coordinator) { c.audioDetection = true }
}

// WithStringThresholds installs calibrated per-string detection thresholds.
func WithStringThresholds(onset, release [copedant.NumStrings]float64) Option {
	return func(c *Coordinator) { c.det.WithThresholds(onset, release) }
}

// WithAudioTap forwards every incoming audio chunk to ch, e.g. for session
// recording. Sends never block; chunks are dropped when ch is full. The
// coordinator closes ch when its input stream ends.
func WithAudioTap(ch chan<- AudioChunk) Option {
	return func(c *Coordinator) { c.audioTap = ch }
}

// NewCoordinator builds a coordinator reading from in with the given tuning.
func NewCoordinator(in <-chan InputEvent, cop copedant.Copedant, opts ...Option) (*Coordinator, error) {
	eng, err := copedant.NewEngine(cop)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	c := &Coordinator{
		eng:       eng,
		fuser:     bar.NewFuser(),
		det:       detector.New(),
		in:        in,
		consumers: make(map[string]*consumer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddConsumer registers a named output channel with the given buffer size.
// Frames are sent without blocking; a full buffer drops the frame and bumps
// the consumer's drop counter. Register consumers before calling Run.
func (c *Coordinator) AddConsumer(name string, buf int) <-chan CaptureFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	cons := &consumer{ch: make(chan CaptureFrame, buf)}
	c.consumers[name] = cons
	return cons.ch
}

// Dropped reports how many frames the named consumer has missed.
func (c *Coordinator) Dropped(name string) uint64 {
	c.mu.Lock()
	cons := c.consumers[name]
	c.mu.Unlock()
	if cons == nil {
		return 0
	}
	return cons.dropped.Load()
}

// DroppedAudio reports how many audio chunks the tap has missed.
func (c *Coordinator) DroppedAudio() uint64 {
	return c.tapDropped.Load()
}

// Run consumes the input channel until it is closed, then closes every
// consumer channel and the audio tap.
func (c *Coordinator) Run() {
	for ev := range c.in {
		switch {
		case ev.Sensor != nil:
			c.ProcessSensor(*ev.Sensor)
		case ev.Audio != nil:
			c.ProcessAudio(*ev.Audio)
		}
	}
	c.mu.Lock()
	for _, cons := range c.consumers {
		close(cons.ch)
	}
	c.mu.Unlock()
	if c.audioTap != nil {
		close(c.audioTap)
	}
}

// ProcessAudio feeds an audio chunk to the bar fuser, the detector when
// audio detection is enabled, and the tap.
func (c *Coordinator) ProcessAudio(chunk AudioChunk) {
	c.mu.Lock()
	c.fuser.PushAudio(chunk.Samples, chunk.SampleRate)
	if c.audioDetection {
		c.det.PushAudio(chunk.Samples, chunk.SampleRate)
	}
	c.mu.Unlock()

	if c.audioTap != nil {
		select {
		case c.audioTap <- chunk:
		default:
			c.tapDropped.Add(1)
		}
	}
}

// ProcessSensor runs one full tick: bar estimate, pitches, activity,
// attacks, envelope. The resulting frame is broadcast and returned.
func (c *Coordinator) ProcessSensor(sf SensorFrame) CaptureFrame {
	c.mu.Lock()

	ctl := sf.Controls()
	barEst := c.fuser.Infer(sf.BarSensors, ctl, c.eng)
	pitches := c.eng.Pitches(ctl, barEst.Position, barEst.Present)

	var active, attacks [copedant.NumStrings]bool
	if c.audioDetection {
		active, attacks, _ = c.det.Detect(ctl, barEst, c.eng)
	} else {
		active = sf.StringActive
		for i := range active {
			if active[i] && !c.active[i] {
				attacks[i] = true
			}
		}
	}

	// A pedal or lever crossing the halfway point re-articulates every
	// active string it affects, in either direction.
	for j := 0; j < copedant.NumPedals; j++ {
		if crossed(c.prevPedals[j], sf.Pedals[j]) {
			affected := c.eng.PedalStrings(j)
			for si := range affected {
				if affected[si] && active[si] {
					attacks[si] = true
				}
			}
		}
	}
	for j := 0; j < copedant.NumLevers; j++ {
		if crossed(c.prevLevers[j], sf.Levers[j]) {
			affected := c.eng.LeverStrings(j)
			for si := range affected {
				if affected[si] && active[si] {
					attacks[si] = true
				}
			}
		}
	}

	for i := range c.amplitude {
		if attacks[i] && c.amplitude[i] < attackCeiling {
			c.amplitude[i] = attackCeiling
		}
		if active[i] {
			c.amplitude[i] *= activeDecay
		} else {
			c.amplitude[i] *= inactiveDecay
		}
		if c.amplitude[i] < envelopeFloor {
			c.amplitude[i] = 0
		}
	}

	c.active = active
	c.prevPedals = sf.Pedals
	c.prevLevers = sf.Levers

	frame := CaptureFrame{
		TimestampUS:  sf.TimestampUS,
		Pedals:       sf.Pedals,
		Levers:       sf.Levers,
		Volume:       sf.Volume,
		BarSensors:   sf.BarSensors,
		Bar:          barEst,
		PitchesHz:    pitches,
		StringActive: active,
		Attacks:      attacks,
		Amplitude:    c.amplitude,
	}

	for _, cons := range c.consumers {
		select {
		case cons.ch <- frame:
		default:
			cons.dropped.Add(1)
		}
	}
	c.mu.Unlock()
	return frame
}

// SetCopedant swaps the tuning and reinitializes all derived state.
func (c *Coordinator) SetCopedant(cop copedant.Copedant) error {
	eng, err := copedant.NewEngine(cop)
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	c.mu.Lock()
	c.eng = eng
	c.resetLocked()
	c.mu.Unlock()
	return nil
}

// Reset clears bar history, detector state and envelopes.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Coordinator) resetLocked() {
	c.fuser.Reset()
	c.det.Reset()
	c.active = [copedant.NumStrings]bool{}
	c.amplitude = [copedant.NumStrings]float32{}
	c.prevPedals = [copedant.NumPedals]float32{}
	c.prevLevers = [copedant.NumLevers]float32{}
}

// Engine returns the current copedant engine.
func (c *Coordinator) Engine() *copedant.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng
}

func crossed(prev, cur float32) bool {
	return (prev < pedalThreshold) != (cur < pedalThreshold)
}
