// Package capture defines the frame types flowing through the pipeline and
// the coordinator that owns all mutable session state.
package capture

import (
	"fmt"
	"time"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/copedant"
)

// SensorFrame is one raw mechanical snapshot from the microcontroller or
// the simulator.
type SensorFrame struct {
	// Microseconds since session start.
	TimestampUS uint64
	// Pedal positions, 0 (rest) to 1 (fully engaged).
	Pedals [copedant.NumPedals]float32
	// Knee lever positions: LKL, LKR, LKV, RKL, RKR.
	Levers [copedant.NumLevers]float32
	// Volume pedal: 0 (toe up, silent) to 1 (toe down).
	Volume float32
	// Raw hall sensor readings, all near zero when the bar is lifted.
	BarSensors [bar.NumSensors]float32
	// Ground-truth string activity. The simulator fills this in; hardware
	// leaves it all false and audio detection takes over.
	StringActive [copedant.NumStrings]bool
}

// AtRest returns a frame with everything released and the volume pedal at a
// comfortable 0.7.
func AtRest(timestampUS uint64) SensorFrame {
	return SensorFrame{TimestampUS: timestampUS, Volume: 0.7}
}

// Controls extracts the pedal/lever engagement for the copedant engine.
func (s *SensorFrame) Controls() copedant.Controls {
	return copedant.Controls{Pedals: s.Pedals, Levers: s.Levers}
}

func (s *SensorFrame) String() string {
	return fmt.Sprintf(
		"t=%10dµs  P[%.2f %.2f %.2f]  KL[%.2f %.2f %.2f %.2f %.2f]  V=%.2f  BAR[%.2f %.2f %.2f %.2f]",
		s.TimestampUS,
		s.Pedals[0], s.Pedals[1], s.Pedals[2],
		s.Levers[0], s.Levers[1], s.Levers[2], s.Levers[3], s.Levers[4],
		s.Volume,
		s.BarSensors[0], s.BarSensors[1], s.BarSensors[2], s.BarSensors[3],
	)
}

// AudioChunk is a block of mono samples from the audio interface or the
// simulator, normalized to [-1,1].
type AudioChunk struct {
	// Timestamp of the first sample, microseconds since session start.
	TimestampUS uint64
	Samples     []float32
	SampleRate  int
}

// InputEvent carries either a sensor frame or an audio chunk into the
// coordinator. Exactly one field is non-nil.
type InputEvent struct {
	Sensor *SensorFrame
	Audio  *AudioChunk
}

// Clock is the monotonic session clock.
type Clock struct {
	start time.Time
}

// NewClock starts a session clock at zero.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// NowMicros returns microseconds elapsed since the clock started.
func (c *Clock) NowMicros() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}
