package sim

import (
	"testing"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

func collect(t *testing.T, gestures []Gesture, opts ...Option) []capture.InputEvent {
	t.Helper()
	out := make(chan capture.InputEvent, 100000)
	opts = append(opts, WithoutPacing())
	s, err := New(nil, out, copedant.BuddyEmmonsE9(), 1000, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Play(gestures)
	close(out)
	var events []capture.InputEvent
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestHoldEmitsSensorFrames(t *testing.T) {
	events := collect(t, []Gesture{Hold{MS: 100}})
	n := 0
	for _, ev := range events {
		if ev.Sensor == nil {
			t.Fatalf("unexpected audio during silent hold")
		}
		n++
	}
	if n != 100 {
		t.Fatalf("got %d frames for 100ms at 1kHz, want 100", n)
	}
}

func TestVolumeSwellRampsMonotonically(t *testing.T) {
	events := collect(t, []Gesture{VolumeSwell{From: 0, To: 1, MS: 200}})
	prev := float32(-1)
	for _, ev := range events {
		if ev.Sensor == nil {
			continue
		}
		if ev.Sensor.Volume < prev-1e-6 {
			t.Fatalf("volume decreased during upward swell: %v -> %v", prev, ev.Sensor.Volume)
		}
		prev = ev.Sensor.Volume
	}
	if prev < 0.9 {
		t.Fatalf("final volume %v, want near 1", prev)
	}
}

func TestAudioOnlyWhileSounding(t *testing.T) {
	script := []Gesture{
		Hold{MS: 50},
		BarPlace{Fret: 3},
		PickStrings{Strings: []int{2, 3, 4}},
		VolumeSwell{From: 0, To: 0.9, MS: 100},
		Hold{MS: 100},
		MuteAll{},
		BarLift{},
		Hold{MS: 50},
	}
	events := collect(t, script)

	audioBefore, audioDuring, audioAfter := 0, 0, 0
	phase := 0
	for _, ev := range events {
		if ev.Sensor != nil {
			switch {
			case ev.Sensor.StringActive[2]:
				phase = 1
			case phase == 1:
				phase = 2
			}
			continue
		}
		switch phase {
		case 0:
			audioBefore++
		case 1:
			audioDuring++
		case 2:
			audioAfter++
		}
	}
	if audioBefore != 0 || audioAfter != 0 {
		t.Fatalf("audio outside sounding section: before=%d after=%d", audioBefore, audioAfter)
	}
	if audioDuring == 0 {
		t.Fatalf("no audio while strings sound")
	}
}

func TestSuppressAudio(t *testing.T) {
	script := []Gesture{
		BarPlace{Fret: 3},
		PickStrings{Strings: []int{2}},
		VolumeSwell{From: 0, To: 0.9, MS: 50},
		Hold{MS: 50},
	}
	for _, ev := range collect(t, script, WithSuppressAudio()) {
		if ev.Audio != nil {
			t.Fatalf("audio emitted despite suppression")
		}
	}
}

func TestBarSlideReachesTarget(t *testing.T) {
	script := []Gesture{
		BarPlace{Fret: 3},
		BarSlide{To: 8, MS: 100},
		Hold{MS: 10},
	}
	events := collect(t, script)
	var last *capture.SensorFrame
	for _, ev := range events {
		if ev.Sensor != nil {
			last = ev.Sensor
		}
	}
	if last == nil {
		t.Fatalf("no frames emitted")
	}
	// Sensor readings at fret 8 peak on the fret-10 sensor.
	if last.BarSensors[2] <= last.BarSensors[0] {
		t.Fatalf("readings %v do not look like fret 8", last.BarSensors)
	}
}

func TestAudioPhaseContinuity(t *testing.T) {
	script := []Gesture{
		BarPlace{Fret: 3},
		PickStrings{Strings: []int{4}},
		VolumeSwell{From: 0.9, To: 0.9, MS: 10},
		Hold{MS: 40},
	}
	events := collect(t, script)
	var chunks []*capture.AudioChunk
	for _, ev := range events {
		if ev.Audio != nil {
			chunks = append(chunks, ev.Audio)
		}
	}
	if len(chunks) < 2 {
		t.Fatalf("need at least two chunks, got %d", len(chunks))
	}
	// Across a chunk boundary the waveform must not jump more than one
	// sample step of the underlying sine can explain.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Samples
		next := chunks[i].Samples
		delta := float64(next[0] - prev[len(prev)-1])
		if delta > 0.2 || delta < -0.2 {
			t.Fatalf("discontinuity %v at chunk %d boundary", delta, i)
		}
	}
}

func TestTimestampsMonotone(t *testing.T) {
	events := collect(t, BasicDemo())
	var prev uint64
	for _, ev := range events {
		var ts uint64
		if ev.Sensor != nil {
			ts = ev.Sensor.TimestampUS
		} else {
			ts = ev.Audio.TimestampUS
		}
		if ts < prev {
			t.Fatalf("timestamp went backwards: %d after %d", ts, prev)
		}
		prev = ts
	}
}

func TestRejectsBadRate(t *testing.T) {
	out := make(chan capture.InputEvent, 1)
	if _, err := New(nil, out, copedant.BuddyEmmonsE9(), 0); err == nil {
		t.Fatalf("zero sensor rate should be rejected")
	}
}
