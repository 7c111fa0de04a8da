// Package bar infers the steel bar's position in fret space from a rail of
// hall-effect sensors, optionally cross-checked against audio.
package bar

import "fmt"

const (
	// NumSensors is the number of hall sensors mounted along the rail.
	NumSensors = 4
	// MaxFret is the top of the searchable range.
	MaxFret = 24.0
)

// SensorFrets are the fret positions where the hall sensors sit.
var SensorFrets = [NumSensors]float32{0, 5, 10, 15}

// Source says how a bar position was determined.
type Source int

const (
	// SourceNone means no bar was detected.
	SourceNone Source = iota
	// SourceSensor means the hall sensor array alone produced the position.
	SourceSensor
	// SourceAudio means audio pitch inference alone produced the position.
	SourceAudio
	// SourceFused means sensor and audio estimates were blended.
	SourceFused
)

var sourceNames = map[Source]string{
	SourceNone:   "None",
	SourceSensor: "Sensor",
	SourceAudio:  "Audio",
	SourceFused:  "Fused",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// MarshalJSON serializes the source as a plain string, matching the session
// file format.
func (s Source) MarshalJSON() ([]byte, error) {
	n, ok := sourceNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown bar source %d", int(s))
	}
	return []byte(`"` + n + `"`), nil
}

// UnmarshalJSON parses the string form.
func (s *Source) UnmarshalJSON(b []byte) error {
	for v, n := range sourceNames {
		if string(b) == `"`+n+`"` {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown bar source %s", string(b))
}

// Estimate is an inferred bar position. Position is only meaningful when
// Present is true.
type Estimate struct {
	// Position in fret space: 0 = nut, 3 = third fret.
	Position float32
	// Present is false when no bar was detected (lifted, or out of range).
	Present bool
	// Confidence in [0,1].
	Confidence float32
	// Source records which inputs produced the position.
	Source Source
}

// Unknown is the no-bar estimate: absent, zero confidence, SourceNone.
func Unknown() Estimate {
	return Estimate{Source: SourceNone}
}
