package bar

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// The magnet on the bar tip couples to each hall sensor through a dipole
// field falling off with physical distance. Fret spacing is geometric, so
// fret numbers are first mapped to linear rail distance on a 24-unit scale
// before the falloff is evaluated.
const (
	scaleLength = 24.0 // rail length units over the full fretboard
	charDist    = 2.0  // falloff width in rail units
)

// linearPos maps a fret number to linear distance from the nut.
// Fret 12 sits at half the scale length.
func linearPos(fret float32) float32 {
	return scaleLength * (1.0 - pow2(-fret/12.0))
}

func pow2(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// ExpectedReading predicts the normalized reading of a sensor at sensorFret
// for a bar at candidateFret: 1/(1+(d/2)^2)^1.5 over the linear distance d.
// It is 1 exactly at distance zero, strictly below 1 elsewhere, and
// monotone decreasing in distance.
func ExpectedReading(candidateFret, sensorFret float32) float32 {
	d := linearPos(candidateFret) - linearPos(sensorFret)
	if d < 0 {
		d = -d
	}
	nd := float64(d / charDist)
	v := 1.0 + nd*nd
	return float32(1.0 / (v * math.Sqrt(v)))
}

// SimulateReadings produces the sensor array response for a bar at the
// given fret. Used by the simulator and by tests.
func SimulateReadings(barFret float32) [NumSensors]float32 {
	var readings [NumSensors]float32
	for i, sensorFret := range SensorFrets {
		readings[i] = ExpectedReading(barFret, sensorFret)
	}
	return readings
}
