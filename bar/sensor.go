package bar

const (
	// presenceFloor is the minimum total sensor energy to consider the bar
	// on the strings. All sensors read near zero when the bar is lifted,
	// which gives reliable on/off detection even during silence.
	presenceFloor = 0.05
	gridStep      = 0.5
	goldenIters   = 12
	invPhi        = 0.6180339887498949
)

// SensorEstimator recovers the bar position from the hall sensor array by
// fitting the field model: it scans a coarse fret grid for the least
// sum-of-squared-errors candidate, then refines with a fixed-budget
// golden-section search. Deterministic for identical inputs.
type SensorEstimator struct {
	smoothing float32
	last      float32
	hasLast   bool
}

// NewSensorEstimator returns an estimator with mild position smoothing.
func NewSensorEstimator() *SensorEstimator {
	return &SensorEstimator{smoothing: 0.3}
}

// Estimate fits the field model to one set of readings.
func (s *SensorEstimator) Estimate(readings [NumSensors]float32) Estimate {
	var total float32
	for _, r := range readings {
		total += r
	}
	if total < presenceFloor {
		s.hasLast = false
		return Unknown()
	}

	// Coarse scan every half fret. Strict less-than on the ascending scan
	// ties toward the lowest fret.
	best := float32(0)
	bestSSE := sse(0, readings)
	for i := 1; i <= int(MaxFret/gridStep); i++ {
		fret := float32(i) * gridStep
		if e := sse(fret, readings); e < bestSSE {
			bestSSE = e
			best = fret
		}
	}

	// Golden-section refinement one grid step either side, fixed budget.
	lo := best - gridStep
	if lo < 0 {
		lo = 0
	}
	hi := best + gridStep
	if hi > MaxFret {
		hi = MaxFret
	}
	pos := goldenMin(lo, hi, readings)

	conf := total
	if conf > 1 {
		conf = 1
	}

	smoothed := pos
	if s.hasLast {
		alpha := 1 - s.smoothing
		smoothed = s.last + alpha*(pos-s.last)
	}
	s.last = smoothed
	s.hasLast = true

	return Estimate{
		Position:   smoothed,
		Present:    true,
		Confidence: conf,
		Source:     SourceSensor,
	}
}

// Reset forgets the smoothing history, e.g. on session restart.
func (s *SensorEstimator) Reset() {
	s.hasLast = false
}

func sse(fret float32, readings [NumSensors]float32) float64 {
	var sum float64
	for i, sensorFret := range SensorFrets {
		d := float64(readings[i] - ExpectedReading(fret, sensorFret))
		sum += d * d
	}
	return sum
}

func goldenMin(a, b float32, readings [NumSensors]float32) float32 {
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc := sse(c, readings)
	fd := sse(d, readings)
	for i := 0; i < goldenIters; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = sse(c, readings)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = sse(d, readings)
		}
	}
	return (a + b) / 2
}
