package capture

import (
	"fmt"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/copedant"
)

// CaptureFrame is the complete state snapshot at one moment: raw mechanics,
// the inferred bar estimate, per-string pitches, activity, attacks, and the
// amplitude envelope. It is immutable once emitted.
type CaptureFrame struct {
	TimestampUS uint64
	Pedals      [copedant.NumPedals]float32
	Levers      [copedant.NumLevers]float32
	Volume      float32
	BarSensors  [bar.NumSensors]float32
	Bar         bar.Estimate
	// Sounding pitch per string in Hz. Open-string pitches when the bar
	// is absent.
	PitchesHz    [copedant.NumStrings]float64
	StringActive [copedant.NumStrings]bool
	// Attacks flags strings that need a new notehead this frame.
	Attacks   [copedant.NumStrings]bool
	Amplitude [copedant.NumStrings]float32
}

// Phase is the per-string lifecycle stage derivable from a frame.
type Phase int

const (
	PhaseSilent Phase = iota
	PhaseAttacking
	PhaseSustaining
	PhaseReleasing
)

func (p Phase) String() string {
	switch p {
	case PhaseSilent:
		return "Silent"
	case PhaseAttacking:
		return "Attacking"
	case PhaseSustaining:
		return "Sustaining"
	case PhaseReleasing:
		return "Releasing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Phase reports where string i sits in the Silent, Attacking, Sustaining,
// Releasing cycle.
func (f *CaptureFrame) Phase(i int) Phase {
	switch {
	case f.Attacks[i]:
		return PhaseAttacking
	case f.StringActive[i]:
		return PhaseSustaining
	case f.Amplitude[i] > 0:
		return PhaseReleasing
	default:
		return PhaseSilent
	}
}

func (f *CaptureFrame) String() string {
	barStr := "---"
	src := "---"
	if f.Bar.Present {
		barStr = fmt.Sprintf("%.2f", f.Bar.Position)
		switch f.Bar.Source {
		case bar.SourceSensor:
			src = "sen"
		case bar.SourceAudio:
			src = "aud"
		case bar.SourceFused:
			src = "fus"
		}
	}
	return fmt.Sprintf(
		"t=%10dµs  bar=%-6s conf=%.2f src=%s  P[%.2f %.2f %.2f]  V=%.2f",
		f.TimestampUS, barStr, f.Bar.Confidence, src,
		f.Pedals[0], f.Pedals[1], f.Pedals[2], f.Volume,
	)
}

// CompactFrame is the short-key JSON form used for streaming and session
// logging: t=timestamp, p=pedals, kl=levers, v=volume, bs=bar sensors,
// bp=bar position (null when absent), bc=bar confidence, bx=bar source,
// hz=pitches, sa=string active, at=attacks, am=amplitude.
type CompactFrame struct {
	T  uint64                         `json:"t"`
	P  [copedant.NumPedals]float32    `json:"p"`
	KL [copedant.NumLevers]float32    `json:"kl"`
	V  float32                        `json:"v"`
	BS [bar.NumSensors]float32        `json:"bs"`
	BP *float32                       `json:"bp"`
	BC float32                        `json:"bc"`
	BX bar.Source                     `json:"bx"`
	HZ [copedant.NumStrings]float64   `json:"hz"`
	SA [copedant.NumStrings]bool      `json:"sa"`
	AT [copedant.NumStrings]bool      `json:"at"`
	AM [copedant.NumStrings]float32   `json:"am"`
}

// Compact converts to the short-key form.
func (f *CaptureFrame) Compact() CompactFrame {
	c := CompactFrame{
		T:  f.TimestampUS,
		P:  f.Pedals,
		KL: f.Levers,
		V:  f.Volume,
		BS: f.BarSensors,
		BC: f.Bar.Confidence,
		BX: f.Bar.Source,
		HZ: f.PitchesHz,
		SA: f.StringActive,
		AT: f.Attacks,
		AM: f.Amplitude,
	}
	if f.Bar.Present {
		pos := f.Bar.Position
		c.BP = &pos
	}
	return c
}

// Frame converts back to the full form. Lossless inverse of Compact.
func (c *CompactFrame) Frame() CaptureFrame {
	f := CaptureFrame{
		TimestampUS:  c.T,
		Pedals:       c.P,
		Levers:       c.KL,
		Volume:       c.V,
		BarSensors:   c.BS,
		PitchesHz:    c.HZ,
		StringActive: c.SA,
		Attacks:      c.AT,
		Amplitude:    c.AM,
	}
	f.Bar = bar.Estimate{Confidence: c.BC, Source: c.BX}
	if c.BP != nil {
		f.Bar.Position = *c.BP
		f.Bar.Present = true
	}
	return f
}
