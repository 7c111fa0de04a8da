// Package copedant models a pedal steel guitar tuning: the open pitch of
// each string plus the pitch changes applied by pedals and knee levers.
// All pitch math is pure; the engine holds no mutable state.
package copedant

import "fmt"

const (
	// NumStrings is the string count of the modeled instrument.
	NumStrings = 10
	// NumPedals is the number of floor pedals (A, B, C).
	NumPedals = 3
	// NumLevers is the number of knee levers (LKL, LKR, LKV, RKL, RKR).
	NumLevers = 5
)

// PedalNames are the conventional floor pedal labels, index-aligned with
// Controls.Pedals.
var PedalNames = [NumPedals]string{"A", "B", "C"}

// LeverNames are the conventional knee lever labels, index-aligned with
// Controls.Levers.
var LeverNames = [NumLevers]string{"LKL", "LKR", "LKV", "RKL", "RKR"}

// Change is one pitch modification: when the owning pedal or lever is fully
// engaged, the string at String is shifted by Semitones.
type Change struct {
	String    int     `json:"string"`
	Semitones float64 `json:"semitones"`
}

// ChangeDef defines what one pedal or lever does.
type ChangeDef struct {
	Name    string   `json:"name"`
	Changes []Change `json:"changes"`
}

// Copedant is the full tuning document: open string pitches (fractional MIDI
// note numbers, index 0 = string 1, furthest from the player) plus pedal and
// lever definitions.
type Copedant struct {
	Name        string            `json:"name"`
	OpenStrings [NumStrings]float64 `json:"open_strings"`
	Pedals      []ChangeDef       `json:"pedals"`
	Levers      []ChangeDef       `json:"levers"`
}

// Controls is the proportional engagement of every pedal and lever,
// each in [0,1].
type Controls struct {
	Pedals [NumPedals]float32
	Levers [NumLevers]float32
}

// Validate checks structural integrity. Out-of-range string indices and
// malformed change lists are errors, never clamped; a document that fails
// here must not be used to build an Engine.
func (c *Copedant) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("copedant has no name")
	}
	if len(c.Pedals) > NumPedals {
		return fmt.Errorf("copedant %q: %d pedals, at most %d supported", c.Name, len(c.Pedals), NumPedals)
	}
	if len(c.Levers) > NumLevers {
		return fmt.Errorf("copedant %q: %d levers, at most %d supported", c.Name, len(c.Levers), NumLevers)
	}
	for i, m := range c.OpenStrings {
		if m <= 0 || m > 127 {
			return fmt.Errorf("copedant %q: open_strings[%d] = %g outside (0,127]", c.Name, i, m)
		}
	}
	for _, def := range c.Pedals {
		if err := def.validate(); err != nil {
			return fmt.Errorf("copedant %q: pedal %q: %w", c.Name, def.Name, err)
		}
	}
	for _, def := range c.Levers {
		if err := def.validate(); err != nil {
			return fmt.Errorf("copedant %q: lever %q: %w", c.Name, def.Name, err)
		}
	}
	return nil
}

func (d *ChangeDef) validate() error {
	if d.Name == "" {
		return fmt.Errorf("unnamed change definition")
	}
	if len(d.Changes) == 0 {
		return fmt.Errorf("no changes defined")
	}
	for _, ch := range d.Changes {
		if ch.String < 0 || ch.String >= NumStrings {
			return fmt.Errorf("change targets string index %d (valid 0..%d)", ch.String, NumStrings-1)
		}
		if ch.Semitones == 0 {
			return fmt.Errorf("change on string %d has zero semitone delta", ch.String)
		}
	}
	return nil
}
