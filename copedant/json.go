package copedant

import (
	"encoding/json"
	"fmt"
	"os"
)

// file is the JSON schema for copedant documents. Open strings are decoded
// through a slice so a wrong-length list is a load error instead of being
// silently truncated or zero-padded.
type file struct {
	Name        string      `json:"name"`
	OpenStrings []float64   `json:"open_strings"`
	Pedals      []ChangeDef `json:"pedals"`
	Levers      []ChangeDef `json:"levers"`
}

// LoadJSON reads and validates a copedant document.
func LoadJSON(path string) (Copedant, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Copedant{}, err
	}
	return ParseJSON(b)
}

// ParseJSON decodes and validates a copedant document from raw JSON.
func ParseJSON(b []byte) (Copedant, error) {
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return Copedant{}, fmt.Errorf("parse copedant: %w", err)
	}
	if len(f.OpenStrings) != NumStrings {
		return Copedant{}, fmt.Errorf("copedant %q: open_strings has %d entries, want %d", f.Name, len(f.OpenStrings), NumStrings)
	}
	c := Copedant{
		Name:   f.Name,
		Pedals: f.Pedals,
		Levers: f.Levers,
	}
	copy(c.OpenStrings[:], f.OpenStrings)
	if err := c.Validate(); err != nil {
		return Copedant{}, err
	}
	return c, nil
}

// SaveJSON writes the copedant as indented JSON. Load after Save is
// lossless.
func SaveJSON(c Copedant, path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f := file{
		Name:        c.Name,
		OpenStrings: c.OpenStrings[:],
		Pedals:      c.Pedals,
		Levers:      c.Levers,
	}
	b, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
