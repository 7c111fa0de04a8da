// Package calib holds per-string detection thresholds: the serializable
// calibration document, threshold derivation from measured energy
// distributions, and an optimizer that fits thresholds to a recorded
// session.
package calib

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwbudde/steel-capture/copedant"
)

// Defaults used wherever a string has no calibration data.
const (
	DefaultOnset   = 0.02
	DefaultRelease = 0.008
)

// StringThreshold is one string's hysteresis pair.
type StringThreshold struct {
	Onset   float64 `json:"onset"`
	Release float64 `json:"release"`
}

// Calibration is the on-disk document.
type Calibration struct {
	Strings []StringThreshold `json:"strings"`
}

// Load reads a calibration file.
func Load(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calib: %w", err)
	}
	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("calib: parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the document as indented JSON.
func (c *Calibration) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("calib: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calib: write %s: %w", path, err)
	}
	return nil
}

// OnsetThresholds flattens to the detector's array form, padding missing
// strings with the default.
func (c *Calibration) OnsetThresholds() [copedant.NumStrings]float64 {
	var t [copedant.NumStrings]float64
	for i := range t {
		t[i] = DefaultOnset
	}
	for i, s := range c.Strings {
		if i >= copedant.NumStrings {
			break
		}
		t[i] = s.Onset
	}
	return t
}

// ReleaseThresholds flattens to the detector's array form.
func (c *Calibration) ReleaseThresholds() [copedant.NumStrings]float64 {
	var t [copedant.NumStrings]float64
	for i := range t {
		t[i] = DefaultRelease
	}
	for i, s := range c.Strings {
		if i >= copedant.NumStrings {
			break
		}
		t[i] = s.Release
	}
	return t
}
