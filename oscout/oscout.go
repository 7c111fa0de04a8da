// Package oscout streams capture frames as OSC control messages over UDP,
// one float message per parameter.
//
// Address scheme:
//
//	/steel/pedal/{a,b,c}      pedal engagement 0..1
//	/steel/knee/{0..4}        knee lever engagement 0..1
//	/steel/volume             volume pedal 0..1
//	/steel/bar/pos            bar fret position, -1 when the bar is lifted
//	/steel/bar/confidence     estimate confidence 0..1
//	/steel/bar/source         0 none, 1 sensor, 2 audio, 3 fused
//	/steel/bar/sensor/{0..3}  raw sensor readings, for calibration
//	/steel/pitch/{0..9}       per-string sounding pitch in Hz
package oscout

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hypebeast/go-osc/osc"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/capture"
)

// Sender forwards every received frame to one OSC target.
type Sender struct {
	client *osc.Client
	target string
}

// NewSender parses "host:port" into an OSC client.
func NewSender(target string) (*Sender, error) {
	host, portStr, ok := strings.Cut(target, ":")
	if !ok || host == "" {
		return nil, fmt.Errorf("oscout: target %q, want host:port", target)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("oscout: bad port in %q", target)
	}
	return &Sender{client: osc.NewClient(host, port), target: target}, nil
}

// Run forwards frames until the channel closes.
func (s *Sender) Run(frames <-chan capture.CaptureFrame) {
	slog.Info("oscout: sending", "target", s.target)
	for f := range frames {
		if err := s.SendFrame(f); err != nil {
			slog.Debug("oscout: send failed", "err", err)
		}
	}
	slog.Info("oscout: shutting down")
}

// SendFrame emits the full parameter set for one frame.
func (s *Sender) SendFrame(f capture.CaptureFrame) error {
	pedalAddrs := [...]string{"/steel/pedal/a", "/steel/pedal/b", "/steel/pedal/c"}
	for i, v := range f.Pedals {
		if err := s.sendFloat(pedalAddrs[i], v); err != nil {
			return err
		}
	}
	for i, v := range f.Levers {
		if err := s.sendFloat(fmt.Sprintf("/steel/knee/%d", i), v); err != nil {
			return err
		}
	}
	if err := s.sendFloat("/steel/volume", f.Volume); err != nil {
		return err
	}

	if f.Bar.Present {
		if err := s.sendFloat("/steel/bar/pos", f.Bar.Position); err != nil {
			return err
		}
		if err := s.sendFloat("/steel/bar/confidence", f.Bar.Confidence); err != nil {
			return err
		}
	} else {
		if err := s.sendFloat("/steel/bar/pos", -1); err != nil {
			return err
		}
		if err := s.sendFloat("/steel/bar/confidence", 0); err != nil {
			return err
		}
	}
	if err := s.sendFloat("/steel/bar/source", sourceValue(f.Bar.Source)); err != nil {
		return err
	}

	for i, v := range f.BarSensors {
		if err := s.sendFloat(fmt.Sprintf("/steel/bar/sensor/%d", i), v); err != nil {
			return err
		}
	}
	for i, hz := range f.PitchesHz {
		if err := s.sendFloat(fmt.Sprintf("/steel/pitch/%d", i), float32(hz)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendFloat(addr string, v float32) error {
	msg := osc.NewMessage(addr)
	msg.Append(v)
	return s.client.Send(msg)
}

func sourceValue(src bar.Source) float32 {
	switch src {
	case bar.SourceSensor:
		return 1
	case bar.SourceAudio:
		return 2
	case bar.SourceFused:
		return 3
	default:
		return 0
	}
}
