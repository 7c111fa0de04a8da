// Package console renders a live ANSI dashboard of the capture state.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

// Display draws frames to a terminal at a reduced rate.
type Display struct {
	w      io.Writer
	rateHz int
	every  uint64
}

// New builds a display writing to w, refreshing updateHz times per second
// assuming a 1 kHz frame rate.
func New(w io.Writer, updateHz int) *Display {
	every := uint64(50)
	if updateHz > 0 {
		every = uint64(1000 / updateHz)
		if every < 1 {
			every = 1
		}
	}
	return &Display{w: w, rateHz: updateHz, every: every}
}

// Run consumes frames until the channel closes.
func (d *Display) Run(frames <-chan capture.CaptureFrame) {
	var count uint64
	for f := range frames {
		count++
		if count%d.every != 0 {
			continue
		}
		d.Render(f)
	}
}

// Render draws one full dashboard frame.
func (d *Display) Render(f capture.CaptureFrame) {
	var b strings.Builder

	// Clear screen, cursor home.
	b.WriteString("\x1b[2J\x1b[H")
	b.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	b.WriteString("║  STEEL CAPTURE - Live Monitor                            ║\n")
	b.WriteString("╠══════════════════════════════════════════════════════════╣\n")

	fmt.Fprintf(&b, "║  Time: %8.2fs\n", float64(f.TimestampUS)/1e6)

	b.WriteString("║\n║  Pedals:\n")
	for i, v := range f.Pedals {
		fmt.Fprintf(&b, "║    %s: %s %3.0f%%\n", copedant.PedalNames[i], meter(v, 30), v*100)
	}

	b.WriteString("║\n║  Knee Levers:\n")
	for i, v := range f.Levers {
		fmt.Fprintf(&b, "║    %3s: %s %3.0f%%\n", copedant.LeverNames[i], meter(v, 30), v*100)
	}

	fmt.Fprintf(&b, "║\n║  Volume: %s %3.0f%%\n", meter(f.Volume, 30), f.Volume*100)

	b.WriteString("║\n")
	if f.Bar.Present {
		fmt.Fprintf(&b, "║  Bar: fret %5.2f (conf: %3.0f%%, src: %s)\n",
			f.Bar.Position, f.Bar.Confidence*100, sourceLabel(f.Bar.Source))
		fmt.Fprintf(&b, "║  %s\n", fretboard(f.Bar.Position, 24))
	} else {
		b.WriteString("║  Bar: --- (not detected)\n║\n")
	}

	b.WriteString("║\n║  Strings:\n")
	for i, hz := range f.PitchesHz {
		mark := " "
		switch {
		case f.Attacks[i]:
			mark = "*"
		case f.StringActive[i]:
			mark = "+"
		}
		fmt.Fprintf(&b, "║   %s %3s: %7.1f Hz  (%-5s)  %s\n",
			mark, copedant.E9StringNames[i], hz, copedant.NoteNameHz(hz), meter(f.Amplitude[i], 12))
	}

	b.WriteString("╚══════════════════════════════════════════════════════════╝\n")
	io.WriteString(d.w, b.String())
}

// meter renders a fixed-width fill bar.
func meter(v float32, width int) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*float32(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// fretboard marks the bar position along the neck.
func fretboard(pos float32, maxFret int) string {
	var b strings.Builder
	b.WriteString("Nut ")
	for fret := 0; fret <= maxFret; fret++ {
		d := pos - float32(fret)
		if d < 0 {
			d = -d
		}
		if d < 0.3 {
			b.WriteString("▼ ")
		} else {
			b.WriteString("│ ")
		}
	}
	return b.String()
}

func sourceLabel(src bar.Source) string {
	switch src {
	case bar.SourceSensor:
		return "sensor"
	case bar.SourceAudio:
		return "audio"
	case bar.SourceFused:
		return "fused"
	default:
		return "---"
	}
}
