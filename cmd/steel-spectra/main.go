// Command steel-spectra runs an STFT over a recorded session's audio and
// checks the spectrum against the session's pitch ground truth: for each
// analysis frame it finds the dominant spectral peaks and reports how often
// the expected string frequencies actually show up. A quick way to judge
// whether a recording is clean enough to calibrate against.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"sort"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/internal/wavio"
	"github.com/cwbudde/steel-capture/sessionlog"
)

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

type peak struct {
	freq float64
	mag  float64
}

func main() {
	sessionDir := flag.String("session", "", "Session directory (default: most recent in the index)")
	outputDir := flag.String("output-dir", "./sessions", "Sessions directory holding the index")
	fftSize := flag.Int("fft-size", 4096, "STFT window size")
	hop := flag.Int("hop", 2048, "STFT hop size")
	topN := flag.Int("top", 5, "Dominant peaks to report per frame")
	verbose := flag.Bool("verbose", false, "Print every STFT frame, not just the summary")
	flag.Parse()

	dir := *sessionDir
	if dir == "" {
		idx, err := sessionlog.OpenIndex(filepath.Join(*outputDir, "sessions.db"))
		if err != nil {
			die("session index: %v", err)
		}
		sessions, err := idx.Sessions()
		idx.Close()
		if err != nil {
			die("session index: %v", err)
		}
		if len(sessions) == 0 {
			die("no recorded sessions in %s", *outputDir)
		}
		dir = sessions[0].Dir
	}

	reader, closer, err := sessionlog.OpenSessionDir(dir)
	if err != nil {
		die("open session: %v", err)
	}
	frames := reader.ReadAll()
	closer.Close()

	audio, sr, err := wavio.ReadWAVMono(filepath.Join(dir, "audio.wav"))
	if err != nil {
		die("session audio: %v", err)
	}
	fmt.Printf("Session: %s\n", dir)
	fmt.Printf("Frames: %d  Audio: %d samples @ %d Hz (%.2fs)\n\n",
		len(frames), len(audio), sr, float64(len(audio))/float64(sr))

	plan, err := algofft.NewPlanReal64(*fftSize)
	if err != nil {
		die("fft plan: %v", err)
	}
	hann := make([]float64, *fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(*fftSize-1))
	}

	spec := make([]complex128, *fftSize/2+1)
	buf := make([]float64, *fftSize)
	binHz := float64(sr) / float64(*fftSize)

	var t0 uint64
	if len(frames) > 0 {
		t0 = frames[0].TimestampUS
	}

	soundingWindows := 0
	confirmedStrings := 0
	expectedStrings := 0
	fi := 0

	for pos := 0; pos+*fftSize <= len(audio); pos += *hop {
		for i := 0; i < *fftSize; i++ {
			buf[i] = float64(audio[pos+i]) * hann[i]
		}
		plan.Forward(spec, buf)

		peaks := topPeaks(spec, binHz, *topN)

		centerUS := t0 + uint64(float64(pos+*fftSize/2)/float64(sr)*1e6)
		for fi+1 < len(frames) && frames[fi+1].TimestampUS <= centerUS {
			fi++
		}
		var frame capture.CaptureFrame
		if fi < len(frames) {
			frame = frames[fi]
		}

		var expected []float64
		confirmed := 0
		for si, active := range frame.StringActive {
			if !active {
				continue
			}
			f := frame.PitchesHz[si]
			if f <= 0 {
				continue
			}
			expected = append(expected, f)
			if peakNear(peaks, f) {
				confirmed++
			}
		}
		if len(expected) > 0 {
			soundingWindows++
			expectedStrings += len(expected)
			confirmedStrings += confirmed
		}

		if *verbose {
			fmt.Printf("%7.2fs  peaks:", float64(pos)/float64(sr))
			for _, p := range peaks {
				fmt.Printf(" %6.1fHz(%.3f)", p.freq, p.mag)
			}
			if len(expected) > 0 {
				fmt.Printf("  expected:")
				for _, f := range expected {
					fmt.Printf(" %.1f", f)
				}
				fmt.Printf("  confirmed %d/%d", confirmed, len(expected))
			}
			fmt.Println()
		}
	}

	if expectedStrings == 0 {
		fmt.Println("No sounding strings in the session's ground truth.")
		return
	}
	fmt.Printf("Sounding STFT windows: %d\n", soundingWindows)
	fmt.Printf("Expected string fundamentals confirmed in spectrum: %d/%d (%.1f%%)\n",
		confirmedStrings, expectedStrings,
		100*float64(confirmedStrings)/float64(expectedStrings))
}

// topPeaks returns the n strongest local maxima above 20 Hz.
func topPeaks(spec []complex128, binHz float64, n int) []peak {
	var peaks []peak
	for k := 2; k < len(spec)-1; k++ {
		m := cmplx.Abs(spec[k])
		if m <= cmplx.Abs(spec[k-1]) || m < cmplx.Abs(spec[k+1]) {
			continue
		}
		f := float64(k) * binHz
		if f < 20 {
			continue
		}
		peaks = append(peaks, peak{freq: f, mag: m})
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].mag > peaks[j].mag })
	if len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}

// peakNear reports whether any peak sits within 3% of freq, roughly half a
// semitone.
func peakNear(peaks []peak, freq float64) bool {
	for _, p := range peaks {
		if math.Abs(p.freq-freq)/freq < 0.03 {
			return true
		}
	}
	return false
}
