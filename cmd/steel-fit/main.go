// Command steel-fit derives per-string detection thresholds from a recorded
// session. The session's ground-truth string activity labels its audio, and
// an optimizer searches for the hysteresis pair that best reproduces the
// labels. The result is written as a calibration file for steel-capture.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/steel-capture/calib"
	"github.com/cwbudde/steel-capture/internal/wavio"
	"github.com/cwbudde/steel-capture/sessionlog"
)

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	sessionDir := flag.String("session", "", "Session directory (default: most recent in the index)")
	outputDir := flag.String("output-dir", "./sessions", "Sessions directory holding the index")
	outPath := flag.String("out", "calibration.json", "Where to write the fitted calibration")
	seed := flag.Int64("seed", 1, "Optimizer seed")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

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
			die("no recorded sessions in %s; record one with steel-capture --log-data", *outputDir)
		}
		dir = sessions[0].Dir
		slog.Info("using most recent session", "dir", dir, "started", sessions[0].StartedAt)
	}

	reader, closer, err := sessionlog.OpenSessionDir(dir)
	if err != nil {
		die("open session: %v", err)
	}
	frames := reader.ReadAll()
	closer.Close()
	if len(frames) == 0 {
		die("session %s has no frames", dir)
	}
	slog.Info("session loaded", "frames", len(frames), "rate_hz", reader.Header.RateHz)

	audio, rate, err := wavio.ReadWAVMono(filepath.Join(dir, "audio.wav"))
	if err != nil {
		die("session audio: %v", err)
	}
	slog.Info("audio loaded", "samples", len(audio), "rate", rate,
		"seconds", float64(len(audio))/float64(rate))

	cal, err := calib.FitSession(frames, audio, rate, reader.Header.Copedant, calib.FitOptions{Seed: *seed})
	if err != nil {
		die("fit: %v", err)
	}

	for i, th := range cal.Strings {
		fmt.Printf("string %2d  onset %.6f  release %.6f\n", i+1, th.Onset, th.Release)
	}
	if err := cal.Save(*outPath); err != nil {
		die("save: %v", err)
	}
	fmt.Printf("wrote %s\n", *outPath)
}
