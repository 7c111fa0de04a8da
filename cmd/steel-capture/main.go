// Command steel-capture runs the pedal steel expression capture pipeline:
// sensor frames from the simulator or a Teensy over serial, optional audio
// from a WAV file, fused into capture frames and fanned out to the console
// display, OSC, MIDI, a WebSocket server and the session logger.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cwbudde/steel-capture/calib"
	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/console"
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/midiout"
	"github.com/cwbudde/steel-capture/oscout"
	"github.com/cwbudde/steel-capture/sessionlog"
	"github.com/cwbudde/steel-capture/sim"
	"github.com/cwbudde/steel-capture/teensy"
	"github.com/cwbudde/steel-capture/wavin"
	"github.com/cwbudde/steel-capture/wsserver"
)

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	slog.SetDefault(slog.New(h))
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	simulate := flag.Bool("simulate", true, "Run in simulator mode (no hardware required); --simulate=false for hardware")
	serialPort := flag.String("port", "/dev/ttyACM0", "Serial port for the Teensy")
	copedantFile := flag.String("copedant", "", "Copedant JSON file (default: built-in Buddy Emmons E9)")

	oscEnable := flag.Bool("osc", false, "Enable OSC output")
	oscTarget := flag.String("osc-target", "127.0.0.1:9000", "OSC target address")
	midiEnable := flag.Bool("midi", false, "Enable MIDI output (one channel per string)")
	midiPort := flag.String("midi-port", "", "MIDI output port name (default: first available)")
	wsEnable := flag.Bool("ws", false, "Enable WebSocket server for browser visualization")
	wsAddr := flag.String("ws-addr", "0.0.0.0:8080", "WebSocket server bind address")
	wsFPS := flag.Int("ws-fps", 60, "WebSocket broadcast rate (Hz)")
	webDir := flag.String("web-dir", "", "Static files to serve alongside /ws")
	consoleEnable := flag.Bool("console", false, "Enable the terminal dashboard")
	displayHz := flag.Int("display-hz", 20, "Console refresh rate (Hz)")

	logData := flag.Bool("log-data", false, "Record the session to disk")
	outputDir := flag.String("output-dir", "./sessions", "Directory for recorded sessions")

	sensorRate := flag.Int("sensor-rate", 1000, "Sensor sample rate (Hz)")
	demo := flag.String("demo", "basic", "Simulator script: basic or improv")
	detectStrings := flag.Bool("detect-strings", false, "Audio-based string detection (always on in hardware mode)")
	audioFile := flag.String("audio-file", "", "Stream a WAV file as the audio input")
	calibrationFile := flag.String("calibration-file", "calibration.json", "Per-string detection thresholds, loaded if present")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	initLogger(*debug)

	cop := copedant.BuddyEmmonsE9()
	if *copedantFile != "" {
		var err error
		cop, err = copedant.LoadJSON(*copedantFile)
		if err != nil {
			die("copedant: %v", err)
		}
	}
	slog.Info("copedant loaded", "name", cop.Name)

	clock := capture.NewClock()
	in := make(chan capture.InputEvent, 256)

	audioDetect := !*simulate || *detectStrings || *audioFile != ""
	var opts []capture.Option
	if audioDetect {
		opts = append(opts, capture.WithAudioDetection())
		if cal, err := calib.Load(*calibrationFile); err == nil {
			slog.Info("calibration loaded", "path", *calibrationFile, "strings", len(cal.Strings))
			opts = append(opts, capture.WithStringThresholds(cal.OnsetThresholds(), cal.ReleaseThresholds()))
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("calibration unusable, using defaults", "path", *calibrationFile, "err", err)
		}
	}

	var audioTap chan capture.AudioChunk
	if *logData {
		audioTap = make(chan capture.AudioChunk, 64)
		opts = append(opts, capture.WithAudioTap(audioTap))
	}

	coord, err := capture.NewCoordinator(in, cop, opts...)
	if err != nil {
		die("coordinator: %v", err)
	}

	// Consumers. Each gets its own buffered channel; slow ones drop frames
	// rather than stalling the pipeline.
	var consumers sync.WaitGroup

	if *consoleEnable {
		d := console.New(os.Stdout, *displayHz)
		ch := coord.AddConsumer("console", 64)
		consumers.Add(1)
		go func() { defer consumers.Done(); d.Run(ch) }()
	}

	if *oscEnable {
		sender, err := oscout.NewSender(*oscTarget)
		if err != nil {
			die("osc: %v", err)
		}
		ch := coord.AddConsumer("osc", 256)
		consumers.Add(1)
		go func() { defer consumers.Done(); sender.Run(ch) }()
	}

	if *midiEnable {
		writer, cleanup, err := midiout.Open(*midiPort)
		if err != nil {
			die("midi: %v", err)
		}
		defer cleanup()
		ch := coord.AddConsumer("midi", 256)
		consumers.Add(1)
		go func() { defer consumers.Done(); writer.Run(ch) }()
	}

	if *wsEnable {
		var wsOpts []wsserver.Option
		if *webDir != "" {
			wsOpts = append(wsOpts, wsserver.WithStaticDir(*webDir))
		}
		srv, err := wsserver.New(*wsAddr, *wsFPS, wsOpts...)
		if err != nil {
			die("ws: %v", err)
		}
		ch := coord.AddConsumer("ws", 256)
		consumers.Add(1)
		go func() { defer consumers.Done(); srv.Run(ch) }()
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("ws server stopped", "err", err)
			}
		}()
	}

	if *logData {
		idx, err := sessionlog.OpenIndex(filepath.Join(*outputDir, "sessions.db"))
		if err != nil {
			die("session index: %v", err)
		}
		defer idx.Close()
		logger, err := sessionlog.NewLogger(*outputDir, cop, *sensorRate)
		if err != nil {
			die("session log: %v", err)
		}
		ch := coord.AddConsumer("log", 1024)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			if err := logger.Run(ch, audioTap, idx); err != nil {
				slog.Error("session log failed", "err", err)
			}
		}()
	}

	// Producers. stopInput asks them to wind down; the input channel closes
	// once they all have.
	var producers sync.WaitGroup
	var stopInput func()

	if *simulate {
		var simOpts []sim.Option
		if *audioFile != "" {
			// Real audio comes from the file; synthetic audio would fight it.
			simOpts = append(simOpts, sim.WithSuppressAudio())
		}
		s, err := sim.New(clock, in, cop, *sensorRate, simOpts...)
		if err != nil {
			die("sim: %v", err)
		}
		var gestures []sim.Gesture
		switch *demo {
		case "basic":
			gestures = sim.BasicDemo()
		case "improv":
			gestures = sim.ImprovDemo(1, 200)
		default:
			die("unknown demo %q (basic, improv)", *demo)
		}
		slog.Info("simulator running", "demo", *demo, "rate_hz", *sensorRate)
		stopInput = s.Stop
		producers.Add(1)
		go func() {
			defer producers.Done()
			s.Play(gestures)
			s.HoldForever()
		}()
	} else {
		port, err := teensy.Open(*serialPort)
		if err != nil {
			die("serial: %v", err)
		}
		r := teensy.NewReader(port, clock, in)
		slog.Info("hardware mode", "port", *serialPort)
		stopInput = func() { port.Close() }
		producers.Add(1)
		go func() {
			defer producers.Done()
			if err := r.Run(); err != nil {
				slog.Error("serial reader stopped", "err", err)
			}
		}()
	}

	if *audioFile != "" {
		p := wavin.NewPlayer(*audioFile, in, clock)
		producers.Add(1)
		go func() {
			defer producers.Done()
			if err := p.Run(); err != nil {
				slog.Error("wav playback failed", "err", err)
			}
		}()
	}

	coordDone := make(chan struct{})
	go func() { coord.Run(); close(coordDone) }()

	// Run until interrupted or until the input side finishes on its own
	// (serial unplugged, wav file ended in hardware mode).
	producersDone := make(chan struct{})
	go func() { producers.Wait(); close(producersDone) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("shutting down", "signal", s)
		stopInput()
		<-producersDone
	case <-producersDone:
		slog.Info("input finished")
	}

	close(in)
	<-coordDone
	consumers.Wait()
	slog.Info("done")
}
