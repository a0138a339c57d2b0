// ABOUTME: Entry point for the Hushtone session audio engine
// ABOUTME: Parses CLI flags, wires the engine graph, and runs the TUI
package main

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/internal/engine"
	"github.com/hushtone/hushtone-go/internal/output"
	"github.com/hushtone/hushtone-go/internal/params"
	"github.com/hushtone/hushtone-go/internal/prefs"
	"github.com/hushtone/hushtone-go/internal/statefeed"
	"github.com/hushtone/hushtone-go/internal/ui"
	"github.com/hushtone/hushtone-go/pkg/audio"
)

var (
	sampleRate = flag.Int("sample-rate", audio.DefaultSampleRate, "Render sample rate in Hz")
	bufFrames  = flag.Int("buffer-frames", engine.DefaultBufferFrames, "Render block size in frames")
	audioFile  = flag.String("audio-file", "", "Audio file to load for filtered playback (MP3, FLAC, WAV, Opus)")
	frequency  = flag.Float64("frequency", 0, "Initial matched frequency in Hz for both ears")
	prefsPath  = flag.String("prefs", defaultPrefsPath(), "Preference file path")
	feedAddr   = flag.String("feed-addr", "", "State feed listen address (e.g. :8930); empty disables")
	feedName   = flag.String("feed-name", "", "mDNS service name (default: hushtone-<hostname>)")
	enableMDNS = flag.Bool("mdns", true, "Advertise the state feed via mDNS")
	headless   = flag.Bool("headless", false, "Run without an audio device (discard output)")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	logFile    = flag.String("log-file", "hushtone.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logrus.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file so the screen stays clean.
		logrus.SetOutput(f)
	} else {
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	store, err := prefs.NewFileStore(*prefsPath)
	if err != nil {
		logrus.Fatalf("failed to open preferences: %v", err)
	}

	controller, err := engine.New(engine.Config{
		SampleRate:   *sampleRate,
		BufferFrames: *bufFrames,
		Prefs:        store,
	})
	if err != nil {
		logrus.Fatalf("failed to create engine: %v", err)
	}
	defer controller.Close()

	if *frequency > 0 {
		controller.SetMatchedFrequency(params.EarBoth, *frequency)
	}

	if *audioFile != "" {
		if err := controller.LoadAudioFile(*audioFile); err != nil {
			logrus.Fatalf("failed to load audio file: %v", err)
		}
	}

	format := audio.Format{SampleRate: *sampleRate, Channels: audio.DefaultChannels}
	var backend output.Backend
	if *headless {
		backend = output.NewHeadlessBackend(format, *bufFrames, controller.Render)
	} else {
		backend = output.NewOtoBackend(format, *bufFrames, controller.Render)
	}
	if err := backend.Start(); err != nil {
		logrus.Fatalf("failed to start audio output: %v", err)
	}
	defer backend.Close()

	controller.Start()

	var feed *statefeed.Server
	if *feedAddr != "" {
		feed = statefeed.New(statefeed.Config{
			Addr:       *feedAddr,
			Name:       *feedName,
			EnableMDNS: *enableMDNS,
		}, controller.Snapshot)
		if err := feed.Start(); err != nil {
			logrus.Fatalf("failed to start state feed: %v", err)
		}
		defer feed.Stop()
	}

	if useTUI {
		if err := ui.Run(controller); err != nil {
			logrus.Fatalf("TUI failed: %v", err)
		}
		logrus.Info("TUI quit requested, shutting down")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logrus.Info("shutdown signal received")
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "hushtone-prefs.json"
	}
	appDir := filepath.Join(dir, "hushtone")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "hushtone-prefs.json"
	}
	return filepath.Join(appDir, "prefs.json")
}
