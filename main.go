// Package main provides an audio impact detection service that captures audio
// from a microphone, detects bat-on-ball impacts in the live stream, and
// analyzes uploaded recordings.
//
// Usage:
//
//	impact-detector [-config path/to/config.json]
//
// If -config is not specified, the detector looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/engine"
	"github.com/swingsense/impact-detector/internal/eventlog"
	"github.com/swingsense/impact-detector/internal/notify"
	"github.com/swingsense/impact-detector/internal/recording"
	"github.com/swingsense/impact-detector/internal/util"
)

// Build information, set via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Check FFmpeg availability
	ffmpegPath := util.ResolveFFmpegPath(cfg.GetFFmpegPath())
	ffmpegAvailable := ffmpegPath != ""
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found - clip encoding and recording analysis disabled",
			"configured_path", cfg.GetFFmpegPath())
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	notifier := notify.NewImpactNotifier(cfg)

	events, err := eventlog.NewLogger(eventlog.DefaultLogPath(cfg.Snapshot().WebPort))
	if err != nil {
		slog.Warn("event log disabled", "error", err)
		events = nil
	}

	eng := engine.New(cfg, ffmpegPath, notifier, events)

	srv := NewServer(cfg, eng, notifier, events, ffmpegAvailable)

	// Retention cleanup for stored session clips
	cleanupStop := make(chan struct{})
	if snap := cfg.Snapshot(); snap.RecordingEnabled {
		recording.StartCleanupScheduler(
			snap.RecordingPath,
			snap.RecordingRetentionDays,
			recording.NewUploader(&snap.S3),
			cleanupStop,
		)
	}

	// Start web server.
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	close(cleanupStop)
	srv.version.Stop()

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := eng.Stop(); err != nil {
		slog.Error("error stopping session", "error", err)
	}

	if events != nil {
		if err := events.Close(); err != nil {
			slog.Error("error closing event log", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
