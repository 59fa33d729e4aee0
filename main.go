// Package main implements a license plate text detector CLI that scans a recorded
// video file and logs stabilized plate readings.
//
// The application samples every Nth frame, locates the most plate-like region with
// OpenCV contour analysis, reads it with Tesseract OCR, and only confirms a text once
// it has been read repeatedly. Confirmed detections are written to a CSV file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// setupLogger configures structured logging based on the specified format.
// Logs go to w so that stdout stays reserved for the detection report.
func setupLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "kv":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func main() {
	config, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(os.Stderr, config.LogFormat, config.Verbose)
	slog.SetDefault(logger)

	logger.Info("Starting plate text detector",
		"video", config.VideoPath,
		"out", config.OutPath,
		"skip", config.SkipFrames,
		"mincount", config.MinConfidence,
		"workers", config.Workers,
		"resize", config.ResizeWidth,
		"language", config.Language,
		"debug", config.Debug,
		"evidence", config.EvidenceDir,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, stopping...")
		cancel()
	}()

	scanner, err := NewScanner(config, logger, os.Stdout)
	if err != nil {
		logger.Error("Failed to create scanner", "error", err)
		os.Exit(1)
	}

	_, runErr := scanner.Run(ctx)
	if err := scanner.Close(); err != nil {
		logger.Warn("Scanner cleanup failed", "error", err)
	}
	if runErr != nil {
		logger.Error("Scan failed", "error", runErr)
		os.Exit(1)
	}

	logger.Info("Plate text detector stopped")
}
