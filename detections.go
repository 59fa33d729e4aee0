package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// DetectionLog accumulates confirmed events in emission order and writes them out
// once, after the scan.
type DetectionLog struct {
	events []DetectionEvent
	out    io.Writer
	fps    float64
}

// NewDetectionLog creates a log that reports to out (usually stdout). fps is the
// stream frame rate used for the console clock.
func NewDetectionLog(out io.Writer, fps float64) *DetectionLog {
	if out == nil {
		out = io.Discard
	}
	if fps <= 0 {
		fps = defaultFrameRate
	}
	return &DetectionLog{out: out, fps: fps}
}

// Add records an event and prints its console line.
func (l *DetectionLog) Add(event DetectionEvent) {
	l.events = append(l.events, event)
	fmt.Fprintln(l.out, formatDetectionLine(event, l.fps))
}

// Events returns the recorded events in order.
func (l *DetectionLog) Events() []DetectionEvent {
	out := make([]DetectionEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Flush writes the CSV log to path and prints the summary line. When no events were
// recorded no file is created.
func (l *DetectionLog) Flush(path string) error {
	if len(l.events) == 0 {
		fmt.Fprintln(l.out, "\nNo detections found.")
		return nil
	}
	if err := writeDetectionsCSV(path, l.events); err != nil {
		return err
	}
	fmt.Fprintf(l.out, "\nSaved %d detections to %s\n", len(l.events), path)
	return nil
}

// formatDetectionLine renders the console line for a confirmed event,
// e.g. "[0:01:05] Frame 1625: ABC123". The clock truncates frame/fps, not the
// millisecond-rounded TimeSeconds, so 32.9996 s still shows as 0:00:32.
func formatDetectionLine(e DetectionEvent, fps float64) string {
	if fps <= 0 {
		fps = defaultFrameRate
	}
	return fmt.Sprintf("[%s] Frame %d: %s", formatClock(float64(e.Frame)/fps), e.Frame, e.Text)
}

// formatClock renders whole seconds as H:MM:SS.
func formatClock(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// writeDetectionsCSV writes events to a temporary file next to path and renames it
// into place, so path is either absent or complete.
func writeDetectionsCSV(path string, events []DetectionEvent) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = encodeDetections(tmp, events); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

// encodeDetections writes the header and one row per event.
func encodeDetections(w io.Writer, events []DetectionEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frame", "time_seconds", "text"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.Frame, 10),
			strconv.FormatFloat(e.TimeSeconds, 'f', 3, 64),
			e.Text,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
