package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		verbose   bool
		wantJSON  bool
		wantDebug bool
	}{
		{name: "json logger", format: "json", wantJSON: true},
		{name: "kv logger", format: "kv", wantJSON: false},
		{name: "default to json", format: "invalid", wantJSON: true},
		{name: "verbose enables debug", format: "kv", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setupLogger(&buf, tt.format, tt.verbose)
			if logger == nil {
				t.Fatal("setupLogger() returned nil")
			}

			logger.Debug("debug line")
			logger.Info("info line", "frame_index", 42)

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			lines := strings.Split(strings.TrimSpace(out), "\n")
			last := lines[len(lines)-1]
			isJSON := json.Valid([]byte(last))
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v (line %q)", isJSON, tt.wantJSON, last)
			}
		})
	}
}
