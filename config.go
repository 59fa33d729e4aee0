package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. Values come from built-in defaults,
// optionally overlaid by a YAML file (-config), and finally by explicitly set flags.
type Config struct {
	// VideoPath is the recorded video file to scan.
	VideoPath string `yaml:"video"`

	// OutPath is where the CSV detection log is written.
	OutPath string `yaml:"out"`

	// SkipFrames samples every Nth decoded frame.
	SkipFrames int `yaml:"skip"`

	// MinConfidence is the number of corroborating reads a text needs before it is confirmed.
	MinConfidence int `yaml:"mincount"`

	// Debug opens the overlay window.
	Debug bool `yaml:"debug"`

	// Workers is the number of concurrent locate+OCR workers. 1 runs everything in-line.
	Workers int `yaml:"workers"`

	// ResizeWidth scales every frame to this width before analysis. 0 keeps the native size.
	ResizeWidth int `yaml:"resize"`

	// Language is the Tesseract language code(s), comma-separated.
	Language string `yaml:"lang"`

	// TessdataPrefix overrides the Tesseract training data directory.
	TessdataPrefix string `yaml:"tessdata"`

	// EvidenceDir receives a PNG snapshot per confirmed detection when non-empty.
	EvidenceDir string `yaml:"evidence"`

	// OverlayColor is the hex colour used by the debug overlay.
	OverlayColor string `yaml:"overlay_color"`

	// ProgressInterval controls how often scan progress is logged.
	ProgressInterval time.Duration `yaml:"progress"`

	// LogFormat is either "json" or "kv".
	LogFormat string `yaml:"logfmt"`

	// Verbose enables debug level logging.
	Verbose bool `yaml:"verbose"`
}

const maxWorkers = 32

// defaultConfig returns the configuration used when neither a file nor a flag sets a value.
func defaultConfig() Config {
	return Config{
		OutPath:          "detections.csv",
		SkipFrames:       5,
		MinConfidence:    2,
		Workers:          1,
		ResizeWidth:      900,
		Language:         "eng",
		OverlayColor:     "#00ff00",
		ProgressInterval: 10 * time.Second,
		LogFormat:        "kv",
	}
}

// parseFlags parses command-line arguments and returns the application configuration.
func parseFlags() (*Config, error) {
	// Create a new FlagSet to avoid global flag conflicts in tests
	fs := flag.NewFlagSet("plate-text-detector", flag.ContinueOnError)

	cfg := defaultConfig()
	var fromFlags Config
	var configPath string

	fs.StringVar(&configPath, "config", "", "Optional YAML configuration file")
	fs.StringVar(&fromFlags.VideoPath, "video", "", "Path to input video file (required)")
	fs.StringVar(&fromFlags.VideoPath, "v", "", "Shorthand for -video")
	fs.StringVar(&fromFlags.OutPath, "out", cfg.OutPath, "Output CSV file")
	fs.StringVar(&fromFlags.OutPath, "o", cfg.OutPath, "Shorthand for -out")
	fs.IntVar(&fromFlags.SkipFrames, "skip", cfg.SkipFrames, "Process every Nth frame")
	fs.IntVar(&fromFlags.SkipFrames, "s", cfg.SkipFrames, "Shorthand for -skip")
	fs.IntVar(&fromFlags.MinConfidence, "mincount", cfg.MinConfidence, "Number of repeated frames required to accept a detection")
	fs.BoolVar(&fromFlags.Debug, "debug", false, "Show debug overlay window")
	fs.BoolVar(&fromFlags.Debug, "d", false, "Shorthand for -debug")
	fs.IntVar(&fromFlags.Workers, "workers", cfg.Workers, "Concurrent locate+OCR workers")
	fs.IntVar(&fromFlags.ResizeWidth, "resize", cfg.ResizeWidth, "Resize frames to this width before analysis (0 disables)")
	fs.StringVar(&fromFlags.Language, "lang", cfg.Language, "Tesseract language codes (comma-separated)")
	fs.StringVar(&fromFlags.TessdataPrefix, "tessdata", "", "Tesseract training data directory")
	fs.StringVar(&fromFlags.EvidenceDir, "evidence", "", "Directory for plate snapshots of confirmed detections")
	fs.StringVar(&fromFlags.OverlayColor, "overlay-color", cfg.OverlayColor, "Debug overlay colour as hex")
	fs.DurationVar(&fromFlags.ProgressInterval, "progress", cfg.ProgressInterval, "Progress log interval")
	fs.StringVar(&fromFlags.LogFormat, "logfmt", cfg.LogFormat, "Log format: json or kv")
	fs.BoolVar(&fromFlags.Verbose, "verbose", false, "Enable debug logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return nil, err
		}
	}

	// Explicit flags win over the file.
	apply := map[string]func(){
		"video":         func() { cfg.VideoPath = fromFlags.VideoPath },
		"out":           func() { cfg.OutPath = fromFlags.OutPath },
		"skip":          func() { cfg.SkipFrames = fromFlags.SkipFrames },
		"mincount":      func() { cfg.MinConfidence = fromFlags.MinConfidence },
		"debug":         func() { cfg.Debug = fromFlags.Debug },
		"workers":       func() { cfg.Workers = fromFlags.Workers },
		"resize":        func() { cfg.ResizeWidth = fromFlags.ResizeWidth },
		"lang":          func() { cfg.Language = fromFlags.Language },
		"tessdata":      func() { cfg.TessdataPrefix = fromFlags.TessdataPrefix },
		"evidence":      func() { cfg.EvidenceDir = fromFlags.EvidenceDir },
		"overlay-color": func() { cfg.OverlayColor = fromFlags.OverlayColor },
		"progress":      func() { cfg.ProgressInterval = fromFlags.ProgressInterval },
		"logfmt":        func() { cfg.LogFormat = fromFlags.LogFormat },
		"verbose":       func() { cfg.Verbose = fromFlags.Verbose },
	}
	aliases := map[string]string{"v": "video", "o": "out", "s": "skip", "d": "debug"}
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		if fn, ok := apply[name]; ok {
			fn()
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile overlays the YAML file at path onto cfg. Keys absent from the file keep
// their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges. It does not touch the filesystem; a missing video is
// reported by OpenVideoFile.
func (c *Config) Validate() error {
	if c.VideoPath == "" {
		return fmt.Errorf("video flag is required")
	}
	if c.OutPath == "" {
		return fmt.Errorf("out must not be empty")
	}
	if c.SkipFrames < 1 {
		return fmt.Errorf("skip must be a positive integer")
	}
	if c.MinConfidence < 1 {
		return fmt.Errorf("mincount must be a positive integer")
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("workers must be between 1 and %d", maxWorkers)
	}
	if c.ResizeWidth < 0 {
		return fmt.Errorf("resize must not be negative")
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress must be a positive duration")
	}
	if c.LogFormat != "json" && c.LogFormat != "kv" {
		return fmt.Errorf("logfmt must be 'json' or 'kv'")
	}
	if _, err := parseOverlayColor(c.OverlayColor); err != nil {
		return err
	}
	return nil
}
