package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Capture sources.
const (
	SourceTcpdump = "tcpdump"
	SourceNative  = "native"
)

// Config captures the settings of a correlation run.
type Config struct {
	Capture     CaptureConfig     `yaml:"capture"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Patterns    PatternsConfig    `yaml:"patterns"`
	Report      ReportConfig      `yaml:"report"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// CaptureConfig controls how packets are pulled out of a capture file.
type CaptureConfig struct {
	Source       string   `yaml:"source"`
	Tool         string   `yaml:"tool"`
	ToolArgs     []string `yaml:"toolArgs"`
	Sudo         bool     `yaml:"sudo"`
	RequestPort  int      `yaml:"requestPort"`
	ResponsePort int      `yaml:"responsePort"`

	// Timezone is the zone the native reader renders capture times in, matching what
	// tcpdump prints on this host. "Local" (default), "UTC" or an IANA name.
	Timezone string `yaml:"timezone"`
}

// CorrelationConfig controls the packet window around each log entry.
type CorrelationConfig struct {
	WindowSeconds int `yaml:"windowSeconds"`
}

// PatternsConfig holds the markers the pattern analyzer looks for.
type PatternsConfig struct {
	Levels              []string `yaml:"levels"`
	Slot1Marker         string   `yaml:"slot1Marker"`
	RegistrationMarkers []string `yaml:"registrationMarkers"`
	SignificantKeywords []string `yaml:"significantKeywords"`
}

// ReportConfig controls report sizing.
type ReportConfig struct {
	TimelinePacketLimit int `yaml:"timelinePacketLimit"`
	SampleSize          int `yaml:"sampleSize"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the optional Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DMR_CORRELATE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or environment.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Capture: CaptureConfig{
			Source:       SourceTcpdump,
			Tool:         "tcpdump",
			ToolArgs:     []string{"-tttt", "-n"},
			RequestPort:  62031,
			ResponsePort: 62032,
			Timezone:     "Local",
		},
		Correlation: CorrelationConfig{WindowSeconds: 2},
		Patterns: PatternsConfig{
			Levels:              []string{"I", "M", "E"},
			Slot1Marker:         "Slot 1",
			RegistrationMarkers: []string{"Started", "Opening"},
			SignificantKeywords: []string{"voice header", "end of voice", "started", "opening"},
		},
		Report:  ReportConfig{TimelinePacketLimit: 5, SampleSize: 10},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	switch c.Capture.Source {
	case SourceTcpdump, SourceNative:
	default:
		return fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}
	if c.Capture.RequestPort <= 0 || c.Capture.ResponsePort <= 0 {
		return fmt.Errorf("capture ports must be positive")
	}
	if c.Correlation.WindowSeconds < 0 {
		return fmt.Errorf("correlation window must not be negative")
	}
	if _, err := c.Capture.Location(); err != nil {
		return err
	}
	for _, level := range c.Patterns.Levels {
		if len(level) != 1 || level[0] < 'A' || level[0] > 'Z' {
			return fmt.Errorf("log level %q must be a single uppercase letter", level)
		}
	}
	return nil
}

// Location resolves Timezone; empty means the host's local zone.
func (c CaptureConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("capture timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DMR_CORRELATE_CAPTURE_SOURCE"); v != "" {
		cfg.Capture.Source = strings.ToLower(v)
	}
	if v := os.Getenv("DMR_CORRELATE_CAPTURE_TOOL"); v != "" {
		cfg.Capture.Tool = v
	}
	if v := os.Getenv("DMR_CORRELATE_CAPTURE_SUDO"); v != "" {
		cfg.Capture.Sudo = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DMR_CORRELATE_REQUEST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Capture.RequestPort = port
		}
	}
	if v := os.Getenv("DMR_CORRELATE_RESPONSE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Capture.ResponsePort = port
		}
	}
	if v := os.Getenv("DMR_CORRELATE_CAPTURE_TIMEZONE"); v != "" {
		cfg.Capture.Timezone = v
	}
	if v := os.Getenv("DMR_CORRELATE_ENTRY_LEVELS"); v != "" {
		var levels []string
		for _, level := range strings.Split(v, ",") {
			if level = strings.ToUpper(strings.TrimSpace(level)); level != "" {
				levels = append(levels, level)
			}
		}
		cfg.Patterns.Levels = levels
	}
	if v := os.Getenv("DMR_CORRELATE_WINDOW_SECONDS"); v != "" {
		if w, err := strconv.Atoi(v); err == nil {
			cfg.Correlation.WindowSeconds = w
		}
	}
	if v := os.Getenv("DMR_CORRELATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DMR_CORRELATE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DMR_CORRELATE_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}
