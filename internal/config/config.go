// Package config loads and validates the daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/veilguard/veilguard/internal/domain"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Veil configures the obscuring overlay.
	Veil VeilConfig `toml:"veil"`

	// Detection configures the reaction behavior.
	Detection DetectionConfig `toml:"detection"`

	// Sources toggles the individual detection sources.
	Sources SourcesConfig `toml:"sources"`

	// History configures the encrypted attempt log.
	History HistoryConfig `toml:"history"`

	// Logging configures the daemon log.
	Logging LoggingConfig `toml:"logging"`
}

// VeilConfig holds overlay configuration.
type VeilConfig struct {
	// BlurRadius is the obscuring strength, 0 to 40.
	BlurRadius float64 `toml:"blur_radius"`

	// WarningMessage is the text shown while obscured.
	WarningMessage string `toml:"warning_message"`
}

// DetectionConfig holds reaction configuration.
type DetectionConfig struct {
	// RecoveryDelayMs is how long the veil stays up after the most
	// recent detection, in milliseconds.
	RecoveryDelayMs int `toml:"recovery_delay_ms"`

	// PreventCopy swallows copy chords while the veil is shown.
	PreventCopy bool `toml:"prevent_copy"`

	// PreventInspect swallows devtool chords.
	PreventInspect bool `toml:"prevent_inspect"`

	// PollIntervalSec paces the polling sources, in seconds.
	PollIntervalSec int `toml:"poll_interval_sec"`

	// GrabKeyboard grabs input devices exclusively so chords can be
	// swallowed before the OS acts on them.
	GrabKeyboard bool `toml:"grab_keyboard"`
}

// SourcesConfig toggles detection sources. A disabled source never
// starts; an enabled source whose platform capability is absent is
// skipped with a log line.
type SourcesConfig struct {
	Keyboard    bool `toml:"keyboard"`
	Visibility  bool `toml:"visibility"`
	Viewport    bool `toml:"viewport"`
	Devices     bool `toml:"devices"`
	CaptureGate bool `toml:"capture_gate"`
	ProcessScan bool `toml:"process_scan"`
	ShotsWatch  bool `toml:"shots_watch"`

	// ScreenshotDirs are directories watched for created screenshot
	// files. Missing directories are skipped.
	ScreenshotDirs []string `toml:"screenshot_dirs"`
}

// HistoryConfig holds the attempt-log configuration.
type HistoryConfig struct {
	// Enabled persists attempts to the encrypted store.
	Enabled bool `toml:"enabled"`

	// Dir is the directory holding the encrypted database and its key
	// file.
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// FilePath is the log file path. Empty logs to stderr.
	FilePath string `toml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	opts := domain.DefaultOptions()

	return &Config{
		Veil: VeilConfig{
			BlurRadius:     opts.BlurRadius,
			WarningMessage: opts.WarningMessage,
		},
		Detection: DetectionConfig{
			RecoveryDelayMs: int(opts.RecoveryDelay / time.Millisecond),
			PreventCopy:     opts.PreventCopy,
			PreventInspect:  opts.PreventInspect,
			PollIntervalSec: int(opts.PollInterval / time.Second),
			GrabKeyboard:    false,
		},
		Sources: SourcesConfig{
			Keyboard:       true,
			Visibility:     true,
			Viewport:       true,
			Devices:        true,
			CaptureGate:    true,
			ProcessScan:    true,
			ShotsWatch:     true,
			ScreenshotDirs: defaultScreenshotDirs(),
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     filepath.Join(dir, "history"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: filepath.Join(dir, "veilguard.log"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from the specified path. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Veil.BlurRadius < 0 {
		return fmt.Errorf("veil.blur_radius must not be negative, got %v", c.Veil.BlurRadius)
	}
	if c.Detection.RecoveryDelayMs <= 0 {
		return fmt.Errorf("detection.recovery_delay_ms must be positive, got %d", c.Detection.RecoveryDelayMs)
	}
	if c.Detection.PollIntervalSec <= 0 {
		return fmt.Errorf("detection.poll_interval_sec must be positive, got %d", c.Detection.PollIntervalSec)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.History.Enabled && c.History.Dir == "" {
		return fmt.Errorf("history.dir must be set when history is enabled")
	}
	return nil
}

// ToOptions converts the file configuration into guard options.
func (c *Config) ToOptions() domain.Options {
	opts := domain.DefaultOptions()
	opts.BlurRadius = c.Veil.BlurRadius
	opts.WarningMessage = c.Veil.WarningMessage
	opts.PreventCopy = c.Detection.PreventCopy
	opts.PreventInspect = c.Detection.PreventInspect
	opts.RecoveryDelay = time.Duration(c.Detection.RecoveryDelayMs) * time.Millisecond
	opts.PollInterval = time.Duration(c.Detection.PollIntervalSec) * time.Second
	opts.Debug = c.Logging.Level == "debug"
	opts.EnableKeyboard = c.Sources.Keyboard
	opts.EnableVisibility = c.Sources.Visibility
	opts.EnableViewport = c.Sources.Viewport
	opts.EnableDevices = c.Sources.Devices
	opts.EnableCaptureGate = c.Sources.CaptureGate
	opts.EnableProcessScan = c.Sources.ProcessScan
	opts.EnableShotsWatch = c.Sources.ShotsWatch
	opts.ScreenshotDirs = append([]string{}, c.Sources.ScreenshotDirs...)
	return opts
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.History.Dir}
	if c.Logging.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DataDir returns the base veilguard directory. VEILGUARD_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("VEILGUARD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return platformDataDir()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VEILGUARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VEILGUARD_HISTORY_DIR"); v != "" {
		c.History.Dir = v
	}
}

func platformDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "veilguard")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "veilguard")
		}
		return filepath.Join(home, "veilguard")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "veilguard")
		}
		return filepath.Join(home, ".local", "share", "veilguard")
	}
}

func defaultScreenshotDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Desktop")}
	default:
		return []string{
			filepath.Join(home, "Pictures"),
			filepath.Join(home, "Pictures", "Screenshots"),
		}
	}
}
