// Package main is the CLI entry point for veilguard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/veilguard/veilguard/internal/config"
	"github.com/veilguard/veilguard/internal/domain"
	"github.com/veilguard/veilguard/internal/guard"
	"github.com/veilguard/veilguard/internal/history"
	"github.com/veilguard/veilguard/internal/infra"
	"github.com/veilguard/veilguard/internal/platform"
	source "github.com/veilguard/veilguard/internal/signal"
	"github.com/veilguard/veilguard/internal/veil"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veilguard",
	Short: "Screen capture guard - obscures content when capture is suspected",
	Long: `veilguard watches for screen capture attempts (screenshot chords,
recording tools, capture portal requests, suspicious window geometry)
and throws a full-screen veil over the desktop until the attempts stop.

Detection is heuristic: it raises the cost of casual capture, it does
not make capture impossible.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the guard in the foreground",
	Long: `Starts every enabled detection source and keeps the veil ready.
Sources whose platform capability is missing are skipped with a log
line; the guard runs with whatever coverage remains.`,
	RunE: runGuard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent capture attempts",
	Long:  `Reads the encrypted attempt history and prints the most recent entries.`,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath  string
	statusLimit int
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: "+config.ConfigPath()+")")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of attempts to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runGuard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := createLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	if err := veil.DisplayAvailable(); err != nil {
		return err
	}

	opts := cfg.ToOptions()

	var store domain.AttemptStore
	if cfg.History.Enabled {
		key, err := history.EnsureKey(history.NewFileKeyProvider(cfg.History.Dir))
		if err != nil {
			return fmt.Errorf("history key: %w", err)
		}
		s, err := history.NewStore(cfg.History.Dir, key)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		store = s
	}

	fyneApp := fyneapp.New()
	overlay := veil.New(fyneApp, opts.WarningMessage, opts.BlurRadius)

	sources := buildSources(cfg, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := guard.GetOrCreate(ctx, opts, overlay, sources, store, logger)
	if err != nil {
		return fmt.Errorf("start guard: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		g.Destroy()
		fyneApp.Quit()
	}()

	logger.Info("veilguard running",
		zap.String("version", Version),
		zap.Duration("recovery_delay", opts.RecoveryDelay))

	// Blocks until Quit; the toolkit requires the main goroutine.
	fyneApp.Run()
	return nil
}

// buildSources assembles the enabled detection sources with their
// platform feeds. Disabled sources are never constructed.
func buildSources(cfg *config.Config, opts domain.Options, logger *zap.Logger) []domain.SignalSource {
	var sources []domain.SignalSource

	if opts.EnableKeyboard {
		hook := platform.NewKeyboardHook(cfg.Detection.GrabKeyboard, logger)
		sources = append(sources, source.NewKeyboard(hook, opts, logger))
	}
	if opts.EnableVisibility {
		sources = append(sources, source.NewVisibility(platform.NewVisibilityMonitor(logger), logger))
	}
	if opts.EnableViewport {
		sampler := platform.NewDisplaySampler(platform.DefaultSampleInterval, logger)
		sources = append(sources, source.NewViewport(sampler, logger))
	}
	if opts.EnableDevices {
		sources = append(sources, source.NewDevices(platform.NewDeviceEnumerator(), opts.PollInterval, logger))
	}
	if opts.EnableCaptureGate {
		sources = append(sources, source.NewCaptureGate(platform.NewPortalMonitor(logger), logger))
	}
	if opts.EnableProcessScan {
		sources = append(sources, source.NewProcesses(infra.NewProcessScanner(), source.DefaultCaptureTools, opts.PollInterval, logger))
	}
	if opts.EnableShotsWatch {
		expander := infra.NewPathExpander()
		sources = append(sources, source.NewShots(expander.ExpandAll(opts.ScreenshotDirs), logger))
	}

	return sources
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("\n=== veilguard Attempt History ===")

	if !cfg.History.Enabled {
		fmt.Println("History is disabled in the configuration.")
		return nil
	}

	provider := history.NewFileKeyProvider(cfg.History.Dir)
	if !provider.KeyExists() {
		fmt.Println("No history recorded yet.")
		return nil
	}
	key, err := provider.GetKey()
	if err != nil {
		return fmt.Errorf("history key: %w", err)
	}
	store, err := history.NewStore(cfg.History.Dir, key)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	attempts, err := store.Recent(statusLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Println("No attempts recorded.")
		return nil
	}

	for _, a := range attempts {
		fmt.Printf("%s  #%-4d %-18s %s\n",
			a.Timestamp.Format(time.RFC3339),
			a.Count,
			a.Method.String(),
			a.Details)
	}

	fmt.Println("=================================")
	return nil
}

func createLogger(cfg config.LoggingConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	if cfg.FilePath != "" {
		zapCfg.OutputPaths = []string{cfg.FilePath}
		zapCfg.ErrorOutputPaths = []string{cfg.FilePath}
	}
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("veilguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
