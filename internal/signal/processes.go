package signal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// DefaultCaptureTools are process name patterns of common screenshot and
// screen-recording tools. A pattern matches a process whose name equals
// it or starts with it followed by a separator ("obs" matches "obs" and
// "obs-studio" but not "obsidian"). Case-insensitive.
var DefaultCaptureTools = []string{
	"obs",
	"ffmpeg",
	"flameshot",
	"gnome-screenshot",
	"spectacle",
	"scrot",
	"grim",
	"wf-recorder",
	"kazam",
	"peek",
	"vokoscreen",
	"simplescreenrecorder",
	"maim",
	"shutter",
}

// Processes scans the process table for known capture tools. A matching
// process that was not present in the previous scan flags a detection;
// the very first scan also flags, on the grounds that a capture tool
// already running when protection starts is exactly what the guard
// exists to notice.
type Processes struct {
	scanner  domain.ProcessScanner
	patterns []string
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
}

// NewProcesses creates the process-scan source. Passing nil patterns
// selects DefaultCaptureTools.
func NewProcesses(scanner domain.ProcessScanner, patterns []string, interval time.Duration, logger *zap.Logger) *Processes {
	if patterns == nil {
		patterns = DefaultCaptureTools
	}
	return &Processes{
		scanner:  scanner,
		patterns: patterns,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the source identifier.
func (p *Processes) Name() string { return "processes" }

// Start begins periodic scanning.
func (p *Processes) Start(ctx context.Context, eng domain.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.loop(ctx, eng)
	return nil
}

// Stop terminates scanning.
func (p *Processes) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *Processes) loop(ctx context.Context, eng domain.Engine) {
	// seen holds the pids that already flagged, so a long-running
	// recorder is reported once, not every tick.
	seen := make(map[int32]bool)

	p.scan(eng, seen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(eng, seen)
		}
	}
}

func (p *Processes) scan(eng domain.Engine, seen map[int32]bool) {
	snapshot, err := p.scanner.Snapshot()
	if err != nil {
		p.logger.Debug("process snapshot failed", zap.Error(err))
		return
	}

	current := make(map[int32]bool, len(seen))
	for pid, name := range snapshot {
		pattern := p.match(name)
		if pattern == "" {
			continue
		}
		current[pid] = true
		if !seen[pid] {
			eng.Detect(domain.MethodMediaCapture, "capture tool running: "+name)
		}
	}

	// Replace rather than accumulate, so a pid that exits and is later
	// reused by a new capture tool flags again.
	for pid := range seen {
		delete(seen, pid)
	}
	for pid := range current {
		seen[pid] = true
	}
}

func (p *Processes) match(name string) string {
	lower := strings.ToLower(name)
	for _, pattern := range p.patterns {
		if lower == pattern ||
			strings.HasPrefix(lower, pattern+"-") ||
			strings.HasPrefix(lower, pattern+"_") ||
			strings.HasPrefix(lower, pattern+".") {
			return pattern
		}
	}
	return ""
}

var _ domain.SignalSource = (*Processes)(nil)
