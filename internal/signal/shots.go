package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// shotDebounce spaces out repeat flags for the same path; editors write
// image files in bursts.
const shotDebounce = 500 * time.Millisecond

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".mp4":  true,
	".mkv":  true,
	".webm": true,
}

// Shots watches screenshot output directories. An image or recording
// file created there means a capture just completed, so this source
// flags after the fact rather than before.
type Shots struct {
	dirs   []string
	logger *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	lastFlag map[string]time.Time
	cancel   context.CancelFunc
}

// NewShots creates the screenshot-directory source.
func NewShots(dirs []string, logger *zap.Logger) *Shots {
	return &Shots{
		dirs:     dirs,
		logger:   logger,
		lastFlag: make(map[string]time.Time),
	}
}

// Name returns the source identifier.
func (s *Shots) Name() string { return "shots" }

// Start begins watching. Missing directories are skipped; when no
// configured directory exists the source is unavailable.
func (s *Shots) Start(ctx context.Context, eng domain.Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}

	watched := 0
	for _, dir := range s.dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.logger.Debug("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return fmt.Errorf("no watchable screenshot directories: %w", domain.ErrSourceUnavailable)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watcher = watcher
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(ctx, watcher, eng)
	return nil
}

// Stop terminates the watch.
func (s *Shots) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

func (s *Shots) loop(ctx context.Context, watcher *fsnotify.Watcher, eng domain.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			s.handleCreate(ev.Name, eng)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Debug("screenshot watch error", zap.Error(err))
		}
	}
}

func (s *Shots) handleCreate(path string, eng domain.Engine) {
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return
	}

	now := time.Now()
	s.mu.Lock()
	if last, ok := s.lastFlag[path]; ok && now.Sub(last) < shotDebounce {
		s.mu.Unlock()
		return
	}
	s.lastFlag[path] = now
	s.mu.Unlock()

	eng.Detect(domain.MethodMediaCapture, "screenshot file created: "+filepath.Base(path))
}

var _ domain.SignalSource = (*Shots)(nil)
