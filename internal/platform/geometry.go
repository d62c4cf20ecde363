// Package platform provides the OS-specific event feeds behind the
// signal sources: keyboard hooks, visibility and capture-portal
// monitors, display sampling and device enumeration. Feeds degrade to
// domain.ErrSourceUnavailable when a capability is missing; the guard
// then simply runs without that source.
package platform

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// DefaultSampleInterval paces display-geometry sampling.
const DefaultSampleInterval = 1 * time.Second

// DisplaySampler polls the attached displays and emits a geometry event
// whenever the virtual desktop, the primary display or the display
// count changes. The viewport source debounces and evaluates; this only
// samples.
type DisplaySampler struct {
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDisplaySampler creates the sampler.
func NewDisplaySampler(interval time.Duration, logger *zap.Logger) *DisplaySampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &DisplaySampler{interval: interval, logger: logger}
}

// Start begins sampling.
func (s *DisplaySampler) Start(ctx context.Context) (<-chan domain.GeometryEvent, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays: %w", domain.ErrSourceUnavailable)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	events := make(chan domain.GeometryEvent, 16)
	go s.loop(ctx, events)
	return events, nil
}

// Stop terminates sampling.
func (s *DisplaySampler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *DisplaySampler) loop(ctx context.Context, events chan<- domain.GeometryEvent) {
	defer close(events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := sample()
	events <- last

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := sample()
			if sameGeometry(last, current) {
				continue
			}
			last = current
			select {
			case events <- current:
			default:
				s.logger.Debug("geometry event dropped")
			}
		}
	}
}

// sample computes the virtual desktop as the union of all display
// bounds and picks the display anchored at the origin as primary.
func sample() domain.GeometryEvent {
	n := screenshot.NumActiveDisplays()

	var virtual image.Rectangle
	var primary image.Rectangle
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		virtual = virtual.Union(bounds)
		if bounds.Min.X == 0 && bounds.Min.Y == 0 {
			primary = bounds
		}
	}
	if primary.Empty() && n > 0 {
		primary = screenshot.GetDisplayBounds(0)
	}

	return domain.GeometryEvent{
		VirtualWidth:  virtual.Dx(),
		VirtualHeight: virtual.Dy(),
		PrimaryWidth:  primary.Dx(),
		PrimaryHeight: primary.Dy(),
		Displays:      n,
		At:            time.Now(),
	}
}

func sameGeometry(a, b domain.GeometryEvent) bool {
	return a.VirtualWidth == b.VirtualWidth &&
		a.VirtualHeight == b.VirtualHeight &&
		a.PrimaryWidth == b.PrimaryWidth &&
		a.PrimaryHeight == b.PrimaryHeight &&
		a.Displays == b.Displays
}

var _ domain.GeometryMonitor = (*DisplaySampler)(nil)
