package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

const (
	// DefaultQuietWindow debounces geometry samples: only the last event
	// within the window is evaluated, since geometry feeds can fire at
	// high frequency during a resize.
	DefaultQuietWindow = 250 * time.Millisecond

	// DefaultGeometryTolerance is the pixel divergence between virtual
	// desktop and primary display beyond which a capture surface is
	// suspected.
	DefaultGeometryTolerance = 16

	// Aspect-ratio band associated with mirrored phone-capture surfaces.
	aspectBandLow  = 0.44
	aspectBandHigh = 0.58
)

// Viewport watches display geometry. A virtual desktop diverging from
// the primary display beyond a fixed tolerance, a change in display
// count, or a resize landing in the mirrored-surface aspect band flags a
// detection. Samples are debounced with an explicit pending-timer,
// replace-on-arrival pattern.
type Viewport struct {
	monitor   domain.GeometryMonitor
	quiet     time.Duration
	tolerance int
	logger    *zap.Logger

	cancel context.CancelFunc

	mu      sync.Mutex
	pending *time.Timer
	stopped bool

	// pendingGen identifies the live debounce timer. A fired timer whose
	// generation is stale was replaced by a newer sample and must not
	// evaluate or touch the pending handle.
	pendingGen uint64

	// prev is the last evaluated sample; the aspect-band check only
	// applies to a sample that differs from it (a resize).
	prev    domain.GeometryEvent
	hasPrev bool
}

// NewViewport creates the viewport source with default debounce and
// tolerance.
func NewViewport(monitor domain.GeometryMonitor, logger *zap.Logger) *Viewport {
	return &Viewport{
		monitor:   monitor,
		quiet:     DefaultQuietWindow,
		tolerance: DefaultGeometryTolerance,
		logger:    logger,
	}
}

// Name returns the source identifier.
func (v *Viewport) Name() string { return "viewport" }

// Start begins consuming geometry samples.
func (v *Viewport) Start(ctx context.Context, eng domain.Engine) error {
	ctx, cancel := context.WithCancel(ctx)

	events, err := v.monitor.Start(ctx)
	if err != nil {
		cancel()
		return err
	}
	v.cancel = cancel

	go v.loop(ctx, events, eng)
	return nil
}

// Stop terminates the source, its monitor and any pending evaluation.
func (v *Viewport) Stop() error {
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Lock()
	v.stopped = true
	if v.pending != nil {
		v.pending.Stop()
		v.pending = nil
	}
	v.mu.Unlock()
	return v.monitor.Stop()
}

func (v *Viewport) loop(ctx context.Context, events <-chan domain.GeometryEvent, eng domain.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			v.schedule(ev, eng)
		}
	}
}

// schedule arms the debounce timer, replacing any pending evaluation so
// only the last sample within the quiet window is evaluated.
func (v *Viewport) schedule(ev domain.GeometryEvent, eng domain.Engine) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped {
		return
	}
	if v.pending != nil {
		v.pending.Stop()
	}
	v.pendingGen++
	gen := v.pendingGen
	v.pending = time.AfterFunc(v.quiet, func() {
		v.evaluate(gen, ev, eng)
	})
}

func (v *Viewport) evaluate(gen uint64, ev domain.GeometryEvent, eng domain.Engine) {
	v.mu.Lock()
	if v.stopped || gen != v.pendingGen {
		v.mu.Unlock()
		return
	}
	v.pending = nil
	prev, hasPrev := v.prev, v.hasPrev
	v.prev, v.hasPrev = ev, true
	v.mu.Unlock()

	if hasPrev && prev.Displays != ev.Displays {
		eng.Detect(domain.MethodViewportChange,
			fmt.Sprintf("display count changed %d -> %d", prev.Displays, ev.Displays))
		return
	}

	dw := ev.VirtualWidth - ev.PrimaryWidth
	dh := ev.VirtualHeight - ev.PrimaryHeight
	if dw > v.tolerance || dh > v.tolerance {
		eng.Detect(domain.MethodViewportChange,
			fmt.Sprintf("virtual desktop %dx%d exceeds primary display %dx%d",
				ev.VirtualWidth, ev.VirtualHeight, ev.PrimaryWidth, ev.PrimaryHeight))
		return
	}

	if hasPrev && changed(prev, ev) && ev.VirtualHeight > 0 {
		ratio := float64(ev.VirtualWidth) / float64(ev.VirtualHeight)
		if ratio >= aspectBandLow && ratio <= aspectBandHigh {
			eng.Detect(domain.MethodViewportChange,
				fmt.Sprintf("viewport aspect %.2f in mirrored-surface band", ratio))
		}
	}
}

func changed(a, b domain.GeometryEvent) bool {
	return a.VirtualWidth != b.VirtualWidth ||
		a.VirtualHeight != b.VirtualHeight ||
		a.PrimaryWidth != b.PrimaryWidth ||
		a.PrimaryHeight != b.PrimaryHeight
}

var _ domain.SignalSource = (*Viewport)(nil)
