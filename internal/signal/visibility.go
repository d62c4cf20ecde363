package signal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// DefaultVisibilityThreshold is the window within which a hide/show pair
// is treated as a suspicious rapid flicker.
const DefaultVisibilityThreshold = 1000 * time.Millisecond

// Visibility watches visibility transitions of the protected surface.
// A rapid hidden-then-visible flicker is characteristic of some
// screenshot and recording tooling. The contract: flag only on the
// return to visible that closes a sufficiently short hidden interval; a
// becoming-hidden event alone never flags.
type Visibility struct {
	monitor   domain.VisibilityMonitor
	threshold time.Duration
	logger    *zap.Logger

	cancel context.CancelFunc
}

// NewVisibility creates the visibility source with the default threshold.
func NewVisibility(monitor domain.VisibilityMonitor, logger *zap.Logger) *Visibility {
	return &Visibility{
		monitor:   monitor,
		threshold: DefaultVisibilityThreshold,
		logger:    logger,
	}
}

// Name returns the source identifier.
func (v *Visibility) Name() string { return "visibility" }

// Start begins consuming visibility transitions.
func (v *Visibility) Start(ctx context.Context, eng domain.Engine) error {
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

// Stop terminates the source and its monitor.
func (v *Visibility) Stop() error {
	if v.cancel != nil {
		v.cancel()
	}
	return v.monitor.Stop()
}

func (v *Visibility) loop(ctx context.Context, events <-chan domain.VisibilityEvent, eng domain.Engine) {
	// Time of the most recent becoming-hidden transition. Zero when the
	// surface is visible or a flicker was already flagged.
	var hiddenAt time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			// Every transition is recorded, flagged or not. This source
			// is the single writer of this field.
			eng.State().LastVisibilityChange.Store(ev.At.UnixNano())

			if !ev.Visible {
				hiddenAt = ev.At
				continue
			}
			if hiddenAt.IsZero() {
				continue
			}

			hidden := ev.At.Sub(hiddenAt)
			hiddenAt = time.Time{}
			if hidden <= v.threshold {
				eng.Detect(domain.MethodVisibilityChange,
					fmt.Sprintf("visible again after %s", hidden.Round(time.Millisecond)))
			}
		}
	}
}

var _ domain.SignalSource = (*Visibility)(nil)
