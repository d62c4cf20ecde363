// Package guard implements the detection-and-reaction engine: attempt
// tracking, the obscure/recover state machine, notification, and the
// lifecycle controller owning the veil and the signal sources.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// Guard owns one protection instance: the shared prevention state, the
// veil, the registered signal sources and the optional attempt history.
//
// The reaction state machine has two states, clear and obscured. Any
// detection moves to obscured and (re-)arms the recovery timer for the
// full delay; the timer firing moves back to clear. Repeated detections
// while obscured restart the timer, so the veil stays up for the
// recovery delay after the most recent detection, never the first.
type Guard struct {
	// detectMu serializes whole detections including the callback, so
	// attempt records reach the host in counter order.
	detectMu sync.Mutex

	// mu guards the fields below. The engine is the only writer of the
	// prevention state's counter, obscured flag and timer handle.
	mu        sync.Mutex
	opts      domain.Options
	state     *domain.PreventionState
	destroyed bool

	// timerGen identifies the live recovery timer. Incremented under mu
	// on every arm and cancel, so a timer that fired after being replaced
	// or cancelled sees a stale generation and does nothing.
	timerGen uint64

	veil    domain.Veil
	store   domain.AttemptStore
	sources []domain.SignalSource
	started []domain.SignalSource
	logger  *zap.Logger

	cancel context.CancelFunc

	// onDestroy releases the singleton slot; nil for free-standing
	// instances.
	onDestroy func()
}

// New constructs a free-standing guard (explicit-context form; use
// GetOrCreate for the process-wide singleton). The veil is required: a
// host without a display-like surface to veil cannot be protected, and
// construction fails fast before any other state is built.
func New(opts domain.Options, veil domain.Veil, sources []domain.SignalSource, store domain.AttemptStore, logger *zap.Logger) (*Guard, error) {
	if veil == nil {
		return nil, domain.ErrNoDisplay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Guard{
		opts:    withDefaults(opts),
		state:   &domain.PreventionState{},
		veil:    veil,
		store:   store,
		sources: sources,
		logger:  logger,
	}, nil
}

// withDefaults fills the zero-valued essentials so a partially
// populated Options literal behaves like the documented defaults.
func withDefaults(opts domain.Options) domain.Options {
	defaults := domain.DefaultOptions()
	if opts.RecoveryDelay == 0 {
		opts.RecoveryDelay = defaults.RecoveryDelay
	}
	if opts.WarningMessage == "" {
		opts.WarningMessage = defaults.WarningMessage
	}
	if opts.BlurRadius == 0 {
		opts.BlurRadius = defaults.BlurRadius
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaults.PollInterval
	}
	return opts
}

// Start registers and starts every signal source. A source whose
// platform capability is absent is skipped with reduced coverage; this
// degrades detection, it does not fail the guard.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return errors.New("guard destroyed")
	}
	ctx, g.cancel = context.WithCancel(ctx)
	sources := g.sources
	g.mu.Unlock()

	for _, src := range sources {
		if err := src.Start(ctx, g); err != nil {
			if errors.Is(err, domain.ErrSourceUnavailable) {
				g.logger.Debug("signal source unavailable",
					zap.String("source", src.Name()),
					zap.Error(err))
			} else {
				g.logger.Warn("signal source failed to start",
					zap.String("source", src.Name()),
					zap.Error(err))
			}
			continue
		}
		g.mu.Lock()
		g.started = append(g.started, src)
		g.mu.Unlock()
		g.logger.Info("signal source started", zap.String("source", src.Name()))
	}
	return nil
}

// Detect reports one capture attempt: increments the tracker, builds the
// canonical attempt record, transitions to obscured, re-arms the
// recovery timer, persists the attempt and invokes the host callback.
// Safe for concurrent use; detections are processed one at a time.
func (g *Guard) Detect(method domain.DetectionMethod, detail string) {
	g.detectMu.Lock()
	defer g.detectMu.Unlock()

	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}

	count := g.recordAttempt()
	details := newAttemptDetails(method, count, time.Now(), detail)
	g.obscureLocked()

	cb := g.callbackLocked()
	store := g.store
	g.mu.Unlock()

	g.logger.Debug("capture attempt detected",
		zap.String("method", method.String()),
		zap.Int64("count", count),
		zap.String("detail", detail))

	if store != nil {
		if err := store.Record(details); err != nil {
			g.logger.Warn("failed to record attempt", zap.Error(err))
		}
	}

	// Synchronous by contract. Panics are not recovered; swallowing them
	// would hide integration bugs in the host.
	if cb != nil {
		cb(details)
	}
}

// obscureLocked shows the veil and arms the recovery timer, cancelling
// any outstanding one first. At most one timer is ever live: a stale
// timer left running would hide the veil prematurely. The generation is
// captured before the timer is armed, so the callback never reads state
// written after arming, even when the delay elapses immediately.
// Caller holds g.mu.
func (g *Guard) obscureLocked() {
	if g.state.RecoveryTimer != nil {
		g.state.RecoveryTimer.Stop()
	}

	g.state.Obscured = true
	g.veil.Show()
	if g.opts.PreventCopy {
		if clearer, ok := g.veil.(domain.ClipboardClearer); ok {
			clearer.ClearClipboard()
		}
	}

	g.timerGen++
	gen := g.timerGen
	g.state.RecoveryTimer = time.AfterFunc(g.opts.RecoveryDelay, func() {
		g.recover(gen)
	})
}

// recover is the timer-fired transition back to clear. The generation
// check makes a replaced or cancelled-but-already-fired timer a no-op,
// as is any timer outliving Destroy.
func (g *Guard) recover(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed || gen != g.timerGen {
		return
	}
	g.state.RecoveryTimer = nil
	g.state.Obscured = false
	g.veil.Hide()
}

// Reset zeroes the attempt counter and forces the clear state
// immediately, independent of any outstanding timer.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return
	}
	g.resetCount()
	g.clearLocked()
}

// clearLocked cancels the timer and hides the veil. Caller holds g.mu.
func (g *Guard) clearLocked() {
	if g.state.RecoveryTimer != nil {
		g.state.RecoveryTimer.Stop()
		g.state.RecoveryTimer = nil
		g.timerGen++
	}
	if g.state.Obscured {
		g.state.Obscured = false
		g.veil.Hide()
	}
}

// Update shallow-merges the supplied fields over the current options.
// Message, blur and suppression-toggle changes take visual effect
// immediately.
func (g *Guard) Update(patch domain.OptionsPatch) {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}
	g.opts = g.opts.Merge(patch)
	opts := g.opts
	sources := g.started
	g.mu.Unlock()

	if patch.WarningMessage != nil {
		g.veil.SetMessage(*patch.WarningMessage)
	}
	if patch.BlurRadius != nil {
		g.veil.SetBlur(*patch.BlurRadius)
	}
	for _, src := range sources {
		if aware, ok := src.(domain.OptionsAware); ok {
			aware.ApplyOptions(opts)
		}
	}
}

// AttemptCount returns attempts since construction or the last reset.
func (g *Guard) AttemptCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.AttemptCount
}

// Obscured reports whether the veil is currently shown.
func (g *Guard) Obscured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Obscured
}

// State returns the shared prevention state for the sources.
func (g *Guard) State() *domain.PreventionState {
	return g.state
}

// Destroy tears the guard down: cancels the timer, stops every source,
// closes the veil and the history store, and releases the singleton
// slot so a later construction starts fresh. Idempotent. It is not a
// state-machine transition: it runs unconditionally regardless of the
// current state.
func (g *Guard) Destroy() {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}
	g.destroyed = true
	if g.state.RecoveryTimer != nil {
		g.state.RecoveryTimer.Stop()
		g.state.RecoveryTimer = nil
	}
	g.state.Obscured = false
	started := g.started
	g.started = nil
	cancel := g.cancel
	onDestroy := g.onDestroy
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, src := range started {
		if err := src.Stop(); err != nil {
			g.logger.Debug("source stop failed",
				zap.String("source", src.Name()),
				zap.Error(err))
		}
	}

	g.veil.Hide()
	g.veil.Close()

	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Warn("failed to close attempt store", zap.Error(err))
		}
	}

	if onDestroy != nil {
		onDestroy()
	}
}

// callbackLocked resolves the notifier: the host's callback when set,
// a diagnostic log callback in debug mode, otherwise nothing.
func (g *Guard) callbackLocked() func(domain.AttemptDetails) {
	if g.opts.OnAttempt != nil {
		return g.opts.OnAttempt
	}
	if g.opts.Debug {
		return g.debugCallback
	}
	return nil
}

func (g *Guard) debugCallback(details domain.AttemptDetails) {
	g.logger.Info("capture attempt",
		zap.Int64("count", details.Count),
		zap.String("method", details.Method.String()),
		zap.Time("at", details.Timestamp),
		zap.String("details", details.Details))
}

// Ensure Guard is a valid engine for the sources.
var _ domain.Engine = (*Guard)(nil)
