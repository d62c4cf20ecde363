// Package signal implements the capture-attempt signal sources.
// Each source observes one event stream and decides, per event, whether
// it matches a capture heuristic. Sources share no mutable state with
// each other; coordination happens only through the engine.
package signal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// Keyboard watches global key presses for screenshot chords.
// It also owns the preventInspect/preventCopy suppression bundle: those
// chords are swallowed without flagging a detection.
type Keyboard struct {
	hook   domain.KeyboardHook
	logger *zap.Logger

	mu             sync.Mutex
	preventInspect bool
	preventCopy    bool

	cancel context.CancelFunc
}

// NewKeyboard creates the keyboard source.
func NewKeyboard(hook domain.KeyboardHook, opts domain.Options, logger *zap.Logger) *Keyboard {
	return &Keyboard{
		hook:           hook,
		logger:         logger,
		preventInspect: opts.PreventInspect,
		preventCopy:    opts.PreventCopy,
	}
}

// Name returns the source identifier.
func (k *Keyboard) Name() string { return "keyboard" }

// ApplyOptions picks up suppression toggle changes at runtime.
func (k *Keyboard) ApplyOptions(opts domain.Options) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.preventInspect = opts.PreventInspect
	k.preventCopy = opts.PreventCopy
}

// Start begins consuming the hook's event stream.
func (k *Keyboard) Start(ctx context.Context, eng domain.Engine) error {
	ctx, cancel := context.WithCancel(ctx)

	events, err := k.hook.Start(ctx)
	if err != nil {
		cancel()
		return err
	}
	k.cancel = cancel

	if !k.hook.CanSuppress() {
		k.logger.Debug("keystroke suppression unavailable, detections only")
	}

	go k.loop(ctx, events, eng)
	return nil
}

// Stop terminates the source and its hook.
func (k *Keyboard) Stop() error {
	if k.cancel != nil {
		k.cancel()
	}
	return k.hook.Stop()
}

func (k *Keyboard) loop(ctx context.Context, events <-chan domain.KeyEvent, eng domain.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			k.handle(ev, eng)
		}
	}
}

func (k *Keyboard) handle(ev domain.KeyEvent, eng domain.Engine) {
	if detail, ok := MatchScreenshotChord(ev); ok {
		// Suppress before emitting, to reduce the chance the OS-level
		// capture actually completes.
		suppress(ev)
		eng.Detect(domain.MethodKeyboard, detail)
		return
	}

	k.mu.Lock()
	preventInspect, preventCopy := k.preventInspect, k.preventCopy
	k.mu.Unlock()

	if preventInspect && isInspectChord(ev) {
		suppress(ev)
		return
	}
	if preventCopy && isCopyChord(ev) && eng.Obscured() {
		suppress(ev)
	}
}

func suppress(ev domain.KeyEvent) {
	if ev.Suppress != nil {
		ev.Suppress()
	}
}

// screenshotDigits are the digits used by platform screenshot chords
// (full screen, region, recording).
var screenshotDigits = map[string]bool{"3": true, "4": true, "5": true}

// MatchScreenshotChord reports whether the key event is a screenshot
// keystroke, and a human-readable chord name when it is. Matches the
// dedicated PrintScreen key, (meta-or-control)+shift+{3,4,5}, and
// meta+shift+s (region capture).
func MatchScreenshotChord(ev domain.KeyEvent) (string, bool) {
	if ev.Key == "PrintScreen" {
		return "PrintScreen", true
	}
	if (ev.Meta || ev.Ctrl) && ev.Shift && screenshotDigits[ev.Key] {
		return chordName(ev), true
	}
	if ev.Meta && ev.Shift && ev.Key == "s" {
		return chordName(ev), true
	}
	return "", false
}

// isInspectChord matches devtool chords: ctrl/meta+shift+{i,j,c} and F12.
func isInspectChord(ev domain.KeyEvent) bool {
	if ev.Key == "F12" {
		return true
	}
	if !(ev.Ctrl || ev.Meta) || !ev.Shift {
		return false
	}
	return ev.Key == "i" || ev.Key == "j" || ev.Key == "c"
}

// isCopyChord matches plain ctrl/meta+c (no shift, which would be an
// inspect chord).
func isCopyChord(ev domain.KeyEvent) bool {
	return (ev.Ctrl || ev.Meta) && !ev.Shift && ev.Key == "c"
}

func chordName(ev domain.KeyEvent) string {
	name := ""
	if ev.Meta {
		name += "meta+"
	}
	if ev.Ctrl {
		name += "ctrl+"
	}
	if ev.Shift {
		name += "shift+"
	}
	if ev.Alt {
		name += "alt+"
	}
	return name + ev.Key
}

// Ensure Keyboard implements the source interfaces.
var (
	_ domain.SignalSource = (*Keyboard)(nil)
	_ domain.OptionsAware = (*Keyboard)(nil)
)
