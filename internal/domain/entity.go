// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"sync/atomic"
	"time"
)

// DetectionMethod identifies the cause of a capture-attempt detection.
// The set of distinguishable causes is closed; supplementary sources
// (process scan, screenshot-file watch) report as MethodMediaCapture
// with a detail string.
type DetectionMethod string

const (
	MethodKeyboard         DetectionMethod = "keyboard"
	MethodMediaCapture     DetectionMethod = "media_capture"
	MethodViewportChange   DetectionMethod = "viewport_change"
	MethodVisibilityChange DetectionMethod = "visibility_change"
	MethodDeviceChange     DetectionMethod = "device_change"
)

// String returns a human-readable name for the detection method.
func (m DetectionMethod) String() string {
	return string(m)
}

// AttemptDetails captures one detected capture attempt.
// Created fresh per detection, never mutated after construction,
// passed by value to the attempt callback and the history store.
type AttemptDetails struct {
	// Count is the 1-based position of this attempt since the last reset.
	Count int64
	// Method is the canonical cause, independent of which source fired.
	Method DetectionMethod
	// Timestamp is the wall-clock time the detection was normalized.
	Timestamp time.Time
	// Details is an optional human-readable hint (chord name, process name).
	Details string
}

// PreventionState is the single mutable core state, one instance per
// active guard. The guard engine is the only writer of AttemptCount,
// Obscured and RecoveryTimer (all guarded by the engine's mutex); the
// visibility source is the only writer of LastVisibilityChange, which is
// atomic because it crosses goroutines.
type PreventionState struct {
	AttemptCount int64
	Obscured     bool

	// RecoveryTimer is non-nil iff a veil-hide transition is scheduled.
	// At most one timer is live at any time; arming a new one always
	// stops the prior one first.
	RecoveryTimer *time.Timer

	// LastVisibilityChange holds the unix-nano timestamp of the most
	// recent visibility transition.
	LastVisibilityChange atomic.Int64
}

// KeyEvent is a normalized key press delivered by a keyboard hook.
type KeyEvent struct {
	// Key is the normalized key name: "PrintScreen", "F12", digits and
	// lowercase letters ("3", "s", ...).
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	// Meta is the command/windows modifier.
	Meta bool
	At   time.Time

	// Suppress, when non-nil, asks the hook to swallow this keystroke so
	// the default action does not complete. Best-effort: not every hook
	// can suppress (evdev without a grab cannot).
	Suppress func()
}

// VisibilityEvent is a visibility transition of the protected surface
// (screen lock/unlock, or host-window hide/show when embedded).
type VisibilityEvent struct {
	Visible bool
	At      time.Time
}

// GeometryEvent is a display-geometry sample: the virtual desktop
// dimensions against the primary display's, plus the display count.
type GeometryEvent struct {
	VirtualWidth  int
	VirtualHeight int
	PrimaryWidth  int
	PrimaryHeight int
	Displays      int
	At            time.Time
}

// MediaDevice describes one enumerated media input/output device.
type MediaDevice struct {
	ID    string
	Kind  string // "video" or "audio"
	Label string
}

// CaptureRequest describes an in-process display-capture invocation
// passing through the capture gate.
type CaptureRequest struct {
	// Surface names what the caller wants to capture ("screen", "window").
	Surface string
	// Audio indicates the request includes audio capture.
	Audio bool
}

// CaptureSession is an opaque handle to a granted capture session.
// The gate never grants one; only the wrapped capturer can.
type CaptureSession interface {
	Close() error
}

var (
	// ErrNoDisplay is returned when construction runs without a
	// display-like environment. No partial state is left behind.
	ErrNoDisplay = errors.New("no display environment detected")

	// ErrCaptureBlocked is returned to callers whose display-capture
	// request was intercepted and refused by the capture gate.
	ErrCaptureBlocked = errors.New("display capture blocked")

	// ErrSourceUnavailable is returned by source constructors when the
	// platform lacks the required capability. The source is skipped and
	// detection coverage is reduced; this is not a failure.
	ErrSourceUnavailable = errors.New("signal source unavailable on this platform")
)
