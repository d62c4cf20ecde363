package domain

import "context"

// Engine is the surface signal sources are allowed to touch. The guard
// implements it; sources never talk to the veil or to each other.
type Engine interface {
	// Detect reports one capture attempt. Safe for concurrent use;
	// transitions are serialized by the engine.
	Detect(method DetectionMethod, detail string)

	// Obscured reports whether the veil is currently shown.
	Obscured() bool

	// State returns the shared prevention state. Sources may only write
	// the fields designated theirs (visibility: LastVisibilityChange).
	State() *PreventionState
}

// SignalSource observes one event stream and decides, per event, whether
// it matches a capture heuristic. Start must not block; it spawns the
// source's goroutine and returns. Stop releases the underlying feed.
type SignalSource interface {
	// Name returns a short identifier for logging ("keyboard", "devices").
	Name() string

	// Start begins observing and reporting into the engine.
	Start(ctx context.Context, eng Engine) error

	// Stop terminates observation. Idempotent.
	Stop() error
}

// OptionsAware is an optional SignalSource capability: sources that care
// about runtime option changes (keyboard suppression toggles) implement
// it and are re-configured on every Update.
type OptionsAware interface {
	ApplyOptions(opts Options)
}

// Veil renders the opaque/blurred overlay and the warning message over
// the protected surface. Owned exclusively by the lifecycle controller;
// the reaction state machine only issues show/hide commands.
// Implementations must be safe for concurrent use.
type Veil interface {
	// Show makes the veil and warning message visible. Idempotent.
	Show()

	// Hide removes the veil and message from view. Idempotent.
	Hide()

	// SetMessage replaces the warning text, applying immediately if shown.
	SetMessage(text string)

	// SetBlur adjusts the obscuring strength, applying immediately if shown.
	SetBlur(radius float64)

	// Close detaches and discards the visual elements. The veil is
	// unusable afterwards.
	Close()
}

// ClipboardClearer is an optional Veil capability: veils backed by a
// windowing toolkit can wipe the system clipboard when content is
// obscured, so a copy made just before the veil went up does not leak.
type ClipboardClearer interface {
	// ClearClipboard empties the clipboard. Best-effort.
	ClearClipboard()
}

// KeyboardHook captures global key presses.
// Implementation: /dev/input evdev reader on Linux.
type KeyboardHook interface {
	// Start begins capturing and returns the event channel. The channel
	// is closed when the hook stops.
	Start(ctx context.Context) (<-chan KeyEvent, error)

	// Stop terminates the hook and releases the input devices.
	Stop() error

	// CanSuppress reports whether this hook can swallow keystrokes
	// before the OS acts on them.
	CanSuppress() bool
}

// VisibilityMonitor reports visibility transitions of the protected
// surface. Implementation: D-Bus screensaver signals on Linux.
type VisibilityMonitor interface {
	Start(ctx context.Context) (<-chan VisibilityEvent, error)
	Stop() error
}

// GeometryMonitor samples display geometry and reports changes.
// Implementation: periodic display-bounds sampling.
type GeometryMonitor interface {
	Start(ctx context.Context) (<-chan GeometryEvent, error)
	Stop() error
}

// DeviceEnumerator lists the media input/output devices currently
// attached. Implementation: /dev device node scan on Linux.
type DeviceEnumerator interface {
	Enumerate(ctx context.Context) ([]MediaDevice, error)
}

// DisplayCapturer begins a display-capture session. The capture gate
// wraps one of these; host applications that expose capture to their own
// code route it through the gate so attempts are flagged and refused.
type DisplayCapturer interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureSession, error)
}

// CapturePortalMonitor observes out-of-process display-capture requests.
// Implementation: D-Bus monitor on the desktop portal's ScreenCast
// interface (observe-only; requests made by other processes cannot be
// refused, only flagged).
type CapturePortalMonitor interface {
	Start(ctx context.Context) (<-chan CaptureRequest, error)
	Stop() error
}

// ProcessScanner snapshots running processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessScanner interface {
	// Snapshot returns pid -> process name for all visible processes.
	Snapshot() (map[int32]string, error)
}

// AttemptStore persists attempt history.
// Implementation: SQLCipher encrypted SQLite database.
type AttemptStore interface {
	// Record appends one attempt.
	Record(details AttemptDetails) error

	// Recent returns up to limit attempts, newest first.
	Recent(limit int) ([]AttemptDetails, error)

	// Close releases the database connection.
	Close() error
}

// KeyProvider abstracts the source of encryption keys for the store.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
