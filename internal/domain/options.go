package domain

import "time"

// DefaultWarningMessage is shown in the veil when no message is configured.
const DefaultWarningMessage = "Screen capture detected. Content hidden."

// Options configures a guard. Immutable after construction; later changes
// go through Update with an OptionsPatch (shallow merge of supplied
// fields only).
type Options struct {
	// BlurRadius is the visual obscuring strength of the veil.
	BlurRadius float64

	// WarningMessage is the text shown in the veil's message element.
	WarningMessage string

	// PreventCopy swallows copy chords while the veil is shown.
	PreventCopy bool

	// PreventInspect bundles context-menu and devtool-chord suppression
	// under one toggle. This is configuration of the keyboard source,
	// not a separate source.
	PreventInspect bool

	// RecoveryDelay is how long the veil stays up after the most recent
	// detection.
	RecoveryDelay time.Duration

	// Debug installs a diagnostic log callback when OnAttempt is nil.
	Debug bool

	// OnAttempt is invoked synchronously on every detection. Panics are
	// not recovered; they surface to the host's own error channel.
	OnAttempt func(details AttemptDetails)

	// Per-source toggles. All sources are on by default; a source whose
	// platform capability is absent is skipped regardless.
	EnableKeyboard    bool
	EnableVisibility  bool
	EnableViewport    bool
	EnableDevices     bool
	EnableCaptureGate bool
	EnableProcessScan bool
	EnableShotsWatch  bool

	// ScreenshotDirs are directories watched for created screenshot
	// files. Empty entries and missing directories are ignored.
	ScreenshotDirs []string

	// PollInterval paces the polling sources (devices, process scan).
	PollInterval time.Duration
}

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		BlurRadius:        20,
		WarningMessage:    DefaultWarningMessage,
		PreventCopy:       true,
		PreventInspect:    true,
		RecoveryDelay:     2000 * time.Millisecond,
		Debug:             false,
		EnableKeyboard:    true,
		EnableVisibility:  true,
		EnableViewport:    true,
		EnableDevices:     true,
		EnableCaptureGate: true,
		EnableProcessScan: true,
		EnableShotsWatch:  true,
		PollInterval:      5 * time.Second,
	}
}

// OptionsPatch is a partial configuration update. Only non-nil fields
// replace the current value; everything else is left untouched.
type OptionsPatch struct {
	BlurRadius     *float64
	WarningMessage *string
	PreventCopy    *bool
	PreventInspect *bool
	RecoveryDelay  *time.Duration
	Debug          *bool
	OnAttempt      *func(details AttemptDetails)
}

// Merge returns a copy of o with the patch's supplied fields applied.
func (o Options) Merge(p OptionsPatch) Options {
	if p.BlurRadius != nil {
		o.BlurRadius = *p.BlurRadius
	}
	if p.WarningMessage != nil {
		o.WarningMessage = *p.WarningMessage
	}
	if p.PreventCopy != nil {
		o.PreventCopy = *p.PreventCopy
	}
	if p.PreventInspect != nil {
		o.PreventInspect = *p.PreventInspect
	}
	if p.RecoveryDelay != nil {
		o.RecoveryDelay = *p.RecoveryDelay
	}
	if p.Debug != nil {
		o.Debug = *p.Debug
	}
	if p.OnAttempt != nil {
		o.OnAttempt = *p.OnAttempt
	}
	return o
}
