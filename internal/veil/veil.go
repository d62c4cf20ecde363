// Package veil renders the obscuring overlay: a borderless fullscreen
// window dimming the screen, with a warning message. The guard owns the
// veil exclusively and only issues show/hide commands.
package veil

import (
	"image/color"
	"os"
	"runtime"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"github.com/veilguard/veilguard/internal/domain"
)

// maxBlurRadius caps the blur-to-opacity mapping.
const maxBlurRadius = 40.0

type splashWindowDriver interface {
	CreateSplashWindow() fyne.Window
}

// Overlay is the fyne-backed veil. Fullscreen, undecorated, black with
// an opacity derived from the configured blur radius (a desktop overlay
// cannot blur what is behind it, so obscuring strength maps to dim
// strength).
type Overlay struct {
	app        fyne.App
	window     fyne.Window
	background *canvas.Rectangle
	message    *canvas.Text

	mu     sync.Mutex
	shown  bool
	closed bool
}

// DisplayAvailable reports whether a display-like environment is
// present. On Linux that means X11 or Wayland; other desktop platforms
// always have one.
func DisplayAvailable() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return domain.ErrNoDisplay
	}
	return nil
}

// New builds the veil's visual elements. The window stays hidden until
// the first Show.
func New(app fyne.App, message string, blurRadius float64) *Overlay {
	window := app.NewWindow("veilguard")
	if driver, ok := app.Driver().(splashWindowDriver); ok {
		// Splash window is undecorated (no native frame/buttons).
		window = driver.CreateSplashWindow()
	}
	window.SetPadded(false)

	background := canvas.NewRectangle(color.NRGBA{A: opacityFor(blurRadius)})

	text := canvas.NewText(message, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	text.Alignment = fyne.TextAlignCenter
	text.TextStyle = fyne.TextStyle{Bold: true}
	text.TextSize = 22

	window.SetContent(container.NewStack(background, container.NewCenter(text)))

	return &Overlay{
		app:        app,
		window:     window,
		background: background,
		message:    text,
	}
}

// Show makes the veil visible over the whole screen. Idempotent.
func (o *Overlay) Show() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.shown {
		return
	}
	o.shown = true
	fyne.Do(func() {
		o.window.SetFullScreen(true)
		o.window.Show()
		o.window.RequestFocus()
	})
}

// Hide removes the veil from view. Idempotent.
func (o *Overlay) Hide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || !o.shown {
		return
	}
	o.shown = false
	fyne.Do(func() {
		o.window.SetFullScreen(false)
		o.window.Hide()
	})
}

// SetMessage replaces the warning text, refreshing immediately.
func (o *Overlay) SetMessage(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	fyne.Do(func() {
		o.message.Text = text
		o.message.Refresh()
	})
}

// SetBlur adjusts the obscuring strength, refreshing immediately.
func (o *Overlay) SetBlur(radius float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	fyne.Do(func() {
		o.background.FillColor = color.NRGBA{A: opacityFor(radius)}
		canvas.Refresh(o.background)
	})
}

// Close discards the window. The veil is unusable afterwards.
func (o *Overlay) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.shown = false
	fyne.Do(func() {
		o.window.Close()
	})
}

// ClearClipboard wipes the system clipboard, so a copy made just before
// the veil went up does not leak. Best-effort.
func (o *Overlay) ClearClipboard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	fyne.Do(func() {
		o.app.Clipboard().SetContent("")
	})
}

// opacityFor maps a blur radius to a background alpha: radius 0 is a
// light dim, maxBlurRadius and above fully opaque.
func opacityFor(radius float64) uint8 {
	if radius < 0 {
		radius = 0
	}
	if radius > maxBlurRadius {
		radius = maxBlurRadius
	}
	return uint8(120 + radius/maxBlurRadius*135)
}

var (
	_ domain.Veil             = (*Overlay)(nil)
	_ domain.ClipboardClearer = (*Overlay)(nil)
)
