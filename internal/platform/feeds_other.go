//go:build !linux

package platform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// Non-Linux builds carry stub feeds for the Linux-only capabilities.
// Each reports unavailable at Start; the corresponding source is then
// skipped and coverage is reduced, not failed.

// EvdevHook is unavailable outside Linux.
type EvdevHook struct{}

func NewKeyboardHook(_ bool, _ *zap.Logger) *EvdevHook { return &EvdevHook{} }

func (h *EvdevHook) Start(context.Context) (<-chan domain.KeyEvent, error) {
	return nil, fmt.Errorf("evdev keyboard hook: %w", domain.ErrSourceUnavailable)
}
func (h *EvdevHook) Stop() error       { return nil }
func (h *EvdevHook) CanSuppress() bool { return false }

// ScreensaverMonitor is unavailable outside Linux.
type ScreensaverMonitor struct{}

func NewVisibilityMonitor(_ *zap.Logger) *ScreensaverMonitor { return &ScreensaverMonitor{} }

func (m *ScreensaverMonitor) Start(context.Context) (<-chan domain.VisibilityEvent, error) {
	return nil, fmt.Errorf("screensaver monitor: %w", domain.ErrSourceUnavailable)
}
func (m *ScreensaverMonitor) Stop() error { return nil }

// PortalMonitor is unavailable outside Linux.
type PortalMonitor struct{}

func NewPortalMonitor(_ *zap.Logger) *PortalMonitor { return &PortalMonitor{} }

func (m *PortalMonitor) Start(context.Context) (<-chan domain.CaptureRequest, error) {
	return nil, fmt.Errorf("capture portal monitor: %w", domain.ErrSourceUnavailable)
}
func (m *PortalMonitor) Stop() error { return nil }

var (
	_ domain.KeyboardHook         = (*EvdevHook)(nil)
	_ domain.VisibilityMonitor    = (*ScreensaverMonitor)(nil)
	_ domain.CapturePortalMonitor = (*PortalMonitor)(nil)
)
