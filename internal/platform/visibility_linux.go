//go:build linux

package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// ScreensaverMonitor reports visibility transitions of the desktop
// session: the screen locking counts as becoming hidden, unlocking as
// becoming visible again. Listens for ActiveChanged on both the
// freedesktop and GNOME screensaver interfaces.
type ScreensaverMonitor struct {
	logger *zap.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewVisibilityMonitor creates the D-Bus screensaver monitor.
func NewVisibilityMonitor(logger *zap.Logger) *ScreensaverMonitor {
	return &ScreensaverMonitor{logger: logger}
}

// Start connects to the session bus and subscribes.
func (m *ScreensaverMonitor) Start(ctx context.Context) (<-chan domain.VisibilityEvent, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", domain.ErrSourceUnavailable)
	}

	for _, iface := range []string{"org.freedesktop.ScreenSaver", "org.gnome.ScreenSaver"} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			conn.Close()
			return nil, fmt.Errorf("match %s: %w", iface, err)
		}
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	events := make(chan domain.VisibilityEvent, 16)
	go m.loop(ctx, signals, events)
	return events, nil
}

// Stop closes the bus connection.
func (m *ScreensaverMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

func (m *ScreensaverMonitor) loop(ctx context.Context, signals <-chan *dbus.Signal, events chan<- domain.VisibilityEvent) {
	defer close(events)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if len(sig.Body) != 1 {
				continue
			}
			active, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			select {
			case events <- domain.VisibilityEvent{Visible: !active, At: time.Now()}:
			default:
				m.logger.Debug("visibility event dropped")
			}
		}
	}
}

var _ domain.VisibilityMonitor = (*ScreensaverMonitor)(nil)
