//go:build linux

package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

const screenCastInterface = "org.freedesktop.portal.ScreenCast"

// PortalMonitor eavesdrops on the desktop portal's ScreenCast interface
// and reports when any process on the session asks to capture the
// screen. Observe-only: a monitor connection cannot refuse the request.
// Requires a private bus connection because a monitoring connection can
// no longer make method calls.
type PortalMonitor struct {
	logger *zap.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewPortalMonitor creates the ScreenCast portal monitor.
func NewPortalMonitor(logger *zap.Logger) *PortalMonitor {
	return &PortalMonitor{logger: logger}
}

// Start becomes a bus monitor for ScreenCast traffic.
func (m *PortalMonitor) Start(ctx context.Context) (<-chan domain.CaptureRequest, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", domain.ErrSourceUnavailable)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus hello: %w", err)
	}

	rule := fmt.Sprintf("type='method_call',interface='%s'", screenCastInterface)
	call := conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor", 0,
		[]string{rule}, uint32(0),
	)
	if call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("become monitor: %w", domain.ErrSourceUnavailable)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	messages := make(chan *dbus.Message, 16)
	conn.Eavesdrop(messages)

	events := make(chan domain.CaptureRequest, 16)
	go m.loop(ctx, messages, events)
	return events, nil
}

// Stop closes the monitor connection.
func (m *PortalMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

func (m *PortalMonitor) loop(ctx context.Context, messages <-chan *dbus.Message, events chan<- domain.CaptureRequest) {
	defer close(events)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			member, _ := msg.Headers[dbus.FieldMember].Value().(string)
			// CreateSession opens a capture session; Start begins the
			// stream. Either is worth flagging once.
			if member != "CreateSession" && member != "Start" {
				continue
			}
			req := domain.CaptureRequest{Surface: "screen"}
			if strings.Contains(member, "Start") {
				req.Surface = "screen stream"
			}
			select {
			case events <- req:
			default:
				m.logger.Debug("portal event dropped")
			}
		}
	}
}

var _ domain.CapturePortalMonitor = (*PortalMonitor)(nil)
