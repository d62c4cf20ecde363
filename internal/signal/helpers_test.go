package signal

import (
	"context"
	"sync"

	"github.com/veilguard/veilguard/internal/domain"
)

// mockEngine implements domain.Engine for testing
type mockEngine struct {
	mu         sync.Mutex
	detections []detection
	obscured   bool
	state      domain.PreventionState
}

type detection struct {
	method domain.DetectionMethod
	detail string
}

func newMockEngine() *mockEngine {
	return &mockEngine{}
}

func (m *mockEngine) Detect(method domain.DetectionMethod, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, detection{method: method, detail: detail})
}

func (m *mockEngine) Obscured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obscured
}

func (m *mockEngine) State() *domain.PreventionState {
	return &m.state
}

func (m *mockEngine) setObscured(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obscured = v
}

func (m *mockEngine) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.detections)
}

func (m *mockEngine) last() (detection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.detections) == 0 {
		return detection{}, false
	}
	return m.detections[len(m.detections)-1], true
}

// mockKeyboardHook implements domain.KeyboardHook for testing
type mockKeyboardHook struct {
	events      chan domain.KeyEvent
	canSuppress bool
	startErr    error
	stopped     bool
}

func newMockKeyboardHook() *mockKeyboardHook {
	return &mockKeyboardHook{
		events:      make(chan domain.KeyEvent, 16),
		canSuppress: true,
	}
}

func (m *mockKeyboardHook) Start(ctx context.Context) (<-chan domain.KeyEvent, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.events, nil
}

func (m *mockKeyboardHook) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockKeyboardHook) CanSuppress() bool { return m.canSuppress }

// mockVisibilityMonitor implements domain.VisibilityMonitor for testing
type mockVisibilityMonitor struct {
	events   chan domain.VisibilityEvent
	startErr error
}

func newMockVisibilityMonitor() *mockVisibilityMonitor {
	return &mockVisibilityMonitor{events: make(chan domain.VisibilityEvent, 16)}
}

func (m *mockVisibilityMonitor) Start(ctx context.Context) (<-chan domain.VisibilityEvent, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.events, nil
}

func (m *mockVisibilityMonitor) Stop() error { return nil }

// mockGeometryMonitor implements domain.GeometryMonitor for testing
type mockGeometryMonitor struct {
	events   chan domain.GeometryEvent
	startErr error
}

func newMockGeometryMonitor() *mockGeometryMonitor {
	return &mockGeometryMonitor{events: make(chan domain.GeometryEvent, 16)}
}

func (m *mockGeometryMonitor) Start(ctx context.Context) (<-chan domain.GeometryEvent, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.events, nil
}

func (m *mockGeometryMonitor) Stop() error { return nil }

// mockEnumerator implements domain.DeviceEnumerator for testing
type mockEnumerator struct {
	mu      sync.Mutex
	devices []domain.MediaDevice
	err     error
}

func (m *mockEnumerator) Enumerate(ctx context.Context) ([]domain.MediaDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.MediaDevice{}, m.devices...), nil
}

func (m *mockEnumerator) set(devices []domain.MediaDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

// mockPortalMonitor implements domain.CapturePortalMonitor for testing
type mockPortalMonitor struct {
	events   chan domain.CaptureRequest
	startErr error
}

func newMockPortalMonitor() *mockPortalMonitor {
	return &mockPortalMonitor{events: make(chan domain.CaptureRequest, 16)}
}

func (m *mockPortalMonitor) Start(ctx context.Context) (<-chan domain.CaptureRequest, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.events, nil
}

func (m *mockPortalMonitor) Stop() error { return nil }

// mockScanner implements domain.ProcessScanner for testing
type mockScanner struct {
	mu       sync.Mutex
	snapshot map[int32]string
	err      error
}

func (m *mockScanner) Snapshot() (map[int32]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int32]string, len(m.snapshot))
	for pid, name := range m.snapshot {
		out[pid] = name
	}
	return out, nil
}

func (m *mockScanner) set(snapshot map[int32]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
}
