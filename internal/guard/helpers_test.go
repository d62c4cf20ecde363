package guard

import (
	"context"
	"sync"

	"github.com/veilguard/veilguard/internal/domain"
)

// mockVeil implements domain.Veil for testing
type mockVeil struct {
	mu       sync.Mutex
	visible  bool
	shows    int
	hides    int
	closed   bool
	message  string
	blur     float64
}

func (v *mockVeil) Show() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true
	v.shows++
}

func (v *mockVeil) Hide() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
	v.hides++
}

func (v *mockVeil) SetMessage(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message = msg
}

func (v *mockVeil) SetBlur(radius float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blur = radius
}

func (v *mockVeil) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *mockVeil) isVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *mockVeil) showCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shows
}

func (v *mockVeil) hideCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hides
}

func (v *mockVeil) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *mockVeil) currentMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

func (v *mockVeil) currentBlur() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blur
}

// mockStore implements domain.AttemptStore for testing
type mockStore struct {
	mu       sync.Mutex
	records  []domain.AttemptDetails
	closed   bool
	writeErr error
}

func (s *mockStore) Record(details domain.AttemptDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.records = append(s.records, details)
	return nil
}

func (s *mockStore) Recent(limit int) ([]domain.AttemptDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	if limit > n {
		limit = n
	}
	out := make([]domain.AttemptDetails, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *mockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockStore) recorded() []domain.AttemptDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AttemptDetails{}, s.records...)
}

func (s *mockStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mockSource implements domain.SignalSource for testing
type mockSource struct {
	mu       sync.Mutex
	name     string
	startErr error
	started  bool
	stops    int
	applied  *domain.Options
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Start(ctx context.Context, eng domain.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *mockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockSource) ApplyOptions(opts domain.Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = &opts
}

func (m *mockSource) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *mockSource) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops > 0
}

func (m *mockSource) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockSource) appliedOptions() *domain.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}
