package guard

import (
	"time"

	"github.com/veilguard/veilguard/internal/domain"
)

// recordAttempt increments the attempt counter and returns the new
// value. Never fails; wrapping at the platform's maximum integer is a
// documented boundary, not an expected condition. Caller holds g.mu.
func (g *Guard) recordAttempt() int64 {
	g.state.AttemptCount++
	return g.state.AttemptCount
}

// resetCount zeroes the attempt counter. Independent of the visual
// state; the public Reset combines both. Caller holds g.mu.
func (g *Guard) resetCount() {
	g.state.AttemptCount = 0
}

// newAttemptDetails normalizes a raw detection into the canonical
// attempt record, independent of which source produced it. Pure: no
// side effects beyond the caller-supplied clock reading. count must be
// the post-increment tracker value, so the first detection ever yields
// Count == 1.
func newAttemptDetails(method domain.DetectionMethod, count int64, now time.Time, detail string) domain.AttemptDetails {
	return domain.AttemptDetails{
		Count:     count,
		Method:    method,
		Timestamp: now,
		Details:   detail,
	}
}
