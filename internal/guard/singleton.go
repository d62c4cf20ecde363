package guard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// Single process-wide slot holding at most one active guard.
var (
	slotMu sync.Mutex
	slot   *Guard
)

// GetOrCreate returns the active guard when one exists; the supplied
// configuration and dependencies are then discarded. This silent reuse
// is the documented semantics of the factory - the name makes it
// visible at the call site. Hosts that need independent instances (or
// explicit control over reuse) use New instead.
//
// On first construction the guard is started immediately; Destroy on
// the returned guard releases the slot so a later call starts fresh.
func GetOrCreate(ctx context.Context, opts domain.Options, veil domain.Veil, sources []domain.SignalSource, store domain.AttemptStore, logger *zap.Logger) (*Guard, error) {
	slotMu.Lock()
	defer slotMu.Unlock()

	if slot != nil {
		return slot, nil
	}

	g, err := New(opts, veil, sources, store, logger)
	if err != nil {
		return nil, err
	}
	if err := g.Start(ctx); err != nil {
		g.Destroy()
		return nil, err
	}

	// Assigned only after a successful start, so a failed construction
	// never occupies the slot.
	g.mu.Lock()
	g.onDestroy = func() {
		slotMu.Lock()
		if slot == g {
			slot = nil
		}
		slotMu.Unlock()
	}
	g.mu.Unlock()
	slot = g
	return g, nil
}

// Active returns the current singleton, or nil when none is live.
func Active() *Guard {
	slotMu.Lock()
	defer slotMu.Unlock()
	return slot
}
