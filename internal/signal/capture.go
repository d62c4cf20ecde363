package signal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// CaptureGate intercepts display-capture requests. It implements
// domain.DisplayCapturer so host applications can route their own
// capture path through it: every invocation flags a detection and is
// refused with ErrCaptureBlocked. This is the only source with an
// enforcement side-effect beyond visual obscuring.
//
// Once a host has registered the gate in place of its real capturer it
// cannot be un-hooked except by full teardown of the host's wiring.
//
// Optionally the gate also consumes a portal monitor feed: capture
// requests made by other processes through the desktop portal are
// flagged (observe-only; they cannot be refused from here).
type CaptureGate struct {
	portal domain.CapturePortalMonitor
	logger *zap.Logger

	mu     sync.Mutex
	eng    domain.Engine
	cancel context.CancelFunc
}

// NewCaptureGate creates the gate. portal may be nil.
func NewCaptureGate(portal domain.CapturePortalMonitor, logger *zap.Logger) *CaptureGate {
	return &CaptureGate{portal: portal, logger: logger}
}

// Name returns the source identifier.
func (g *CaptureGate) Name() string { return "capture_gate" }

// Start wires the gate to the engine and, when available, begins
// consuming the portal feed. A portal that cannot start is a reduced
// capability, not a failure: in-process interception keeps working.
func (g *CaptureGate) Start(ctx context.Context, eng domain.Engine) error {
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.eng = eng
	g.cancel = cancel
	g.mu.Unlock()

	if g.portal == nil {
		return nil
	}
	events, err := g.portal.Start(ctx)
	if err != nil {
		g.logger.Debug("capture portal monitor unavailable", zap.Error(err))
		return nil
	}
	go g.loop(ctx, events, eng)
	return nil
}

// Stop detaches the gate from the engine. In-process calls after Stop
// are still refused, but no longer flagged.
func (g *CaptureGate) Stop() error {
	g.mu.Lock()
	g.eng = nil
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()
	if g.portal != nil {
		return g.portal.Stop()
	}
	return nil
}

// WrapDisplayCapturer installs the gate in place of the host's own
// display-capture path. The replaced capturer is never invoked again:
// every request through the returned capturer is flagged and refused.
// There is no un-wrap; only full teardown of the host's wiring undoes
// the registration.
func (g *CaptureGate) WrapDisplayCapturer(_ domain.DisplayCapturer) domain.DisplayCapturer {
	return g
}

// Capture flags the attempt and refuses the request. The wrapped
// capability is never invoked.
func (g *CaptureGate) Capture(_ context.Context, req domain.CaptureRequest) (domain.CaptureSession, error) {
	g.mu.Lock()
	eng := g.eng
	g.mu.Unlock()

	if eng != nil {
		eng.Detect(domain.MethodMediaCapture,
			fmt.Sprintf("display capture request refused (%s)", req.Surface))
	}
	return nil, domain.ErrCaptureBlocked
}

func (g *CaptureGate) loop(ctx context.Context, events <-chan domain.CaptureRequest, eng domain.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-events:
			if !ok {
				return
			}
			eng.Detect(domain.MethodMediaCapture,
				fmt.Sprintf("display capture requested via portal (%s)", req.Surface))
		}
	}
}

var (
	_ domain.SignalSource    = (*CaptureGate)(nil)
	_ domain.DisplayCapturer = (*CaptureGate)(nil)
)
