//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
	"github.com/veilguard/veilguard/internal/guard"
	"github.com/veilguard/veilguard/internal/history"
	"github.com/veilguard/veilguard/internal/signal"
)

// fakeVeil stands in for the fyne overlay; integration tests run headless.
type fakeVeil struct {
	mu      sync.Mutex
	visible bool
	closed  bool
}

func (v *fakeVeil) Show() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true
}

func (v *fakeVeil) Hide() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
}

func (v *fakeVeil) SetMessage(string) {}
func (v *fakeVeil) SetBlur(float64)   {}

func (v *fakeVeil) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *fakeVeil) isVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// fakeHook feeds scripted key events into the keyboard source.
type fakeHook struct {
	events chan domain.KeyEvent
}

func newFakeHook() *fakeHook {
	return &fakeHook{events: make(chan domain.KeyEvent, 16)}
}

func (h *fakeHook) Start(context.Context) (<-chan domain.KeyEvent, error) { return h.events, nil }
func (h *fakeHook) Stop() error                                           { return nil }
func (h *fakeHook) CanSuppress() bool                                     { return false }

var _ = Describe("Guard", func() {
	var (
		veil  *fakeVeil
		hook  *fakeHook
		store *history.Store
		g     *guard.Guard
	)

	BeforeEach(func() {
		veil = &fakeVeil{}
		hook = newFakeHook()

		key, err := history.EnsureKey(history.NewFileKeyProvider(GinkgoT().TempDir()))
		Expect(err).NotTo(HaveOccurred())
		store, err = history.NewStore(GinkgoT().TempDir(), key)
		Expect(err).NotTo(HaveOccurred())

		opts := domain.DefaultOptions()
		opts.RecoveryDelay = 100 * time.Millisecond

		sources := []domain.SignalSource{
			signal.NewKeyboard(hook, opts, zap.NewNop()),
		}

		g, err = guard.New(opts, veil, sources, store, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Start(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		g.Destroy()
	})

	Describe("detecting a screenshot chord", func() {
		It("obscures, counts and persists the attempt", func() {
			hook.events <- domain.KeyEvent{Key: "PrintScreen", At: time.Now()}

			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeTrue())
			Expect(veil.isVisible()).To(BeTrue())
			Expect(g.AttemptCount()).To(Equal(int64(1)))

			recent, err := store.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Method).To(Equal(domain.MethodKeyboard))
			Expect(recent[0].Count).To(Equal(int64(1)))
		})

		It("recovers once the attempts stop", func() {
			hook.events <- domain.KeyEvent{Key: "PrintScreen", At: time.Now()}

			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeTrue())
			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeFalse())
			Expect(veil.isVisible()).To(BeFalse())
		})

		It("keeps the veil up across a burst", func() {
			hook.events <- domain.KeyEvent{Key: "PrintScreen", At: time.Now()}
			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeTrue())

			// A second chord inside the recovery window re-arms the timer.
			time.Sleep(60 * time.Millisecond)
			hook.events <- domain.KeyEvent{Key: "3", Meta: true, Shift: true, At: time.Now()}

			time.Sleep(60 * time.Millisecond)
			Expect(g.Obscured()).To(BeTrue())

			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeFalse())
			Expect(g.AttemptCount()).To(Equal(int64(2)))
		})
	})

	Describe("resetting", func() {
		It("clears the counter and the veil immediately", func() {
			hook.events <- domain.KeyEvent{Key: "PrintScreen", At: time.Now()}
			Eventually(g.Obscured, time.Second, 5*time.Millisecond).Should(BeTrue())

			g.Reset()
			Expect(g.Obscured()).To(BeFalse())
			Expect(g.AttemptCount()).To(BeZero())
		})
	})
})

var _ = Describe("Singleton lifecycle", func() {
	It("reuses the live instance and starts fresh after Destroy", func() {
		ctx := context.Background()
		opts := domain.DefaultOptions()
		opts.RecoveryDelay = 50 * time.Millisecond

		g1, err := guard.GetOrCreate(ctx, opts, &fakeVeil{}, nil, nil, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		g2, err := guard.GetOrCreate(ctx, opts, &fakeVeil{}, nil, nil, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(g2).To(BeIdenticalTo(g1))

		g1.Destroy()

		g3, err := guard.GetOrCreate(ctx, opts, &fakeVeil{}, nil, nil, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer g3.Destroy()
		Expect(g3).NotTo(BeIdenticalTo(g1))
	})
})
