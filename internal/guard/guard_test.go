package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

func fastOptions() domain.Options {
	opts := domain.DefaultOptions()
	opts.RecoveryDelay = 50 * time.Millisecond
	return opts
}

func TestNewRequiresVeil(t *testing.T) {
	g, err := New(domain.DefaultOptions(), nil, nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrNoDisplay)
	assert.Nil(t, g)
}

func TestDetectCountsSequentially(t *testing.T) {
	veil := &mockVeil{}
	var mu sync.Mutex
	var counts []int64
	opts := fastOptions()
	opts.OnAttempt = func(d domain.AttemptDetails) {
		mu.Lock()
		counts = append(counts, d.Count)
		mu.Unlock()
	}

	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	for i := 0; i < 5; i++ {
		g.Detect(domain.MethodKeyboard, "PrintScreen")
	}

	assert.Equal(t, int64(5), g.AttemptCount())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, counts)
}

func TestDetectObscuresUntilQuiescence(t *testing.T) {
	veil := &mockVeil{}
	g, err := New(fastOptions(), veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	assert.True(t, g.Obscured())
	assert.True(t, veil.isVisible())

	require.Eventually(t, func() bool { return !g.Obscured() }, time.Second, 5*time.Millisecond)
	assert.False(t, veil.isVisible())
}

func TestRepeatedDetectionExtendsRecovery(t *testing.T) {
	veil := &mockVeil{}
	opts := domain.DefaultOptions()
	opts.RecoveryDelay = 80 * time.Millisecond

	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	time.Sleep(50 * time.Millisecond)
	g.Detect(domain.MethodKeyboard, "PrintScreen")

	// 100ms after the first detection the original timer would have
	// fired; the re-arm keeps the veil up.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, g.Obscured(), "veil cleared on the first timer instead of the re-armed one")

	require.Eventually(t, func() bool { return !g.Obscured() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, veil.hideCount(), "exactly one recovery for the whole burst")
}

func TestRecoveryFiringDuringArmStillClears(t *testing.T) {
	veil := &mockVeil{}
	opts := domain.DefaultOptions()
	// A delay this short makes the timer fire while Detect is still
	// inside the arming critical section; recovery must still win.
	opts.RecoveryDelay = time.Nanosecond

	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	for i := 0; i < 200; i++ {
		g.Detect(domain.MethodKeyboard, "PrintScreen")
	}

	require.Eventually(t, func() bool { return !g.Obscured() }, time.Second, time.Millisecond)
	assert.False(t, veil.isVisible())
}

func TestTwoRapidDetectionsCountBoth(t *testing.T) {
	veil := &mockVeil{}
	g, err := New(fastOptions(), veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	time.Sleep(10 * time.Millisecond)
	g.Detect(domain.MethodKeyboard, "PrintScreen")

	assert.Equal(t, int64(2), g.AttemptCount())
	assert.True(t, g.Obscured())
}

func TestResetClearsCountAndVeil(t *testing.T) {
	veil := &mockVeil{}
	opts := domain.DefaultOptions()
	opts.RecoveryDelay = 10 * time.Second // far future, Reset must not wait

	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	require.True(t, g.Obscured())

	g.Reset()
	assert.Equal(t, int64(0), g.AttemptCount())
	assert.False(t, g.Obscured())
	assert.False(t, veil.isVisible())

	// The cancelled timer must not hide a veil shown by a later attempt.
	g.Detect(domain.MethodKeyboard, "PrintScreen")
	time.Sleep(50 * time.Millisecond)
	assert.True(t, g.Obscured())
	assert.Equal(t, int64(1), g.AttemptCount(), "counting restarts from zero after reset")
}

func TestDetectPersistsToStore(t *testing.T) {
	veil := &mockVeil{}
	store := &mockStore{}
	g, err := New(fastOptions(), veil, nil, store, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodMediaCapture, "capture tool running: obs")

	records := store.recorded()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Count)
	assert.Equal(t, domain.MethodMediaCapture, records[0].Method)
	assert.Equal(t, "capture tool running: obs", records[0].Details)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestStoreFailureDoesNotBlockDetection(t *testing.T) {
	veil := &mockVeil{}
	store := &mockStore{writeErr: assert.AnError}
	g, err := New(fastOptions(), veil, nil, store, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	assert.Equal(t, int64(1), g.AttemptCount())
	assert.True(t, g.Obscured())
}

func TestConcurrentDetectionsStayOrdered(t *testing.T) {
	veil := &mockVeil{}
	var mu sync.Mutex
	var counts []int64
	opts := fastOptions()
	opts.OnAttempt = func(d domain.AttemptDetails) {
		mu.Lock()
		counts = append(counts, d.Count)
		mu.Unlock()
	}

	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Detect(domain.MethodKeyboard, "PrintScreen")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), g.AttemptCount())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, counts, 20)
	for i, c := range counts {
		assert.Equal(t, int64(i+1), c, "callback order must follow counter order")
	}
}

// clipboardVeil is a mockVeil that also wipes a clipboard.
type clipboardVeil struct {
	mockVeil
	clears int
}

func (v *clipboardVeil) ClearClipboard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
}

func (v *clipboardVeil) clearCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clears
}

func TestDetectClearsClipboardWhenPreventCopy(t *testing.T) {
	veil := &clipboardVeil{}
	g, err := New(fastOptions(), veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	assert.Equal(t, 1, veil.clearCount())
}

func TestDetectLeavesClipboardWithoutPreventCopy(t *testing.T) {
	veil := &clipboardVeil{}
	opts := fastOptions()
	opts.PreventCopy = false
	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	assert.Zero(t, veil.clearCount())
}

func TestUpdateAppliesPatch(t *testing.T) {
	veil := &mockVeil{}
	src := &mockSource{name: "fake"}
	g, err := New(fastOptions(), veil, []domain.SignalSource{src}, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))
	defer g.Destroy()

	msg := "content hidden"
	blur := 35.0
	prevent := false
	g.Update(domain.OptionsPatch{
		WarningMessage: &msg,
		BlurRadius:     &blur,
		PreventCopy:    &prevent,
	})

	assert.Equal(t, msg, veil.currentMessage())
	assert.Equal(t, blur, veil.currentBlur())

	applied := src.appliedOptions()
	require.NotNil(t, applied, "started sources are re-configured")
	assert.False(t, applied.PreventCopy)
	assert.Equal(t, msg, applied.WarningMessage)
}

func TestUpdateLeavesUnpatchedFields(t *testing.T) {
	veil := &mockVeil{}
	opts := fastOptions()
	opts.WarningMessage = "original"
	g, err := New(opts, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	blur := 5.0
	g.Update(domain.OptionsPatch{BlurRadius: &blur})

	g.mu.Lock()
	current := g.opts
	g.mu.Unlock()
	assert.Equal(t, "original", current.WarningMessage)
	assert.Equal(t, 5.0, current.BlurRadius)
}

func TestStartSkipsUnavailableSources(t *testing.T) {
	veil := &mockVeil{}
	good := &mockSource{name: "good"}
	bad := &mockSource{name: "bad", startErr: domain.ErrSourceUnavailable}

	g, err := New(fastOptions(), veil, []domain.SignalSource{bad, good}, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))
	defer g.Destroy()

	assert.True(t, good.isStarted())
	assert.False(t, bad.isStarted())
}

func TestDestroyStopsEverything(t *testing.T) {
	veil := &mockVeil{}
	store := &mockStore{}
	src := &mockSource{name: "fake"}
	opts := domain.DefaultOptions()
	opts.RecoveryDelay = 10 * time.Second

	g, err := New(opts, veil, []domain.SignalSource{src}, store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	require.True(t, g.Obscured())

	g.Destroy()

	assert.True(t, src.isStopped())
	assert.True(t, veil.isClosed())
	assert.True(t, store.isClosed())
	assert.False(t, g.Obscured())

	// Destroyed guards ignore everything.
	g.Detect(domain.MethodKeyboard, "PrintScreen")
	assert.Equal(t, int64(1), g.AttemptCount())

	// Idempotent.
	g.Destroy()
	assert.Equal(t, 1, src.stopCount())
}

func TestDestroyLeavesNoDanglingTimer(t *testing.T) {
	veil := &mockVeil{}
	g, err := New(fastOptions(), veil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	g.Detect(domain.MethodKeyboard, "PrintScreen")
	hidesBefore := veil.hideCount()
	g.Destroy()

	// Destroy hides once; a timer surviving it would hide again.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, hidesBefore+1, veil.hideCount())
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	veil := &mockVeil{}
	g, err := New(domain.Options{}, veil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	defer g.Destroy()

	defaults := domain.DefaultOptions()
	g.mu.Lock()
	opts := g.opts
	g.mu.Unlock()
	assert.Equal(t, defaults.RecoveryDelay, opts.RecoveryDelay)
	assert.Equal(t, defaults.WarningMessage, opts.WarningMessage)
	assert.Equal(t, defaults.BlurRadius, opts.BlurRadius)
	assert.Equal(t, defaults.PollInterval, opts.PollInterval)
}
