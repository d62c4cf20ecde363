package signal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veilguard/veilguard/internal/domain"
)

// Devices polls the media device list. Any change to the enumerated
// input/output devices (a virtual camera appearing, a microphone
// vanishing) is treated as a capture-surface change. Coarse heuristic,
// intentionally conservative.
type Devices struct {
	enum     domain.DeviceEnumerator
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
}

// NewDevices creates the device-change source.
func NewDevices(enum domain.DeviceEnumerator, interval time.Duration, logger *zap.Logger) *Devices {
	return &Devices{
		enum:     enum,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the source identifier.
func (d *Devices) Name() string { return "devices" }

// Start begins polling. The first enumeration establishes the baseline
// and never flags.
func (d *Devices) Start(ctx context.Context, eng domain.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	baseline, err := d.fingerprint(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("device enumeration unavailable: %w", err)
	}

	go d.loop(ctx, baseline, eng)
	return nil
}

// Stop terminates polling.
func (d *Devices) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

func (d *Devices) loop(ctx context.Context, baseline string, eng domain.Engine) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := d.fingerprint(ctx)
			if err != nil {
				d.logger.Debug("device enumeration failed", zap.Error(err))
				continue
			}
			if current != baseline {
				eng.Detect(domain.MethodDeviceChange, describeChange(baseline, current))
				baseline = current
			}
		}
	}
}

// fingerprint reduces the device list to an order-independent string so
// a change in any device identity is visible as a string change.
func (d *Devices) fingerprint(ctx context.Context) (string, error) {
	devices, err := d.enum.Enumerate(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(devices))
	for _, dev := range devices {
		ids = append(ids, dev.Kind+":"+dev.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|"), nil
}

func describeChange(old, current string) string {
	return fmt.Sprintf("media device list changed: %d -> %d devices",
		countDevices(old), countDevices(current))
}

func countDevices(fp string) int {
	if fp == "" {
		return 0
	}
	return strings.Count(fp, "|") + 1
}

var _ domain.SignalSource = (*Devices)(nil)
