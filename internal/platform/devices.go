package platform

import (
	"context"
	"path/filepath"

	"github.com/veilguard/veilguard/internal/domain"
)

// DevNodeEnumerator lists media devices from /dev device nodes: video
// capture nodes and sound devices. A virtual camera (v4l2loopback) or a
// loopback sink appearing shows up as a new node.
type DevNodeEnumerator struct{}

// NewDeviceEnumerator creates the /dev node enumerator.
func NewDeviceEnumerator() *DevNodeEnumerator {
	return &DevNodeEnumerator{}
}

// Enumerate globs the device nodes. An empty result on platforms
// without /dev media nodes is valid: the device source then simply
// never sees a change.
func (e *DevNodeEnumerator) Enumerate(_ context.Context) ([]domain.MediaDevice, error) {
	var devices []domain.MediaDevice

	for _, pattern := range []string{"/dev/video*", "/dev/media*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			devices = append(devices, domain.MediaDevice{
				ID:    m,
				Kind:  "video",
				Label: filepath.Base(m),
			})
		}
	}

	matches, _ := filepath.Glob("/dev/snd/pcm*")
	for _, m := range matches {
		devices = append(devices, domain.MediaDevice{
			ID:    m,
			Kind:  "audio",
			Label: filepath.Base(m),
		})
	}

	return devices, nil
}

var _ domain.DeviceEnumerator = (*DevNodeEnumerator)(nil)
