//go:build linux

package platform

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/veilguard/veilguard/internal/domain"
)

const (
	evKey    = 0x01
	keyPress = 1
)

// Subset of linux input key codes the matcher cares about.
var keyNames = map[uint16]string{
	99: "PrintScreen", // KEY_SYSRQ
	88: "F12",
	4:  "3",
	5:  "4",
	6:  "5",
	31: "s",
	23: "i",
	36: "j",
	46: "c",
}

// Modifier key codes.
const (
	keyLeftCtrl   = 29
	keyRightCtrl  = 97
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftAlt    = 56
	keyRightAlt   = 100
	keyLeftMeta   = 125
	keyRightMeta  = 126
)

// inputEvent mirrors struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = 24

// EvdevHook reads key presses from /dev/input event devices. Requires
// read access to the devices (the input group, typically). With grab
// enabled the devices are grabbed exclusively via EVIOCGRAB, which
// swallows all keystrokes system-wide; off by default because it is
// all-or-nothing.
type EvdevHook struct {
	grab   bool
	logger *zap.Logger

	mu     sync.Mutex
	files  []*os.File
	events chan domain.KeyEvent

	// Modifier state merged across devices.
	modMu sync.Mutex
	ctrl  int
	shift int
	alt   int
	meta  int
}

// NewKeyboardHook creates the evdev-backed hook.
func NewKeyboardHook(grab bool, logger *zap.Logger) *EvdevHook {
	return &EvdevHook{grab: grab, logger: logger}
}

// CanSuppress reports whether keystrokes are swallowed before the OS
// acts on them. True only under an exclusive grab.
func (h *EvdevHook) CanSuppress() bool { return h.grab }

// Start opens every keyboard device and begins reading.
func (h *EvdevHook) Start(ctx context.Context) (<-chan domain.KeyEvent, error) {
	devices, err := keyboardDevices()
	if err != nil || len(devices) == 0 {
		return nil, fmt.Errorf("no readable keyboard devices: %w", domain.ErrSourceUnavailable)
	}

	var files []*os.File
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			h.logger.Debug("cannot open input device", zap.String("device", dev), zap.Error(err))
			continue
		}
		if h.grab {
			if err := unix.IoctlSetInt(int(f.Fd()), unix.EVIOCGRAB, 1); err != nil {
				h.logger.Debug("cannot grab input device", zap.String("device", dev), zap.Error(err))
			}
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no accessible keyboard devices: %w", domain.ErrSourceUnavailable)
	}

	events := make(chan domain.KeyEvent, 64)
	h.mu.Lock()
	h.files = files
	h.events = events
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			h.read(f, events)
		}(f)
	}
	go func() {
		<-ctx.Done()
		h.Stop()
	}()
	go func() {
		wg.Wait()
		close(events)
	}()

	return events, nil
}

// Stop closes the devices, which unblocks the readers.
func (h *EvdevHook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.files {
		f.Close()
	}
	h.files = nil
	return nil
}

func (h *EvdevHook) read(f *os.File, events chan<- domain.KeyEvent) {
	buf := make([]byte, inputEventSize)
	for {
		if _, err := readFull(f, buf); err != nil {
			return
		}
		ev := decodeEvent(buf)
		if ev.Type != evKey {
			continue
		}
		h.handleKey(ev, events)
	}
}

func (h *EvdevHook) handleKey(ev inputEvent, events chan<- domain.KeyEvent) {
	if h.trackModifier(ev.Code, ev.Value) {
		return
	}
	if ev.Value != keyPress {
		return
	}
	name, ok := keyNames[ev.Code]
	if !ok {
		return
	}

	h.modMu.Lock()
	key := domain.KeyEvent{
		Key:   name,
		Ctrl:  h.ctrl > 0,
		Shift: h.shift > 0,
		Alt:   h.alt > 0,
		Meta:  h.meta > 0,
		At:    time.Now(),
	}
	h.modMu.Unlock()

	select {
	case events <- key:
	default:
		// Drop rather than block the device reader.
	}
}

// trackModifier maintains held-modifier counts. Returns true when the
// code is a modifier.
func (h *EvdevHook) trackModifier(code uint16, value int32) bool {
	var counter *int
	switch code {
	case keyLeftCtrl, keyRightCtrl:
		counter = &h.ctrl
	case keyLeftShift, keyRightShift:
		counter = &h.shift
	case keyLeftAlt, keyRightAlt:
		counter = &h.alt
	case keyLeftMeta, keyRightMeta:
		counter = &h.meta
	default:
		return false
	}

	h.modMu.Lock()
	defer h.modMu.Unlock()
	switch value {
	case keyPress:
		*counter++
	case 0: // release
		if *counter > 0 {
			*counter--
		}
	}
	return true
}

func decodeEvent(buf []byte) inputEvent {
	return inputEvent{
		Sec:   int64(binary.LittleEndian.Uint64(buf[0:8])),
		Usec:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

func readFull(f *os.File, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := f.Read(buf[read:])
		if err != nil {
			return read, err
		}
		read += n
	}
	return read, nil
}

// keyboardDevices parses /proc/bus/input/devices for handlers marked
// "kbd" and returns their /dev/input event nodes.
func keyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "H: Handlers=") {
			continue
		}
		if !strings.Contains(line, "kbd") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if strings.HasPrefix(field, "event") {
				devices = append(devices, "/dev/input/"+field)
			}
		}
	}
	return devices, scanner.Err()
}

var _ domain.KeyboardHook = (*EvdevHook)(nil)
