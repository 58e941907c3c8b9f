package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from r and sends them to a channel.
// This runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(r io.Reader, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- ev
	}
}

// keyMapper turns key transitions into daemon events.
//
// Z and X are the left and right buttons, L held means the sensor is on a
// surface and Esc quits. In raw mode A/Z drive the left switch's top and
// bottom contacts and S/X the right switch's.
type keyMapper struct {
	raw  bool
	held map[uint16]bool
}

func newKeyMapper(raw bool) *keyMapper {
	return &keyMapper{raw: raw, held: make(map[uint16]bool)}
}

// fromInputEvent translates one evdev event. Autorepeat is ignored.
func (k *keyMapper) fromInputEvent(ev inputEvent) (Event, bool) {
	if ev.Type != EV_KEY {
		return nil, false
	}
	switch ev.Value {
	case evValuePress:
		return k.translate(ev.Code, true)
	case evValueRelease:
		return k.translate(ev.Code, false)
	default:
		return nil, false
	}
}

// toggle flips a key, for sources that only report presses.
func (k *keyMapper) toggle(code uint16) (Event, bool) {
	return k.translate(code, !k.held[code])
}

func (k *keyMapper) translate(code uint16, down bool) (Event, bool) {
	if code == KEY_ESC {
		if down {
			return Quit{}, true
		}
		return nil, false
	}
	if k.held[code] == down {
		return nil, false
	}
	k.held[code] = down

	if code == KEY_L {
		return SetTracking{Tracking: down}, true
	}

	if k.raw {
		switch code {
		case KEY_A, KEY_Z:
			return SetRaw{Button: "left", Top: k.held[KEY_A], Bottom: k.held[KEY_Z]}, true
		case KEY_S, KEY_X:
			return SetRaw{Button: "right", Top: k.held[KEY_S], Bottom: k.held[KEY_X]}, true
		}
		return nil, false
	}

	switch code {
	case KEY_Z:
		return SetButtons{Left: BoolPtr(down)}, true
	case KEY_X:
		return SetButtons{Right: BoolPtr(down)}, true
	}
	return nil, false
}

// runEvdevInput reads keyboards and feeds the daemon until ctx is canceled or
// a device fails.
func runEvdevInput(ctx context.Context, devices []string, raw bool, events chan<- Event, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", dev, err)
		}
		files = append(files, f)
	}

	raws := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readDevices(files, raws, readErr)

	logger.Info("evdev input started", "devices", devices, "raw", raw)
	keys := newKeyMapper(raw)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			return fmt.Errorf("input reader stopped: %w", err)

		case iev := <-raws:
			ev, ok := keys.fromInputEvent(iev)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
