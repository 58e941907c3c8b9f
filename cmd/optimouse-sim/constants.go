package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_ESC = 1
	KEY_A   = 30
	KEY_S   = 31
	KEY_L   = 38
	KEY_Z   = 44
	KEY_X   = 45
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Input sources
const (
	inputEvdev  = "evdev"
	inputTTY    = "tty"
	inputScript = "script"
	inputNone   = "none"
)

const (
	defaultTickIntervalUS = 1000 // one host poll per millisecond
	defaultSocketPath     = "/tmp/optimouse.sock"
	defaultStateWSPort    = 3002
	defaultStateWSPath    = "/ws/state"
	defaultCoalesceMS     = 50
	defaultEventQueue     = 64
	defaultBroadcastQueue = 256

	// Synthetic sensor motion per tick while tracking.
	syntheticDX = 1
	syntheticDY = -1

	ipcReplyTimeoutMS = 1000
)
