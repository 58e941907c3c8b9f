// Package sim runs the mouse core against simulated buttons and sensor.
//
// A Harness owns one controller and advances a tick counter by a fixed
// increment per Step, the way a host polling loop would. Output is fully
// determined by the input sequence, so runs can be replayed and compared.
package sim

import (
	"log/slog"

	"tinygo.org/x/drivers"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sensor"
)

// DefaultIncrement is the tick advance per Step. It matches a 1 ms host loop.
const DefaultIncrement = 8

// Input is what the host samples before one Step.
type Input struct {
	// Debounced levels. Used unless the harness runs in raw mode.
	Left  bool `json:"left"`
	Right bool `json:"right"`

	// Contact levels. Used in raw mode only.
	Raw [buttons.NumChannels]buttons.RawChannel `json:"raw"`

	Tracking bool `json:"tracking"`

	// Motion read from the sensor on this tick.
	DX int16 `json:"dx"`
	DY int16 `json:"dy"`
}

// Frame records one Step.
type Frame struct {
	Tick      uint32               `json:"tick"`
	Input     Input                `json:"input"`
	Left      bool                 `json:"left"`  // debounced, before masking
	Right     bool                 `json:"right"` // debounced, before masking
	Output    mouse.Output         `json:"output"`
	DX        int16                `json:"dx"` // motion reported to the host
	DY        int16                `json:"dy"`
	Report    bool                 `json:"report"` // a HID report would be sent
	State     mouse.State          `json:"state"`
	Animation mouse.AnimationState `json:"animation"`
	Params    mouse.Params         `json:"params"`
}

// Config configures a Harness. Zero values select defaults.
type Config struct {
	Increment     uint8
	Raw           bool
	Policy        buttons.Policy
	DebounceDelay uint16

	Store      mouse.Store
	Bootloader mouse.Bootloader

	// Bus receives sensor register writes. Nil uses an in-memory
	// sensor.Registers.
	Bus    drivers.SPI
	Logger *slog.Logger
}

// Harness drives a mouse.Controller one tick at a time. It is not safe for
// concurrent use.
type Harness struct {
	cfg       Config
	logger    *slog.Logger
	tick      uint32
	debouncer *buttons.Debouncer
	ctrl      *mouse.Controller
	applier   *sensor.Applier
	regs      *sensor.Registers

	prevLeft, prevRight bool
}

// New returns a harness at tick zero with a freshly constructed controller.
func New(cfg Config) *Harness {
	if cfg.Increment == 0 {
		cfg.Increment = DefaultIncrement
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Harness{cfg: cfg, logger: logger}
	bus := cfg.Bus
	if bus == nil {
		h.regs = &sensor.Registers{}
		bus = h.regs
	}
	h.debouncer = buttons.New(cfg.Policy)
	h.debouncer.SetDebounceDelay(cfg.DebounceDelay)
	h.ctrl = mouse.NewController(mouse.Options{
		Store:      cfg.Store,
		Bootloader: cfg.Bootloader,
		Logger:     logger.With("component", "mouse"),
	})
	h.applier = sensor.NewApplier(bus, logger.With("component", "sensor"))
	return h
}

// Step advances one tick and returns what happened.
func (h *Harness) Step(in Input) Frame {
	h.tick += uint32(h.cfg.Increment)

	left, right := in.Left, in.Right
	if h.cfg.Raw {
		h.debouncer.Step(h.cfg.Increment, in.Raw)
		left, right = h.debouncer.Levels()
	}

	out := h.ctrl.Step(h.tick, left, right, in.Tracking)

	dx, dy := in.DX, in.DY
	if out.Override {
		dx, dy = out.DX, out.DY
	}

	params := h.ctrl.Params()
	if err := h.applier.Apply(params); err != nil {
		h.logger.Error("failed to apply sensor params", "error", err)
	}

	report := out.Left != h.prevLeft || out.Right != h.prevRight || dx != 0 || dy != 0
	h.prevLeft, h.prevRight = out.Left, out.Right

	return Frame{
		Tick:      h.tick,
		Input:     in,
		Left:      left,
		Right:     right,
		Output:    out,
		DX:        dx,
		DY:        dy,
		Report:    report,
		State:     h.ctrl.State(),
		Animation: h.ctrl.Animation(),
		Params:    params,
	}
}

// Tick returns the tick of the last Step.
func (h *Harness) Tick() uint32 { return h.tick }

// Params returns the controller's current parameters.
func (h *Harness) Params() mouse.Params { return h.ctrl.Params() }

// Snapshot returns the controller's observable state.
func (h *Harness) Snapshot() mouse.Snapshot { return h.ctrl.Snapshot() }

// Registers returns the simulated sensor, or nil when Config.Bus was set.
func (h *Harness) Registers() *sensor.Registers { return h.regs }

// Replay runs inputs through a new harness built from cfg.
func Replay(cfg Config, inputs []Input) []Frame {
	h := New(cfg)
	frames := make([]Frame, 0, len(inputs))
	for _, in := range inputs {
		frames = append(frames, h.Step(in))
	}
	return frames
}
