package mouse

import (
	"fmt"
	"log/slog"

	"optimouse/internal/mathx"
)

// State is the top-level controller state.
type State uint8

const (
	StatePowerOn State = iota
	StateIdle
	StateCpi
	StateShowCpiDigits
	StateWaitForRelease
)

func (s State) String() string {
	switch s {
	case StatePowerOn:
		return "power_on"
	case StateIdle:
		return "idle"
	case StateCpi:
		return "cpi"
	case StateShowCpiDigits:
		return "show_cpi_digits"
	case StateWaitForRelease:
		return "wait_for_release"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Output is the result of one controller tick.
//
// When Override is set, DX and DY replace the sensor's motion for the tick
// and both buttons are reported released.
type Output struct {
	Left     bool  `json:"left"`
	Right    bool  `json:"right"`
	Override bool  `json:"override"`
	DX       int16 `json:"dx"`
	DY       int16 `json:"dy"`
}

// Snapshot is a read-only view of the controller for diagnostics.
type Snapshot struct {
	State       State          `json:"state"`
	Animation   AnimationState `json:"animation"`
	Destination State          `json:"destination"`
	Params      Params         `json:"params"`
}

// Options configures a Controller. Nil fields fall back to defaults: an
// in-memory store that always loads DefaultParams, a bootloader that does
// nothing and a discarding logger.
type Options struct {
	Store      Store
	Bootloader Bootloader
	Logger     *slog.Logger
}

// Controller is the mouse's top-level state machine. It is not safe for
// concurrent use; the caller owns it and calls Step once per tick.
type Controller struct {
	store  Store
	boot   Bootloader
	logger *slog.Logger

	state  State
	dest   State
	params Params
	loaded bool

	bootPressed bool
	bootPressAt uint32

	mode ModeChangeDetector
	cpi  CpiStepper
	anim animationEngine
}

type defaultStore struct{}

func (defaultStore) Load() Params { return DefaultParams() }
func (defaultStore) Save(Params)  {}

// NewController returns a controller in StatePowerOn. Persisted parameters
// are loaded on the first Step.
func NewController(opts Options) *Controller {
	c := &Controller{
		store:  opts.Store,
		boot:   opts.Bootloader,
		logger: opts.Logger,
		state:  StatePowerOn,
		dest:   StateIdle,
		params: DefaultParams(),
		mode:   NewModeChangeDetector(ModeChangeHold),
		cpi:    NewCpiStepper(),
	}
	if c.store == nil {
		c.store = defaultStore{}
	}
	if c.boot == nil {
		c.boot = BootloaderFunc(func() {})
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Params returns the current configuration. The sensor layer reads it after
// every Step.
func (c *Controller) Params() Params { return c.params }

// State returns the current top-level state.
func (c *Controller) State() State { return c.state }

// Animation returns the animation phase, AnimIdle when nothing plays.
func (c *Controller) Animation() AnimationState { return c.anim.phase }

// Snapshot returns the controller's observable state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:       c.state,
		Animation:   c.anim.phase,
		Destination: c.dest,
		Params:      c.params,
	}
}

// Step advances the controller by one tick. left and right are debounced
// button levels; tracking reports adequate surface-tracking quality.
func (c *Controller) Step(now uint32, left, right, tracking bool) Output {
	if c.anim.active() {
		dx, dy, done := c.anim.step(now)
		if done {
			c.logger.Debug("animation done", "pattern", c.anim.plan.Pattern, "next", c.anim.plan.Next)
			c.enter(c.anim.plan.Next)
		}
		return Output{Override: true, DX: dx, DY: dy}
	}

	switch c.state {
	case StatePowerOn:
		c.powerOn(now, left, right)
		return Output{}

	case StateIdle:
		if c.mode.Update(now, left, right, tracking) {
			c.logger.Info("entering cpi mode", "cpi", c.params.CPI)
			c.showDigits(now, StateCpi)
		}
		return Output{Left: left, Right: right}

	case StateCpi:
		if c.mode.Update(now, left, right, tracking) {
			c.logger.Info("leaving cpi mode", "cpi", c.params.CPI)
			c.save()
			c.showDigits(now, StateIdle)
			return Output{}
		}
		next, step := c.cpi.Update(left, right, tracking, c.params.CPI)
		if step != NoStep {
			c.logger.Debug("cpi step", "step", step, "from", c.params.CPI, "to", next)
			c.params.CPI = next
			c.save()
			c.startAnimation(now, stepPlan(step))
		}
		return Output{}

	case StateShowCpiDigits:
		c.startAnimation(now, Animate(PatternSpikeUp).
			WithLength(SpikeShortLength).
			WithDuration(SpikeIndicationDuration).
			WithRepeat(int8(c.params.CPI%1000/100)).
			WithPause(SpikeIndicationDuration).
			WithLeadIn(SpikeIndicationDuration).
			Then(StateWaitForRelease))
		return Output{}

	case StateWaitForRelease:
		if !left && !right {
			c.enter(c.dest)
		}
		return Output{}

	default:
		panic(fmt.Sprintf("mouse: unhandled controller state %d", uint8(c.state)))
	}
}

func (c *Controller) powerOn(now uint32, left, right bool) {
	if !c.loaded {
		c.params = c.store.Load()
		c.loaded = true
		c.logger.Info("loaded parameters", "params", c.params)
	}

	if !c.bootPressed {
		var plan AnimationPlan
		switch {
		case left && right:
			c.params.AngleSnap = false
			c.params.LiftOff = DefaultLiftOff
			plan = squarePlan(PatternSquareInverted)
		case left:
			c.params.AngleSnap = true
			plan = squarePlan(PatternSquare)
		case right:
			c.params.LiftOff = AltLiftOff
			plan = squarePlan(PatternSquare)
		default:
			c.enter(StateIdle)
			return
		}
		c.logger.Info("power-on chord", "left", left, "right", right, "params", c.params)
		c.save()
		c.bootPressed = true
		c.bootPressAt = now
		c.startAnimation(now, plan)
		return
	}

	switch {
	case !left && !right:
		c.enter(StateIdle)
	case left && right && mathx.TicksSince(now, c.bootPressAt) > BootloaderHold:
		c.params = DefaultParams()
		c.save()
		c.logger.Warn("entering bootloader", "params", c.params)
		c.boot.EnterBootloader()
		// Only simulated bootloaders return.
		c.bootPressed = false
		c.dest = StateIdle
		c.enter(StateWaitForRelease)
	}
}

// showDigits plays the thousands digit of the CPI as right spikes, then the
// hundreds digit as up spikes, and finally waits for release before entering
// dest.
func (c *Controller) showDigits(now uint32, dest State) {
	c.dest = dest
	c.startAnimation(now, Animate(PatternSpikeRight).
		WithLength(SpikeShortLength).
		WithDuration(SpikeIndicationDuration).
		WithRepeat(int8(c.params.CPI/1000)).
		WithPause(SpikeIndicationDuration).
		Then(StateShowCpiDigits))
}

func (c *Controller) startAnimation(now uint32, plan AnimationPlan) {
	if !c.anim.start(now, plan) {
		c.logger.Debug("animation skipped", "pattern", plan.Pattern, "next", plan.Next)
		c.enter(plan.Next)
		return
	}
	c.logger.Debug("animation start",
		"pattern", plan.Pattern,
		"repeat", plan.Repeat,
		"interval", plan.Interval(),
		"next", plan.Next,
	)
}

func (c *Controller) enter(s State) {
	if s != c.state {
		c.logger.Debug("state", "from", c.state, "to", s)
	}
	c.state = s
}

func (c *Controller) save() {
	c.store.Save(c.params)
}

func squarePlan(p Pattern) AnimationPlan {
	return Animate(p).
		WithLength(SquareLength).
		WithDuration(SquareDuration).
		WithLeadIn(SquareLeadIn).
		Then(StatePowerOn)
}

func stepPlan(s CpiStep) AnimationPlan {
	var plan AnimationPlan
	switch s {
	case SmallIncrease, LargeIncrease:
		plan = Animate(PatternSpikeUp)
	case SmallDecrease, LargeDecrease:
		plan = Animate(PatternSpikeDown)
	default:
		panic(fmt.Sprintf("mouse: no animation for cpi step %d", int8(s)))
	}
	length := int16(SpikeShortLength)
	if s == LargeIncrease || s == LargeDecrease {
		length = SpikeLongLength
	}
	return plan.WithLength(length).WithDuration(SpikeDuration).Then(StateCpi)
}
