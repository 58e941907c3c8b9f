package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"optimouse/internal/buttons"
	"optimouse/internal/sim"
)

// ============================================================================
// Lua scenarios
// ============================================================================
// A scenario drives a harness without a wall clock, so a script produces the
// same frames on every run. Globals:
//
//   press(btn)              btn is "left", "right" or "both"
//   release([btn])          default "both"
//   lift() / place()        sensor off / on a surface
//   raw(btn, top, bottom)   set contact levels (raw mode)
//   wait(ticks)             advance at least ticks
//   wait_for(state, max)    advance until the controller enters state
//   params()                {cpi=, angle_snap=, lift_off=}
//   state()                 controller state name
//   tick()                  current tick
//   expect_cpi(n)           fail unless the CPI is n
//   expect_state(state)     fail unless the controller is in state
// ============================================================================

// scenario is the Go side of a running script.
type scenario struct {
	h         *sim.Harness
	inc       int
	in        sim.Input
	synthetic bool

	trace  *json.Encoder
	logger *slog.Logger
}

// ScenarioConfig configures runScript.
type ScenarioConfig struct {
	Harness         sim.Config
	SyntheticMotion bool
	Trace           io.Writer // nil disables frame tracing
	Logger          *slog.Logger
}

func newScenario(cfg ScenarioConfig) *scenario {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	inc := int(cfg.Harness.Increment)
	if inc == 0 {
		inc = sim.DefaultIncrement
	}
	sc := &scenario{
		h:         sim.New(cfg.Harness),
		inc:       inc,
		synthetic: cfg.SyntheticMotion,
		logger:    logger,
	}
	for i := range sc.in.Raw {
		sc.in.Raw[i] = releasedContacts
	}
	if cfg.Trace != nil {
		sc.trace = json.NewEncoder(cfg.Trace)
	}
	return sc
}

// runScript executes the scenario in path.
func runScript(ctx context.Context, path string, cfg ScenarioConfig) error {
	sc := newScenario(cfg)
	if err := sc.run(ctx, func(L *lua.LState) error { return L.DoFile(path) }); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// runScriptString executes src, naming it name in errors.
func runScriptString(ctx context.Context, name, src string, cfg ScenarioConfig) error {
	sc := newScenario(cfg)
	if err := sc.run(ctx, func(L *lua.LState) error { return L.DoString(src) }); err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

func (sc *scenario) run(ctx context.Context, exec func(*lua.LState) error) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	L.SetContext(ctx)

	for name, fn := range map[string]lua.LGFunction{
		"press":        sc.luaPress,
		"release":      sc.luaRelease,
		"lift":         sc.luaLift,
		"place":        sc.luaPlace,
		"raw":          sc.luaRaw,
		"wait":         sc.luaWait,
		"wait_for":     sc.luaWaitFor,
		"params":       sc.luaParams,
		"state":        sc.luaState,
		"tick":         sc.luaTick,
		"expect_cpi":   sc.luaExpectCPI,
		"expect_state": sc.luaExpectState,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	sc.logger.Debug("script starting")
	if err := exec(L); err != nil {
		return err
	}
	snap := sc.h.Snapshot()
	sc.logger.Info("script finished", "tick", sc.h.Tick(), "state", snap.State, "params", snap.Params)
	return nil
}

// step advances the harness by one tick.
func (sc *scenario) step() sim.Frame {
	in := sc.in
	if sc.synthetic && in.Tracking {
		in.DX, in.DY = syntheticDX, syntheticDY
	}
	f := sc.h.Step(in)
	if sc.trace != nil {
		if err := sc.trace.Encode(f); err != nil {
			sc.logger.Warn("trace write failed", "error", err)
			sc.trace = nil
		}
	}
	return f
}

// setButtons updates the levels named by btn.
func (sc *scenario) setButtons(L *lua.LState, btn string, down bool) {
	switch btn {
	case "left":
		sc.in.Left = down
		sc.in.Raw[buttons.Left] = contactsFor(down)
	case "right":
		sc.in.Right = down
		sc.in.Raw[buttons.Right] = contactsFor(down)
	case "both":
		sc.in.Left, sc.in.Right = down, down
		sc.in.Raw[buttons.Left] = contactsFor(down)
		sc.in.Raw[buttons.Right] = contactsFor(down)
	default:
		L.ArgError(1, fmt.Sprintf("unknown button %q (must be left, right or both)", btn))
	}
}

func (sc *scenario) luaPress(L *lua.LState) int {
	sc.setButtons(L, L.CheckString(1), true)
	return 0
}

func (sc *scenario) luaRelease(L *lua.LState) int {
	sc.setButtons(L, L.OptString(1, "both"), false)
	return 0
}

func (sc *scenario) luaLift(L *lua.LState) int {
	sc.in.Tracking = false
	return 0
}

func (sc *scenario) luaPlace(L *lua.LState) int {
	sc.in.Tracking = true
	return 0
}

func (sc *scenario) luaRaw(L *lua.LState) int {
	ch, err := parseButton(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	sc.in.Raw[ch] = buttons.RawChannel{Top: L.CheckBool(2), Bottom: L.CheckBool(3)}
	return 0
}

func (sc *scenario) luaWait(L *lua.LState) int {
	ticks := L.CheckInt(1)
	if ticks < 0 {
		L.ArgError(1, "ticks must be >= 0")
		return 0
	}
	for n := (ticks + sc.inc - 1) / sc.inc; n > 0; n-- {
		sc.step()
	}
	return 0
}

func (sc *scenario) luaWaitFor(L *lua.LState) int {
	want := L.CheckString(1)
	limit := L.OptInt(2, 1_000_000)
	for waited := 0; waited <= limit; waited += sc.inc {
		if sc.h.Snapshot().State.String() == want {
			L.Push(lua.LNumber(waited))
			return 1
		}
		sc.step()
	}
	L.RaiseError("state %s not reached within %d ticks (in %s)", want, limit, sc.h.Snapshot().State)
	return 0
}

func (sc *scenario) luaParams(L *lua.LState) int {
	p := sc.h.Params()
	t := L.NewTable()
	t.RawSetString("cpi", lua.LNumber(p.CPI))
	t.RawSetString("angle_snap", lua.LBool(p.AngleSnap))
	t.RawSetString("lift_off", lua.LNumber(p.LiftOff))
	L.Push(t)
	return 1
}

func (sc *scenario) luaState(L *lua.LState) int {
	L.Push(lua.LString(sc.h.Snapshot().State.String()))
	return 1
}

func (sc *scenario) luaTick(L *lua.LState) int {
	L.Push(lua.LNumber(sc.h.Tick()))
	return 1
}

func (sc *scenario) luaExpectCPI(L *lua.LState) int {
	want := L.CheckInt(1)
	if got := int(sc.h.Params().CPI); got != want {
		L.RaiseError("expected cpi %d, got %d at tick %d", want, got, sc.h.Tick())
	}
	return 0
}

func (sc *scenario) luaExpectState(L *lua.LState) int {
	want := L.CheckString(1)
	if got := sc.h.Snapshot().State.String(); got != want {
		L.RaiseError("expected state %s, got %s at tick %d", want, got, sc.h.Tick())
	}
	return 0
}
