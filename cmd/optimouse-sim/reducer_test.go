package main

import (
	"testing"
	"time"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sim"
	"optimouse/internal/store"
)

var t0 = time.Unix(1000, 0).UTC()

func newTestState(t *testing.T, cfg sim.Config) *DaemonState {
	t.Helper()
	boot := &BootloaderRequest{}
	cfg.Bootloader = boot
	return NewDaemonState(sim.New(cfg), false, boot)
}

func tick(s *DaemonState) ReduceResult {
	return Reduce(s, Tick{Now: t0})
}

// tickUntil ticks until cond holds and returns the last result.
func tickUntil(t *testing.T, s *DaemonState, max int, cond func(ReduceResult) bool) ReduceResult {
	t.Helper()
	for range max {
		rr := tick(s)
		if cond(rr) {
			return rr
		}
	}
	t.Fatalf("condition not met after %d ticks (state %v)", max, s.Harness.Snapshot().State)
	return ReduceResult{}
}

func frames(rr ReduceResult) []BroadcastFrame {
	var out []BroadcastFrame
	for _, b := range rr.Broadcasts {
		if f, ok := b.(BroadcastFrame); ok {
			out = append(out, f)
		}
	}
	return out
}

func paramsChanges(rr ReduceResult) []BroadcastParamsChanged {
	var out []BroadcastParamsChanged
	for _, b := range rr.Broadcasts {
		if p, ok := b.(BroadcastParamsChanged); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestReduce_Tick_BroadcastsFrameOnlyOnChange(t *testing.T) {
	s := newTestState(t, sim.Config{})

	// First frame is always published.
	rr := tick(s)
	fs := frames(rr)
	if len(fs) != 1 {
		t.Fatalf("expected 1 frame broadcast on first tick, got %d", len(fs))
	}
	if fs[0].Frame.State != mouse.StateIdle {
		t.Fatalf("expected idle after power-on, got %v", fs[0].Frame.State)
	}
	if !fs[0].At.Equal(t0) {
		t.Fatalf("expected broadcast timestamp %v, got %v", t0, fs[0].At)
	}
	if len(paramsChanges(rr)) != 0 {
		t.Fatalf("first tick must not report a params change")
	}

	// Nothing changed: no broadcast.
	if rr := tick(s); len(rr.Broadcasts) != 0 {
		t.Fatalf("expected 0 broadcasts when nothing changed, got %d (%T)", len(rr.Broadcasts), rr.Broadcasts[0])
	}

	// A button press changes the output.
	Reduce(s, SetButtons{Left: BoolPtr(true)})
	rr = tick(s)
	fs = frames(rr)
	if len(fs) != 1 {
		t.Fatalf("expected 1 frame broadcast after press, got %d", len(fs))
	}
	if !fs[0].Frame.Output.Left {
		t.Fatalf("expected left pressed in output, got %+v", fs[0].Frame.Output)
	}
}

func TestReduce_Tick_IgnoresSyntheticMotionForChangeDetection(t *testing.T) {
	s := newTestState(t, sim.Config{})
	s.SyntheticMotion = true

	Reduce(s, SetTracking{Tracking: true})
	rr := tick(s)
	if fs := frames(rr); len(fs) != 1 || fs[0].Frame.DX != syntheticDX || fs[0].Frame.DY != syntheticDY {
		t.Fatalf("expected first frame with synthetic motion, got %+v", rr.Broadcasts)
	}
	if rr := tick(s); len(rr.Broadcasts) != 0 {
		t.Fatalf("steady motion should not be rebroadcast, got %d", len(rr.Broadcasts))
	}
}

func TestReduce_Tick_ParamsChangedAfterCpiStep(t *testing.T) {
	mem := store.NewMemory()
	s := newTestState(t, sim.Config{Store: mem})

	tick(s) // power-on -> idle
	tick(s) // lifted and released arms the mode gesture

	Reduce(s, SetButtons{Left: BoolPtr(true), Right: BoolPtr(true)})
	tickUntil(t, s, 100_000, func(ReduceResult) bool {
		snap := s.Harness.Snapshot()
		return snap.State == mouse.StateWaitForRelease && snap.Animation == mouse.AnimIdle
	})

	Reduce(s, SetButtons{Left: BoolPtr(false), Right: BoolPtr(false)})
	tick(s)
	if got := s.Harness.Snapshot().State; got != mouse.StateCpi {
		t.Fatalf("expected cpi state, got %v", got)
	}

	Reduce(s, SetTracking{Tracking: true})
	tick(s)
	Reduce(s, SetButtons{Right: BoolPtr(true)})
	tick(s)
	Reduce(s, SetButtons{Right: BoolPtr(false)})
	rr := tick(s)

	pcs := paramsChanges(rr)
	if len(pcs) != 1 {
		t.Fatalf("expected 1 params_changed broadcast, got %d", len(pcs))
	}
	if pcs[0].Params.CPI != 900 {
		t.Fatalf("expected cpi 900, got %d", pcs[0].Params.CPI)
	}
	if len(frames(rr)) != 1 {
		t.Fatalf("params change should also publish a frame")
	}
	if mem.Load().CPI != 900 {
		t.Fatalf("expected stored cpi 900, got %d", mem.Load().CPI)
	}
}

func TestReduce_Tick_StopsOnBootloader(t *testing.T) {
	mem := store.NewMemory()
	mem.Save(mouse.Params{CPI: 3200, AngleSnap: true, LiftOff: 3})
	s := newTestState(t, sim.Config{Store: mem})

	Reduce(s, SetButtons{Left: BoolPtr(true), Right: BoolPtr(true)})
	rr := tickUntil(t, s, 20_000, func(rr ReduceResult) bool { return rr.Stop != StopNone })

	if rr.Stop != StopBootloader {
		t.Fatalf("expected bootloader stop, got %q", rr.Stop)
	}
	if got := s.Harness.Params(); got != mouse.DefaultParams() {
		t.Fatalf("expected factory params after bootloader, got %v", got)
	}
	if got := s.Harness.Snapshot().State; got != mouse.StateWaitForRelease {
		t.Fatalf("expected wait_for_release, got %v", got)
	}
}

func TestReduce_SetButtonsUpdatesContacts(t *testing.T) {
	s := newTestState(t, sim.Config{})

	Reduce(s, SetButtons{Right: BoolPtr(true)})
	if s.Input.Left || !s.Input.Right {
		t.Fatalf("unexpected levels: %+v", s.Input)
	}
	if s.Input.Raw[buttons.Right] != contactsFor(true) {
		t.Fatalf("right contacts = %+v, want pressed", s.Input.Raw[buttons.Right])
	}
	if s.Input.Raw[buttons.Left] != releasedContacts {
		t.Fatalf("left contacts = %+v, want released", s.Input.Raw[buttons.Left])
	}
}

func TestReduce_SetRaw(t *testing.T) {
	s := newTestState(t, sim.Config{Raw: true})

	Reduce(s, SetRaw{Button: "left", Top: false, Bottom: true})
	if got := s.Input.Raw[buttons.Left]; got != (buttons.RawChannel{Bottom: true}) {
		t.Fatalf("left contacts = %+v", got)
	}

	// Unknown buttons are ignored.
	before := s.Input
	Reduce(s, SetRaw{Button: "middle", Top: true, Bottom: true})
	if s.Input != before {
		t.Fatalf("unknown button changed input: %+v", s.Input)
	}

	tick(s)
	tick(s)
	if !s.Last.Left {
		t.Fatalf("debounced left should be pressed: %+v", s.Last)
	}
}

func TestReduce_Queries(t *testing.T) {
	s := newTestState(t, sim.Config{})
	tick(s)

	params := make(chan mouse.Params, 1)
	Reduce(s, TimedEvent{Event: GetParams{Reply: params}, At: t0})
	select {
	case p := <-params:
		if p != mouse.DefaultParams() {
			t.Fatalf("params = %v, want defaults", p)
		}
	default:
		t.Fatalf("expected params reply")
	}

	snaps := make(chan StateSnapshot, 1)
	Reduce(s, RequestStateSnapshot{Reply: snaps})
	select {
	case snap := <-snaps:
		if snap.Tick != sim.DefaultIncrement {
			t.Fatalf("snapshot tick = %d, want %d", snap.Tick, sim.DefaultIncrement)
		}
		if snap.State != mouse.StateIdle {
			t.Fatalf("snapshot state = %v, want idle", snap.State)
		}
	default:
		t.Fatalf("expected snapshot reply")
	}

	// A full reply channel must not block the reducer.
	full := make(chan mouse.Params, 1)
	full <- mouse.Params{}
	Reduce(s, GetParams{Reply: full})
	Reduce(s, GetParams{})
}

func TestReduce_Quit(t *testing.T) {
	s := newTestState(t, sim.Config{})
	if rr := Reduce(s, Quit{}); rr.Stop != StopQuit {
		t.Fatalf("expected quit stop, got %q", rr.Stop)
	}
}
