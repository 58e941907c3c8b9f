package sim

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sensor"
	"optimouse/internal/store"
)

func TestHarness_TickIncrement(t *testing.T) {
	h := New(Config{})
	h.Step(Input{Tracking: true})
	h.Step(Input{Tracking: true})
	if h.Tick() != 2*DefaultIncrement {
		t.Errorf("tick = %d, want %d", h.Tick(), 2*DefaultIncrement)
	}

	h = New(Config{Increment: 1})
	h.Step(Input{})
	if h.Tick() != 1 {
		t.Errorf("tick = %d, want 1", h.Tick())
	}
}

func TestHarness_PassThrough(t *testing.T) {
	h := New(Config{})
	h.Step(Input{Tracking: true})

	f := h.Step(Input{Left: true, Tracking: true, DX: 3, DY: -2})
	if f.State != mouse.StateIdle {
		t.Fatalf("state = %v, want idle", f.State)
	}
	if !f.Output.Left || f.Output.Override {
		t.Errorf("output = %+v, want left pressed without override", f.Output)
	}
	if f.DX != 3 || f.DY != -2 {
		t.Errorf("motion = (%d, %d), want sensor motion (3, -2)", f.DX, f.DY)
	}
	if !f.Report {
		t.Error("button change should produce a report")
	}

	f = h.Step(Input{Left: true, Tracking: true})
	if f.Report {
		t.Error("no change and no motion should not produce a report")
	}
}

func TestHarness_RawMode(t *testing.T) {
	h := New(Config{Raw: true})
	rest := [buttons.NumChannels]buttons.RawChannel{{Top: true}, {Top: true}}
	h.Step(Input{Raw: rest, Tracking: true})

	pressLeft := rest
	pressLeft[buttons.Left] = buttons.RawChannel{Bottom: true}
	f := h.Step(Input{Raw: pressLeft, Tracking: true})
	if !f.Left || !f.Output.Left {
		t.Fatalf("frame = %+v, want left pressed", f)
	}

	// Bounce between contacts: neither contact closed keeps the level.
	floating := rest
	floating[buttons.Left] = buttons.RawChannel{}
	if f = h.Step(Input{Raw: floating, Tracking: true}); !f.Left {
		t.Error("left released while floating between contacts")
	}
	if f = h.Step(Input{Raw: rest, Tracking: true}); f.Left {
		t.Error("left still pressed at rest")
	}
}

func TestHarness_AppliesSensorParams(t *testing.T) {
	h := New(Config{})
	h.Step(Input{Tracking: true})
	regs := h.Registers()
	if regs == nil {
		t.Fatal("expected simulated registers")
	}
	if got := regs.Get(sensor.RegResolution); got != sensor.ResolutionValue(mouse.DefaultCPI) {
		t.Errorf("resolution register = %d, want %d", got, sensor.ResolutionValue(mouse.DefaultCPI))
	}
	h.Step(Input{Tracking: true})
	if n := len(regs.Writes()); n != 3 {
		t.Errorf("register writes = %d, want 3", n)
	}
}

func TestHarness_CpiAdjustment(t *testing.T) {
	mem := store.NewMemory()
	h := New(Config{Store: mem})
	h.Step(Input{Tracking: true})

	// Lift and hold both until the mode changes, then wait out the digits.
	h.Step(Input{})
	var f Frame
	for range int(mouse.ModeChangeHold)/DefaultIncrement + 2 {
		f = h.Step(Input{Left: true, Right: true})
	}
	if f.Animation == mouse.AnimIdle && f.State == mouse.StateIdle {
		t.Fatalf("mode change did not fire: %+v", f)
	}
	for i := 0; f.State != mouse.StateWaitForRelease || f.Animation != mouse.AnimIdle; i++ {
		if i > 100_000 {
			t.Fatal("digit display did not finish")
		}
		animating := f.Animation != mouse.AnimIdle
		f = h.Step(Input{Left: true, Right: true, DX: 5})
		if animating && (!f.Output.Override || f.DX == 5) {
			t.Fatalf("sensor motion leaked through an animation: %+v", f)
		}
	}
	if f = h.Step(Input{Tracking: true}); f.State != mouse.StateCpi {
		t.Fatalf("state = %v, want cpi", f.State)
	}

	h.Step(Input{Tracking: true})
	h.Step(Input{Right: true, Tracking: true})
	f = h.Step(Input{Tracking: true})
	if f.Params.CPI != 900 {
		t.Fatalf("cpi = %d, want 900", f.Params.CPI)
	}
	if mem.Load().CPI != 900 {
		t.Errorf("stored cpi = %d, want 900", mem.Load().CPI)
	}
	if got := h.Registers().Get(sensor.RegResolution); got != sensor.ResolutionValue(900) {
		t.Errorf("resolution register = %d, want %d", got, sensor.ResolutionValue(900))
	}
}

func TestReplay_Deterministic(t *testing.T) {
	var inputs []Input
	inputs = append(inputs, Input{Left: true, Tracking: true})
	for i := range 20_000 {
		in := Input{Tracking: i%7 != 0, DX: int16(i % 3)}
		switch {
		case i > 2000 && i < 6000:
			in = Input{Left: true, Right: true}
		case i%50 < 5:
			in.Right = true
		}
		inputs = append(inputs, in)
	}

	a := Replay(Config{}, inputs)
	b := Replay(Config{}, inputs)
	if !slices.Equal(a, b) {
		t.Error("replay of identical input differs")
	}
}

func TestFrame_JSON(t *testing.T) {
	h := New(Config{})
	data, err := json.Marshal(h.Step(Input{Tracking: true}))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"state":"idle"`, `"animation":"idle"`, `"cpi":800`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("frame JSON missing %s: %s", want, data)
		}
	}
}
