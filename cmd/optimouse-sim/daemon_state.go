package main

import (
	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sim"
)

// DaemonState is the daemon-owned state container. Only the daemon loop
// touches it; other goroutines see it through StateSnapshot and broadcasts.
type DaemonState struct {
	// Harness runs the mouse core. It advances one Step per Tick event.
	Harness *sim.Harness

	// Input holds the levels that will be sampled on the next tick.
	Input sim.Input

	// SyntheticMotion reports sensor motion on every tick while tracking.
	SyntheticMotion bool

	// Last is the most recent frame, valid once HaveFrame is set.
	Last      sim.Frame
	HaveFrame bool

	// Boot is set by the simulated bootloader during a Step.
	Boot *BootloaderRequest
}

// BootloaderRequest implements mouse.Bootloader by recording the request.
// The daemon loop stops after the tick on which it fired.
type BootloaderRequest struct {
	requested bool
}

func (b *BootloaderRequest) EnterBootloader() { b.requested = true }

// take reports and clears a pending request.
func (b *BootloaderRequest) take() bool {
	if b == nil || !b.requested {
		return false
	}
	b.requested = false
	return true
}

// releasedContacts is the contact pair of a switch at rest.
var releasedContacts = buttons.RawChannel{Top: true, Bottom: false}

// contactsFor returns the contact pair of a cleanly pressed or released switch.
func contactsFor(pressed bool) buttons.RawChannel {
	if pressed {
		return buttons.RawChannel{Top: false, Bottom: true}
	}
	return releasedContacts
}

// NewDaemonState returns a state with both switches at rest and the sensor
// off the surface.
func NewDaemonState(h *sim.Harness, synthetic bool, boot *BootloaderRequest) *DaemonState {
	s := &DaemonState{
		Harness:         h,
		SyntheticMotion: synthetic,
		Boot:            boot,
	}
	for i := range s.Input.Raw {
		s.Input.Raw[i] = releasedContacts
	}
	return s
}

// StateSnapshot is the externally visible view of the simulator.
type StateSnapshot struct {
	Tick        uint32               `json:"tick"`
	State       mouse.State          `json:"state"`
	Animation   mouse.AnimationState `json:"animation"`
	Destination mouse.State          `json:"destination"`
	Params      mouse.Params         `json:"params"`
	Input       sim.Input            `json:"input"`
	Output      mouse.Output         `json:"output"`
}

// Snapshot builds a StateSnapshot. Only the daemon loop may call it.
func (s *DaemonState) Snapshot() StateSnapshot {
	snap := s.Harness.Snapshot()
	out := StateSnapshot{
		Tick:        s.Harness.Tick(),
		State:       snap.State,
		Animation:   snap.Animation,
		Destination: snap.Destination,
		Params:      snap.Params,
		Input:       s.Input,
	}
	if s.HaveFrame {
		out.Output = s.Last.Output
	}
	return out
}
