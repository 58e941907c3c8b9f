package main

import (
	"time"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sim"
)

// This file implements the reducer-style building blocks of the daemon:
//
//   - Events: inputs to the reducer (levels, queries, time ticks)
//   - Broadcasts: state changes for websocket clients
//   - Reduce(): folds one event into DaemonState
//
// Reduce does no I/O. Replies to queries go to buffered channels and never
// block.

// Tick is emitted by the daemon loop at the host poll cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// TimedEvent stamps an event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// StateBroadcast is a state change published to websocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastFrame carries a frame whose observable output differs from the
// previous one.
type BroadcastFrame struct {
	Frame sim.Frame
	At    time.Time
}

func (BroadcastFrame) broadcastMarker() {}

// BroadcastParamsChanged carries new mouse parameters.
type BroadcastParamsChanged struct {
	Params mouse.Params
	At     time.Time
}

func (BroadcastParamsChanged) broadcastMarker() {}

// StopReason says why the daemon loop must exit.
type StopReason string

const (
	StopNone       StopReason = ""
	StopQuit       StopReason = "quit"
	StopBootloader StopReason = "bootloader"
)

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	Broadcasts []StateBroadcast
	Stop       StopReason
}

// Reduce applies e to s.
func Reduce(s *DaemonState, e Event) ReduceResult {
	var rr ReduceResult

	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}

	switch ev := e.(type) {
	case Tick:
		if at.IsZero() {
			at = ev.Now
		}
		in := s.Input
		if s.SyntheticMotion && in.Tracking {
			in.DX, in.DY = syntheticDX, syntheticDY
		}
		f := s.Harness.Step(in)

		if !s.HaveFrame || frameChanged(s.Last, f) {
			rr.Broadcasts = append(rr.Broadcasts, BroadcastFrame{Frame: f, At: at})
		}
		if s.HaveFrame && f.Params != s.Last.Params {
			rr.Broadcasts = append(rr.Broadcasts, BroadcastParamsChanged{Params: f.Params, At: at})
		}
		s.Last = f
		s.HaveFrame = true

		if s.Boot.take() {
			rr.Stop = StopBootloader
		}

	case SetButtons:
		if ev.Left != nil {
			s.Input.Left = *ev.Left
			s.Input.Raw[buttons.Left] = contactsFor(*ev.Left)
		}
		if ev.Right != nil {
			s.Input.Right = *ev.Right
			s.Input.Raw[buttons.Right] = contactsFor(*ev.Right)
		}

	case SetRaw:
		ch, err := parseButton(ev.Button)
		if err != nil {
			break
		}
		s.Input.Raw[ch].Top = ev.Top
		s.Input.Raw[ch].Bottom = ev.Bottom

	case SetTracking:
		s.Input.Tracking = ev.Tracking

	case GetParams:
		if ev.Reply != nil {
			select {
			case ev.Reply <- s.Harness.Params():
			default:
			}
		}

	case RequestStateSnapshot:
		if ev.Reply != nil {
			select {
			case ev.Reply <- s.Snapshot():
			default:
			}
		}

	case Quit:
		rr.Stop = StopQuit

	default:
		// Unknown event type: no-op.
	}

	return rr
}

// frameChanged reports whether next differs from prev in anything a client
// would see, ignoring the tick counter and sensor motion passed through.
func frameChanged(prev, next sim.Frame) bool {
	return prev.Output != next.Output ||
		prev.Left != next.Left ||
		prev.Right != next.Right ||
		prev.State != next.State ||
		prev.Animation != next.Animation ||
		prev.Params != next.Params ||
		prev.Input.Tracking != next.Input.Tracking ||
		prev.Input.Raw != next.Input.Raw
}
