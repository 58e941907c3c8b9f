package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The loop owns DaemonState and the harness inside it. Every other goroutine
// talks to it through the events channel:
//   - input readers and IPC send level changes and queries
//   - the websocket server asks for state_init snapshots
//   - the ticker drives one harness Step per host poll
//
// Broadcasts produced by Reduce are forwarded to the websocket broadcaster
// without blocking; if it falls behind, frames are dropped.
//
// ============================================================================

// runDaemon runs the loop until ctx is canceled, the events channel is closed
// or a reduction asks to stop. It returns the reason it stopped.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	broadcasts chan<- StateBroadcast,
	interval time.Duration,
	logger *slog.Logger,
) StopReason {
	if state == nil || state.Harness == nil {
		logger.Error("daemon state is nil")
		return StopNone
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var eventQueue []Event
	var dropped int

	publish := func(bs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case broadcasts <- b:
			default:
				dropped++
				if dropped == 1 || dropped%1000 == 0 {
					logger.Debug("broadcast queue full, dropping", "dropped", dropped)
				}
			}
		}
	}

	// Reduce all queued events. Returns the first stop request.
	flushEvents := func() StopReason {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			publish(rr.Broadcasts)
			if rr.Stop != StopNone {
				eventQueue = nil
				return rr.Stop
			}
		}
		return StopNone
	}

	logger.Info("daemon starting", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return StopNone

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return StopNone
			}
			eventQueue = append(eventQueue, TimedEvent{Event: ev, At: time.Now()})

		case now := <-ticker.C:
			eventQueue = append(eventQueue, Tick{Now: now})
		}

		if reason := flushEvents(); reason != StopNone {
			switch reason {
			case StopBootloader:
				snap := state.Snapshot()
				logger.Warn("bootloader requested, stopping", "tick", snap.Tick, "params", snap.Params)
			default:
				logger.Info("daemon stopping", "reason", reason)
			}
			return reason
		}
	}
}
