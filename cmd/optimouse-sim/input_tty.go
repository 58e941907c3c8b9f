package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
)

const ttyRefresh = 50 * time.Millisecond

// runTTYInput drives the simulator from a terminal. Terminals report key
// presses but not releases, so each key toggles its level. A status line
// shows inputs, outputs and parameters.
func runTTYInput(ctx context.Context, raw bool, events chan<- Event, logger *slog.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	// PollEvent returns nil once the screen is finalized.
	tevs := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case tevs <- ev:
			case <-done:
				return
			}
		}
	}()

	logger.Info("tty input started", "raw", raw)
	keys := newKeyMapper(raw)

	ticker := time.NewTicker(ttyRefresh)
	defer ticker.Stop()

	reply := make(chan StateSnapshot, 1)
	waiting := false

	drawHelp(screen, raw)
	screen.Show()

	for {
		select {
		case <-ctx.Done():
			return nil

		case tev := <-tevs:
			switch e := tev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				code, ok := ttyKeyCode(e)
				if !ok {
					continue
				}
				ev, ok := keys.toggle(code)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return nil
				}
			}

		case <-ticker.C:
			if waiting {
				continue
			}
			select {
			case events <- RequestStateSnapshot{Reply: reply}:
				waiting = true
			default:
			}

		case snap := <-reply:
			waiting = false
			screen.Clear()
			drawHelp(screen, raw)
			drawStatus(screen, snap)
			screen.Show()
		}
	}
}

// ttyKeyCode maps a terminal key to the evdev code it stands for.
func ttyKeyCode(e *tcell.EventKey) (uint16, bool) {
	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return KEY_ESC, true
	case tcell.KeyRune:
	default:
		return 0, false
	}
	switch unicode.ToLower(e.Rune()) {
	case 'z':
		return KEY_Z, true
	case 'x':
		return KEY_X, true
	case 'l':
		return KEY_L, true
	case 'a':
		return KEY_A, true
	case 's':
		return KEY_S, true
	}
	return 0, false
}

func drawHelp(s tcell.Screen, raw bool) {
	help := "optimouse  z/x: left/right  l: tracking  esc: quit"
	if raw {
		help = "optimouse  a/z: left top/bottom  s/x: right top/bottom  l: tracking  esc: quit"
	}
	putString(s, 0, 0, help, tcell.StyleDefault.Bold(true))
}

func drawStatus(s tcell.Screen, snap StateSnapshot) {
	in, out := snap.Input, snap.Output
	putString(s, 0, 2, fmt.Sprintf("IN  l=%d r=%d track=%d  raw l=%d%d r=%d%d",
		b2i(in.Left), b2i(in.Right), b2i(in.Tracking),
		b2i(in.Raw[0].Top), b2i(in.Raw[0].Bottom), b2i(in.Raw[1].Top), b2i(in.Raw[1].Bottom),
	), tcell.StyleDefault)
	putString(s, 0, 3, fmt.Sprintf("OUT l=%d r=%d override=%d x=%5d y=%5d",
		b2i(out.Left), b2i(out.Right), b2i(out.Override), out.DX, out.DY,
	), tcell.StyleDefault)
	putString(s, 0, 4, fmt.Sprintf("cpi=%d angle_snap=%d lift_off=%d",
		snap.Params.CPI, b2i(snap.Params.AngleSnap), snap.Params.LiftOff,
	), tcell.StyleDefault)
	putString(s, 0, 5, fmt.Sprintf("state=%s anim=%s tick=%d",
		snap.State, snap.Animation, snap.Tick,
	), tcell.StyleDefault.Dim(true))
}

func putString(s tcell.Screen, x, y int, str string, style tcell.Style) {
	for i, r := range []rune(str) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
