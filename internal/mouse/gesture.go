package mouse

import (
	"optimouse/internal/mathx"
)

type modeChangeState uint8

const (
	waitReleaseBoth modeChangeState = iota
	waitPressBoth
	waitTimeout
)

// ModeChangeDetector recognizes both buttons held for a while with the mouse
// lifted off the surface. The gesture is disabled while the sensor tracks.
type ModeChangeDetector struct {
	state modeChangeState
	start uint32
	hold  int32
}

// NewModeChangeDetector returns a detector that fires after hold ticks.
func NewModeChangeDetector(hold int32) ModeChangeDetector {
	return ModeChangeDetector{hold: hold}
}

// Update feeds one tick of debounced input and reports whether the gesture
// completed on this tick. It fires once per release, press, hold cycle.
func (m *ModeChangeDetector) Update(now uint32, left, right, tracking bool) bool {
	if tracking {
		m.state = waitReleaseBoth
		return false
	}

	switch m.state {
	case waitReleaseBoth:
		if !left && !right {
			m.state = waitPressBoth
		}
	case waitPressBoth:
		if left && right {
			m.state = waitTimeout
			m.start = now
		}
	case waitTimeout:
		if !(left && right) {
			m.state = waitReleaseBoth
		} else if mathx.TicksSince(now, m.start) > m.hold {
			m.state = waitReleaseBoth
			return true
		}
	}
	return false
}

// CpiStep is the outcome of one CpiStepper update.
type CpiStep int8

const (
	LargeDecrease CpiStep = -2
	SmallDecrease CpiStep = -1
	NoStep        CpiStep = 0
	SmallIncrease CpiStep = 1
	LargeIncrease CpiStep = 2
)

// Delta returns the CPI change the step asks for.
func (s CpiStep) Delta() int {
	switch s {
	case LargeDecrease:
		return -CPILargeStep
	case SmallDecrease:
		return -CPISmallStep
	case SmallIncrease:
		return CPISmallStep
	case LargeIncrease:
		return CPILargeStep
	default:
		return 0
	}
}

func (s CpiStep) String() string {
	switch s {
	case LargeDecrease:
		return "large_decrease"
	case SmallDecrease:
		return "small_decrease"
	case NoStep:
		return "none"
	case SmallIncrease:
		return "small_increase"
	case LargeIncrease:
		return "large_increase"
	default:
		return "unknown"
	}
}

type cpiLock int8

const (
	lockNone cpiLock = iota
	lockIncrease
	lockDecrease
)

// CpiStepper interprets button taps as CPI changes while in CPI mode.
//
// A lone tap of left or right steps by 100. Holding one button and tapping
// the other steps by 1000 in the direction of the tapped button. Releasing
// the held button after a chord ends the cycle; both buttons must then be
// released before another gesture is accepted.
type CpiStepper struct {
	waitForRelease bool
	lock           cpiLock
	prevLeft       bool
	prevRight      bool
}

// NewCpiStepper returns a stepper that waits for a full release first.
func NewCpiStepper() CpiStepper {
	return CpiStepper{waitForRelease: true}
}

// Update feeds one tick of debounced input. It returns the new CPI, clamped
// into [CPIMin, CPIMax], and the step applied. A step that would not change
// the CPI is reported as NoStep.
func (s *CpiStepper) Update(left, right, tracking bool, cpi int16) (int16, CpiStep) {
	step := NoStep

	switch {
	case !tracking:
		s.waitForRelease = true
	case s.waitForRelease:
		if !left && !right {
			s.waitForRelease = false
			s.lock = lockNone
		}
	default:
		step = s.evaluate(left, right)
		if !left && !right {
			s.lock = lockNone
		}
	}

	s.prevLeft, s.prevRight = left, right

	if step == NoStep {
		return cpi, NoStep
	}
	next := ClampCPI(int(cpi) + step.Delta())
	if next == cpi {
		return cpi, NoStep
	}
	return next, step
}

// evaluate applies the first matching rule of the gesture grammar.
func (s *CpiStepper) evaluate(left, right bool) CpiStep {
	switch {
	case s.lock == lockNone && left && right && !s.prevRight:
		s.lock = lockIncrease
	case s.lock == lockNone && left && right && !s.prevLeft:
		s.lock = lockDecrease

	case !left && s.prevLeft:
		switch {
		case s.lock == lockIncrease:
			s.waitForRelease = true
		case right:
			if s.lock == lockDecrease {
				return LargeDecrease
			}
		case s.lock == lockNone:
			return SmallDecrease
		}

	case !right && s.prevRight:
		switch {
		case s.lock == lockDecrease:
			s.waitForRelease = true
		case left:
			if s.lock == lockIncrease {
				return LargeIncrease
			}
		case s.lock == lockNone:
			return SmallIncrease
		}
	}
	return NoStep
}
