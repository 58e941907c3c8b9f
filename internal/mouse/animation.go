package mouse

import (
	"fmt"

	"optimouse/internal/mathx"
)

// Pattern selects the motion drawn by an animation.
type Pattern uint8

const (
	PatternSquare Pattern = iota
	PatternSquareInverted
	PatternSpikeDown
	PatternSpikeUp
	PatternSpikeRight
	numPatterns
)

func (p Pattern) String() string {
	switch p {
	case PatternSquare:
		return "square"
	case PatternSquareInverted:
		return "square_inverted"
	case PatternSpikeDown:
		return "spike_down"
	case PatternSpikeUp:
		return "spike_up"
	case PatternSpikeRight:
		return "spike_right"
	default:
		return fmt.Sprintf("pattern(%d)", uint8(p))
	}
}

// AnimationState is the phase of the animation engine.
type AnimationState uint8

const (
	AnimIdle AnimationState = iota
	AnimWaiting
	AnimMovingRight
	AnimMovingDown
	AnimMovingLeft
	AnimMovingUp
	numAnimationStates
)

func (s AnimationState) String() string {
	switch s {
	case AnimIdle:
		return "idle"
	case AnimWaiting:
		return "waiting"
	case AnimMovingRight:
		return "moving_right"
	case AnimMovingDown:
		return "moving_down"
	case AnimMovingLeft:
		return "moving_left"
	case AnimMovingUp:
		return "moving_up"
	default:
		return fmt.Sprintf("anim(%d)", uint8(s))
	}
}

func (s AnimationState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Moving reports whether s emits motion.
func (s AnimationState) Moving() bool {
	return s >= AnimMovingRight && s < numAnimationStates
}

// legSequence maps the current leg of a pattern to the leg that follows it.
// AnimIdle marks the end of one traversal.
type legSequence struct {
	first AnimationState
	count int32
	next  [numAnimationStates]AnimationState
}

var patternLegs = [numPatterns]legSequence{
	PatternSquare: {
		first: AnimMovingRight,
		count: 4,
		next: [numAnimationStates]AnimationState{
			AnimMovingRight: AnimMovingDown,
			AnimMovingDown:  AnimMovingLeft,
			AnimMovingLeft:  AnimMovingUp,
		},
	},
	PatternSquareInverted: {
		first: AnimMovingLeft,
		count: 4,
		next: [numAnimationStates]AnimationState{
			AnimMovingLeft:  AnimMovingDown,
			AnimMovingDown:  AnimMovingRight,
			AnimMovingRight: AnimMovingUp,
		},
	},
	PatternSpikeDown: {
		first: AnimMovingDown,
		count: 2,
		next:  [numAnimationStates]AnimationState{AnimMovingDown: AnimMovingUp},
	},
	PatternSpikeUp: {
		first: AnimMovingUp,
		count: 2,
		next:  [numAnimationStates]AnimationState{AnimMovingUp: AnimMovingDown},
	},
	PatternSpikeRight: {
		first: AnimMovingRight,
		count: 2,
		next:  [numAnimationStates]AnimationState{AnimMovingRight: AnimMovingLeft},
	},
}

// legMotion is the unit impulse of each moving phase. Positive Y points down.
var legMotion = [numAnimationStates]struct{ dx, dy int16 }{
	AnimMovingRight: {1, 0},
	AnimMovingDown:  {0, 1},
	AnimMovingLeft:  {-1, 0},
	AnimMovingUp:    {0, -1},
}

func legsOf(p Pattern) *legSequence {
	if p >= numPatterns {
		panic(fmt.Sprintf("mouse: unknown animation pattern %d", uint8(p)))
	}
	return &patternLegs[p]
}

// AnimationPlan describes one animation playback. Build it with Animate and
// the With* methods; the zero plan is not useful on its own.
type AnimationPlan struct {
	Pattern  Pattern
	Length   int16 // impulses per leg
	Duration int32 // ticks for one full traversal
	Repeat   int8  // traversals; zero skips the animation
	Pause    int32 // ticks between traversals
	LeadIn   int32 // ticks to wait before the first traversal
	Next     State // entered once the animation completes
}

// Animate starts a plan for pattern p with a single traversal.
func Animate(p Pattern) AnimationPlan {
	return AnimationPlan{Pattern: p, Repeat: 1}
}

func (a AnimationPlan) WithLength(n int16) AnimationPlan     { a.Length = n; return a }
func (a AnimationPlan) WithDuration(d int32) AnimationPlan   { a.Duration = d; return a }
func (a AnimationPlan) WithRepeat(n int8) AnimationPlan      { a.Repeat = n; return a }
func (a AnimationPlan) WithPause(ticks int32) AnimationPlan  { a.Pause = ticks; return a }
func (a AnimationPlan) WithLeadIn(ticks int32) AnimationPlan { a.LeadIn = ticks; return a }
func (a AnimationPlan) Then(s State) AnimationPlan           { a.Next = s; return a }

// Interval returns the ticks between two impulses, never less than one.
func (a AnimationPlan) Interval() int32 {
	steps := legsOf(a.Pattern).count * int32(a.Length)
	if steps <= 0 {
		return 1
	}
	return max(a.Duration/steps, 1)
}

// animationEngine plays one AnimationPlan, one tick at a time.
type animationEngine struct {
	plan      AnimationPlan
	legs      *legSequence
	phase     AnimationState
	interval  int32
	wait      int32
	pos       int32
	last      uint32
	remaining int8
}

func (e *animationEngine) active() bool { return e.phase != AnimIdle }

// start arms the engine. It returns false when the plan has nothing to play,
// in which case the caller moves to plan.Next directly.
func (e *animationEngine) start(now uint32, plan AnimationPlan) bool {
	legs := legsOf(plan.Pattern)
	if plan.Repeat <= 0 {
		e.phase = AnimIdle
		return false
	}

	*e = animationEngine{
		plan:      plan,
		legs:      legs,
		interval:  plan.Interval(),
		last:      now,
		remaining: plan.Repeat,
	}
	if plan.LeadIn > 0 {
		e.phase = AnimWaiting
		e.wait = plan.LeadIn
	} else {
		e.phase = legs.first
	}
	return true
}

// step advances the engine by one tick. It returns the impulse to emit and
// whether the plan completed on this tick.
func (e *animationEngine) step(now uint32) (dx, dy int16, done bool) {
	length, interval := int32(e.plan.Length), e.interval
	if e.phase == AnimWaiting {
		length, interval = e.wait, 1
	}

	if e.pos < length {
		if mathx.Elapsed(now, e.last, interval) {
			if e.phase.Moving() {
				m := legMotion[e.phase]
				dx, dy = m.dx, m.dy
			}
			e.pos++
			e.last = now
		}
		return dx, dy, false
	}

	e.pos = 0
	if e.phase == AnimWaiting {
		e.phase = e.legs.first
		return 0, 0, false
	}
	if next := e.legs.next[e.phase]; next != AnimIdle {
		e.phase = next
		return 0, 0, false
	}

	e.remaining--
	if e.remaining > 0 {
		e.phase = AnimWaiting
		e.wait = e.plan.Pause
		e.last = now
		return 0, 0, false
	}
	e.phase = AnimIdle
	return 0, 0, true
}
