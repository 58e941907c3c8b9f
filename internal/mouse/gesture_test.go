package mouse

import "testing"

type buttons struct{ left, right bool }

var (
	none  = buttons{}
	left  = buttons{left: true}
	right = buttons{right: true}
	both  = buttons{left: true, right: true}
)

// feedStepper runs seq through s with tracking enabled and returns the final
// CPI together with every non-zero step reported.
func feedStepper(s *CpiStepper, cpi int16, seq ...buttons) (int16, []CpiStep) {
	var steps []CpiStep
	for _, b := range seq {
		var step CpiStep
		cpi, step = s.Update(b.left, b.right, true, cpi)
		if step != NoStep {
			steps = append(steps, step)
		}
	}
	return cpi, steps
}

func sameSteps(a, b []CpiStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestModeChangeDetector_FiresAfterHold(t *testing.T) {
	m := NewModeChangeDetector(100)

	if m.Update(0, false, false, false) {
		t.Fatal("fired on release")
	}
	if m.Update(10, true, true, false) {
		t.Fatal("fired on press")
	}
	for now := uint32(11); now <= 110; now++ {
		if m.Update(now, true, true, false) {
			t.Fatalf("fired early at tick %d", now)
		}
	}
	if !m.Update(111, true, true, false) {
		t.Fatal("expected fire once hold exceeded")
	}
	for now := uint32(112); now < 500; now++ {
		if m.Update(now, true, true, false) {
			t.Fatalf("re-fired at tick %d without release", now)
		}
	}

	// A full release, press, hold cycle fires again.
	m.Update(500, false, false, false)
	m.Update(501, true, true, false)
	if !m.Update(602, true, true, false) {
		t.Fatal("expected second fire")
	}
}

func TestModeChangeDetector_EarlyReleaseResets(t *testing.T) {
	m := NewModeChangeDetector(100)
	m.Update(0, false, false, false)
	m.Update(1, true, true, false)
	m.Update(50, true, false, false)

	// Still holding both, but the release above restarted the cycle.
	for now := uint32(51); now < 300; now++ {
		if m.Update(now, true, true, false) {
			t.Fatalf("fired at tick %d after early release", now)
		}
	}
}

func TestModeChangeDetector_TrackingDisables(t *testing.T) {
	m := NewModeChangeDetector(100)
	m.Update(0, false, false, false)
	m.Update(1, true, true, false)
	for now := uint32(2); now < 300; now++ {
		// Placing the mouse back on a surface mid-hold cancels the gesture.
		if m.Update(now, true, true, now == 50) {
			t.Fatalf("fired at tick %d", now)
		}
	}
}

func TestModeChangeDetector_RequiresInitialRelease(t *testing.T) {
	m := NewModeChangeDetector(100)
	for now := uint32(0); now < 300; now++ {
		if m.Update(now, true, true, false) {
			t.Fatalf("fired at tick %d without a prior release", now)
		}
	}
}

func TestModeChangeDetector_Wraparound(t *testing.T) {
	m := NewModeChangeDetector(100)
	start := ^uint32(0) - 20
	m.Update(start, false, false, false)
	m.Update(start+1, true, true, false)
	if m.Update(start+50, true, true, false) {
		t.Fatal("fired before hold elapsed")
	}
	if !m.Update(start+102, true, true, false) {
		t.Fatal("expected fire across tick wraparound")
	}
}

func TestCpiStepper_SingleTaps(t *testing.T) {
	tests := []struct {
		name  string
		cpi   int16
		seq   []buttons
		want  int16
		steps []CpiStep
	}{
		{"right tap", 800, []buttons{none, right, none}, 900, []CpiStep{SmallIncrease}},
		{"left tap", 800, []buttons{none, left, none}, 700, []CpiStep{SmallDecrease}},
		{"two right taps", 800, []buttons{none, right, none, right, none}, 1000, []CpiStep{SmallIncrease, SmallIncrease}},
		{"long press counts once", 800, []buttons{none, right, right, right, none, none}, 900, []CpiStep{SmallIncrease}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCpiStepper()
			got, steps := feedStepper(&s, tt.cpi, tt.seq...)
			if got != tt.want {
				t.Errorf("cpi = %d, want %d", got, tt.want)
			}
			if !sameSteps(steps, tt.steps) {
				t.Errorf("steps = %v, want %v", steps, tt.steps)
			}
		})
	}
}

func TestCpiStepper_ChordIncrease(t *testing.T) {
	s := NewCpiStepper()
	// Hold left, tap right, release left.
	cpi, steps := feedStepper(&s, 800, none, left, both, left, none)
	if cpi != 1800 {
		t.Errorf("cpi = %d, want 1800", cpi)
	}
	if !sameSteps(steps, []CpiStep{LargeIncrease}) {
		t.Errorf("steps = %v, want [large_increase]", steps)
	}
	if !s.waitForRelease {
		t.Error("releasing the anchor should end the cycle")
	}

	// After a full release a plain tap is accepted again.
	cpi, steps = feedStepper(&s, cpi, none, right, none)
	if cpi != 1900 || !sameSteps(steps, []CpiStep{SmallIncrease}) {
		t.Errorf("after chord: cpi = %d steps = %v, want 1900 [small_increase]", cpi, steps)
	}
}

func TestCpiStepper_ChordDecrease(t *testing.T) {
	s := NewCpiStepper()
	// Hold right, tap left, release right.
	cpi, steps := feedStepper(&s, 2500, none, right, both, right, none)
	if cpi != 1500 {
		t.Errorf("cpi = %d, want 1500", cpi)
	}
	if !sameSteps(steps, []CpiStep{LargeDecrease}) {
		t.Errorf("steps = %v, want [large_decrease]", steps)
	}
}

func TestCpiStepper_RepeatedChordTaps(t *testing.T) {
	s := NewCpiStepper()
	cpi, steps := feedStepper(&s, 800, none, left, both, left, both, left, none)
	if cpi != 2800 {
		t.Errorf("cpi = %d, want 2800", cpi)
	}
	if !sameSteps(steps, []CpiStep{LargeIncrease, LargeIncrease}) {
		t.Errorf("steps = %v", steps)
	}
}

func TestCpiStepper_AnchorReleaseSwallowsFollowingPress(t *testing.T) {
	s := NewCpiStepper()
	// The right press begins before a full release was observed.
	cpi, steps := feedStepper(&s, 800, none, left, both, left, none, right, none)
	if cpi != 1800 || !sameSteps(steps, []CpiStep{LargeIncrease}) {
		t.Errorf("cpi = %d steps = %v, want 1800 [large_increase]", cpi, steps)
	}
}

func TestCpiStepper_WaitsForInitialRelease(t *testing.T) {
	s := NewCpiStepper()
	// Right is still held from the gesture that entered the mode.
	cpi, steps := feedStepper(&s, 800, right, right, none)
	if cpi != 800 || len(steps) != 0 {
		t.Errorf("cpi = %d steps = %v, want no change", cpi, steps)
	}
}

func TestCpiStepper_LiftCancels(t *testing.T) {
	s := NewCpiStepper()
	cpi, _ := feedStepper(&s, 800, none, right)
	cpi, step := s.Update(true, false, false, cpi)
	if step != NoStep {
		t.Fatalf("step while lifted: %v", step)
	}
	cpi, steps := feedStepper(&s, cpi, right, none)
	if cpi != 800 || len(steps) != 0 {
		t.Errorf("cpi = %d steps = %v, want no change after lift", cpi, steps)
	}
}

func TestCpiStepper_Clamp(t *testing.T) {
	tests := []struct {
		name  string
		cpi   int16
		seq   []buttons
		want  int16
		steps []CpiStep
	}{
		{"max small", CPIMax, []buttons{none, right, none}, CPIMax, nil},
		{"min small", CPIMin, []buttons{none, left, none}, CPIMin, nil},
		{"near max large", 11500, []buttons{none, left, both, left}, CPIMax, []CpiStep{LargeIncrease}},
		{"near min large", 600, []buttons{none, right, both, right}, CPIMin, []CpiStep{LargeDecrease}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCpiStepper()
			got, steps := feedStepper(&s, tt.cpi, tt.seq...)
			if got != tt.want {
				t.Errorf("cpi = %d, want %d", got, tt.want)
			}
			if !sameSteps(steps, tt.steps) {
				t.Errorf("steps = %v, want %v", steps, tt.steps)
			}
		})
	}
}

func TestCpiStep_Delta(t *testing.T) {
	for step, want := range map[CpiStep]int{
		LargeDecrease: -1000,
		SmallDecrease: -100,
		NoStep:        0,
		SmallIncrease: 100,
		LargeIncrease: 1000,
	} {
		if got := step.Delta(); got != want {
			t.Errorf("%v.Delta() = %d, want %d", step, got, want)
		}
	}
}
