package buttons

import "testing"

// TestDebounce_Exhaustive checks every raw state against both prior states.
func TestDebounce_Exhaustive(t *testing.T) {
	tests := []struct {
		prior bool
		raw   RawChannel
		want  bool
	}{
		// released stays released unless only the pressed-side contact is made
		{false, RawChannel{Top: false, Bottom: false}, false},
		{false, RawChannel{Top: true, Bottom: false}, false},
		{false, RawChannel{Top: false, Bottom: true}, true},
		{false, RawChannel{Top: true, Bottom: true}, false},

		// pressed stays pressed unless only the rest-side contact is made
		{true, RawChannel{Top: false, Bottom: false}, true},
		{true, RawChannel{Top: true, Bottom: false}, false},
		{true, RawChannel{Top: false, Bottom: true}, true},
		{true, RawChannel{Top: true, Bottom: true}, true},
	}

	for _, tt := range tests {
		if got := Debounce(tt.prior, tt.raw); got != tt.want {
			t.Errorf("Debounce(%v, %+v) = %v, want %v", tt.prior, tt.raw, got, tt.want)
		}
	}
}

func TestDebouncer_SchmittIgnoresBounce(t *testing.T) {
	d := New(PolicySchmitt)
	d.SetDebounceDelay(160)

	rest := RawChannel{Top: true}
	travel := RawChannel{}
	down := RawChannel{Bottom: true}

	seq := []struct {
		raw  RawChannel
		want bool
	}{
		{rest, false},
		{travel, false}, // left the rest contact, not yet pressed
		{down, true},
		{travel, true}, // bounce off the pressed contact
		{down, true},
		{travel, true},
		{rest, false},
		{travel, false}, // bounce off the rest contact
		{rest, false},
	}

	for i, s := range seq {
		d.Step(1, [NumChannels]RawChannel{s.raw, rest})
		if got := d.Pressed(Left); got != s.want {
			t.Fatalf("step %d: left = %v, want %v", i, got, s.want)
		}
		if d.Pressed(Right) {
			t.Fatalf("step %d: right must stay released", i)
		}
	}
}

func TestDebouncer_Timed(t *testing.T) {
	d := New(PolicyTimed)
	d.SetDebounceDelay(10)

	rest := RawChannel{Top: true}
	travel := RawChannel{}
	both := [NumChannels]RawChannel{rest, rest}

	d.Step(1, both)
	if d.Pressed(Left) {
		t.Fatal("expected released at rest")
	}

	// Leaving the rest contact counts as a press and arms the hold-off.
	d.Step(1, [NumChannels]RawChannel{travel, rest})
	if !d.Pressed(Left) {
		t.Fatal("expected pressed once the rest contact opens")
	}

	// Bounce back onto the rest contact inside the hold-off is ignored.
	d.Step(3, [NumChannels]RawChannel{rest, rest})
	if !d.Pressed(Left) {
		t.Fatal("bounce inside hold-off must be ignored")
	}

	// After the hold-off the release is accepted.
	d.Step(10, [NumChannels]RawChannel{rest, rest})
	if d.Pressed(Left) {
		t.Fatal("expected release after hold-off")
	}

	// A full press on the pressed-side contact is accepted immediately.
	d.Step(1, [NumChannels]RawChannel{{Bottom: true}, rest})
	if !d.Pressed(Left) {
		t.Fatal("pressed-side contact must press immediately")
	}
}

func TestDebouncer_TimedDelayMasked(t *testing.T) {
	d := New(PolicyTimed)
	d.SetDebounceDelay(0xffff)
	if d.delay != 0x7fff {
		t.Fatalf("delay = %#x, want 0x7fff", d.delay)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicySchmitt, false},
		{"Schmitt", PolicySchmitt, false},
		{"timed", PolicyTimed, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
