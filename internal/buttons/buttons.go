// Package buttons turns the two contacts of each mouse switch into a stable
// pressed/released level.
//
// Each switch has a rest-side contact (Top) and a pressed-side contact
// (Bottom). The default policy is a Schmitt relation over the two contacts and
// needs no timer; a timed policy is available for switches wired with a single
// usable contact.
package buttons

import (
	"fmt"
	"strings"

	"optimouse/internal/mathx"
)

// Channel identifies a physical button.
type Channel uint8

const (
	Left Channel = iota
	Right

	NumChannels
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// RawChannel is the pair of contact levels read for one switch on a tick.
type RawChannel struct {
	Top    bool `json:"top"`    // rest-side contact
	Bottom bool `json:"bottom"` // pressed-side contact
}

// Policy selects how raw contacts become a debounced level.
type Policy uint8

const (
	PolicySchmitt Policy = iota
	PolicyTimed
)

func (p Policy) String() string {
	switch p {
	case PolicySchmitt:
		return "schmitt"
	case PolicyTimed:
		return "timed"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "schmitt", "hysteresis":
		return PolicySchmitt, nil
	case "timed", "timer":
		return PolicyTimed, nil
	default:
		return 0, fmt.Errorf("invalid debounce policy: %s (must be schmitt or timed)", s)
	}
}

// Debounce applies the Schmitt relation to one channel:
// a released button becomes pressed only on Bottom && !Top,
// a pressed button stays pressed while !Top || Bottom.
func Debounce(pressed bool, raw RawChannel) bool {
	if pressed {
		return !raw.Top || raw.Bottom
	}
	return raw.Bottom && !raw.Top
}

// maxDelay keeps the delay inside the half range of the 16-bit clock the
// timed policy was designed around.
const maxDelay = 0x7fff

// Debouncer holds the debounced level of both channels across ticks.
type Debouncer struct {
	policy Policy
	delay  int32

	now   uint32
	state [NumChannels]bool

	// timed policy only
	deadline [NumChannels]uint32
	locked   [NumChannels]bool
}

// New returns a Debouncer with both buttons released.
func New(policy Policy) *Debouncer {
	return &Debouncer{policy: policy}
}

// Policy returns the active policy.
func (d *Debouncer) Policy() Policy { return d.policy }

// SetDebounceDelay sets the hold-off, in ticks, used by the timed policy.
// The Schmitt policy accepts and ignores it.
func (d *Debouncer) SetDebounceDelay(ticks uint16) {
	d.delay = int32(ticks & maxDelay)
}

// Step advances the debouncer by dt ticks and folds in the raw levels.
func (d *Debouncer) Step(dt uint8, in [NumChannels]RawChannel) {
	d.now += uint32(dt)

	switch d.policy {
	case PolicySchmitt:
		for i := range in {
			d.state[i] = Debounce(d.state[i], in[i])
		}
	case PolicyTimed:
		for i := range in {
			d.stepTimed(i, in[i])
		}
	default:
		panic(fmt.Sprintf("buttons: unknown policy %d", d.policy))
	}
}

func (d *Debouncer) stepTimed(i int, raw RawChannel) {
	if raw.Bottom && !raw.Top {
		d.state[i] = true
		d.locked[i] = false
	}
	if d.locked[i] && mathx.TicksSince(d.now, d.deadline[i]) < 0 {
		return
	}
	d.locked[i] = false

	next := !raw.Top
	if d.state[i] != next {
		d.state[i] = next
		d.deadline[i] = d.now + uint32(d.delay)
		d.locked[i] = true
	}
}

// Pressed returns the debounced level of ch.
func (d *Debouncer) Pressed(ch Channel) bool {
	return d.state[ch]
}

// Levels returns the debounced level of both channels.
func (d *Debouncer) Levels() (left, right bool) {
	return d.state[Left], d.state[Right]
}
