package mouse

import "time"

// TickPeriod is the nominal interval between two Step calls.
const TickPeriod = 125 * time.Microsecond

const tickUS = int64(TickPeriod / time.Microsecond)

// TicksFromUS converts microseconds to ticks.
func TicksFromUS(us int64) int32 {
	return int32(us / tickUS)
}

// Gesture and animation timing, in ticks.
const (
	ModeChangeHold = int32(3_000_000 / tickUS)
	BootloaderHold = int32(10_000_000 / tickUS)

	SquareDuration          = int32(400_000 / tickUS)
	SquareLeadIn            = int32(1_000_000 / tickUS)
	SpikeDuration           = int32(100_000 / tickUS)
	SpikeIndicationDuration = int32(150_000 / tickUS)
)

// Animation step lengths, in motion units per leg.
const (
	SquareLength     = 100
	SpikeShortLength = 100
	SpikeLongLength  = 300
)
