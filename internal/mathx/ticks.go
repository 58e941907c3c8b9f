package mathx

// TicksSince returns now-then as a signed distance on a wrapping uint32 clock.
// The result is only meaningful while the two instants are less than 2^31 ticks apart.
func TicksSince(now, then uint32) int32 {
	return int32(now - then)
}

// Elapsed reports whether at least d ticks have passed since then.
func Elapsed(now, then uint32, d int32) bool {
	return TicksSince(now, then) >= d
}
