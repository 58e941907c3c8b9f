// Package sensor applies mouse parameters to the optical sensor's registers.
package sensor

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/drivers"

	"optimouse/internal/mouse"
)

// Sensor registers touched at runtime.
const (
	RegResolution = 0x0f
	RegAngleSnap  = 0x42
	RegLiftOff    = 0x63

	writeFlag    = 0x80
	angleSnapBit = 1 << 7
)

// TrackingThreshold is the lowest surface quality reading treated as
// tracking.
const TrackingThreshold = 16

// Tracking reports whether a surface quality reading means the sensor sees a
// usable surface.
func Tracking(squal uint8) bool { return squal >= TrackingThreshold }

// ResolutionValue encodes cpi for RegResolution.
func ResolutionValue(cpi int16) byte {
	return byte(cpi/100 - 1)
}

// Applier writes parameters to the sensor, touching only registers whose
// value changed since the previous Apply.
type Applier struct {
	bus    drivers.SPI
	logger *slog.Logger

	last    mouse.Params
	applied bool
	writes  int
}

// NewApplier returns an Applier that writes through bus.
func NewApplier(bus drivers.SPI, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Applier{bus: bus, logger: logger}
}

// Apply brings the sensor in line with p. The first call writes every
// register.
func (a *Applier) Apply(p mouse.Params) error {
	if a.applied && p == a.last {
		return nil
	}

	if !a.applied || p.CPI != a.last.CPI {
		if err := a.write(RegResolution, ResolutionValue(p.CPI)); err != nil {
			return fmt.Errorf("set cpi %d: %w", p.CPI, err)
		}
	}
	if !a.applied || p.AngleSnap != a.last.AngleSnap {
		var v byte
		if p.AngleSnap {
			v = angleSnapBit
		}
		if err := a.write(RegAngleSnap, v); err != nil {
			return fmt.Errorf("set angle snap %t: %w", p.AngleSnap, err)
		}
	}
	if !a.applied || p.LiftOff != a.last.LiftOff {
		if err := a.write(RegLiftOff, byte(p.LiftOff)); err != nil {
			return fmt.Errorf("set lift-off %d: %w", p.LiftOff, err)
		}
	}

	a.logger.Debug("applied sensor params", "params", p)
	a.last = p
	a.applied = true
	return nil
}

// Writes returns the number of register writes issued so far.
func (a *Applier) Writes() int { return a.writes }

func (a *Applier) write(reg, val byte) error {
	a.writes++
	return a.bus.Tx([]byte{reg | writeFlag, val}, nil)
}

// Registers is an in-memory register file that speaks the sensor's write
// framing. It stands in for the hardware when simulating.
type Registers struct {
	mu   sync.Mutex
	regs [128]byte
	log  []Write
}

// Write is one register write observed by Registers.
type Write struct {
	Reg byte `json:"reg"`
	Val byte `json:"val"`
}

var _ drivers.SPI = (*Registers)(nil)

// Tx decodes w as a sequence of {reg|0x80, value} pairs. Reads are not
// modelled; r is zero-filled.
func (r *Registers) Tx(w, rd []byte) error {
	if len(w)%2 != 0 {
		return fmt.Errorf("sensor: odd write frame length %d", len(w))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i+1 < len(w); i += 2 {
		if w[i]&writeFlag == 0 {
			return fmt.Errorf("sensor: read of register %#02x not supported", w[i])
		}
		reg := w[i] &^ writeFlag
		r.regs[reg] = w[i+1]
		r.log = append(r.log, Write{Reg: reg, Val: w[i+1]})
	}
	clear(rd)
	return nil
}

// Transfer is a single-byte exchange; the register file ignores it.
func (r *Registers) Transfer(b byte) (byte, error) { return 0, nil }

// Get returns the current value of reg.
func (r *Registers) Get(reg byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg&^writeFlag]
}

// Writes returns a copy of every write seen so far.
func (r *Registers) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.log...)
}
