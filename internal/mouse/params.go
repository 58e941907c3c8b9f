package mouse

import (
	"fmt"

	"optimouse/internal/mathx"
)

// CPI limits and gesture step sizes.
const (
	CPIMin       = 100
	CPIMax       = 12000
	CPISmallStep = 100
	CPILargeStep = 1000
)

// Factory defaults. A store that was never written must return these.
const (
	DefaultCPI       = 800
	DefaultAngleSnap = false
	DefaultLiftOff   = 2

	// AltLiftOff is selected by holding the right button at power-on.
	AltLiftOff = 3
)

// Params is the persisted sensor configuration.
type Params struct {
	CPI       int16 `json:"cpi" yaml:"cpi" toml:"cpi"`
	AngleSnap bool  `json:"angle_snap" yaml:"angle_snap" toml:"angle_snap"`
	LiftOff   int8  `json:"lift_off" yaml:"lift_off" toml:"lift_off"`
}

// DefaultParams returns the factory configuration.
func DefaultParams() Params {
	return Params{CPI: DefaultCPI, AngleSnap: DefaultAngleSnap, LiftOff: DefaultLiftOff}
}

// Valid reports whether p can be applied to the sensor as-is.
func (p Params) Valid() bool {
	return mathx.Between(p.CPI, CPIMin, CPIMax) && p.CPI%CPISmallStep == 0 && p.LiftOff >= 0
}

func (p Params) String() string {
	return fmt.Sprintf("cpi=%d as=%t lod=%d", p.CPI, p.AngleSnap, p.LiftOff)
}

// ClampCPI limits cpi to the supported range.
func ClampCPI(cpi int) int16 {
	return int16(mathx.Clamp(cpi, CPIMin, CPIMax))
}

// Store is durable storage for Params.
//
// Load must return DefaultParams when nothing was ever saved. Save is
// synchronous from the controller's point of view. Implementations absorb
// their own I/O failures; the controller never sees an error.
type Store interface {
	Load() Params
	Save(Params)
}

// Bootloader hands the device over to firmware-update mode. On hardware
// EnterBootloader does not return.
type Bootloader interface {
	EnterBootloader()
}

// BootloaderFunc adapts a plain function to Bootloader.
type BootloaderFunc func()

func (f BootloaderFunc) EnterBootloader() { f() }
