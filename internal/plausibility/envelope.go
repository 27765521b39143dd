package plausibility

import (
	"math"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
)

const (
	// Degradation is applied as a raw multiplier in the envelope formula.
	// The upstream formula has always used 0.5 directly rather than
	// (1 - 0.5/100); changing it would shift the envelope for every
	// device, so the constant is kept as-is.
	degradationRate = 0.5 // %/year

	defaultYieldValue = 1500 // kWh/kW

	// Margin added to the candidate value before comparing against the
	// envelope.
	readValueMargin = 0.2
)

// Checker bounds-checks candidate reads against the maximum energy a device
// could plausibly have generated since its last accepted read.
type Checker struct{}

// NewChecker creates a plausibility checker.
func NewChecker() *Checker {
	return &Checker{}
}

// MaxEnergy computes the plausibility envelope in watt-hours:
// capacity [W] x metered time period [h] x device age [years] x
// degradation [%/year] x yield [kWh/kW].
func (c *Checker) MaxEnergy(device db.DeviceSnapshot, elapsedHours float64, now time.Time) float64 {
	yieldValue := device.YieldValue
	if yieldValue == 0 {
		yieldValue = defaultYieldValue
	}

	deviceAgeYears := now.Sub(device.CommissioningDate).Hours() / (24 * 365.25)
	if deviceAgeYears < 1 {
		// A zero age would collapse the envelope to zero energy.
		deviceAgeYears = 1
	}

	return device.CapacityWatts * elapsedHours * deviceAgeYears * degradationRate * yieldValue
}

// IsPlausible reports whether the candidate read fits the envelope. With no
// prior read there is nothing to compare against and the read is accepted.
func (c *Checker) IsPlausible(candidate db.MeterRead, last *db.MeterRead, device db.DeviceSnapshot, now time.Time) bool {
	if last == nil {
		return true
	}

	elapsedHours := math.Abs(candidate.EndTimestamp.Sub(last.EndTimestamp).Hours())
	maxEnergy := c.MaxEnergy(device, elapsedHours, now)

	value := float64(candidate.ValueWattHour)
	return math.Round(value+readValueMargin*value) < maxEnergy
}
