package unit

import (
	"fmt"
	"math"
)

// Unit is an energy unit tag accepted on read submissions.
type Unit string

const (
	Wh  Unit = "Wh"
	KWh Unit = "kWh"
	MWh Unit = "MWh"
	GWh Unit = "GWh"
)

// ErrUnsupportedUnit is returned for unit tags outside the accepted set.
type ErrUnsupportedUnit struct {
	Unit Unit
}

func (e ErrUnsupportedUnit) Error() string {
	return fmt.Sprintf("unsupported energy unit %q", string(e.Unit))
}

// Multiplier returns the scale factor of u relative to watt-hours.
func Multiplier(u Unit) (float64, error) {
	switch u {
	case Wh:
		return 1, nil
	case KWh:
		return 1e3, nil
	case MWh:
		return 1e6, nil
	case GWh:
		return 1e9, nil
	}
	return 0, ErrUnsupportedUnit{Unit: u}
}

// Normalize converts value expressed in u to integer watt-hours, rounding to
// the nearest watt-hour.
func Normalize(value float64, u Unit) (int64, error) {
	m, err := Multiplier(u)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(value * m)), nil
}
