package unit

import (
	"errors"
	"testing"
)

func TestNormalize_KWhToWh(t *testing.T) {
	got, err := Normalize(1, KWh)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != 1000 {
		t.Errorf("Expected 1000 Wh, got %d", got)
	}
}

func TestNormalize_RoundsToNearestWattHour(t *testing.T) {
	got, err := Normalize(0.2345, KWh)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != 235 {
		t.Errorf("Expected 235 Wh, got %d", got)
	}
}

func TestNormalize_WhIsIdempotent(t *testing.T) {
	once, err := Normalize(42.7, Wh)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	twice, err := Normalize(float64(once), Wh)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if once != twice {
		t.Errorf("Expected re-normalization to be stable, got %d then %d", once, twice)
	}
}

func TestNormalize_GWh(t *testing.T) {
	got, err := Normalize(2, GWh)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != 2_000_000_000 {
		t.Errorf("Expected 2000000000 Wh, got %d", got)
	}
}

func TestNormalize_UnsupportedUnit(t *testing.T) {
	_, err := Normalize(1, Unit("BTU"))
	if err == nil {
		t.Fatal("Expected error for unsupported unit")
	}
	var unsupported ErrUnsupportedUnit
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected ErrUnsupportedUnit, got %T", err)
	}
}
