package service

import (
	"testing"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"github.com/Sivendra-Kumar/drec-origin/internal/plausibility"
	"github.com/Sivendra-Kumar/drec-origin/internal/validator"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func newFilterService() *ProcessorService {
	return &ProcessorService{
		checker: plausibility.NewChecker(),
		metrics: metrics.New(),
		logger:  zap.NewNop(),
	}
}

// The filter only ever sees the latest read loaded under the device lock,
// so its behavior against a given last read fully determines what a
// concurrent submission can be judged against.
func TestFilterImplausible_DropsOnlyEnvelopeBreaches(t *testing.T) {
	s := newFilterService()
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	// Envelope with default yield and age floored to one year:
	// 2000 W x 1 h x 1 y x 0.5 x 1500 = 1,500,000 Wh.
	device := db.DeviceSnapshot{
		ExternalID:        "Ext-1",
		CapacityWatts:     2000,
		CommissioningDate: now.AddDate(0, 0, -1),
	}
	last := &db.MeterRead{
		DeviceExternalID: "Ext-1",
		EndTimestamp:     now.Add(-time.Hour),
		ValueWattHour:    100,
	}
	accepted := []validator.AcceptedRead{
		{EndTimestamp: now, ValueWattHour: 750_000},
		{EndTimestamp: now, ValueWattHour: 1_250_000}, // 1.2x equals the envelope
	}

	plausible := s.filterImplausible(accepted, last, device, now, zap.NewNop())
	if len(plausible) != 1 {
		t.Fatalf("Expected 1 plausible read, got %d", len(plausible))
	}
	if plausible[0].ValueWattHour != 750_000 {
		t.Errorf("Expected the in-envelope read to survive, got %d", plausible[0].ValueWattHour)
	}
	if got := testutil.ToFloat64(s.metrics.ReadsDroppedImplausible); got != 1 {
		t.Errorf("Expected 1 dropped read counted, got %v", got)
	}
}

func TestFilterImplausible_NoPriorRead(t *testing.T) {
	s := newFilterService()
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	device := db.DeviceSnapshot{ExternalID: "Ext-1", CapacityWatts: 1}

	accepted := []validator.AcceptedRead{
		{EndTimestamp: now, ValueWattHour: 9_000_000_000},
	}

	plausible := s.filterImplausible(accepted, nil, device, now, zap.NewNop())
	if len(plausible) != 1 {
		t.Fatalf("Expected the first-ever read to pass unchecked, got %d reads", len(plausible))
	}
}
