package aggregate

import (
	"testing"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
)

func TestCollapse_MeanAndSum(t *testing.T) {
	a := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)

	reads := []AggregatedRead{
		{Start: a, Stop: b, Value: 10},
		{Start: a, Stop: b, Value: 20},
	}

	mean, err := Collapse(reads, Mean)
	if err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if len(mean) != 1 || mean[0].Value != 15 {
		t.Errorf("Expected single mean value 15, got %+v", mean)
	}

	sum, err := Collapse(reads, Sum)
	if err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if len(sum) != 1 || sum[0].Value != 30 {
		t.Errorf("Expected single sum value 30, got %+v", sum)
	}
}

func TestCollapse_MeanIsFloored(t *testing.T) {
	a := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)

	reads := []AggregatedRead{
		{Start: a, Stop: b, Value: 10},
		{Start: a, Stop: b, Value: 11},
	}

	mean, err := Collapse(reads, Mean)
	if err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if mean[0].Value != 10 {
		t.Errorf("Expected floored mean 10, got %d", mean[0].Value)
	}
}

func TestCollapse_DistinctWindowsStaySeparate(t *testing.T) {
	a := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)
	c := time.Date(2023, 5, 3, 0, 0, 0, 0, time.UTC)

	reads := []AggregatedRead{
		{Start: a, Stop: b, Value: 10},
		{Start: b, Stop: c, Value: 20},
	}

	out, err := Collapse(reads, Sum)
	if err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(out))
	}
	if out[0].Value != 10 || out[1].Value != 20 {
		t.Errorf("Expected windows kept apart, got %+v", out)
	}
}

func TestCollapse_UnsupportedAggregate(t *testing.T) {
	if _, err := Collapse(nil, Aggregate("median")); err == nil {
		t.Error("Expected error for unsupported aggregate")
	}
}

func TestBuildRedemptionReport(t *testing.T) {
	groups := []db.DeviceGroup{{
		ID:                     4,
		FuelCode:               "ES100",
		CountryCode:            "IN",
		CapacityRange:          "500kW - 1MW",
		OffTakers:              []string{"School", "Commercial"},
		Sectors:                []string{"Agriculture"},
		CommissioningDateRange: []string{"Year 1 - Q1", "Year 1 - Q2"},
		StandardCompliance:     "REC",
	}}

	claimed := map[int64][]db.Certificate{
		4: {{
			ID: 91,
			Claims: []db.Claim{{
				Value:           2_500_000,
				PeriodStartDate: "2023-04-01",
				Beneficiary:     "Acme Offsets",
				Location:        "Pune",
				CountryCode:     "IN",
				Purpose:         "GHG accounting",
			}},
		}},
	}

	rows := BuildRedemptionReport(groups, claimed)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.Compliance != "I-REC" {
		t.Errorf("Expected compliance I-REC, got %s", row.Compliance)
	}
	if row.CertifiedEnergyMWh != 2.5 {
		t.Errorf("Expected 2.5 MWh certified energy, got %f", row.CertifiedEnergyMWh)
	}
	if row.OffTakers != "School, Commercial" {
		t.Errorf("Expected joined off-takers, got %q", row.OffTakers)
	}
	if row.CertificateID != 91 || row.RedemptionDate != "2023-04-01" {
		t.Errorf("Unexpected row identity fields: %+v", row)
	}
}

func TestBuildRedemptionReport_NoClaimedCertificates(t *testing.T) {
	rows := BuildRedemptionReport([]db.DeviceGroup{{ID: 1}}, map[int64][]db.Certificate{})
	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
}
