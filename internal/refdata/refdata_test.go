package refdata

import (
	"testing"
)

func TestDefault_LoadsEmbeddedTables(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Failed to load embedded tables: %v", err)
	}
	if !tables.HasCountry("IN") {
		t.Error("Expected IN in country codes")
	}
	if !tables.HasStandardCompliance("I-REC") {
		t.Error("Expected I-REC in standard compliances")
	}
	if !tables.HasCapacityRange("0 - 50kW") {
		t.Error("Expected 0 - 50kW capacity range")
	}
}

func TestLookups_CaseInsensitive(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Failed to load embedded tables: %v", err)
	}
	if !tables.HasOffTaker("school") {
		t.Error("Expected off-taker lookup to be case-insensitive")
	}

	benefit, ok := tables.SDGBenefitByName("cLiMaTe AcTiOn")
	if !ok {
		t.Fatal("Expected SDG benefit lookup to be case-insensitive")
	}
	if benefit.Code != "SDG13" {
		t.Errorf("Expected SDG13, got %s", benefit.Code)
	}
}

func TestLookups_UnknownValues(t *testing.T) {
	tables, err := Default()
	if err != nil {
		t.Fatalf("Failed to load embedded tables: %v", err)
	}
	if tables.HasCountry("ZZ") {
		t.Error("Did not expect ZZ country code")
	}
	if _, ok := tables.SDGBenefitByName("Faster Horses"); ok {
		t.Error("Did not expect unknown SDG benefit to resolve")
	}
}
