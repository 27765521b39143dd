// Package refdata holds the static lookup tables the redemption and audit
// reports validate provenance fields against. Tables are loaded once at
// process start and passed by reference; they are never mutated afterwards.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// SDGBenefit is one sustainable development goal entry devices may claim.
type SDGBenefit struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// Tables is the full reference data set.
type Tables struct {
	CountryCodes            []string     `yaml:"country_codes"`
	CapacityRanges          []string     `yaml:"capacity_ranges"`
	OffTakers               []string     `yaml:"off_takers"`
	Sectors                 []string     `yaml:"sectors"`
	InstallationConfigs     []string     `yaml:"installation_configs"`
	StandardCompliances     []string     `yaml:"standard_compliances"`
	CommissioningDateRanges []string     `yaml:"commissioning_date_ranges"`
	SDGBenefits             []SDGBenefit `yaml:"sdg_benefits"`
}

// Default loads the embedded tables.
func Default() (*Tables, error) {
	return parse(embeddedTables)
}

// Load reads tables from an override file, falling back to the embedded set
// when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reference data: %w", err)
	}
	if len(t.CountryCodes) == 0 {
		return nil, fmt.Errorf("reference data contains no country codes")
	}
	return &t, nil
}

// HasCountry reports whether code is a known ISO country code.
func (t *Tables) HasCountry(code string) bool {
	return contains(t.CountryCodes, code)
}

// HasCapacityRange reports whether the label is a known capacity bucket.
func (t *Tables) HasCapacityRange(label string) bool {
	return contains(t.CapacityRanges, label)
}

// HasStandardCompliance reports whether the label is a known certification
// standard.
func (t *Tables) HasStandardCompliance(label string) bool {
	return contains(t.StandardCompliances, label)
}

// HasOffTaker reports whether the label is a known off-taker category.
func (t *Tables) HasOffTaker(label string) bool {
	return contains(t.OffTakers, label)
}

// SDGBenefitByName resolves a benefit case-insensitively by display name.
func (t *Tables) SDGBenefitByName(name string) (SDGBenefit, bool) {
	for _, b := range t.SDGBenefits {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return SDGBenefit{}, false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
