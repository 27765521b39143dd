package aggregate

import (
	"strings"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
)

// wattHoursPerMWh converts claim values (stored in watt-hours) to MWh for
// reporting.
const wattHoursPerMWh = 1e6

// compliance scheme under which certificates are redeemed.
const complianceScheme = "I-REC"

// RedemptionRow is one claim of a claimed certificate joined against its
// device group's provenance.
type RedemptionRow struct {
	Compliance             string  `json:"compliance"`
	CertificateID          int64   `json:"certificateId"`
	FuelCode               string  `json:"fuelCode"`
	Country                string  `json:"country"`
	CapacityRange          string  `json:"capacityRange"`
	Installations          string  `json:"installations"`
	OffTakers              string  `json:"offTakers"`
	Sectors                string  `json:"sectors"`
	CommissioningDateRange string  `json:"commissioningDateRange"`
	StandardCompliance     string  `json:"standardCompliance"`
	RedemptionDate         string  `json:"redemptionDate"`
	CertifiedEnergyMWh     float64 `json:"certifiedEnergy"`
	Beneficiary            string  `json:"beneficiary"`
	BeneficiaryAddress     string  `json:"beneficiary_address"`
	ClaimCountryCode       string  `json:"claimCountryCode"`
	Purpose                string  `json:"purpose"`
}

// BuildRedemptionReport emits one row per claim across every claimed
// certificate of the given groups.
func BuildRedemptionReport(groups []db.DeviceGroup, claimedByGroup map[int64][]db.Certificate) []RedemptionRow {
	var rows []RedemptionRow
	for _, group := range groups {
		for _, cert := range claimedByGroup[group.ID] {
			for _, claim := range cert.Claims {
				rows = append(rows, RedemptionRow{
					Compliance:             complianceScheme,
					CertificateID:          cert.ID,
					FuelCode:               group.FuelCode,
					Country:                group.CountryCode,
					CapacityRange:          group.CapacityRange,
					Installations:          strings.Join(group.InstallationConfigs, ", "),
					OffTakers:              strings.Join(group.OffTakers, ", "),
					Sectors:                strings.Join(group.Sectors, ", "),
					CommissioningDateRange: strings.Join(group.CommissioningDateRange, ", "),
					StandardCompliance:     group.StandardCompliance,
					RedemptionDate:         claim.PeriodStartDate,
					CertifiedEnergyMWh:     float64(claim.Value) / wattHoursPerMWh,
					Beneficiary:            claim.Beneficiary,
					BeneficiaryAddress:     claim.Location,
					ClaimCountryCode:       claim.CountryCode,
					Purpose:                claim.Purpose,
				})
			}
		}
	}
	return rows
}
