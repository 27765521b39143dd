package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Sivendra-Kumar/drec-origin/internal/aggregate"
)

var redemptionHeaders = []string{
	"Compliance",
	"Certificate Id",
	"Fuel Code",
	"Country",
	"Capacity Range",
	"Installation Configurations",
	"Off Takers",
	"Sectors",
	"Standard Compliance",
	"Commissioning Date Range",
	"Certified Energy (MWh)",
	"Redemption Date",
	"Beneficiary",
	"Beneficiary Address",
	"Claim Country",
	"Purpose",
}

// BuildRedemptionXLSX renders the redemption report as a single-sheet workbook.
func BuildRedemptionXLSX(rows []aggregate.RedemptionRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "redemptions"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range redemptionHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, r := range rows {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Compliance)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.CertificateID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.FuelCode)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Country)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.CapacityRange)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.Installations)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.OffTakers)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), r.Sectors)
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), r.StandardCompliance)
		_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", row), r.CommissioningDateRange)
		_ = f.SetCellValue(sheet, fmt.Sprintf("K%d", row), r.CertifiedEnergyMWh)
		_ = f.SetCellValue(sheet, fmt.Sprintf("L%d", row), r.RedemptionDate)
		_ = f.SetCellValue(sheet, fmt.Sprintf("M%d", row), r.Beneficiary)
		_ = f.SetCellValue(sheet, fmt.Sprintf("N%d", row), r.BeneficiaryAddress)
		_ = f.SetCellValue(sheet, fmt.Sprintf("O%d", row), r.ClaimCountryCode)
		_ = f.SetCellValue(sheet, fmt.Sprintf("P%d", row), r.Purpose)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
