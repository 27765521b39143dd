package db

import (
	"time"
)

// ReadType distinguishes the three accepted meter read submissions.
type ReadType string

const (
	ReadTypeHistory   ReadType = "History"
	ReadTypeDelta     ReadType = "Delta"
	ReadTypeReadMeter ReadType = "ReadMeter"
)

// DeviceSnapshot is the registry view of a generation asset. It is read-only
// input for validation; the registry itself is owned elsewhere.
type DeviceSnapshot struct {
	ExternalID          string
	DeveloperExternalID string
	OrganizationID      int64
	CapacityWatts       float64
	CommissioningDate   time.Time
	CreatedAt           time.Time // onboarding date
	YieldValue          float64   // kWh/kW, 0 means "use default"
	MeterReadType       ReadType
}

// MeterRead is a single accepted meter observation in watt-hours.
type MeterRead struct {
	DeviceExternalID string
	StartTimestamp   *time.Time // History only
	EndTimestamp     time.Time
	ValueWattHour    int64
}

// CertificateIssueLog is the immutable audit record created when an accepted
// read is attributed to a certificate issuance window.
type CertificateIssueLog struct {
	ID                        int64
	GroupID                   int64
	DeviceID                  string
	CertificateTransactionUID *string
	IssuanceStartDate         time.Time
	IssuanceEndDate           time.Time
	ReadValueWattHour         int64
	Status                    string
}

// Claim is a redemption claim attached to a certificate.
type Claim struct {
	Value           int64  `json:"value"`
	PeriodStartDate string `json:"periodStartDate"`
	Beneficiary     string `json:"beneficiary"`
	Location        string `json:"location"`
	CountryCode     string `json:"countryCode"`
	Purpose         string `json:"purpose"`
}

// Certificate is the ledger read model. Generation times are unix seconds,
// as issued; Metadata is raw JSON and may be malformed for old certificates.
type Certificate struct {
	ID                  int64
	DeviceID            string // the ledger keys certificates by group id
	GenerationStartTime int64
	GenerationEndTime   int64
	Metadata            []byte
	Claims              []Claim
}

// DeviceGroup carries the provenance fields the redemption report joins
// against.
type DeviceGroup struct {
	ID                     int64
	Name                   string
	BuyerID                int64
	FuelCode               string
	CountryCode            string
	CapacityRange          string
	InstallationConfigs    []string
	OffTakers              []string
	Sectors                []string
	CommissioningDateRange []string
	StandardCompliance     string
}
