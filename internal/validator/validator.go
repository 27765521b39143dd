package validator

import (
	"errors"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/unit"
	"github.com/Sivendra-Kumar/drec-origin/tools/timeparser"
)

// ReadCandidate is a single raw measurement from a submission, timestamps
// still in wire form.
type ReadCandidate struct {
	StartTimestamp string  `json:"starttimestamp,omitempty"`
	EndTimestamp   string  `json:"endtimestamp"`
	Value          float64 `json:"value"`
}

// Submission is one meter read request for a device.
type Submission struct {
	Type     db.ReadType     `json:"type"`
	Timezone string          `json:"timezone,omitempty"`
	Unit     unit.Unit       `json:"unit"`
	Reads    []ReadCandidate `json:"reads"`
}

// AcceptedRead is a candidate that passed every synchronous check, with
// timestamps in UTC and the value in integer watt-hours.
type AcceptedRead struct {
	StartTimestamp *time.Time
	EndTimestamp   time.Time
	ValueWattHour  int64
}

// Validator runs the ingestion checks for one submission. All checks abort
// the whole submission on first failure; plausibility is deliberately not
// part of this set (implausible reads are dropped later, not rejected).
type Validator struct{}

// NewValidator creates a submission validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubmission applies the per-read-type check matrix and returns the
// normalized reads, or the first rejection encountered.
func (v *Validator) ValidateSubmission(
	sub Submission,
	device db.DeviceSnapshot,
	submitterOrgID int64,
	now time.Time,
) ([]AcceptedRead, *Rejection) {
	if len(sub.Reads) == 0 {
		return nil, reject(KindMissingRequiredField, "submission contains no reads")
	}

	switch sub.Type {
	case db.ReadTypeHistory, db.ReadTypeDelta, db.ReadTypeReadMeter:
	default:
		return nil, reject(KindMissingRequiredField, "unknown read type %q", string(sub.Type))
	}

	if sub.Type == db.ReadTypeDelta || sub.Type == db.ReadTypeReadMeter {
		if len(sub.Reads) > 1 {
			return nil, reject(KindBatchSizeExceeded, "can not allow multiple reads simultaneously for %s", string(sub.Type))
		}
	}

	if rej := v.checkRequiredFields(sub); rej != nil {
		return nil, rej
	}

	if device.OrganizationID != submitterOrgID {
		return nil, reject(KindOrganizationMismatch, "device does not belong to the requesting user's organization")
	}

	accepted := make([]AcceptedRead, 0, len(sub.Reads))
	for _, candidate := range sub.Reads {
		read, rej := v.validateRead(sub, candidate, device, now)
		if rej != nil {
			return nil, rej
		}
		accepted = append(accepted, *read)
	}

	return accepted, nil
}

func (v *Validator) checkRequiredFields(sub Submission) *Rejection {
	for _, r := range sub.Reads {
		if r.EndTimestamp == "" {
			return reject(KindMissingRequiredField, "endtimestamp is required for %s", string(sub.Type))
		}
		if sub.Type == db.ReadTypeHistory && r.StartTimestamp == "" {
			return reject(KindMissingRequiredField, "starttimestamp and endtimestamp are required for History")
		}
	}
	return nil
}

func (v *Validator) validateRead(
	sub Submission,
	candidate ReadCandidate,
	device db.DeviceSnapshot,
	now time.Time,
) (*AcceptedRead, *Rejection) {
	if candidate.Value <= 0 {
		return nil, reject(KindNonPositiveValue, "meter read value should be greater than 0")
	}

	valueWh, err := unit.Normalize(candidate.Value, sub.Unit)
	if err != nil {
		return nil, reject(KindUnsupportedUnit, "%v", err)
	}

	var start *time.Time
	if sub.Type == db.ReadTypeHistory {
		t, rej := v.normalizeTimestamp(candidate.StartTimestamp, sub.Timezone, now)
		if rej != nil {
			return nil, rej
		}
		start = &t
	}

	end, rej := v.normalizeTimestamp(candidate.EndTimestamp, sub.Timezone, now)
	if rej != nil {
		return nil, rej
	}

	switch sub.Type {
	case db.ReadTypeHistory:
		if !start.Before(end) {
			return nil, reject(KindTemporalOrderingViolation,
				"starttimestamp should be prior to endtimestamp")
		}
		// History is backfill: both bounds must predate onboarding.
		if start.After(device.CreatedAt) || end.After(device.CreatedAt) {
			return nil, reject(KindTemporalOrderingViolation,
				"for History reads starttimestamp and endtimestamp should be prior to device onboarding date %s", device.CreatedAt.Format(time.RFC3339))
		}
		if !start.After(device.CommissioningDate) || !end.After(device.CommissioningDate) {
			return nil, reject(KindTemporalOrderingViolation,
				"starttimestamp and endtimestamp should be greater than device commissioning date %s", device.CommissioningDate.Format(time.RFC3339))
		}
	case db.ReadTypeDelta, db.ReadTypeReadMeter:
		if !end.After(device.CreatedAt) {
			return nil, reject(KindTemporalOrderingViolation,
				"endtimestamp is less than or equal to device onboarding date %s", device.CreatedAt.Format(time.RFC3339))
		}
		if !end.After(device.CommissioningDate) {
			return nil, reject(KindTemporalOrderingViolation,
				"endtimestamp should be greater than device commissioning date %s", device.CommissioningDate.Format(time.RFC3339))
		}
		if end.After(now) {
			return nil, reject(KindFutureTimestamp,
				"endtimestamp is greater than current date")
		}
	}

	return &AcceptedRead{
		StartTimestamp: start,
		EndTimestamp:   end,
		ValueWattHour:  valueWh,
	}, nil
}

// normalizeTimestamp converts a wire timestamp to a UTC instant. With a
// timezone the local "YYYY-MM-DD hh:mm:ss[.fff]" form is expected; without
// one the strict UTC wire format is required.
func (v *Validator) normalizeTimestamp(value, timezone string, now time.Time) (time.Time, *Rejection) {
	if timezone != "" {
		_, loc, err := timeparser.ResolveZone(timezone)
		if err != nil {
			return time.Time{}, reject(KindUnknownTimeZone, "%v", err)
		}
		t, _, err := timeparser.NormalizeLocalTimestamp(value, loc, now)
		if err != nil {
			return time.Time{}, rejectionFromTimeError(err)
		}
		return t, nil
	}

	t, err := timeparser.ParseUTCTimestamp(value)
	if err != nil {
		return time.Time{}, rejectionFromTimeError(err)
	}
	return t, nil
}

func rejectionFromTimeError(err error) *Rejection {
	var future timeparser.ErrFutureTimestamp
	if errors.As(err, &future) {
		return reject(KindFutureTimestamp, "%v", err)
	}
	var unknown timeparser.ErrUnknownTimeZone
	if errors.As(err, &unknown) {
		return reject(KindUnknownTimeZone, "%v", err)
	}
	return reject(KindInvalidTimestampFormat, "%v", err)
}
