package validator

import "fmt"

// RejectionKind classifies why a read submission was refused.
type RejectionKind string

const (
	KindInvalidTimestampFormat    RejectionKind = "InvalidTimestampFormat"
	KindUnknownTimeZone           RejectionKind = "UnknownTimeZone"
	KindFutureTimestamp           RejectionKind = "FutureTimestamp"
	KindMissingRequiredField      RejectionKind = "MissingRequiredField"
	KindTemporalOrderingViolation RejectionKind = "TemporalOrderingViolation"
	KindNonPositiveValue          RejectionKind = "NonPositiveValue"
	KindOrganizationMismatch      RejectionKind = "OrganizationMismatch"
	KindBatchSizeExceeded         RejectionKind = "BatchSizeExceeded"
	KindUnsupportedUnit           RejectionKind = "UnsupportedUnit"
	KindDeviceNotFound            RejectionKind = "DeviceNotFound"
)

// Rejection aborts a whole submission: nothing before it is persisted.
type Rejection struct {
	Kind    RejectionKind
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

func reject(kind RejectionKind, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
