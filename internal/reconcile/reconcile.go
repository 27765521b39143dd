package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"go.uber.org/zap"
)

// CertificateMetadata is the JSON payload stored alongside each issued
// certificate. Older certificates predate the transaction UID.
type CertificateMetadata struct {
	DeviceIDs                 []int64 `json:"deviceIds"`
	CertificateTransactionUID string  `json:"certificateTransactionUID,omitempty"`
}

// CertificateWithPerDeviceLog is the reconciliation result for one
// certificate: its generation window and all matched issue log entries.
type CertificateWithPerDeviceLog struct {
	Certificate             db.Certificate
	CertificateStartDate    string
	CertificateEndDate      string
	PerDeviceCertificateLog []db.CertificateIssueLog
}

// matchStrategy selects how issue logs are located for a certificate. The
// transaction UID path is authoritative; the date-window path is a legacy
// fallback that can mismatch near read-aggregation boundaries.
type matchStrategy int

const (
	byDateWindow matchStrategy = iota
	byTransactionUID
)

func strategyFor(meta CertificateMetadata) matchStrategy {
	if meta.CertificateTransactionUID != "" {
		return byTransactionUID
	}
	return byDateWindow
}

// CertificateLedger is the read-only view of issued certificates.
type CertificateLedger interface {
	CertificatesByGroup(ctx context.Context, groupID int64) ([]db.Certificate, error)
}

// IssueLogStore locates audit log rows for a device within a group.
type IssueLogStore interface {
	IssueLogsByTransactionUID(ctx context.Context, groupID int64, deviceID string, transactionUID string) ([]db.CertificateIssueLog, error)
	IssueLogsByDateWindow(ctx context.Context, groupID int64, deviceID string, start, end time.Time) ([]db.CertificateIssueLog, error)
}

// DeviceRegistry resolves the numeric device ids carried in certificate
// metadata to device snapshots.
type DeviceRegistry interface {
	FindDeviceByID(ctx context.Context, id int64) (*db.DeviceSnapshot, error)
}

// Engine cross-references issued certificates against per-device issue
// logs.
type Engine struct {
	ledger  CertificateLedger
	logs    IssueLogStore
	devices DeviceRegistry
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(ledger CertificateLedger, logs IssueLogStore, devices DeviceRegistry, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:  ledger,
		logs:    logs,
		devices: devices,
		metrics: m,
		logger:  logger,
	}
}

// ReconcileGroup assembles the per-device certificate log for every
// certificate issued to the group. Reconciliation is best-effort: a
// certificate with malformed metadata is skipped with a logged error, the
// rest of the batch completes.
func (e *Engine) ReconcileGroup(ctx context.Context, groupID int64) ([]CertificateWithPerDeviceLog, error) {
	certificates, err := e.ledger.CertificatesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	out := make([]CertificateWithPerDeviceLog, 0, len(certificates))
	for _, cert := range certificates {
		entry := CertificateWithPerDeviceLog{
			Certificate:             cert,
			CertificateStartDate:    time.Unix(cert.GenerationStartTime, 0).UTC().Format(time.RFC3339),
			CertificateEndDate:      time.Unix(cert.GenerationEndTime, 0).UTC().Format(time.RFC3339),
			PerDeviceCertificateLog: []db.CertificateIssueLog{},
		}

		var meta CertificateMetadata
		if err := json.Unmarshal(cert.Metadata, &meta); err != nil {
			e.logger.Error("certificate does not contain valid metadata, skipping",
				zap.Int64("certificate_id", cert.ID),
				zap.Int64("group_id", groupID),
				zap.Error(err),
			)
			e.metrics.CertificatesSkipped.Inc()
			out = append(out, entry)
			continue
		}

		e.collectDeviceLogs(ctx, groupID, cert, meta, &entry)
		e.metrics.CertificatesReconciled.Inc()
		out = append(out, entry)
	}

	return out, nil
}

func (e *Engine) collectDeviceLogs(
	ctx context.Context,
	groupID int64,
	cert db.Certificate,
	meta CertificateMetadata,
	entry *CertificateWithPerDeviceLog,
) {
	// Issuance rounds the generation window to whole seconds, so search one
	// second beyond each end.
	searchStart := time.Unix(cert.GenerationStartTime-1, 0).UTC()
	searchEnd := time.Unix(cert.GenerationEndTime+1, 0).UTC()
	strategy := strategyFor(meta)

	for _, deviceID := range meta.DeviceIDs {
		device, err := e.devices.FindDeviceByID(ctx, deviceID)
		if err != nil {
			e.logger.Error("failed to resolve certificate device",
				zap.Int64("device_id", deviceID),
				zap.Int64("certificate_id", cert.ID),
				zap.Error(err),
			)
			continue
		}

		var logs []db.CertificateIssueLog
		switch strategy {
		case byTransactionUID:
			logs, err = e.logs.IssueLogsByTransactionUID(ctx, groupID, device.ExternalID, meta.CertificateTransactionUID)
		default:
			logs, err = e.logs.IssueLogsByDateWindow(ctx, groupID, device.ExternalID, searchStart, searchEnd)
		}
		if err != nil {
			e.logger.Error("failed to retrieve device issue logs",
				zap.String("device_external_id", device.ExternalID),
				zap.Int64("certificate_id", cert.ID),
				zap.Error(err),
			)
			continue
		}

		entry.PerDeviceCertificateLog = append(entry.PerDeviceCertificateLog, logs...)
	}
}

// WindowMatches reports whether a log entry overlaps the inclusive search
// window: its issuance start or end falls inside it, boundary equality
// included. Repository queries mirror this predicate in SQL.
func WindowMatches(log db.CertificateIssueLog, searchStart, searchEnd time.Time) bool {
	return within(log.IssuanceStartDate, searchStart, searchEnd) ||
		within(log.IssuanceEndDate, searchStart, searchEnd)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
