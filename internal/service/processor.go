package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/logging"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"github.com/Sivendra-Kumar/drec-origin/internal/mq"
	"github.com/Sivendra-Kumar/drec-origin/internal/plausibility"
	"github.com/Sivendra-Kumar/drec-origin/internal/repository"
	"github.com/Sivendra-Kumar/drec-origin/internal/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const rejectedRoutingKey = "meter.read.rejected"

// IngestMessage is a meter read submission arriving from the API tier.
type IngestMessage struct {
	RequestID        string               `json:"request_id"`
	DeviceExternalID string               `json:"device_external_id"`
	OrganizationID   int64                `json:"organization_id"`
	ReceivedAt       time.Time            `json:"received_at"`
	Submission       validator.Submission `json:"submission"`
}

// IssuanceMessage notifies the worker that the ledger issued a certificate,
// so the per-device audit rows can be recorded.
type IssuanceMessage struct {
	RequestID                 string              `json:"request_id"`
	GroupID                   int64               `json:"group_id"`
	CertificateTransactionUID *string             `json:"certificate_transaction_uid,omitempty"`
	IssuanceStartDate         time.Time           `json:"issuance_startdate"`
	IssuanceEndDate           time.Time           `json:"issuance_enddate"`
	Status                    string              `json:"status"`
	Reads                     []IssuanceReadShare `json:"reads"`
}

// IssuanceReadShare is one device's contribution to an issued certificate.
type IssuanceReadShare struct {
	DeviceID          string `json:"device_id"`
	ReadValueWattHour int64  `json:"readvalue_watthour"`
}

// ProcessorService runs the ingestion pipeline for read submissions and
// records certificate issuance audit rows.
type ProcessorService struct {
	repo      *repository.Repository
	publisher *mq.Publisher
	checker   *plausibility.Checker
	validator *validator.Validator
	metrics   *metrics.Metrics
	logger    *zap.Logger

	workerRoutingKey string
	now              func() time.Time
}

// NewProcessorService creates a new processor service
func NewProcessorService(
	repo *repository.Repository,
	publisher *mq.Publisher,
	checker *plausibility.Checker,
	v *validator.Validator,
	m *metrics.Metrics,
	workerRoutingKey string,
	logger *zap.Logger,
) *ProcessorService {
	return &ProcessorService{
		repo:             repo,
		publisher:        publisher,
		checker:          checker,
		validator:        v,
		metrics:          m,
		logger:           logger,
		workerRoutingKey: workerRoutingKey,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// ProcessSubmission handles one read submission end to end. Validation
// failures reject the whole submission (nothing is written); implausible
// reads are dropped from the batch without failing it.
func (s *ProcessorService) ProcessSubmission(ctx context.Context, body []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing read submission",
		zap.String("device_external_id", msg.DeviceExternalID),
		zap.String("read_type", string(msg.Submission.Type)),
		zap.Int("read_count", len(msg.Submission.Reads)),
	)

	now := s.now()

	device, err := s.repo.FindDeviceByDeveloperExternalID(ctx, msg.DeviceExternalID, msg.OrganizationID)
	if err != nil {
		reqLogger.Error("failed to look up device", zap.Error(err))
		return fmt.Errorf("failed to look up device: %w", err)
	}
	if device == nil {
		s.rejectSubmission(ctx, msg, &validator.Rejection{
			Kind:    validator.KindDeviceNotFound,
			Message: fmt.Sprintf("invalid device id %s", msg.DeviceExternalID),
		}, reqLogger)
		return nil
	}

	devLogger := logging.WithDevice(reqLogger, device.ExternalID)

	accepted, rejection := s.validator.ValidateSubmission(msg.Submission, *device, msg.OrganizationID, now)
	if rejection != nil {
		s.rejectSubmission(ctx, msg, rejection, devLogger)
		return nil
	}

	stored, dropped, err := s.storeReads(ctx, *device, accepted, now, devLogger)
	if err != nil {
		devLogger.Error("failed to store reads", zap.Error(err))
		return err
	}
	if len(stored) == 0 {
		devLogger.Info("no plausible reads left to store", zap.Int("dropped_count", dropped))
		return nil
	}

	for _, read := range stored {
		s.metrics.ReadsAccepted.Inc()
		event := mq.AcceptedReadEvent{
			RequestID:        msg.RequestID,
			DeviceExternalID: device.ExternalID,
			ReadType:         string(msg.Submission.Type),
			EndTimestamp:     read.EndTimestamp.Format(time.RFC3339),
			ValueWattHour:    read.ValueWattHour,
		}
		if read.StartTimestamp != nil {
			start := read.StartTimestamp.Format(time.RFC3339)
			event.StartTimestamp = &start
		}
		if err := s.publisher.PublishAcceptedRead(ctx, event, s.workerRoutingKey); err != nil {
			// The read is committed; a lost event must not fail the message.
			devLogger.Error("failed to publish accepted read event", zap.Error(err))
		}
	}

	devLogger.Info("submission processed",
		zap.Int("stored_count", len(stored)),
		zap.Int("dropped_count", dropped),
	)
	return nil
}

// filterImplausible drops reads that exceed the physical envelope. This is
// the one check that never rejects the submission.
func (s *ProcessorService) filterImplausible(
	accepted []validator.AcceptedRead,
	last *db.MeterRead,
	device db.DeviceSnapshot,
	now time.Time,
	logger *zap.Logger,
) []validator.AcceptedRead {
	plausible := make([]validator.AcceptedRead, 0, len(accepted))
	for _, read := range accepted {
		candidate := db.MeterRead{
			DeviceExternalID: device.ExternalID,
			StartTimestamp:   read.StartTimestamp,
			EndTimestamp:     read.EndTimestamp,
			ValueWattHour:    read.ValueWattHour,
		}
		if !s.checker.IsPlausible(candidate, last, device, now) {
			s.metrics.ReadsDroppedImplausible.Inc()
			logger.Warn("dropping implausible read",
				zap.Time("end_timestamp", read.EndTimestamp),
				zap.Int64("value_watt_hour", read.ValueWattHour),
			)
			continue
		}
		plausible = append(plausible, read)
	}
	return plausible
}

// storeReads applies the plausibility filter and persists the survivors.
// The latest read is fetched only after the device lock is held, so a
// concurrent submission for the same device cannot slip a fresher read past
// the envelope comparison.
func (s *ProcessorService) storeReads(
	ctx context.Context,
	device db.DeviceSnapshot,
	accepted []validator.AcceptedRead,
	now time.Time,
	logger *zap.Logger,
) ([]db.MeterRead, int, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockDevice(ctx, tx, device.ExternalID); err != nil {
		return nil, 0, err
	}

	last, err := s.repo.LatestReadTx(ctx, tx, device.ExternalID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load latest read: %w", err)
	}

	plausible := s.filterImplausible(accepted, last, device, now, logger)
	dropped := len(accepted) - len(plausible)
	if len(plausible) == 0 {
		return nil, dropped, nil
	}

	stored := make([]db.MeterRead, 0, len(plausible))
	for _, read := range plausible {
		row := db.MeterRead{
			DeviceExternalID: device.ExternalID,
			StartTimestamp:   read.StartTimestamp,
			EndTimestamp:     read.EndTimestamp,
			ValueWattHour:    read.ValueWattHour,
		}
		if err := s.repo.InsertMeterReadTx(ctx, tx, &row); err != nil {
			return nil, dropped, err
		}
		stored = append(stored, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dropped, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, dropped, nil
}

func (s *ProcessorService) rejectSubmission(ctx context.Context, msg IngestMessage, rejection *validator.Rejection, logger *zap.Logger) {
	s.metrics.ReadsRejected.WithLabelValues(string(rejection.Kind)).Inc()
	logger.Info("submission rejected",
		zap.String("kind", string(rejection.Kind)),
		zap.String("message", rejection.Message),
	)

	event := RejectedReadEvent{
		RequestID:        msg.RequestID,
		DeviceExternalID: msg.DeviceExternalID,
		Kind:             string(rejection.Kind),
		Message:          rejection.Message,
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal rejection event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishRaw(ctx, body, rejectedRoutingKey); err != nil {
		logger.Error("failed to publish rejection event", zap.Error(err))
	}
}

// RejectedReadEvent carries the structured rejection back to the API tier.
type RejectedReadEvent struct {
	RequestID        string `json:"request_id"`
	DeviceExternalID string `json:"device_external_id"`
	Kind             string `json:"kind"`
	Message          string `json:"message"`
}

// ProcessIssuance appends the per-device audit rows for one issued
// certificate. Rows for all devices commit atomically.
func (s *ProcessorService) ProcessIssuance(ctx context.Context, body []byte) error {
	var msg IssuanceMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal issuance message: %w", err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("recording certificate issuance",
		zap.Int64("group_id", msg.GroupID),
		zap.Int("device_count", len(msg.Reads)),
	)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, share := range msg.Reads {
		log := db.CertificateIssueLog{
			GroupID:                   msg.GroupID,
			DeviceID:                  share.DeviceID,
			CertificateTransactionUID: msg.CertificateTransactionUID,
			IssuanceStartDate:         msg.IssuanceStartDate,
			IssuanceEndDate:           msg.IssuanceEndDate,
			ReadValueWattHour:         share.ReadValueWattHour,
			Status:                    msg.Status,
		}
		if err := s.repo.InsertCertificateIssueLogTx(ctx, tx, &log); err != nil {
			reqLogger.Error("failed to insert issue log", zap.Error(err), zap.String("device_id", share.DeviceID))
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for range msg.Reads {
		s.metrics.IssueLogsRecorded.Inc()
	}
	reqLogger.Info("issuance recorded", zap.Int("rows", len(msg.Reads)))
	return nil
}
