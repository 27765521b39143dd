package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds the production logger every log line of the worker and
// the reconcile CLI flows through. The service name is stamped on each
// entry so ingest and reconciliation output can be told apart downstream.
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger scoped to one submission or issuance
// message.
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// WithDevice returns a logger scoped to one device's read series.
func WithDevice(logger *zap.Logger, deviceExternalID string) *zap.Logger {
	return logger.With(zap.String("device_external_id", deviceExternalID))
}
