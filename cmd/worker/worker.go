package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/config"
	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"github.com/Sivendra-Kumar/drec-origin/internal/mq"
	"github.com/Sivendra-Kumar/drec-origin/internal/plausibility"
	"github.com/Sivendra-Kumar/drec-origin/internal/repository"
	"github.com/Sivendra-Kumar/drec-origin/internal/service"
	"github.com/Sivendra-Kumar/drec-origin/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) error {
	// Context for the consumers, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	ingest, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Name:             "ingest",
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessSubmission,
	})
	if err != nil {
		cancel()
		return err
	}

	issuance, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Name:             "issuance",
		Queue:            cfg.RabbitMQ.IssuanceQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IssuanceRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessIssuance,
	})
	if err != nil {
		cancel()
		ingest.Close()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting worker consumers",
				zap.String("ingest_queue", cfg.RabbitMQ.IngestQueue),
				zap.String("issuance_queue", cfg.RabbitMQ.IssuanceQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			if err := ingest.Start(ctx); err != nil {
				return err
			}
			return issuance.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := ingest.Close(); err != nil {
				logger.Error("failed to close ingest consumer", zap.Error(err))
				return err
			}
			if err := issuance.Close(); err != nil {
				logger.Error("failed to close issuance consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return nil
}

func startMetricsServer(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("metrics server listening", zap.Int("port", cfg.MetricsPort))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvidePlausibilityChecker creates a new plausibility checker instance
func ProvidePlausibilityChecker() *plausibility.Checker {
	return plausibility.NewChecker()
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator()
}

// ProvideMetrics creates the metrics registry
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.WorkerExchange, logger)
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(
	repo *repository.Repository,
	publisher *mq.Publisher,
	checker *plausibility.Checker,
	v *validator.Validator,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(repo, publisher, checker, v, m, cfg.RabbitMQ.WorkerRoutingKey, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}
