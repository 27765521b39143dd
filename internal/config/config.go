package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	MetricsPort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                string
	IngestExchange     string
	IngestQueue        string
	IngestRoutingKey   string
	IssuanceQueue      string
	IssuanceRoutingKey string
	WorkerExchange     string
	WorkerRoutingKey   string
	DLQQueue           string
	PrefetchCount      int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "drec-read-worker"),
		MetricsPort: getEnvAsInt("METRICS_PORT", 8081),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                getEnv("RABBITMQ_URL", ""),
			IngestExchange:     getEnv("RABBITMQ_INGEST_EXCHANGE", "drec.reads.ingest.exchange"),
			IngestQueue:        getEnv("RABBITMQ_INGEST_QUEUE", "drec.reads.ingest.queue"),
			IngestRoutingKey:   getEnv("RABBITMQ_INGEST_ROUTING_KEY", "meter.read.submitted"),
			IssuanceQueue:      getEnv("RABBITMQ_ISSUANCE_QUEUE", "drec.certificates.issuance.queue"),
			IssuanceRoutingKey: getEnv("RABBITMQ_ISSUANCE_ROUTING_KEY", "certificate.issued"),
			WorkerExchange:     getEnv("RABBITMQ_WORKER_EXCHANGE", "drec.reads.events.exchange"),
			WorkerRoutingKey:   getEnv("RABBITMQ_WORKER_ROUTING_KEY", "meter.read.accepted"),
			DLQQueue:           getEnv("RABBITMQ_DLQ_QUEUE", "drec.reads.ingest.dlq"),
			PrefetchCount:      getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
