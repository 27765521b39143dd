package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/drec")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServiceName != "drec-read-worker" {
		t.Errorf("Unexpected default service name: %s", cfg.ServiceName)
	}
	if cfg.MetricsPort != 8081 {
		t.Errorf("Unexpected default metrics port: %d", cfg.MetricsPort)
	}
	if cfg.RabbitMQ.IngestRoutingKey != "meter.read.submitted" {
		t.Errorf("Unexpected ingest routing key: %s", cfg.RabbitMQ.IngestRoutingKey)
	}
	if cfg.RabbitMQ.IssuanceRoutingKey != "certificate.issued" {
		t.Errorf("Unexpected issuance routing key: %s", cfg.RabbitMQ.IssuanceRoutingKey)
	}
	if cfg.RabbitMQ.PrefetchCount != 10 {
		t.Errorf("Unexpected prefetch count: %d", cfg.RabbitMQ.PrefetchCount)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RABBITMQ_URL", "amqp://localhost")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error when DATABASE_URL is unset")
	}
}

func TestLoadRequiresRabbitMQURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/drec")
	t.Setenv("RABBITMQ_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error when RABBITMQ_URL is unset")
	}
}
