package main

import (
	"github.com/Sivendra-Kumar/drec-origin/internal/config"
	"github.com/Sivendra-Kumar/drec-origin/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
