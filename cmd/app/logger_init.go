package main

import (
	"github.com/maternar/sync-engine/internal/config"
	"github.com/maternar/sync-engine/internal/logger"
	"github.com/maternar/sync-engine/internal/server"
)

// initLogger initializes the logger using centralized app configuration
func initLogger(cfg *config.Config) {
	addSource := cfg.Environment == "dev" || cfg.Environment == "development"

	loggerConfig := logger.NewConfig(
		cfg.LogLevel,
		cfg.LogFormat,
		config.ServiceName,
		server.Version,
		cfg.Environment,
		addSource,
	)

	logger.InitLogger(loggerConfig)
}
