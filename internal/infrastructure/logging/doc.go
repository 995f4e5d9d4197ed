// Package logging provides structured logging for Hydroponics Core.
//
// It wraps log/slog with the service defaults (service name, version) and
// level/format selection driven by config.LoggingConfig.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("server starting", "port", cfg.API.Port)
//
//	ingestLog := logger.With("component", "ingest")
//	ingestLog.Warn("reading rejected", "topic", topic)
package logging
