// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// When the broker runs as a native messaging host, stdout carries protocol
// frames, so NativeConfig sends every line to stderr instead.
//
// Example Usage:
//
//	logger, err := logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development, false))
//	logger.Info("Broker starting", zap.String("addr", cfg.Server.Addr()))
//	logger.With(logging.Port(portID)).Warn("Dropped push", zap.Error(err))
package logging
