// Package logging provides structured logging for doorwatch.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("door state", "state", "OPEN")
//
// Never log the device local key or the cloud API secret.
package logging
