// Package logging provides structured logging for modemsim.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the simulator.
//
// # Features
//
//   - Text output for interactive use (human-readable)
//   - JSON output for CI pipelines (machine-parsable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("device ready", "path", dev.PeerPath)
//	logger.Error("allocation failed", "error", err)
package logging
