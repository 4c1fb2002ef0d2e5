// Package logging provides structured logging for SensorHub.
//
// It wraps log/slog so every entry carries the service name and build
// version. Components derive child loggers with With("component", ...).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets, owner tokens or channel keys.
package logging
