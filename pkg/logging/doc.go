// Package logging provides structured logging configuration for callbackd.
//
// This package wraps log/slog to provide consistent logging across all
// callbackd components. It supports configurable log levels and output
// formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("listener started", "operation", "chargingSessionChanged")
//	logger.Error("callback failed", "error", err)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor. If no logger is
// provided, use logging.Nop() for a no-op logger.
package logging
