// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components receive a *Logger by injection and attach fields with zap:
//
//	logger.Info("agent started", zap.Int("pid", pid))
package logging
