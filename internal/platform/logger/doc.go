// Package logger provides structured logging functionality for the application
// using Go's standard library log/slog package. Production output is JSON;
// interactive use gets a coloured console handler.
package logger
