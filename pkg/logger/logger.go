package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text handler for development, JSON for production
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithWorker adds a worker name to logger context
func (l *Logger) WithWorker(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("worker", name)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request on the ops surface
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
	)
}

// Booking lifecycle logging methods

// LogReservationExpired logs a pending booking released by the reaper
func (l *Logger) LogReservationExpired(ctx context.Context, bookingID string, guests int) {
	l.Logger.InfoContext(ctx,
		"Reservation Expired",
		slog.String("booking_id", bookingID),
		slog.Int("guests_released", guests),
	)
}

// LogOperationCancelled logs an under-booked operation cancellation
func (l *Logger) LogOperationCancelled(ctx context.Context, operationID string, occupancy float64, bookingsCancelled int, refunded float64) {
	l.Logger.InfoContext(ctx,
		"Operation Auto-Cancelled",
		slog.String("operation_id", operationID),
		slog.Float64("occupancy_rate", occupancy),
		slog.Int("bookings_cancelled", bookingsCancelled),
		slog.Float64("refunded_total", refunded),
	)
}

// LogRevenueTransferred logs a matured hold moving into the wallet
func (l *Logger) LogRevenueTransferred(ctx context.Context, bookingID, operatorID string, gross, net float64) {
	l.Logger.InfoContext(ctx,
		"Revenue Transferred",
		slog.String("booking_id", bookingID),
		slog.String("operator_id", operatorID),
		slog.Float64("gross", gross),
		slog.Float64("net", net),
	)
}

// LogHoldIntegrityWarning logs an insufficient-hold rejection, which means
// the account-level hold fell below the booking-level holds somewhere upstream
func (l *Logger) LogHoldIntegrityWarning(ctx context.Context, operatorID string, requested float64) {
	l.Logger.WarnContext(ctx,
		"Hold Integrity Warning",
		slog.String("operator_id", operatorID),
		slog.Float64("requested", requested),
	)
}

// Worker logging methods

// LogWorkerTick logs the outcome of one worker tick
func (l *Logger) LogWorkerTick(ctx context.Context, worker string, processed int, duration time.Duration) {
	l.Logger.InfoContext(ctx,
		"Worker Tick",
		slog.String("worker", worker),
		slog.Int("processed", processed),
		slog.Duration("duration", duration),
	)
}

// LogWorkerError logs a tick-level worker failure
func (l *Logger) LogWorkerError(ctx context.Context, worker string, err error) {
	l.Logger.ErrorContext(ctx,
		"Worker Tick Failed",
		slog.String("worker", worker),
		slog.String("error", err.Error()),
	)
}

// Helper methods for common patterns

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
