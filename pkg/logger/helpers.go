package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest records a completed HTTP exchange. Status 0 means the request
// never got a response.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.ErrorWithFields("HTTP request failed", fields)
	}
}

// LogImageSaved records a single image written to disk
func LogImageSaved(l Logger, path string, bytes int) {
	l.DebugWithFields("Image saved", map[string]interface{}{
		"path":  path,
		"bytes": bytes,
	})
}

// LogSiteCompleted records a site being added to the checkpoint
func LogSiteCompleted(l Logger, siteID string, devices, images int) {
	l.InfoWithFields("Site completed", map[string]interface{}{
		"site_id": siteID,
		"devices": devices,
		"images":  images,
	})
}

// LogRunSummary records the totals of a finished run
func LogRunSummary(l Logger, fields map[string]interface{}) {
	l.InfoWithFields("Run finished", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
