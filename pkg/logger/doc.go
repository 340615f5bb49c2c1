// Package logger wraps zerolog behind a small interface used by the API
// client, the image pool and the fetch orchestrator.
//
// Basic usage:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("site_id", site.SiteID).Info("Processing site")
//
// Console output is human readable and goes to stderr. When a log file is
// configured the same records are appended to it as JSON lines.
//
// Tests use NewTestLogger to capture records or NewNopLogger to drop them.
package logger
