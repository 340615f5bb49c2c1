package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies the failures that can end a fetch run
type Kind string

const (
	KindConfigurationMissing Kind = "configuration_missing"
	KindHTTP                 Kind = "http"
	KindCorruptCheckpoint    Kind = "corrupt_checkpoint"
	KindFilesystem           Kind = "filesystem"
	KindParse                Kind = "parse"
)

// Error is a classified failure. URL and StatusCode are only set for KindHTTP
// and KindParse; a StatusCode of 0 means the request never got a response.
type Error struct {
	Kind       Kind
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTP && e.StatusCode != 0:
		return fmt.Sprintf("%s: %s returned status %d", e.Op, e.URL, e.StatusCode)
	case e.URL != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// HTTP creates an error for a non-success response or a transport failure
func HTTP(op, url string, statusCode int, err error) *Error {
	return &Error{Kind: KindHTTP, Op: op, URL: url, StatusCode: statusCode, Err: err}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// URL returns the request URL carried by err, or ""
func URL(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.URL
	}
	return ""
}

// IsSuccessStatus reports whether a list endpoint response counts as success
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
