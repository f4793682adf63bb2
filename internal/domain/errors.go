package domain

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the failure taxonomy of a run.
type ErrorKind string

const (
	KindFeedUnavailable    ErrorKind = "feed_unavailable"
	KindFeedMalformed      ErrorKind = "feed_malformed"
	KindFeedEmpty          ErrorKind = "feed_empty"
	KindSummaryTransient   ErrorKind = "summary_transient"
	KindSummaryFatal       ErrorKind = "summary_fatal"
	KindAllSummariesFailed ErrorKind = "all_summaries_failed"
	KindPublishTransient   ErrorKind = "publish_transient"
	KindPublishFailed      ErrorKind = "publish_failed"
	KindNoPapersFound      ErrorKind = "no_papers_found"
	KindEmptyDigest        ErrorKind = "empty_digest"
	KindConfig             ErrorKind = "config"
)

// Error attaches a kind and the failing stage to an underlying cause.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

// NewError wraps err with a kind; stage may be empty for adapter-level errors.
func NewError(kind ErrorKind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds an Error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	if e.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so callers can use errors.Is with a bare kind error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && (other.Stage == "" || other.Stage == e.Stage)
}

// KindOf extracts the error kind from err, or "" when none is attached.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
