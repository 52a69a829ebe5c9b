package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Classification markers. Stage code tags failures with one of these so the
// resolver and summarizer can decide between falling back, retrying in place,
// or surfacing a terminal failure.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
	ErrNotAvailable  = errors.New("not available")
)

// Terminal kinds surfaced to the caller.
var (
	ErrNoCaptionsAvailable = errors.New("no captions available")
	ErrDurationExceeded    = errors.New("duration exceeded")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrSummarizationFailed = errors.New("summarization failed")
	ErrSchemaViolation     = errors.New("schema violation")
	ErrEmptyTranscript     = errors.New("empty transcript")
	ErrCacheCorruption     = errors.New("cache corruption")
)

// StageError carries the classification kind and the stage at which a run
// failed. errors.Is matches both the kind and the wrapped cause.
type StageError struct {
	Kind      error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *StageError) Error() string {
	kind := "service failure"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	var b strings.Builder
	b.WriteString(kind)
	if e.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(e.Stage)
	}
	if detail := buildDetail("", e.Operation, e.Message); detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds a StageError tagged with kind. A nil kind defaults to
// ErrTransient.
func Wrap(kind error, stage, operation, message string, err error) error {
	if kind == nil {
		kind = ErrTransient
	}
	return &StageError{
		Kind:      kind,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// Transient tags err as retryable without adding stage context.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// NotAvailable tags err as an absence classification.
func NotAvailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotAvailable, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err should be retried in place. Cancellation
// is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StageOf returns the stage recorded on the outermost StageError.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// ExitCode maps a terminal error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, ErrNoCaptionsAvailable):
		return 3
	case errors.Is(err, ErrDurationExceeded):
		return 4
	case errors.Is(err, ErrSourceUnavailable):
		return 5
	case errors.Is(err, ErrTranscriptionFailed):
		return 6
	case errors.Is(err, ErrSummarizationFailed):
		return 7
	case errors.Is(err, ErrSchemaViolation):
		return 8
	case errors.Is(err, ErrEmptyTranscript):
		return 9
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return 2
	default:
		return 1
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, ": ")
}
