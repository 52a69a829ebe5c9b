package services

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError reports a non-2xx response from an HTTP provider.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	Delay      time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request: http %d: %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
}

// RetryAfter returns the server-supplied delay, if any.
func (e *StatusError) RetryAfter() time.Duration { return e.Delay }

// Retryable reports whether the status is worth retrying in place.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// CheckStatus returns nil for 2xx responses. 408, 429 and 5xx are tagged
// ErrTransient; other statuses are tagged ErrExternalTool.
func CheckStatus(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	delay, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	statusErr := &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       snippet(string(body), 300),
		Delay:      delay,
	}
	if statusErr.Retryable() {
		return Transient(statusErr)
	}
	return fmt.Errorf("%w: %w", ErrExternalTool, statusErr)
}

// ParseRetryAfter decodes a Retry-After header given in seconds or as an
// HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func snippet(content string, limit int) string {
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
