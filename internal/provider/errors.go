package provider

import (
	"fmt"
	"strings"
)

// MailError carries relay call metadata for logging. Failed sends are never
// retried, so the classification ends at the log line.
type MailError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *MailError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "mail relay error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *MailError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
