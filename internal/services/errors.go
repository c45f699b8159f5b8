package services

import "fmt"

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// UpstreamError reports a non-success reply from the answer service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("answer service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("answer service returned status %d: %s", e.StatusCode, e.Body)
}
