package dto

import "strings"

// ValidationError reports a request payload that is malformed or incomplete.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "field required")
	}
	return nil
}
