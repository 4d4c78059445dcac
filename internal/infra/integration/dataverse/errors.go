package dataverse

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("dataverse: record not found")
	ErrNotConfigured  = errors.New("dataverse: client not configured")
	ErrTenantNotFound = errors.New("dataverse: tenant could not be discovered")
)

// Error is a non-2xx answer from the Web API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dataverse: status %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("dataverse: status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
