package http

import (
	"errors"
	"fmt"
)

var errAuthNotConfigured = errors.New("auth service not configured")

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("auth service returned %d", e.status)
}
