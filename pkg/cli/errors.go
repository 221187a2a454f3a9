package cli

import (
	"errors"
	"fmt"
)

// ErrServerNotRunning is reported when the admin API cannot be reached.
var ErrServerNotRunning = errors.New("server not running - start with: mimic serve")

// APIError represents an error response from the admin API.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (field: %s)", e.Message, e.Field)
	}
	return e.Message
}

// Unwrap lets connection failures match ErrServerNotRunning.
func (e *APIError) Unwrap() error {
	if e.ErrorCode == codeConnection {
		return ErrServerNotRunning
	}
	return nil
}

const codeConnection = "connection_error"

// FormatConnectionError returns a user-friendly error message for connection failures.
func FormatConnectionError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == codeConnection {
		return fmt.Sprintf(`Error: %s

Suggestions:
  • Start the server: mimic serve
  • Check if the server is running on the expected port
  • Point at it with --admin-url or MIMIC_ADMIN_URL`, apiErr.Message)
	}
	return err.Error()
}

// clientError wraps err for display to the user.
func clientError(err error) error {
	return errors.New(FormatConnectionError(err))
}
