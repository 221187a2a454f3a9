package portability

import (
	"fmt"
	"strings"
)

// ImportFormatError describes why an import document was rejected.
// Index is the offending definition, or -1 when the document as a whole is
// malformed.
type ImportFormatError struct {
	Index   int
	Field   string
	Message string
	Cause   error
}

func (e *ImportFormatError) Error() string {
	var b strings.Builder
	b.WriteString("import failed")
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": mock %d", e.Index)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

func (e *ImportFormatError) Unwrap() error {
	return e.Cause
}

// ExportError represents an error during export.
type ExportError struct {
	Format  Format
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	msg := e.Message
	if e.Format != "" {
		msg = string(e.Format) + ": " + msg
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}
