package mock

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/getmockd/mimic/pkg/script"
)

// AdminPrefix is the path prefix reserved for the admin API. Definitions may
// not claim paths underneath it.
const AdminPrefix = "/_admin"

// MaxLatencyMs bounds the simulated latency of a single response.
const MaxLatencyMs = 60000

// ValidationError represents a validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// headerNameRegex validates HTTP header names (RFC 7230).
var headerNameRegex = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+\-.^_\x60|~]+$`)

// Validate checks the definition. Only the active mode's response must be
// complete, but range invariants hold for every block that is present.
func (d *Definition) Validate() error {
	if d.Path == "" {
		return &ValidationError{Field: "path", Message: "path is required"}
	}
	if !strings.HasPrefix(d.Path, "/") {
		return &ValidationError{Field: "path", Message: "path must start with /"}
	}
	if d.Path == AdminPrefix || strings.HasPrefix(d.Path, AdminPrefix+"/") {
		return &ValidationError{Field: "path", Message: "paths under " + AdminPrefix + " are reserved"}
	}
	if !slices.Contains(Methods, strings.ToUpper(d.Method)) {
		return &ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("invalid HTTP method: %q (allowed: %s)", d.Method, strings.Join(Methods, ", ")),
		}
	}
	if !d.ResponseMode.Valid() {
		return &ValidationError{
			Field:   "responseMode",
			Message: fmt.Sprintf("unknown response mode %q", d.ResponseMode),
		}
	}

	activeStatic := d.ResponseMode == ModeStatic || d.ResponseMode == ModeJittered
	if err := d.Response.validate("", activeStatic); err != nil {
		return err
	}

	if d.Jitter != nil {
		if d.Jitter.ProbabilityPercent < 0 || d.Jitter.ProbabilityPercent > 100 {
			return &ValidationError{
				Field:   "jitter.probabilityPercent",
				Message: fmt.Sprintf("probabilityPercent must be between 0-100, got %d", d.Jitter.ProbabilityPercent),
			}
		}
		if err := d.Jitter.Response.validate("jitter.", d.ResponseMode == ModeJittered); err != nil {
			return err
		}
	}

	switch d.ResponseMode {
	case ModeJittered:
		if d.Jitter == nil {
			return &ValidationError{Field: "jitter", Message: "jitter configuration is required in JITTERED mode"}
		}
	case ModeScripted:
		if d.Scripting == nil || strings.TrimSpace(d.Scripting.Script) == "" {
			return &ValidationError{Field: "scripting.script", Message: "script is required in SCRIPTED mode"}
		}
		if err := script.Check(d.Scripting.Script); err != nil {
			return &ValidationError{Field: "scripting.script", Message: err.Error()}
		}
	}
	return nil
}

// validate checks a response block. When active is false only the range and
// format invariants are enforced, so stale configuration of an inactive mode
// can stay stored.
func (r *Response) validate(prefix string, active bool) error {
	if active && (r.Status < 100 || r.Status > 599) {
		return &ValidationError{
			Field:   prefix + "status",
			Message: fmt.Sprintf("status must be between 100-599, got %d", r.Status),
		}
	}
	if r.LatencyMs < 0 {
		return &ValidationError{Field: prefix + "latencyMs", Message: "latencyMs must be >= 0"}
	}
	if r.LatencyMs > MaxLatencyMs {
		return &ValidationError{
			Field:   prefix + "latencyMs",
			Message: fmt.Sprintf("latencyMs must be <= %d", MaxLatencyMs),
		}
	}

	switch r.BodyType {
	case BodyJSON, "":
		if len(r.Body) > 0 && !json.Valid(r.Body) {
			return &ValidationError{Field: prefix + "body", Message: "body is not valid JSON"}
		}
	case BodyText:
		if len(r.Body) > 0 {
			var s string
			if err := json.Unmarshal(r.Body, &s); err != nil {
				return &ValidationError{Field: prefix + "body", Message: "text body must be a string"}
			}
		}
	default:
		return &ValidationError{
			Field:   prefix + "bodyType",
			Message: fmt.Sprintf("bodyType must be json or text, got %q", r.BodyType),
		}
	}

	for _, h := range r.Headers {
		if !headerNameRegex.MatchString(h.Key) {
			return &ValidationError{
				Field:   prefix + "headers",
				Message: fmt.Sprintf("invalid header name: %q", h.Key),
			}
		}
	}
	return nil
}
