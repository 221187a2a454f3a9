package portability

import (
	"fmt"
	"strings"
)

// Format is the encoding of an import or export document.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// IsValid returns true if the format is a known format.
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatYAML
}

// ContentType returns the media type used when serving the format.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// ParseFormat parses a format name. The empty string selects JSON and
// "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (supported: json, yaml)", s)
}

// FormatFromContentType picks the format of a request body from its
// Content-Type. Anything mentioning yaml is YAML, the rest is JSON.
func FormatFromContentType(ct string) Format {
	if strings.Contains(strings.ToLower(ct), "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// FormatFromFilename picks the format from a file extension.
func FormatFromFilename(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}
