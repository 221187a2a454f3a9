package portability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
)

// Store is the registry surface the codec needs.
type Store interface {
	List() []*mock.Definition
	ReplaceAll(defs []*mock.Definition) error
}

// Codec converts between the registry and import/export documents.
type Codec struct {
	store Store
	log   *slog.Logger
}

// New creates a Codec backed by store.
func New(store Store) *Codec {
	return &Codec{store: store, log: logging.Nop()}
}

// SetLogger sets the operational logger.
func (c *Codec) SetLogger(log *slog.Logger) {
	if log != nil {
		c.log = log
	} else {
		c.log = logging.Nop()
	}
}

// Export returns every definition in creation order.
func (c *Codec) Export() []*mock.Definition {
	return c.store.List()
}

// Import validates defs and atomically replaces the registry content with
// them. On error nothing changes. An empty slice clears the registry.
func (c *Codec) Import(defs []*mock.Definition) error {
	seen := make(map[string]int, len(defs))
	for i, def := range defs {
		if def == nil {
			return &ImportFormatError{Index: i, Message: "definition is null"}
		}
		d := def.Clone()
		d.Normalize()
		if err := d.Validate(); err != nil {
			return asImportError(i, err)
		}
		if d.ID == "" {
			continue
		}
		if prev, dup := seen[d.ID]; dup {
			return &ImportFormatError{
				Index:   i,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id %q (also used by mock %d)", d.ID, prev),
			}
		}
		seen[d.ID] = i
	}

	if err := c.store.ReplaceAll(defs); err != nil {
		return asImportError(-1, err)
	}
	c.log.Info("mocks imported", "count", len(defs))
	return nil
}

// ExportData serializes all definitions in the given format.
func (c *Codec) ExportData(format Format) ([]byte, error) {
	defs := c.Export()
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return nil, &ExportError{Format: format, Message: "failed to encode mocks", Cause: err}
	}

	switch format {
	case FormatJSON, "":
		return append(data, '\n'), nil
	case FormatYAML:
		// YAML is produced from the JSON document model so both encodings
		// share field names and shapes.
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &ExportError{Format: format, Message: "failed to encode mocks", Cause: err}
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, &ExportError{Format: format, Message: "failed to encode YAML", Cause: err}
		}
		if err := enc.Close(); err != nil {
			return nil, &ExportError{Format: format, Message: "failed to encode YAML", Cause: err}
		}
		return buf.Bytes(), nil
	}
	return nil, &ExportError{Format: format, Message: "unsupported format"}
}

// ImportData parses a document in the given format and imports it.
func (c *Codec) ImportData(data []byte, format Format) error {
	defs, err := Decode(data, format)
	if err != nil {
		return err
	}
	return c.Import(defs)
}

// Decode parses and schema-checks a document without importing it.
func Decode(data []byte, format Format) ([]*mock.Definition, error) {
	jsonData := data
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		jsonData = converted
	} else if format != FormatJSON && format != "" {
		return nil, &ImportFormatError{Index: -1, Message: fmt.Sprintf("unsupported format %q", format)}
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ImportFormatError{Index: -1, Message: "invalid JSON: " + err.Error(), Cause: err}
	}
	if dec.More() {
		return nil, &ImportFormatError{Index: -1, Message: "invalid JSON: unexpected data after document"}
	}
	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	strict := json.NewDecoder(bytes.NewReader(jsonData))
	strict.DisallowUnknownFields()
	var defs []*mock.Definition
	if err := strict.Decode(&defs); err != nil {
		return nil, &ImportFormatError{Index: -1, Message: err.Error(), Cause: err}
	}
	if defs == nil {
		defs = []*mock.Definition{}
	}
	return defs, nil
}

// yamlToJSON converts a YAML document into its JSON equivalent.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ImportFormatError{Index: -1, Message: "invalid YAML: " + err.Error(), Cause: err}
	}
	if doc == nil {
		doc = []any{}
	}
	out, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, &ImportFormatError{Index: -1, Message: "invalid YAML: " + err.Error(), Cause: err}
	}
	return out, nil
}

// jsonCompatible rewrites maps with non-string keys, which yaml.v3 produces
// for documents such as `1: a`.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	}
	return v
}

// asImportError maps validation failures onto ImportFormatError.
func asImportError(index int, err error) error {
	var ife *ImportFormatError
	if errors.As(err, &ife) {
		return err
	}
	var verr *mock.ValidationError
	if errors.As(err, &verr) {
		return &ImportFormatError{Index: index, Field: verr.Field, Message: verr.Message, Cause: err}
	}
	return &ImportFormatError{Index: index, Message: err.Error(), Cause: err}
}
