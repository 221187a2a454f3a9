// Package portability imports and exports the complete set of mock
// definitions as a single document.
//
// The document is a JSON array of definitions in creation order. YAML is
// accepted and produced as an alternative encoding of the same model.
// Imports are all or nothing: the document is checked against an embedded
// JSON Schema, every definition is validated, and only then is the
// registry content replaced.
//
//	codec := portability.New(reg)
//	data, err := codec.ExportData(portability.FormatYAML)
//	...
//	err = codec.ImportData(data, portability.FormatYAML)
package portability
