package portability

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "mimic-mocks.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// checkSchema validates a decoded JSON document against the import schema.
func checkSchema(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return &ImportFormatError{Index: -1, Message: "schema compilation error: " + err.Error(), Cause: err}
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ImportFormatError{Index: -1, Message: err.Error(), Cause: err}
	}
	leaf := firstLeaf(verr)
	index, field := splitLocation(leaf.InstanceLocation)
	return &ImportFormatError{Index: index, Field: field, Message: leaf.Message, Cause: err}
}

// firstLeaf returns the deepest first cause, which names the concrete
// offending value.
func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// splitLocation turns a JSON pointer like /3/jitter/status into the
// definition index and a dotted field name.
func splitLocation(ptr string) (int, string) {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return -1, ""
	}
	head, rest, _ := strings.Cut(ptr, "/")
	index, err := strconv.Atoi(head)
	if err != nil {
		return -1, strings.ReplaceAll(ptr, "/", ".")
	}
	return index, strings.ReplaceAll(rest, "/", ".")
}
