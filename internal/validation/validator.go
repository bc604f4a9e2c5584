// Package validation checks request bodies against the embedded JSON schemas
// before they are decoded.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per request body shape.
const (
	SchemaRegister  = "register"
	SchemaLogin     = "login"
	SchemaDeposit   = "deposit"
	SchemaCreateJob = "create_job"
	SchemaApply     = "apply"
	SchemaSelect    = "select"
	SchemaSubmit    = "submit"
	SchemaVerify    = "verify"
	SchemaUpload    = "upload"
)

// ErrValidation can be used with errors.Is to detect schema failures.
var ErrValidation = errors.New("validation failed")

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema. The schema name is the file name without extension.
func NewValidator() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		schemas[name], err = jsonschema.CompileString("https://verimarket.dev/schemas/"+e.Name(), string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Has reports whether a schema with the given name was compiled.
func (v *Validator) Has(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// Validate rejects body unless it is JSON matching the named schema.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
