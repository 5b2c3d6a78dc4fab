// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"bytes"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/tidwall/jsonc"
)

// ValidateJSONC strips JSONC comments from data, validates the result
// against the definition at schemaPath in schema and returns the compiled
// document. Empty or whitespace-only data is treated as an empty object.
func ValidateJSONC(schema, data []byte, schemaPath string, opts ...Option) (cue.Value, error) {
	return Validate(schema, jsonc.ToJSON(data), schemaPath, opts...)
}

// Validate compiles data (CUE or plain JSON), unifies it with the definition
// at schemaPath in schema and validates the result. Every value must be
// concrete after unification.
func Validate(schema, data []byte, schemaPath string, opts ...Option) (cue.Value, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	filename := o.filename
	if filename == "" {
		filename = "<input>"
	}

	if err := CheckFileSize(data, o.maxFileSize, filename); err != nil {
		return cue.Value{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	def := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, def.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return cue.Value{}, FormatError(userValue.Err(), filename)
	}

	unified := def.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, FormatError(err, filename)
	}

	return userValue, nil
}
