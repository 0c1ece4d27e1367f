package snapshot

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError reports a definition file that does not match the schema.
type SchemaError struct {
	File    string
	Line    int
	Message string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// validator checks JSON documents against the embedded schema.
//
// Thread-safety: a mutex guards the CUE context.
type validator struct {
	mu   sync.Mutex
	once sync.Once
	ctx  *cue.Context
	def  cue.Value
	err  error
}

func (v *validator) init() {
	v.ctx = cuecontext.New()
	schema := v.ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		v.err = fmt.Errorf("compile snapshot schema: %w", err)
		return
	}
	v.def = schema.LookupPath(cue.ParsePath("#Definition"))
	if err := v.def.Err(); err != nil {
		v.err = fmt.Errorf("lookup #Definition: %w", err)
	}
}

// validateDefinition checks data, the contents of file, against #Definition.
func (v *validator) validateDefinition(file string, data []byte) error {
	v.once.Do(v.init)
	if v.err != nil {
		return v.err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.CompileBytes(data, cue.Filename(file))
	if err := doc.Err(); err != nil {
		return schemaError(file, err)
	}
	if err := v.def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return schemaError(file, err)
	}
	return nil
}

// schemaError keeps the first CUE error and its line.
func schemaError(file string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{File: file, Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{File: file, Message: first.Error()}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == file {
			se.Line = pos.Line()
			break
		}
	}
	return se
}
