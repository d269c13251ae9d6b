package abi

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Descriptor is the compiled CUE description of one application interface.
//
// Descriptors are written under the top-level "application" field:
//
//	application: counter: {
//		parameters: { start: int & >=0 }
//		query:      { kind: "value" | "total" }
//		response:   { value: int }
//	}
//
// query and response are required. parameters is optional; without it
// parameters are not checked.
type Descriptor struct {
	Name string

	parameters cue.Value
	query      cue.Value
	response   cue.Value
}

// HasParameters reports whether the descriptor constrains parameters.
func (d *Descriptor) HasParameters() bool {
	return d.parameters.Exists()
}

// ValidateQuery checks a JSON-encoded query against the descriptor.
func (d *Descriptor) ValidateQuery(data []byte) error {
	return validate(d.Name, "query", d.query, data)
}

// ValidateResponse checks a JSON-encoded response against the descriptor.
func (d *Descriptor) ValidateResponse(data []byte) error {
	return validate(d.Name, "response", d.response, data)
}

// ValidateParameters checks JSON-encoded parameters against the descriptor.
func (d *Descriptor) ValidateParameters(data []byte) error {
	if !d.HasParameters() {
		return nil
	}
	return validate(d.Name, "parameters", d.parameters, data)
}

// ValidationError reports a JSON document that does not satisfy its schema.
type ValidationError struct {
	Application string
	Part        string
	Err         error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("application %s: %s does not match descriptor: %v", e.Application, e.Part, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validate(name, part string, schema cue.Value, data []byte) error {
	doc := schema.Context().CompileBytes(data, cue.Filename(part+".json"))
	if err := doc.Err(); err != nil {
		return &ValidationError{Application: name, Part: part, Err: err}
	}
	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Application: name, Part: part, Err: err}
	}
	return nil
}

// CompileError represents a descriptor compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile builds a descriptor from the CUE value of one application entry,
// for example the value at path "application.counter".
func Compile(v cue.Value) (*Descriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &Descriptor{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		d.Name = labels[len(labels)-1].String()
	}

	for _, field := range []string{"query", "response"} {
		fv := v.LookupPath(cue.ParsePath(field))
		if !fv.Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: field + " is required",
				Pos:     v.Pos(),
			}
		}
		if err := fv.Err(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	d.query = v.LookupPath(cue.ParsePath("query"))
	d.response = v.LookupPath(cue.ParsePath("response"))
	d.parameters = v.LookupPath(cue.ParsePath("parameters"))

	return d, nil
}

// CompileString compiles every descriptor declared in src.
func CompileString(src string) ([]*Descriptor, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("abi.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(v)
}

// LoadDir loads the CUE package in dir and compiles every descriptor it declares.
func LoadDir(dir string) ([]*Descriptor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("abi directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("abi directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("abi directory %s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(v)
}

func compileAll(root cue.Value) ([]*Descriptor, error) {
	apps := root.LookupPath(cue.ParsePath("application"))
	if !apps.Exists() {
		return nil, &CompileError{
			Field:   "application",
			Message: "no application descriptors declared",
			Pos:     root.Pos(),
		}
	}

	iter, err := apps.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*Descriptor
	for iter.Next() {
		d, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
