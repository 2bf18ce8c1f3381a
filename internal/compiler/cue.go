package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc string

// ParseCUE compiles src, unifies it with the #Pipeline schema and decodes
// the pipeline field.
func ParseCUE(filename string, src []byte) (*Definition, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("pipeline schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, withFile(formatCUEError(err), filename)
	}
	if !v.LookupPath(cue.ParsePath("pipeline")).Exists() {
		return nil, &CompileError{File: filename, Field: "pipeline", Message: "pipeline is required", Pos: v.Pos()}
	}

	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, withFile(formatCUEError(err), filename)
	}

	p := u.LookupPath(cue.ParsePath("pipeline"))
	def := &Definition{File: filename}
	if err := p.Decode(def); err != nil {
		return nil, withFile(formatCUEError(err), filename)
	}

	// Decode drops positions; take them from the stages as written.
	iter, err := v.LookupPath(cue.ParsePath("pipeline.stages")).List()
	if err != nil {
		return nil, withFile(formatCUEError(err), filename)
	}
	for i := 0; iter.Next() && i < len(def.Stages); i++ {
		def.Stages[i].pos = iter.Value().Pos()
	}
	return def, nil
}

func withFile(err error, filename string) error {
	if ce, ok := err.(*CompileError); ok && ce.File == "" {
		ce.File = filename
	}
	return err
}
