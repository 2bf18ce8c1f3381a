package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/recstream/internal/ops"
)

// Definition is a pipeline as written in a source file.
type Definition struct {
	Name   string     `json:"name" yaml:"name"`
	Inputs []string   `json:"inputs" yaml:"inputs"`
	Stages []StageDef `json:"stages" yaml:"stages"`
	// File is the source the definition was read from.
	File string `json:"-" yaml:"-"`
}

// StageDef is one stage of a Definition.
type StageDef struct {
	Op   string   `json:"op" yaml:"op"`
	Args []string `json:"args" yaml:"args"`

	pos  token.Pos
	line int
}

// Pipeline is a compiled definition.
type Pipeline struct {
	Name   string
	Inputs []string
	Stages []*ops.Stage
}

// LoadFile reads a definition, choosing the format by extension: .cue is
// CUE; .yaml, .yml and .json are YAML.
func LoadFile(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def *Definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		def, err = ParseCUE(path, src)
	case ".yaml", ".yml", ".json":
		def, err = ParseYAML(path, src)
	default:
		return nil, &CompileError{File: path, Field: "file", Message: fmt.Sprintf("unsupported pipeline format %q", ext)}
	}
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Compile parses every stage with reg. All failing stages are reported,
// joined, each as a *CompileError naming the stage.
func Compile(def *Definition, reg *ops.Registry) (*Pipeline, error) {
	if len(def.Stages) == 0 {
		return nil, &CompileError{File: def.File, Field: "stages", Message: "at least one stage is required"}
	}

	p := &Pipeline{Name: def.Name, Inputs: def.Inputs}
	var errs []error
	for i, sd := range def.Stages {
		field := stageField(i, "args")
		if _, ok := reg.Lookup(sd.Op); !ok {
			field = stageField(i, "op")
		}
		stage, err := reg.Parse(sd.Op, sd.Args)
		if err != nil {
			errs = append(errs, &CompileError{
				File:    def.File,
				Field:   field,
				Message: err.Error(),
				Pos:     sd.pos,
				Line:    sd.line,
				Err:     err,
			})
			continue
		}
		p.Stages = append(p.Stages, stage)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// CompileFile is LoadFile followed by Compile.
func CompileFile(path string, reg *ops.Registry) (*Pipeline, error) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(def, reg)
}

func stageField(i int, name string) string {
	return fmt.Sprintf("stages[%d].%s", i, name)
}
