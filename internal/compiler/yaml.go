package compiler

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML definition. Unknown fields are rejected.
func ParseYAML(filename string, src []byte) (*Definition, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CompileError{File: filename, Field: "pipeline", Message: "empty definition"}
		}
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error(), Err: err}
	}

	// A top-level "pipeline:" key is optional, mirroring the CUE layout.
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if inner := mappingValue(doc, "pipeline"); inner != nil {
		doc = inner
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error(), Err: err}
	}
	strict := yaml.NewDecoder(&buf)
	strict.KnownFields(true)
	def := &Definition{}
	if err := strict.Decode(def); err != nil {
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error(), Line: doc.Line, Err: err}
	}
	def.File = filename

	if stages := mappingValue(doc, "stages"); stages != nil && stages.Kind == yaml.SequenceNode {
		for i, n := range stages.Content {
			if i < len(def.Stages) {
				def.Stages[i].line = n.Line
			}
		}
	}
	for i, sd := range def.Stages {
		if sd.Op == "" {
			return nil, &CompileError{File: filename, Field: stageField(i, "op"), Message: "is required", Line: sd.line}
		}
	}
	return def, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
