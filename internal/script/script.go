// Package script adapts expr-lang expressions to records.
//
// An expression sees the record under evaluation as the variable r (a
// plain Go snapshot) and can edit it through helper functions that operate
// on a mutable view:
//
//	get(path)         value at path, or nil
//	set(path, value)  store value at path, creating containers
//	del(path)         remove a hash entry, returning it
//	push(path, value) append to the array at path
//	alias(dst, src)   store the handle at src under dst too
//
// After alias, edits through either path are visible through both. The
// view is lowered back into an immutable record when the expression ends,
// so aliasing never leaks into the pipeline.
//
// A Program is not safe for concurrent use.
package script

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/recstream/internal/record"
)

// Error wraps a compile or evaluation failure with the expression text.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// scope is the mutable view the helper functions act on. It is swapped
// before every run.
type scope struct {
	view *record.Value
	err  error
}

// Program is a compiled expression bound to its own scope.
type Program struct {
	source string
	prg    *vm.Program
	scope  *scope
}

// Compile parses src once for repeated evaluation.
func Compile(src string) (*Program, error) {
	sc := &scope{}
	opts := append(sc.functions(), expr.AllowUndefinedVariables())
	prg, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, &Error{Source: src, Err: err}
	}
	return &Program{source: src, prg: prg, scope: sc}, nil
}

// Source returns the expression text.
func (p *Program) Source() string { return p.source }

// eval runs the program against view and returns the raw result.
func (p *Program) eval(r record.Record, view *record.Value) (any, error) {
	p.scope.view, p.scope.err = view, nil
	defer func() { p.scope.view = nil }()
	env := map[string]any{"r": record.ToNative(r)}
	out, err := expr.Run(p.prg, env)
	if err != nil {
		if p.scope.err != nil {
			err = p.scope.err
		}
		return nil, &Error{Source: p.source, Err: err}
	}
	return out, nil
}

// Predicate decides whether a record is kept.
type Predicate struct {
	prog   *Program
	invert bool
}

// NewPredicate compiles src as a filter. With invert set, records for which
// src is truthy are dropped instead.
func NewPredicate(src string, invert bool) (*Predicate, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return &Predicate{prog: p, invert: invert}, nil
}

// Match evaluates the predicate. The result is coerced to a truth value the
// same way record fields are, so 0, "" and empty containers are false.
func (p *Predicate) Match(r record.Record) (bool, error) {
	out, err := p.prog.eval(r, record.Lift(r))
	if err != nil {
		return false, err
	}
	v, err := record.FromNative(out)
	if err != nil {
		return false, &Error{Source: p.prog.source, Err: err}
	}
	return record.CoerceBool(v) != p.invert, nil
}

// Transform edits records through a sequence of expressions that share one
// mutable view per record.
type Transform struct {
	progs []*Program
}

// NewTransform compiles every expression in srcs.
func NewTransform(srcs ...string) (*Transform, error) {
	t := &Transform{}
	for _, src := range srcs {
		p, err := Compile(src)
		if err != nil {
			return nil, err
		}
		t.progs = append(t.progs, p)
	}
	return t, nil
}

// Apply runs every expression in order and lowers the result. Each
// expression sees r as it was left by the previous one.
func (t *Transform) Apply(r record.Record) (record.Record, error) {
	view := record.Lift(r)
	cur := r
	for _, p := range t.progs {
		if _, err := p.eval(cur, view); err != nil {
			return record.Null(), err
		}
		next, err := view.Lower()
		if err != nil {
			return record.Null(), &Error{Source: p.source, Err: err}
		}
		cur = next
	}
	return cur, nil
}
