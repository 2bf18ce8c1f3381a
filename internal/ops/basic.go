package ops

import (
	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/script"
	"github.com/roach88/recstream/internal/stream"
)

var fromJSONInfo = &Info{
	Name:    "fromjson",
	Summary: "parse JSON lines into records",
	Usage:   "fromjson",
	New:     func(*Registry) Options { return &fromJSONOptions{} },
}

type fromJSONOptions struct{}

func (*fromJSONOptions) Bind(*pflag.FlagSet) {}

func (*fromJSONOptions) Build(*Env) (stream.Stream, error) {
	return stream.Parse(), nil
}

var toJSONInfo = &Info{
	Name:    "tojson",
	Summary: "write records as canonical JSON lines",
	Usage:   "tojson",
	New:     func(*Registry) Options { return &toJSONOptions{} },
}

type toJSONOptions struct{}

func (*toJSONOptions) Bind(*pflag.FlagSet) {}

// Build parses Lines as well, so tojson also canonicalizes raw input.
func (*toJSONOptions) Build(*Env) (stream.Stream, error) {
	return stream.Chain(
		stream.Transform(func(r record.Record) (record.Record, error) { return r, nil }),
		stream.Deparse(),
	), nil
}

var grepInfo = &Info{
	Name:    "grep",
	Summary: "keep records for which an expression is truthy",
	Usage:   "grep [-v] -e EXPR | grep [-v] EXPR",
	New:     func(*Registry) Options { return &grepOptions{} },
}

type grepOptions struct {
	Expr   string `flag:"expr" validate:"required"`
	Invert bool   `flag:"invert"`
}

func (o *grepOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Expr, "expr", "e", "", "expression evaluated against r")
	fs.BoolVarP(&o.Invert, "invert", "v", false, "keep records for which the expression is falsy")
}

func (o *grepOptions) SetArgs(args []string) error {
	switch {
	case len(args) == 0:
		return nil
	case len(args) == 1 && o.Expr == "":
		o.Expr = args[0]
		return nil
	default:
		return &ConfigError{Message: "takes exactly one expression"}
	}
}

func (o *grepOptions) Prepare() error {
	if _, err := script.Compile(o.Expr); err != nil {
		return &ConfigError{Option: "expr", Message: err.Error()}
	}
	return nil
}

func (o *grepOptions) Build(*Env) (stream.Stream, error) {
	p, err := script.NewPredicate(o.Expr, o.Invert)
	if err != nil {
		return nil, err
	}
	return stream.Filter(p.Match), nil
}

var xformInfo = &Info{
	Name:    "xform",
	Summary: "edit records with expressions",
	Usage:   "xform -e EXPR [-e EXPR...] | xform EXPR...",
	New:     func(*Registry) Options { return &xformOptions{} },
}

type xformOptions struct {
	Exprs []string `flag:"expr" validate:"min=1"`
}

func (o *xformOptions) Bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.Exprs, "expr", "e", nil, "expression run against each record, in order")
}

func (o *xformOptions) SetArgs(args []string) error {
	o.Exprs = append(o.Exprs, args...)
	return nil
}

func (o *xformOptions) Prepare() error {
	if _, err := script.NewTransform(o.Exprs...); err != nil {
		return &ConfigError{Option: "expr", Message: err.Error()}
	}
	return nil
}

func (o *xformOptions) Build(*Env) (stream.Stream, error) {
	t, err := script.NewTransform(o.Exprs...)
	if err != nil {
		return nil, err
	}
	return stream.Transform(t.Apply), nil
}
