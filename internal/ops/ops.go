// Package ops is the operator registry: it maps an operator name to its
// flag set, validates the parsed options and builds the stage.
//
// Parsing and building are separate. Parse checks everything that can be
// checked without running (flags, option values, expressions, sort keys)
// and reports failures as a *ConfigError. Build may be called many times
// for one parsed Stage, e.g. once per group by multiplex, and never
// mutates the options.
package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/bridge"
	"github.com/roach88/recstream/internal/config"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/stream"
)

// ChainSeparator splits stages on a command line.
const ChainSeparator = "|"

// Env is what a stage may use when it is built.
type Env struct {
	Ctx      context.Context
	Log      *logging.Logger
	RunID    string
	Pipeline string
	// Capacity bounds the queues of background stages.
	Capacity int
	// StorePath and Table are the todb defaults.
	StorePath string
	Table     string
}

// NewEnv derives a build environment from runtime configuration.
func NewEnv(ctx context.Context, cfg config.Config, log *logging.Logger, runID string) *Env {
	return &Env{
		Ctx:       ctx,
		Log:       log,
		RunID:     runID,
		Capacity:  cfg.Bridge.Capacity,
		StorePath: cfg.Store.Path,
		Table:     cfg.Store.Table,
	}
}

func (e *Env) withDefaults() *Env {
	out := *e
	if out.Ctx == nil {
		out.Ctx = context.Background()
	}
	if out.Log == nil {
		out.Log = logging.Nop()
	}
	if out.Capacity < 1 {
		out.Capacity = bridge.DefaultCapacity
	}
	return &out
}

// Options is the parsed configuration of one operator. Struct fields carry
// `flag` and `validate` tags; Parse validates them after binding.
type Options interface {
	// Bind registers the operator's flags.
	Bind(fs *pflag.FlagSet)
	// Build creates a fresh stage.
	Build(env *Env) (stream.Stream, error)
}

// positional is implemented by operators that take arguments after their
// flags.
type positional interface {
	SetArgs(args []string) error
}

// preparer is implemented by operators with checks beyond struct tags.
type preparer interface {
	Prepare() error
}

// Info describes a registered operator.
type Info struct {
	Name    string
	Summary string
	Usage   string
	New     func(reg *Registry) Options
}

// Registry maps operator names to their Info.
type Registry struct {
	ops map[string]*Info
}

// NewRegistry returns a registry holding infos.
func NewRegistry(infos ...*Info) (*Registry, error) {
	r := &Registry{ops: make(map[string]*Info, len(infos))}
	for _, info := range infos {
		if err := r.Register(info); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds info. Names must be unique.
func (r *Registry) Register(info *Info) error {
	if info.Name == "" || info.New == nil {
		return fmt.Errorf("operator registration needs a name and a constructor")
	}
	if _, dup := r.ops[info.Name]; dup {
		return fmt.Errorf("operator %q registered twice", info.Name)
	}
	r.ops[info.Name] = info
	return nil
}

// Lookup returns the operator called name.
func (r *Registry) Lookup(name string) (*Info, bool) {
	info, ok := r.ops[name]
	return info, ok
}

// List returns every operator sorted by name.
func (r *Registry) List() []*Info {
	out := make([]*Info, 0, len(r.ops))
	for _, info := range r.ops {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stage is a parsed, validated operator invocation.
type Stage struct {
	Op      string
	Args    []string
	Options Options
}

func (s *Stage) String() string {
	if len(s.Args) == 0 {
		return s.Op
	}
	return s.Op + " " + strings.Join(s.Args, " ")
}

// Build creates a fresh stream for the stage.
func (s *Stage) Build(env *Env) (stream.Stream, error) {
	out, err := s.Options.Build(env.withDefaults())
	if err != nil {
		if IsConfigError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", s.Op, err)
	}
	return stream.Guard(out), nil
}

// Flags returns the flag set of operator name, for help output.
func (r *Registry) Flags(name string) (*pflag.FlagSet, error) {
	info, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigError{Op: name, Message: "unknown operator"}
	}
	fs := newFlagSet(name)
	info.New(r).Bind(fs)
	return fs, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	return fs
}

// Parse parses and validates one operator invocation.
func (r *Registry) Parse(name string, args []string) (*Stage, error) {
	b, err := r.Bind(name, nil)
	if err != nil {
		return nil, err
	}
	if err := b.flags.Parse(args); err != nil {
		return nil, &ConfigError{Op: name, Message: err.Error()}
	}
	s, err := b.Complete(b.flags.Args())
	if err != nil {
		return nil, err
	}
	s.Args = append([]string(nil), args...)
	return s, nil
}

// Binding is an operator whose flags may be parsed by a flag set owned by
// the caller, such as a cobra command's.
type Binding struct {
	name  string
	opts  Options
	flags *pflag.FlagSet
}

// Bind registers the flags of operator name, adding them to fs when it is
// not nil. Once fs is parsed, Complete validates the result.
func (r *Registry) Bind(name string, fs *pflag.FlagSet) (*Binding, error) {
	info, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigError{Op: name, Message: "unknown operator"}
	}
	opts := info.New(r)
	own := newFlagSet(name)
	opts.Bind(own)
	if fs != nil {
		fs.AddFlagSet(own)
	}
	return &Binding{name: name, opts: opts, flags: own}, nil
}

// Complete applies the positional args and validates the options.
func (b *Binding) Complete(args []string) (*Stage, error) {
	if p, ok := b.opts.(positional); ok {
		if err := p.SetArgs(args); err != nil {
			return nil, asConfigError(b.name, err)
		}
	} else if len(args) > 0 {
		return nil, &ConfigError{Op: b.name, Message: fmt.Sprintf("unexpected arguments %q", args)}
	}

	if err := config.ValidateStruct(b.opts); err != nil {
		return nil, asConfigError(b.name, err)
	}
	if p, ok := b.opts.(preparer); ok {
		if err := p.Prepare(); err != nil {
			return nil, asConfigError(b.name, err)
		}
	}
	return &Stage{Op: b.name, Args: b.changed(args), Options: b.opts}, nil
}

// changed renders the operator flags that were set, followed by args.
func (b *Binding) changed(args []string) []string {
	var out []string
	b.flags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			for _, v := range sv.GetSlice() {
				out = append(out, "--"+f.Name+"="+v)
			}
			return
		}
		out = append(out, "--"+f.Name+"="+f.Value.String())
	})
	return append(out, args...)
}

// ParseChain parses "op args... | op args..." into stages. An empty chain
// is an error.
func (r *Registry) ParseChain(args []string) ([]*Stage, error) {
	groups := Split(args, ChainSeparator)
	stages := make([]*Stage, 0, len(groups))
	for i, g := range groups {
		if len(g) == 0 {
			return nil, &ConfigError{Message: fmt.Sprintf("stage %d is empty", i)}
		}
		s, err := r.Parse(g[0], g[1:])
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// BuildChain builds every stage and composes them left to right.
func BuildChain(env *Env, stages []*Stage) (stream.Stream, error) {
	if len(stages) == 0 {
		return nil, &ConfigError{Message: "pipeline has no stages"}
	}
	built := make([]stream.Stream, 0, len(stages))
	for _, s := range stages {
		b, err := s.Build(env)
		if err != nil {
			// release what was already started, e.g. subprocesses
			for _, started := range built {
				_ = started.Close(stream.Discard)
			}
			return nil, err
		}
		built = append(built, b)
	}
	return stream.Chain(built...), nil
}

// Split cuts args at every token equal to sep. A leading or trailing
// separator yields an empty group.
func Split(args []string, sep string) [][]string {
	if len(args) == 0 {
		return nil
	}
	var out [][]string
	cur := []string{}
	for _, a := range args {
		if a == sep {
			out = append(out, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, a)
	}
	return append(out, cur)
}

// ConfigError is a labelled configuration failure: a bad flag, option
// value, expression or pipeline definition.
type ConfigError struct {
	Op      string
	Option  string
	Message string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Option != "" {
		b.WriteString("--")
		b.WriteString(e.Option)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// asConfigError labels err with op. Validation failures become one
// ConfigError per field.
func asConfigError(op string, err error) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		if ce.Op == "" {
			ce.Op = op
		}
		return err
	}
	var ve *config.ValidationError
	if errors.As(err, &ve) {
		errs := make([]error, len(ve.Fields))
		for i, f := range ve.Fields {
			errs[i] = &ConfigError{Op: op, Option: f.Field, Message: f.Message}
		}
		return errors.Join(errs...)
	}
	return &ConfigError{Op: op, Message: err.Error()}
}
