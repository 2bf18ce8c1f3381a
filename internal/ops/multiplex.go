package ops

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/clumper"
	"github.com/roach88/recstream/internal/stream"
)

// SubChainSeparator splits the stages of a multiplex sub-chain.
const SubChainSeparator = "+"

var multiplexInfo = &Info{
	Name:    "multiplex",
	Summary: "run a separate sub-chain for every group",
	Usage:   "multiplex [-k GROUP...] -- OP ARGS... [+ OP ARGS...]",
	New:     func(reg *Registry) Options { return &multiplexOptions{reg: reg} },
}

type multiplexOptions struct {
	Keys []string `flag:"key"`

	reg    *Registry
	stages []*Stage
	groups []clumper.Spec
}

func (o *multiplexOptions) Bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.Keys, "key", "k", nil, "group by FIELD (repeatable)")
}

func (o *multiplexOptions) SetArgs(args []string) error {
	if len(args) == 0 {
		return &ConfigError{Message: "needs a sub-chain after --"}
	}
	for i, g := range Split(args, SubChainSeparator) {
		if len(g) == 0 {
			return &ConfigError{Message: fmt.Sprintf("sub-chain stage %d is empty", i)}
		}
		s, err := o.reg.Parse(g[0], g[1:])
		if err != nil {
			return err
		}
		o.stages = append(o.stages, s)
	}
	return nil
}

func (o *multiplexOptions) Prepare() error {
	groups, err := clumper.Specs(o.Keys)
	if err != nil {
		return &ConfigError{Option: "key", Message: err.Error()}
	}
	o.groups = groups
	return nil
}

func (o *multiplexOptions) Build(env *Env) (stream.Stream, error) {
	s, err := clumper.Stream(o.groups, func([]clumper.Pair) (stream.Stream, error) {
		return BuildChain(env, o.stages)
	})
	if err != nil {
		return nil, err
	}
	return filesOnce(s), nil
}
