package ops

import (
	"os/exec"

	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/proc"
	"github.com/roach88/recstream/internal/stream"
)

var pipeInfo = &Info{
	Name:    "pipe",
	Summary: "pass records through an external command, one JSON line each",
	Usage:   "pipe [--parse] -- CMD ARGS...",
	New:     func(*Registry) Options { return &pipeOptions{} },
}

type pipeOptions struct {
	Parse   bool     `flag:"parse"`
	Command []string `flag:"command" validate:"min=1"`

	path string
}

func (o *pipeOptions) Bind(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Parse, "parse", false, "parse every output line as a record")
}

func (o *pipeOptions) SetArgs(args []string) error {
	o.Command = args
	return nil
}

func (o *pipeOptions) Prepare() error {
	path, err := exec.LookPath(o.Command[0])
	if err != nil {
		return &ConfigError{Option: "command", Message: err.Error()}
	}
	o.path = path
	return nil
}

func (o *pipeOptions) Build(env *Env) (stream.Stream, error) {
	cmd := proc.Command{
		Path:  o.path,
		Args:  o.Command[1:],
		Parse: o.Parse,
		Log:   env.Log,
	}
	return cmd.Stage(env.Ctx, env.Capacity), nil
}
