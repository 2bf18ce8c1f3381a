package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/ops"
)

// ChainOptions holds flags for the chain command.
type ChainOptions struct {
	*RootOptions
	Inputs []string
}

// NewChainCommand creates the chain command.
func NewChainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chain [--in FILE]... OP [ARGS...] ['|' OP [ARGS...]]...",
		Short: "Run operators chained on the command line",
		Long: `Run several operators as one pipeline, in a single process.

Stages are separated by a "|" argument, which must be quoted so the shell
passes it through. Flags of chain itself come before the first operator;
everything after it belongs to the stages.

Examples:
  recs chain --in access.json fromjson '|' grep -e 'r.status >= 500' '|' collate -k host -a count
  cat events.json | recs chain fromjson '|' sort -k ts=numeric '|' tojson`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.ready(cmd); err != nil {
				return err
			}
			stages, err := rootOpts.Registry.ParseChain(args)
			if err != nil {
				return err
			}
			return runPipeline(cmd, rootOpts, &compiler.Pipeline{Name: "chain", Stages: stages}, opts.Inputs)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringArrayVar(&opts.Inputs, "in", nil, "read FILE instead of standard input (repeatable)")

	return cmd
}

// NewOpCommand creates the command running operator info on its own.
func NewOpCommand(rootOpts *RootOptions, info *ops.Info) *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:           info.Usage,
		Short:         info.Summary,
		Long:          info.Summary + ".\n\nRecords are read from the --in files, or from standard input.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().SetInterspersed(false)
	binding, err := rootOpts.registry().Bind(info.Name, cmd.Flags())
	if err != nil {
		// info came from the registry
		panic(err)
	}
	cmd.Flags().StringArrayVar(&inputs, "in", nil, "read FILE instead of standard input (repeatable)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := rootOpts.ready(cmd); err != nil {
			return err
		}
		stage, err := binding.Complete(args)
		if err != nil {
			return err
		}
		return runPipeline(cmd, rootOpts, &compiler.Pipeline{Name: info.Name, Stages: []*ops.Stage{stage}}, inputs)
	}

	return cmd
}
