package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// OpInfo describes one operator in the ops listing.
type OpInfo struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Usage   string `json:"usage,omitempty"`
	Flags   string `json:"flags,omitempty"`
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops [name]",
		Short: "List operators, or describe one",
		Long: `Without arguments, list every operator with a one-line summary.
With a name, show that operator's usage and flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.ready(cmd); err != nil {
				return err
			}
			if len(args) == 1 {
				return describeOp(rootOpts, args[0], cmd)
			}
			return listOps(rootOpts, cmd)
		},
	}

	return cmd
}

func listOps(opts *RootOptions, cmd *cobra.Command) error {
	infos := opts.Registry.List()
	if opts.Format == "json" {
		out := make([]OpInfo, 0, len(infos))
		for _, info := range infos {
			out = append(out, OpInfo{Name: info.Name, Summary: info.Summary})
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(out)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Summary)
	}
	return tw.Flush()
}

func describeOp(opts *RootOptions, name string, cmd *cobra.Command) error {
	info, ok := opts.Registry.Lookup(name)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown operator %q", name))
	}
	fs, err := opts.Registry.Flags(name)
	if err != nil {
		return err
	}
	desc := OpInfo{Name: info.Name, Summary: info.Summary, Usage: info.Usage, Flags: fs.FlagUsages()}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(desc)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s - %s\n\nUsage:\n  %s\n", desc.Name, desc.Summary, desc.Usage)
	if desc.Flags != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", desc.Flags)
	}
	return nil
}
