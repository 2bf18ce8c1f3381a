package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Run      string
	Table    string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay --run ID [OP [ARGS...] ['|' OP [ARGS...]]...]",
		Short: "Feed records stored by todb through a chain",
		Long: `Read back the records one run stored with todb, in the order they were
written, and feed them through a chain of operators. Without a chain the
records are written out unchanged.

Examples:
  recs replay --db ./recs.db --run 0190c3e2-...
  recs replay --run 0190c3e2-... --table events collate -k host -a count`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (default store.path)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id to replay (required)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "record table (default store.table)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, args []string, cmd *cobra.Command) error {
	if err := opts.ready(cmd); err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"tojson"}
	}
	stages, err := opts.Registry.ParseChain(args)
	if err != nil {
		return err
	}
	table := opts.Table
	if table == "" {
		table = opts.Config.Store.Table
	}
	if !store.ValidTable(table) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid table name %q", table))
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signalContext(cmd, opts.Logger)
	defer stop()

	p := &compiler.Pipeline{Name: "replay", Stages: stages}
	if _, err := opts.newEngine(cmd).Replay(ctx, st, table, opts.Run, p); err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	return nil
}

// openStore opens an existing database: path, or store.path when empty.
func openStore(opts *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = opts.Config.Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded by todb",
		Long: `List the runs that stored records, oldest first, with the pipeline
that ran and the tables it wrote.

Examples:
  recs runs --db ./recs.db
  recs runs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (default store.path)")

	return cmd
}

// RunInfo is one run in the runs listing.
type RunInfo struct {
	ID       string   `json:"id"`
	Pipeline string   `json:"pipeline"`
	Tables   []string `json:"tables"`
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	if err := opts.ready(cmd); err != nil {
		return err
	}
	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	if opts.Format == "json" {
		infos := make([]RunInfo, 0, len(runs))
		for _, r := range runs {
			infos = append(infos, RunInfo{ID: r.ID, Pipeline: r.Pipeline, Tables: r.Tables})
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPIPELINE\tTABLES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Pipeline, strings.Join(r.Tables, ","))
	}
	return tw.Flush()
}
