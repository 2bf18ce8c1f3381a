package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recstream/internal/config"
	"github.com/roach88/recstream/internal/engine"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/ops"
)

// RootOptions holds global flags for all commands, and what
// PersistentPreRunE derives from them.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Format     string // "json" | "text", for commands that report rather than stream

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to engine.UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	Registry *ops.Registry
	Config   *config.Config
	Logger   *logging.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the recs CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Registry: ops.Builtin()}

	cmd := &cobra.Command{
		Use:   "recs",
		Short: "recs - record stream processing",
		Long: `Process streams of JSON records with composable operators.

Each operator reads records (one JSON value per line) from files or
standard input and writes records to standard output. Operators can be
run on their own, chained on the command line, or loaded from a CUE or
YAML pipeline definition.

Exit codes:
  0 - Success
  1 - Run failure (bad data, failed subprocess, I/O error)
  2 - Configuration error (bad options, invalid pipeline definition)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./recs.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error|disabled)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (console|json)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "report format (json|text)")

	cmd.AddCommand(NewChainCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	for _, info := range opts.registry().List() {
		cmd.AddCommand(NewOpCommand(opts, info))
	}

	return cmd
}

// setup loads configuration, applies flag overrides and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if err := config.ValidateStruct(cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Logger = logging.New(cfg.Log, cmd.ErrOrStderr())
	return nil
}

// ready runs setup for commands executed without the root command.
func (o *RootOptions) ready(cmd *cobra.Command) error {
	o.registry()
	if o.Config != nil && o.Logger != nil {
		return nil
	}
	return o.setup(cmd)
}

func (o *RootOptions) registry() *ops.Registry {
	if o.Registry == nil {
		o.Registry = ops.Builtin()
	}
	return o.Registry
}

// newEngine builds an engine writing to the command's output.
func (o *RootOptions) newEngine(cmd *cobra.Command) *engine.Engine {
	opts := []engine.EngineOption{
		engine.WithLogger(o.Logger),
		engine.WithOutput(cmd.OutOrStdout()),
		engine.WithStdin(cmd.InOrStdin()),
	}
	if o.RunIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(o.RunIDs))
	}
	return engine.New(*o.Config, opts...)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
