package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/engine"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/ops"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline> [file...]",
		Short: "Run a pipeline definition",
		Long: `Run a pipeline defined in a CUE or YAML file.

Records are read from the named files, or from the inputs the definition
lists, or from standard input. "-" names standard input.

Examples:
  recs run ./errors_by_host.cue access.log.json
  cat events.json | recs run ./enrich.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.ready(cmd); err != nil {
				return err
			}
			p, err := compiler.CompileFile(args[0], rootOpts.Registry)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return WrapExitError(ExitCommandError, "pipeline not found", err)
				}
				return err
			}
			return runPipeline(cmd, rootOpts, p, args[1:])
		},
	}
	return cmd
}

// runPipeline drives p over inputs until it finishes or the process is
// interrupted.
func runPipeline(cmd *cobra.Command, opts *RootOptions, p *compiler.Pipeline, inputs []string) error {
	ctx, stop := signalContext(cmd, opts.Logger)
	defer stop()

	_, err := opts.newEngine(cmd).Run(ctx, p, inputs)
	if err == nil {
		return nil
	}
	if engine.CodeOf(err) == engine.ErrCodeBuild && ops.IsConfigError(err) {
		return WrapExitError(ExitCommandError, "invalid pipeline", err)
	}
	if engine.IsInputError(err) && errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, "input not found", err)
	}
	return WrapExitError(ExitFailure, "run failed", err)
}

// signalContext returns the command's context, canceled on SIGINT or
// SIGTERM.
func signalContext(cmd *cobra.Command, log *logging.Logger) (context.Context, func()) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, stopping", logging.Fields("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
