package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recstream/internal/compiler"
)

// ValidationError is one problem found in a pipeline file.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds the validation result of one pipeline file.
type ValidationResult struct {
	File   string            `json:"file"`
	Name   string            `json:"name,omitempty"`
	Stages int               `json:"stages,omitempty"`
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline>...",
		Short: "Check pipeline definitions without running them",
		Long: `Load and compile pipeline definitions without reading any input.

Every stage's operator and options are checked, and all problems in a file
are reported, with the stage they belong to.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	if err := opts.ready(cmd); err != nil {
		return err
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	results := make([]ValidationResult, 0, len(files))
	invalid := 0
	for _, file := range files {
		res := validateFile(opts, file)
		if !res.Valid {
			invalid++
		}
		results = append(results, res)
	}

	if opts.Format == "json" {
		if invalid > 0 {
			if err := formatter.Error(ErrCodeInvalid, fmt.Sprintf("%d pipeline(s) invalid", invalid), results); err != nil {
				return err
			}
		} else if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		printValidation(cmd, results)
	}

	if invalid > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed: %d pipeline(s) invalid", invalid))
	}
	return nil
}

func validateFile(opts *RootOptions, file string) ValidationResult {
	res := ValidationResult{File: file}
	def, err := compiler.LoadFile(file)
	if err == nil {
		res.Name = def.Name
		var p *compiler.Pipeline
		p, err = compiler.Compile(def, opts.Registry)
		if err == nil {
			res.Valid = true
			res.Stages = len(p.Stages)
			return res
		}
	}
	res.Errors = validationErrors(err)
	return res
}

// validationErrors flattens err, which may join several CompileErrors.
func validationErrors(err error) []ValidationError {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []ValidationError
		for _, e := range joined.Unwrap() {
			out = append(out, validationErrors(e)...)
		}
		return out
	}

	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		ve := ValidationError{Field: ce.Field, Message: ce.Message, Line: ce.Line}
		if ce.Pos.IsValid() {
			ve.Line = ce.Pos.Line()
			ve.Column = ce.Pos.Column()
		}
		return []ValidationError{ve}
	}
	if errors.Is(err, os.ErrNotExist) {
		return []ValidationError{{Message: "file not found"}}
	}
	return []ValidationError{{Message: err.Error()}}
}

func printValidation(cmd *cobra.Command, results []ValidationResult) {
	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s: %s (%d stages)\n", r.File, r.Name, r.Stages)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.File)
		for _, e := range r.Errors {
			switch {
			case e.Line > 0 && e.Field != "":
				fmt.Fprintf(w, "  line %d: %s: %s\n", e.Line, e.Field, e.Message)
			case e.Field != "":
				fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
			default:
				fmt.Fprintf(w, "  %s\n", e.Message)
			}
		}
	}
}
