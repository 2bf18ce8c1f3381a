package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/config"
	"github.com/roach88/recstream/internal/engine"
	"github.com/roach88/recstream/internal/ops"
	"github.com/roach88/recstream/internal/stream"
	"github.com/roach88/recstream/internal/testutil"
)

// ErrCodeConfig classifies a scenario whose pipeline did not parse or
// compile.
const ErrCodeConfig = "CONFIG_INVALID"

// InputsToken is replaced by the input directory in stage arguments.
const InputsToken = "$INPUTS"

const defaultRunID = "test-run-default"

// Harness is the state of one scenario execution.
type Harness struct {
	dir    string
	cfg    config.Config
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory holding its inputs and
// its store. The returned error is reserved for failures of the harness
// itself (unwritable directory, unreadable definition); pipeline failures
// are part of the Result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "recs-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inputsDir := filepath.Join(dir, "inputs")
	inputs, stdin, err := writeInputs(inputsDir, scenario.Inputs)
	if err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}
	cfg := *config.Default()
	cfg.Store.Path = filepath.Join(dir, "recs.db")

	h := &Harness{dir: inputsDir, cfg: cfg, result: NewResult(runID)}
	ctx := context.Background()

	p, err := h.compile(scenario)
	switch {
	case err == nil:
		p.Stages = append(p.Stages, h.tap())
		var out bytes.Buffer
		eng := engine.New(cfg,
			engine.WithOutput(&out),
			engine.WithStdin(strings.NewReader(stdin)),
			engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
		)
		_, runErr := eng.Run(ctx, p, inputs)
		h.result.Output = splitLines(out.String())
		if runErr != nil {
			h.fail(classify(runErr), runErr)
		}
	case ops.IsConfigError(err) || compiler.IsCompileError(err):
		h.fail(ErrCodeConfig, err)
	default:
		return nil, err
	}

	checkExpectError(h.result, scenario.ExpectError)

	actx := &AssertionContext{
		Ctx:       ctx,
		StorePath: cfg.Store.Path,
		Table:     cfg.Store.Table,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) compile(s *Scenario) (*compiler.Pipeline, error) {
	reg := ops.Builtin()
	if len(s.Chain) > 0 {
		stages, err := reg.ParseChain(h.expand(s.Chain))
		if err != nil {
			return nil, err
		}
		return &compiler.Pipeline{Name: s.Name, Stages: stages}, nil
	}

	def, err := compiler.LoadFile(s.Pipeline)
	if err != nil {
		return nil, err
	}
	for i := range def.Stages {
		def.Stages[i].Args = h.expand(def.Stages[i].Args)
	}
	return compiler.Compile(def, reg)
}

func (h *Harness) expand(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, InputsToken, h.dir)
	}
	return out
}

func (h *Harness) fail(code string, err error) {
	h.result.ErrorCode = code
	h.result.Err = err
}

// tap records every entry that reaches the end of the chain.
func (h *Harness) tap() *ops.Stage {
	return &ops.Stage{Op: "tap", Options: tapOptions{h: h}}
}

type tapOptions struct {
	h *Harness
}

func (tapOptions) Bind(*pflag.FlagSet) {}

func (o tapOptions) Build(*ops.Env) (stream.Stream, error) {
	return stream.Closures(o.h, func(h **Harness, e stream.Entry, sink stream.Sink) (bool, error) {
		(*h).observe(e)
		return sink(e)
	}, nil), nil
}

func (h *Harness) observe(e stream.Entry) {
	ev := TraceEvent{Seq: int64(len(h.result.Trace)) + 1}
	switch e.Kind() {
	case stream.KindBeginFile:
		ev.Type = EventBeginFile
		ev.File = e.File()
		if rel, err := filepath.Rel(h.dir, e.File()); err == nil {
			ev.File = filepath.ToSlash(rel)
		}
	case stream.KindRecord:
		ev.Type = EventRecord
		ev.Record, _ = e.ToRecord()
	default:
		ev.Type = EventLine
		ev.Line, _ = e.ToLine()
	}
	h.result.Trace = append(h.result.Trace, ev)
}

// writeInputs creates the input files and returns the run's input list and
// the contents of standard input.
func writeInputs(dir string, inputs []Input) ([]string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create input directory: %w", err)
	}
	var (
		names []string
		stdin string
	)
	for _, in := range inputs {
		text := ""
		if len(in.Lines) > 0 {
			text = strings.Join(in.Lines, "\n") + "\n"
		}
		if in.Name == "" {
			stdin = text
			names = append(names, engine.Stdin)
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(in.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, "", fmt.Errorf("failed to create input directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return nil, "", fmt.Errorf("failed to write input %s: %w", in.Name, err)
		}
		if in.fed() {
			names = append(names, path)
		}
	}
	if len(names) == 0 {
		names = []string{engine.Stdin}
	}
	return names, stdin, nil
}

func classify(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	if ops.IsConfigError(err) || compiler.IsCompileError(err) {
		return ErrCodeConfig
	}
	return "RUN_FAILED"
}

func checkExpectError(r *Result, want *ErrorClause) {
	switch {
	case want == nil && r.Err != nil:
		r.AddError(fmt.Sprintf("run failed: %v", r.Err))
	case want == nil:
	case r.Err == nil:
		r.AddError(fmt.Sprintf("expected run to fail with %s, but it succeeded", want.Code))
	case r.ErrorCode != want.Code:
		r.AddError(fmt.Sprintf("expected error code %s, got %s: %v", want.Code, r.ErrorCode, r.Err))
	case want.Contains != "" && !strings.Contains(r.Err.Error(), want.Contains):
		r.AddError(fmt.Sprintf("expected error containing %q, got %v", want.Contains, r.Err))
	}
}

func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
