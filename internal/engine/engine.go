package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/config"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/ops"
	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/store"
	"github.com/roach88/recstream/internal/stream"
)

// Stdin names standard input in an input list.
const Stdin = "-"

// maxLine bounds a single input line.
const maxLine = 16 << 20

// Engine runs compiled pipelines against inputs.
type Engine struct {
	cfg    config.Config
	log    *logging.Logger
	runIDs RunIDGenerator
	out    io.Writer
	stdin  io.Reader
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithRunIDGenerator replaces the default UUIDv7 run ids.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the run logger. Default: logging.Nop().
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithOutput sets where records are written. Default: os.Stdout.
func WithOutput(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.out = w
	}
}

// WithStdin sets what the "-" input reads. Default: os.Stdin.
func WithStdin(r io.Reader) EngineOption {
	return func(e *Engine) {
		e.stdin = r
	}
}

// New creates an Engine with the given runtime configuration.
func New(cfg config.Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:    cfg,
		log:    logging.Nop(),
		runIDs: UUIDv7Generator{},
		out:    os.Stdout,
		stdin:  os.Stdin,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Pipeline string
	// Files counts the named inputs opened. Standard input is not counted.
	Files int
	// In counts entries fed into the chain, BeginFile included.
	In int64
	// Out counts entries written to the output.
	Out int64
	// Stopped is set when the chain refused further input before the
	// inputs ran out.
	Stopped bool
}

// Run feeds inputs through p. With no inputs the pipeline's own inputs are
// used, and failing that standard input.
//
// The returned Result is non-nil whenever the chain was built, including
// when the run failed part way.
func (e *Engine) Run(ctx context.Context, p *compiler.Pipeline, inputs []string) (*Result, error) {
	if len(inputs) == 0 {
		inputs = p.Inputs
	}
	if len(inputs) == 0 {
		inputs = []string{Stdin}
	}
	return e.execute(ctx, p, func(r *run) error {
		for _, name := range inputs {
			more, err := r.readSource(name, e.stdin)
			if err != nil || !more {
				return err
			}
		}
		return nil
	})
}

// errStopped ends a replay scan early.
var errStopped = errors.New("chain stopped reading")

// Replay feeds the records stored in table by run runID through p. A
// BeginFile entry precedes each change of source file.
func (e *Engine) Replay(ctx context.Context, st *store.Store, table, runID string, p *compiler.Pipeline) (*Result, error) {
	return e.execute(ctx, p, func(r *run) error {
		var (
			file  string
			first = true
		)
		err := st.EachRow(ctx, table, runID, func(row store.Row) error {
			if first || row.File != file {
				first = false
				file = row.File
				if file != "" {
					ok, err := r.feed(file, stream.BeginFile(file))
					if err != nil {
						return err
					}
					if !ok {
						return errStopped
					}
				}
			}
			ok, err := r.feed(file, stream.FromRecord(row.Record))
			if err != nil {
				return err
			}
			if !ok {
				return errStopped
			}
			return nil
		})
		switch {
		case err == nil, errors.Is(err, errStopped):
			return nil
		case CodeOf(err) != "":
			return err
		default:
			return runError(ErrCodeInput, r.res.RunID, table, err)
		}
	})
}

func (e *Engine) execute(ctx context.Context, p *compiler.Pipeline, drive func(*run) error) (*Result, error) {
	id := e.runIDs.Generate()
	log := e.log.WithComponent("engine").WithFields(logging.Fields(logging.FieldRunID, id))

	env := ops.NewEnv(ctx, e.cfg, log, id)
	env.Pipeline = p.Name
	head, err := ops.BuildChain(env, p.Stages)
	if err != nil {
		return nil, runError(ErrCodeBuild, id, "", err)
	}

	r := &run{
		ctx:  ctx,
		head: head,
		out:  bufio.NewWriter(e.out),
		res:  &Result{RunID: id, Pipeline: p.Name},
	}
	log.Info("run started", logging.Fields("pipeline", p.Name, "stages", len(p.Stages)))
	start := time.Now()

	err = drive(r)
	if err != nil {
		// the chain still has to be released; its output is no longer wanted
		if closeErr := head.Close(stream.Discard); closeErr != nil {
			log.Debug("close after failure", logging.Fields(logging.FieldError, closeErr.Error()))
		}
	} else if closeErr := head.Close(r.emit); closeErr != nil {
		err = r.stageError("", closeErr)
	}
	if flushErr := r.out.Flush(); flushErr != nil && err == nil {
		err = runError(ErrCodeOutput, id, "", flushErr)
	}

	fields := logging.Fields(
		"in", r.res.In,
		"out", r.res.Out,
		"files", r.res.Files,
		"stopped", r.res.Stopped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		log.WithError(err).Error("run failed", fields)
		return r.res, err
	}
	log.Info("run finished", fields)
	return r.res, nil
}

// run is the state of one execution.
type run struct {
	ctx  context.Context
	head stream.Stream
	out  *bufio.Writer
	res  *Result
}

// feed writes e into the head of the chain.
func (r *run) feed(source string, e stream.Entry) (bool, error) {
	if err := r.ctx.Err(); err != nil {
		return false, runError(ErrCodeCanceled, r.res.RunID, source, err)
	}
	r.res.In++
	ok, err := r.head.Write(e, r.emit)
	if err != nil {
		return false, r.stageError(source, err)
	}
	if !ok {
		r.res.Stopped = true
	}
	return ok, nil
}

// emit is the sink at the end of the chain.
func (r *run) emit(e stream.Entry) (bool, error) {
	var text string
	switch e.Kind() {
	case stream.KindBeginFile:
		return true, nil
	case stream.KindRecord:
		rec, _ := e.ToRecord()
		text = record.Serialize(rec)
	default:
		text, _ = e.ToLine()
	}
	if _, err := r.out.WriteString(text); err != nil {
		return false, runError(ErrCodeOutput, r.res.RunID, "", err)
	}
	if err := r.out.WriteByte('\n'); err != nil {
		return false, runError(ErrCodeOutput, r.res.RunID, "", err)
	}
	r.res.Out++
	return true, nil
}

func (r *run) stageError(source string, err error) error {
	if CodeOf(err) != "" {
		return err
	}
	return runError(ErrCodeStage, r.res.RunID, source, err)
}

// readSource feeds one input. It reports false when the chain stopped
// reading.
func (r *run) readSource(name string, stdin io.Reader) (bool, error) {
	in := stdin
	if name != Stdin {
		f, err := os.Open(name)
		if err != nil {
			return false, runError(ErrCodeInput, r.res.RunID, name, err)
		}
		defer f.Close()
		in = f
		r.res.Files++
		ok, err := r.feed(name, stream.BeginFile(name))
		if err != nil || !ok {
			return ok, err
		}
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	for sc.Scan() {
		ok, err := r.feed(name, stream.FromLine(sc.Text()))
		if err != nil || !ok {
			return ok, err
		}
	}
	if err := sc.Err(); err != nil {
		return false, runError(ErrCodeInput, r.res.RunID, name, err)
	}
	return true, nil
}
