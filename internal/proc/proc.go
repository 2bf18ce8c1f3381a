// Package proc runs a subprocess as a pipeline stage.
//
// The process is driven from the worker side of a bridge: one goroutine
// feeds entries to its stdin as lines and another reads its stdout back as
// entries. Neither side knows the other is a process; a failed write to
// stdin only means the child stopped reading.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/recstream/internal/bridge"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/stream"
)

// maxLine bounds a single line read from the child.
const maxLine = 16 << 20

// Command describes the child process.
type Command struct {
	Path string
	Args []string
	// Parse turns every output line into a record.
	Parse bool
	// Stderr receives the child's stderr; nil means os.Stderr.
	Stderr io.Writer
	Log    *logging.Logger
}

// ExitError reports a child that exited unsuccessfully.
type ExitError struct {
	Path string
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process %s: %v", e.Path, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Stage returns a background stage running c behind a bridge of the given
// capacity.
func (c Command) Stage(ctx context.Context, capacity int) stream.Stream {
	return stream.Background(ctx, capacity, c.Worker())
}

// Worker returns the bridge worker that owns the child process.
//
// BeginFile entries are not sent to the child; they are forwarded to the
// output as they are read, so their position relative to the child's own
// output is only approximate.
func (c Command) Worker() stream.Worker {
	return func(ctx context.Context, back *bridge.Back[stream.Entry, stream.Entry]) error {
		log := c.Log
		if log == nil {
			log = logging.Nop()
		}
		log = log.WithComponent("proc")

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx, c.Path, c.Args...)
		cmd.Stderr = c.Stderr
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return &ExitError{Path: c.Path, Err: err}
		}
		pid := cmd.Process.Pid
		log.Debug("process started", logging.Fields(logging.FieldPID, pid, "path", c.Path))

		var g errgroup.Group
		g.Go(func() error {
			defer stdin.Close()
			return c.feed(back, stdin, log)
		})
		g.Go(func() error {
			err := c.pump(back, stdout)
			if err != nil {
				// nobody drains stdout any more
				cancel()
				back.SignalNoMoreReads()
			}
			return err
		})
		pumpErr := g.Wait()
		waitErr := cmd.Wait()
		log.Debug("process exited", logging.Fields(logging.FieldPID, pid, "code", cmd.ProcessState.ExitCode()))

		if pumpErr != nil {
			return pumpErr
		}
		if waitErr != nil {
			return &ExitError{Path: c.Path, Err: waitErr}
		}
		return nil
	}
}

// feed copies input entries to the child until the input ends or a write
// fails.
func (c Command) feed(back *bridge.Back[stream.Entry, stream.Entry], stdin io.Writer, log *logging.Logger) error {
	w := bufio.NewWriter(stdin)
	for {
		e, ok := back.Read()
		if !ok {
			return nil
		}
		if e.Kind() == stream.KindBeginFile {
			if !back.Write(e) {
				back.SignalNoMoreReads()
				return nil
			}
			continue
		}
		line, err := e.ToLine()
		if err != nil {
			back.SignalNoMoreReads()
			return err
		}
		if _, err = w.WriteString(line + "\n"); err == nil {
			err = w.Flush()
		}
		if err != nil {
			log.Debug("child stopped reading", logging.Fields(logging.FieldError, err.Error()))
			back.SignalNoMoreReads()
			return nil
		}
	}
}

// pump turns child output into entries. Once the front end stops reading,
// the rest of the output is discarded so the child can run to completion.
func (c Command) pump(back *bridge.Back[stream.Entry, stream.Entry], stdout io.Reader) error {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		e := stream.FromLine(sc.Text())
		if c.Parse {
			r, err := e.ToRecord()
			if err != nil {
				return fmt.Errorf("process %s output: %w", c.Path, err)
			}
			e = stream.FromRecord(r)
		}
		if !back.Write(e) {
			_, err := io.Copy(io.Discard, stdout)
			if errors.Is(err, os.ErrClosed) {
				err = nil
			}
			return err
		}
	}
	return sc.Err()
}
