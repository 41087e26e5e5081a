// internal/solver/invoker.go
// Package: solver
package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ResultToken is the fixed third argument naming the solver's result artifact.
const ResultToken = "result"

// ExitInvocationError is the status reported when the solver could not be started.
const ExitInvocationError = -127

// maxCapturedOutput caps how much of each stream is kept per trial.
const maxCapturedOutput = 64 << 10

const waitDelay = 2 * time.Second

// Invocation describes one solver run.
type Invocation struct {
	Executable string
	ParamsPath string
	InputPath  string
	// WorkDir is where the solver writes its artifacts. It is handed to the child
	// process directly; the harness never changes its own working directory.
	WorkDir string
	// Timeout bounds the run when > 0. Zero waits indefinitely.
	Timeout time.Duration
}

// Args returns the positional arguments passed to the solver.
func (inv Invocation) Args() []string {
	return []string{inv.ParamsPath, inv.InputPath, ResultToken}
}

// Result is what a finished invocation reports back.
type Result struct {
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	// Err is set when the process could not be started or was killed on timeout.
	Err error
}

// InvocationError reports a solver that could not be launched at all.
type InvocationError struct {
	Executable string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Executable, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ErrTimeout marks a run that was killed because it exceeded its timeout.
var ErrTimeout = errors.New("solver timed out")

// Runner runs one solver invocation to completion.
type Runner interface {
	Run(ctx context.Context, inv Invocation) Result
}

// ExecRunner launches the solver as a child process and blocks until it exits.
type ExecRunner struct {
	// KeepOutput retains stdout/stderr in the Result. They are captured either way.
	KeepOutput bool
}

// Run starts the solver with its three positional arguments and waits for it.
// It never returns an error: launch failures become ExitInvocationError results.
func (r ExecRunner) Run(ctx context.Context, inv Invocation) Result {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	} else {
		// A suite-level cancel must not kill a trial that is already running.
		ctx = context.WithoutCancel(ctx)
	}

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args()...)
	cmd.Dir = inv.WorkDir
	// Grandchildren holding the output pipes must not keep a killed trial alive.
	cmd.WaitDelay = waitDelay
	stdout := &cappedBuffer{limit: maxCapturedOutput}
	stderr := &cappedBuffer{limit: maxCapturedOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	t0 := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{
			ExitCode: ExitInvocationError,
			Duration: time.Since(t0),
			Err:      &InvocationError{Executable: inv.Executable, Err: err},
		}
	}
	waitErr := cmd.Wait()
	res := Result{Duration: time.Since(t0)}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)
		// A killed child may still report a clean status; force the Error category.
		if Classify(res.ExitCode) != Error {
			res.ExitCode = -1
		}
	} else if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.ExitCode = ExitInvocationError
			res.Err = &InvocationError{Executable: inv.Executable, Err: waitErr}
		}
	}

	if r.KeepOutput || Classify(res.ExitCode) == Error {
		res.Stdout = stdout.Bytes()
		res.Stderr = stderr.Bytes()
	}
	return res
}

// cappedBuffer keeps the last limit bytes written to it.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > b.limit {
		p = p[len(p)-b.limit:]
	}
	if over := b.buf.Len() + len(p) - b.limit; over > 0 {
		b.buf.Next(over)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}
