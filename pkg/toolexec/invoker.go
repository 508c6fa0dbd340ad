// Package toolexec is the single gateway through which builds run external tools
package toolexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/apkforge/apkforge/pkg/logger"
)

// ErrToolExecution indicates an external tool could not be run or exited non-zero
var ErrToolExecution = errors.New("tool execution failed")

// ExecutionError carries the tool name and exit code of a failed run.
// ExitCode is -1 when the process never ran to completion.
type ExecutionError struct {
	Tool     string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrToolExecution, e.Err}
}

// Command describes one tool invocation
type Command struct {
	// Name labels the tool in logs and errors.
	Name string
	Path string
	Args []string
	Dir  string
	// Heavy marks memory-hungry tools that must never run concurrently
	// with another heavy tool in the same process.
	Heavy bool
}

// String renders the command line for logs
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// HeavyLock serializes heavy tools across every build of a process
type HeavyLock struct {
	sem *semaphore.Weighted
}

// NewHeavyLock creates an unheld lock
func NewHeavyLock() *HeavyLock {
	return &HeavyLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done
func (l *HeavyLock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release gives the lock back
func (l *HeavyLock) Release() {
	l.sem.Release(1)
}

// Observer is told when a tool process starts and finishes. Both callbacks
// of a heavy tool run while the heavy lock is held.
type Observer interface {
	OnStart(cmd Command, at time.Time)
	OnFinish(cmd Command, at time.Time, err error)
}

// Option configures an Invoker
type Option func(*Invoker)

// WithTimeout kills tools that run longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.timeout = d }
}

// WithObserver installs an observer
func WithObserver(o Observer) Option {
	return func(i *Invoker) { i.observer = o }
}

// WithLogger sets the operator logger
func WithLogger(l logger.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// Invoker runs tools as subprocesses
type Invoker struct {
	lock     *HeavyLock
	timeout  time.Duration
	observer Observer
	logger   logger.Logger
}

// NewInvoker creates an invoker sharing lock with every other invoker built on it
func NewInvoker(lock *HeavyLock, opts ...Option) *Invoker {
	if lock == nil {
		lock = NewHeavyLock()
	}
	inv := &Invoker{lock: lock, logger: logger.Discard()}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Run executes cmd, streaming its output into stdout and stderr, and
// returns nil when the tool exits with status zero.
func (i *Invoker) Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	if cmd.Heavy {
		if err := i.lock.Acquire(ctx); err != nil {
			return &ExecutionError{Tool: cmd.Name, ExitCode: -1, Err: err}
		}
		defer i.lock.Release()
	}

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = stdout
	c.Stderr = stderr
	if i.timeout > 0 {
		// bounds the wait for output pipes held open by a killed tool's children
		c.WaitDelay = time.Second
	}

	i.logger.Debug("Running tool",
		logger.WithField("tool", cmd.Name),
		logger.WithField("command", cmd.String()))

	started := time.Now()
	if i.observer != nil {
		i.observer.OnStart(cmd, started)
	}

	err := c.Run()
	finished := time.Now()
	if err != nil {
		err = i.classify(runCtx, cmd, err)
	}

	if i.observer != nil {
		i.observer.OnFinish(cmd, finished, err)
	}

	i.logger.Debug("Tool finished",
		logger.WithField("tool", cmd.Name),
		logger.WithField("duration_ms", finished.Sub(started).Milliseconds()),
		logger.WithField("ok", err == nil))
	return err
}

func (i *Invoker) classify(ctx context.Context, cmd Command, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ExecutionError{Tool: cmd.Name, ExitCode: -1, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecutionError{Tool: cmd.Name, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &ExecutionError{Tool: cmd.Name, ExitCode: -1, Err: err}
}
