package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/CZERTAINLY/Recall/internal/model"
)

var (
	ErrNotStarted   = errors.New("command not started")
	ErrInProgress   = errors.New("command in progress")
	ErrEmptyCommand = errors.New("empty command")
)

type StderrFunc func(ctx context.Context, line string)

// waitDelay bounds how long Wait waits for stdout and stderr to be closed
// after the process has exited or was killed. A child process inheriting
// them would block Wait forever otherwise.
const waitDelay = 2 * time.Second

// Runner executes one command at a time. It implements volatility.Executor.
type Runner struct {
	mx         sync.RWMutex
	cmd        *exec.Cmd
	cancelFunc context.CancelFunc
	result     Result
	waits      []chan Result
	timeout    time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		result: Result{Err: ErrNotStarted},
	}
}

// WithTimeout sets a timeout used by Execute, zero means no timeout
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	r.timeout = timeout
	return r
}

type Command struct {
	Path    string
	Args    []string
	Env     []string
	Timeout time.Duration
}

type Result struct {
	Path    string
	Args    []string
	Env     []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Stdout  *bytes.Buffer
	Err     error
}

// ExitCode returns the exit code of the process, -1 if it has not exited
// or was terminated by a signal
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Start runs the underlying process, it ensures only single instance of a binary is active
// returns ErrInProgress or an exec error, otherwise nil. Does NOT wait on
// command to finish, use WaitChan method instead.
// Note it spawns an internal goroutine which monitors the started command and stderr
func (r *Runner) Start(ctx context.Context, proto Command, stderrFunc StderrFunc) error {
	_, err := r.start(ctx, proto, stderrFunc)
	return err
}

func (r *Runner) start(ctx context.Context, proto Command, stderrFunc StderrFunc) (<-chan Result, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return nil, ErrInProgress
	}

	r.result = Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
		Env:  append([]string(nil), proto.Env...),
		Err:  nil,
	}

	if proto.Timeout == 0 {
		slog.DebugContext(ctx, "command has no timeout", "path", proto.Path)
		ctx, r.cancelFunc = context.WithCancel(ctx)
	} else {
		ctx, r.cancelFunc = context.WithTimeout(ctx, proto.Timeout)
	}

	r.cmd = exec.CommandContext(ctx, r.result.Path, r.result.Args...)
	r.cmd.Env = r.result.Env
	r.cmd.WaitDelay = waitDelay
	var stderr *lineWriter
	if stderrFunc != nil {
		stderr = &lineWriter{ctx: ctx, fn: stderrFunc}
		r.cmd.Stderr = stderr
	}
	var buf bytes.Buffer
	r.result.Stdout = &buf
	r.cmd.Stdout = &buf

	r.result.Started = time.Now().UTC()
	if err := r.cmd.Start(); err != nil {
		r.reset(err)
		return nil, err
	}

	// registered under the lock, so the result can't be missed
	ch := make(chan Result, 1)
	r.waits = append(r.waits, ch)

	go r.wait(r.cmd, stderr)
	return ch, nil
}

// reset must be called with r.mx held
func (r *Runner) reset(err error) {
	r.result.Stopped = time.Now().UTC()
	r.result.Err = err
	r.cmd = nil
	if r.cancelFunc != nil {
		r.cancelFunc()
		r.cancelFunc = nil
	}
}

func (r *Runner) wait(cmd *exec.Cmd, stderr *lineWriter) {
	err := cmd.Wait()
	stopped := time.Now().UTC()
	if stderr != nil {
		stderr.flush()
	}

	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cancelFunc != nil {
		r.cancelFunc()
		r.cancelFunc = nil
	}
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Err = err
	r.cmd = nil
	for _, ch := range r.waits {
		ch <- r.result
		close(ch)
	}
	r.waits = nil
}

// WaitChan returns the channel obtaining the result of a running
// program. The channel is closed once program ends. If nothing is
// running, the last result is sent immediately.
func (r *Runner) WaitChan() <-chan Result {
	ch := make(chan Result, 1)
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil {
		ch <- r.result
		close(ch)
		return ch
	}
	r.waits = append(r.waits, ch)
	return ch
}

// LastResult returns a last command result
// or result with ErrNotStarted/ErrInProgress
// if no command have been executed yet
func (r *Runner) LastResult() Result {
	r.mx.RLock()
	defer r.mx.RUnlock()
	if r.cmd != nil {
		ret := r.result
		ret.Err = ErrInProgress
		return ret
	}
	return r.result
}

// Close kills a running command, if any
func (r *Runner) Close() {
	r.mx.Lock()
	cancel := r.cancelFunc
	r.mx.Unlock()
	if cancel != nil {
		cancel()
	}
	<-r.WaitChan()
}

// Execute runs argv to its end and returns the exit code. The evidence
// is registered on the result before the process starts and every line
// of stderr goes to the result log trail. When the process can't be
// started and closeOnExit is true, the result is closed here.
func (r *Runner) Execute(ctx context.Context, argv []string, result *model.Result, newEvidence []*model.Report, closeOnExit bool) (int, error) {
	result.AddEvidence(newEvidence...)

	if len(argv) == 0 {
		return r.fail(ctx, result, "", ErrEmptyCommand, closeOnExit)
	}

	line := strings.Join(argv, " ")
	proto := Command{
		Path:    argv[0],
		Args:    argv[1:],
		Timeout: r.timeout,
	}
	stderrFunc := func(ctx context.Context, line string) {
		result.Log(ctx, line)
	}

	ch, err := r.start(ctx, proto, stderrFunc)
	if err != nil {
		return r.fail(ctx, result, line, err, closeOnExit)
	}

	var res Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		r.Close()
		res = r.LastResult()
	}
	slog.DebugContext(ctx, "command finished",
		"path", res.Path,
		"elapsed", res.Stopped.Sub(res.Started).String(),
		"stdout", res.Stdout.String(),
	)

	var exitErr *exec.ExitError
	if res.Err != nil && !errors.As(res.Err, &exitErr) {
		slog.WarnContext(ctx, "waiting on command", "error", res.Err)
	}

	code := res.ExitCode()
	if code == 0 {
		result.Log(ctx, fmt.Sprintf("Execution of [%s] succeeded", line))
	} else {
		result.Log(ctx, fmt.Sprintf("Execution of [%s] failed with status %d", line, code))
	}
	return code, nil
}

// lineWriter calls fn for every line written to it. Writes come from
// a single goroutine owned by exec.Cmd.
type lineWriter struct {
	ctx context.Context
	fn  StderrFunc
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		w.fn(w.ctx, string(bytes.TrimSuffix(w.buf[:idx], []byte{'\r'})))
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

// flush passes the last line without a newline, must be called after Wait
func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.fn(w.ctx, string(w.buf))
		w.buf = nil
	}
}

func (r *Runner) fail(ctx context.Context, result *model.Result, line string, err error, closeOnExit bool) (int, error) {
	msg := fmt.Sprintf("Execution of [%s] failed: %v", line, err)
	result.Log(ctx, msg)
	if closeOnExit {
		if cerr := result.Close(ctx, false, msg); cerr != nil {
			return -1, errors.Join(err, cerr)
		}
	}
	return -1, err
}
