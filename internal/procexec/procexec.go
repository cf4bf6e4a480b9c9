package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTailLines bounds the stderr lines retained per invocation.
const DefaultTailLines = 20

// Result describes a finished process.
type Result struct {
	ExitCode   int
	StderrTail []string
}

// Stderr joins the captured stderr tail.
func (r Result) Stderr() string {
	return strings.Join(r.StderrTail, "\n")
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Binary string
	Result Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.Result.ExitCode)
	if last := lastLine(e.Result.StderrTail); last != "" {
		msg += ": " + last
	}
	return msg
}

// Runner executes a binary with arguments.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (Result, error)
}

// Options tune a Command.
type Options struct {
	// TailLines caps retained stderr lines; zero means DefaultTailLines.
	TailLines int
	// OnStdout receives each stdout line; nil discards stdout.
	OnStdout func(string)
	// Dir sets the working directory of the child.
	Dir string
}

// Command is the default Runner backed by os/exec.
type Command struct {
	opts Options
}

// New constructs a Command.
func New(opts Options) *Command {
	return &Command{opts: opts}
}

// Run executes binary with args using a default Command.
func Run(ctx context.Context, binary string, args []string) (Result, error) {
	return New(Options{}).Run(ctx, binary, args)
}

// waitDelay bounds how long Run waits for pipes held open by descendants
// after the child exits or the context is done.
const waitDelay = 2 * time.Second

// Run starts the process in its own process group, streams stdout and
// stderr line by line, and waits. Cancelling ctx kills the whole group, so
// helpers the tool spawned do not outlive the call. A non-zero exit yields
// *ExitError; a start failure is returned wrapped.
func (c *Command) Run(ctx context.Context, binary string, args []string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{ExitCode: -1}, errors.New("procexec: empty binary")
	}

	limit := c.opts.TailLines
	if limit <= 0 {
		limit = DefaultTailLines
	}
	tail := newTailBuffer(limit)
	onStdout := c.opts.OnStdout
	if onStdout == nil {
		onStdout = func(string) {}
	}
	stdout := &lineWriter{emit: onStdout}
	stderr := &lineWriter{emit: tail.add}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = c.opts.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", binary, err)
	}
	waitErr := cmd.Wait()
	stdout.flush()
	stderr.flush()

	result := Result{ExitCode: 0, StderrTail: tail.lines()}
	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		result.ExitCode = exitCode(cmd)
		return result, fmt.Errorf("%s: %w", binary, ctxErr)
	}
	// A descendant kept a pipe open past waitDelay; the tool itself finished.
	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		waitErr = nil
	}
	if waitErr == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Binary: binary, Result: result}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("wait %s: %w", binary, waitErr)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.limit {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.limit:]...)
	}
}

func (t *tailBuffer) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}

// maxLineBytes caps a single buffered line; longer output is emitted in
// chunks of this size.
const maxLineBytes = 1 << 20

// lineWriter splits a byte stream into lines for emit. exec copies each
// stream from a single goroutine, so no locking is needed.
type lineWriter struct {
	emit    func(string)
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	for len(w.partial) >= maxLineBytes {
		w.emit(string(w.partial[:maxLineBytes]))
		w.partial = w.partial[maxLineBytes:]
	}
	if len(w.partial) == 0 {
		w.partial = nil
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
