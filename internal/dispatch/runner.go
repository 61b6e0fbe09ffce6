package dispatch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hookpipe/hookpipe/internal/hook"
	"github.com/hookpipe/hookpipe/internal/log"
	"github.com/hookpipe/hookpipe/internal/signature"
)

// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
const terminationGracePeriod = 5 * time.Second

// copyChunkSize is the buffer size used when streaming an unauthenticated body.
const copyChunkSize = 32 * 1024

// Runner launches hook processes and supervises them against the global timeout.
type Runner struct {
	timeout time.Duration
	grace   time.Duration
}

// NewRunner creates a Runner. A zero timeout means children are waited on
// indefinitely and never killed.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{
		timeout: timeout,
		grace:   terminationGracePeriod,
	}
}

// Process is one spawned hook program. It exclusively owns the write end of
// the child's stdin pipe and the handle used to wait for or kill the child.
type Process struct {
	ID string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	broken bool
	logger *slog.Logger
}

// Launch spawns the hook's program with a fresh pipe bound to its stdin.
// stdout and stderr are inherited from the daemon. A failure to obtain the
// pipe or to start the program aborts the delivery.
func (r *Runner) Launch(h *hook.Hook) (*Process, error) {
	id := uuid.NewString()
	logger := log.WithDelivery(id).With(
		slog.String("component", "dispatch"),
		slog.String("hook", h.Path),
	)

	cmd := exec.Command(h.Program, h.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("failed to open stdin pipe", "command", h.CommandLine(), "error", err)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		logger.Error("failed to start hook program", "command", h.CommandLine(), "error", err)
		return nil, err
	}

	logger.Info("executing hook", "command", h.CommandLine(), "pid", cmd.Process.Pid)

	return &Process{
		ID:     id,
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
	}, nil
}

// Run feeds the request body into the process and then supervises it until
// exit. It blocks for the child's whole lifetime; callers wanting the
// supervision detached from the feed use Deliver and Supervise directly.
func (r *Runner) Run(p *Process, body io.Reader, verifier *signature.Verifier) {
	r.Deliver(p, body, verifier)
	r.Supervise(p)
}

// Deliver forwards the request body into the child's stdin and closes the
// pipe. When a verifier is present the whole body is buffered and the digest
// checked before any byte is forwarded; a mismatch closes the pipe with
// nothing written. Without a verifier the body is streamed as it arrives.
//
// A broken-pipe write error means the child exited without draining its
// stdin; that is benign and stops forwarding silently. Any other write error,
// and any body read error, is logged and stops forwarding. Bytes already
// written are not retracted.
func (r *Runner) Deliver(p *Process, body io.Reader, verifier *signature.Verifier) {
	defer p.closeStdin()

	if verifier != nil {
		payload, err := io.ReadAll(body)
		if err != nil {
			p.logger.Error("failed to read request body", "error", err)
			return
		}
		verifier.Write(payload)
		if verifier.Result() != signature.Valid {
			p.logger.Warn("signature mismatch")
			return
		}
		p.write(payload)
		return
	}

	buf := make([]byte, copyChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if !p.write(buf[:n]) {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				p.logger.Error("failed to read request body", "error", err)
			}
			return
		}
	}
}

// Supervise waits for the process to exit, killing it if the timeout elapses
// first. A process that has already exited when the timer fires is never
// killed. The terminal outcome is always logged and the child always reaped.
func (r *Runner) Supervise(p *Process) {
	waitCh := make(chan error, 1)
	go func() { waitCh <- p.cmd.Wait() }()

	// A nil channel never fires, so a zero timeout waits forever.
	var timeoutCh <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case err := <-waitCh:
		p.logExit(err)
	case <-timeoutCh:
		// Tie-break: an exit that landed together with the timer wins.
		select {
		case err := <-waitCh:
			p.logExit(err)
			return
		default:
		}

		p.logger.Warn("timed out waiting for hook, sending SIGTERM", "timeout", r.timeout)
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.logger.Error("failed to send SIGTERM", "error", err)
		}

		grace := time.NewTimer(r.grace)
		defer grace.Stop()
		select {
		case err := <-waitCh:
			p.logger.Info("hook exited after SIGTERM", "wait", waitResult(err))
		case <-grace.C:
			p.logger.Warn("hook did not exit after SIGTERM, sending SIGKILL")
			if err := p.cmd.Process.Kill(); err != nil {
				p.logger.Error("failed to send SIGKILL", "error", err)
			}
			err := <-waitCh
			p.logger.Warn("hook killed", "wait", waitResult(err))
		}
	}
}

// write sends b to the child's stdin. It returns false when forwarding must
// stop. EPIPE marks the pipe broken without an error log.
func (p *Process) write(b []byte) bool {
	if p.broken {
		return false
	}
	if _, err := p.stdin.Write(b); err != nil {
		p.broken = true
		if errors.Is(err, syscall.EPIPE) {
			p.logger.Debug("hook closed its stdin early")
			return false
		}
		p.logger.Error("failed to write to hook stdin", "error", err)
		return false
	}
	return true
}

// closeStdin shuts the write side of the pipe. Deliver is the sole caller, so
// the pipe is closed exactly once per delivery.
func (p *Process) closeStdin() {
	if err := p.stdin.Close(); err != nil && !errors.Is(err, syscall.EPIPE) {
		p.logger.Error("failed to close hook stdin", "error", err)
	}
}

func (p *Process) logExit(err error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.logger.Info("hook exited", "exit_code", 0)
	case errors.As(err, &exitErr):
		p.logger.Warn("hook exited with non-zero status", "exit_code", exitErr.ExitCode())
	default:
		p.logger.Error("error waiting for hook", "error", err)
	}
}

func waitResult(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
