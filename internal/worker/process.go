package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/dshills/contentsearch/internal/logging"
)

// DefaultKillAfter is how long Close waits for a worker process to exit on
// its own before killing it
const DefaultKillAfter = 5 * time.Second

// ProcessConfig describes how to launch a worker process
type ProcessConfig struct {
	Command   []string // argv; the process must run Serve on stdin/stdout
	Env       []string // extra environment, appended to os.Environ()
	KillAfter time.Duration
	Logger    *slog.Logger
}

// Process is a Worker backed by a child process
type Process struct {
	*Stream
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	killAfter time.Duration
	logger    *slog.Logger
}

// procConn joins the child's stdout and stdin into one stream. Closing it
// closes stdin only, which asks the child to finish and exit.
type procConn struct {
	stdout io.Reader
	stdin  io.WriteCloser
}

func (c procConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c procConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }
func (c procConn) Close() error                { return c.stdin.Close() }

// StartProcess launches a worker process and connects a Stream client to it
func StartProcess(cfg ProcessConfig) (*Process, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	logger := logging.OrDiscard(cfg.Logger)

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to start worker %s: %w", cfg.Command[0], err)
	}

	killAfter := cfg.KillAfter
	if killAfter <= 0 {
		killAfter = DefaultKillAfter
	}

	logger.Debug("worker process started", "pid", cmd.Process.Pid)

	return &Process{
		Stream:    NewStream(procConn{stdout: stdout, stdin: stdin}, logger),
		cmd:       cmd,
		stdin:     stdin,
		killAfter: killAfter,
		logger:    logger,
	}, nil
}

// Pid returns the child's process ID
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Close asks the child to exit by closing its stdin, kills it if it does not
// exit within KillAfter, and reaps it
func (p *Process) Close() error {
	if !p.Stream.markClosed() {
		return nil
	}
	_ = p.stdin.Close()

	killed := false
	timer := time.NewTimer(p.killAfter)
	defer timer.Stop()

	select {
	case <-p.Stream.Done():
	case <-timer.C:
		p.logger.Warn("worker process did not exit, killing", "pid", p.cmd.Process.Pid)
		_ = p.cmd.Process.Kill()
		killed = true
		<-p.Stream.Done()
	}

	err := p.cmd.Wait()
	p.logger.Debug("worker process exited", "pid", p.cmd.Process.Pid, "killed", killed)
	if err != nil && !killed {
		return fmt.Errorf("worker process %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}
