// Package proc starts the engine process in its own process group with
// separate stdout and stderr pipes, and terminates the whole tree on request.
package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// StartOptions contains options for starting a process.
type StartOptions struct {
	// Command is the executable to run.
	Command string

	// Args are the arguments to pass to the command.
	Args []string

	// Env is the environment for the process.
	// If nil, the current process environment is used.
	Env []string

	// Dir is the working directory for the process.
	// If empty, the current directory is used.
	Dir string
}

// Process represents a running child process and the read ends of its
// output pipes.
type Process struct {
	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	pid    int
	stdout *os.File
	stderr *os.File

	done     chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// Start launches the command. Its stdout and stderr are plain pipes with no
// buffering between the child and the readers.
func Start(opts StartOptions) (*Process, error) {
	if opts.Command == "" {
		return nil, errors.New("command is required")
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	// Stdin is left nil, so the engine reads from the null device
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	// The child holds its own copies of the write ends
	outW.Close()
	errW.Close()

	p := &Process{
		Cmd:    cmd,
		pid:    cmd.Process.Pid,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go p.wait()

	return p, nil
}

func (p *Process) wait() {
	err := p.Cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// -1 when killed by a signal
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
			p.waitErr = err
		}
	}
	close(p.done)
}

// PID returns the process ID of the running process.
func (p *Process) PID() int {
	return p.pid
}

// Stdout returns the read end of the stdout pipe.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Stderr returns the read end of the stderr pipe.
func (p *Process) Stderr() io.Reader {
	return p.stderr
}

// Done returns a channel that is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports, without blocking, whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code once the process has exited. It returns -1
// if the process was killed by a signal. The error is set when waiting on the
// process itself failed.
func (p *Process) ExitCode() (int, error) {
	<-p.done
	return p.exitCode, p.waitErr
}

// KillTree forcibly terminates the process and every process it spawned.
func (p *Process) KillTree() error {
	return killTree(p.pid, p.Exited())
}

// CloseOutput closes the read ends of both pipes. A reader blocked on them
// returns os.ErrClosed.
func (p *Process) CloseOutput() error {
	p.closeOnce.Do(func() {
		if err := p.stdout.Close(); err != nil {
			p.closeErr = err
		}
		if err := p.stderr.Close(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}
