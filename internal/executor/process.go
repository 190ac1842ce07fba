package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// newCommand builds an exec.Cmd for an invocation with process group
// isolation. Context cancellation kills the whole group, so agent
// subprocesses cannot outlive a timed-out invocation.
func newCommand(ctx context.Context, inv Invocation) *exec.Cmd {
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	return cmd
}

// run executes an invocation and returns its stdout, stderr, and any
// error. Both pipes drain concurrently before Wait is called, so
// output larger than the pipe buffer cannot deadlock the subprocess.
func run(ctx context.Context, inv Invocation, pm *ProcessManager) (stdout []byte, stderr []byte, err error) {
	cmd := newCommand(ctx, inv)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting %s: %w", inv.Binary, err)
	}

	if pm != nil {
		pm.Track(cmd)
		defer pm.Untrack(cmd)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, copyErr := io.Copy(&stdoutBuf, stdoutPipe)
		return copyErr
	})
	g.Go(func() error {
		_, copyErr := io.Copy(&stderrBuf, stderrPipe)
		return copyErr
	})

	// Pipes must be fully drained before Wait.
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	stdout = stdoutBuf.Bytes()
	stderr = stderrBuf.Bytes()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout, stderr, fmt.Errorf("%w (%v)", ctxErr, waitErr)
		}
		if len(stderr) > 0 {
			return stdout, stderr, fmt.Errorf("%s failed: %w (stderr: %s)", inv.Binary, waitErr, bytes.TrimSpace(stderr))
		}
		return stdout, stderr, fmt.Errorf("%s failed: %w", inv.Binary, waitErr)
	}
	if copyErr != nil {
		return stdout, stderr, fmt.Errorf("draining %s output: %w", inv.Binary, copyErr)
	}

	return stdout, stderr, nil
}

// killProcessGroup kills the entire process group of cmd, taking any
// children the agent spawned down with it.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing process group: %w", err)
	}
	return nil
}

// ProcessManager tracks running agent subprocesses so shutdown can
// terminate them all instead of leaving orphans behind.
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates an empty ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Track registers a started subprocess.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a finished subprocess.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, cmd.Process.Pid)
}

// KillAll terminates every tracked subprocess group.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for pid, cmd := range pm.procs {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("killing process %d: %w", pid, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("killing processes: %v", errs)
	}
	return nil
}

// Count returns the number of tracked processes.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}
