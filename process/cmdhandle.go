package process

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// CmdHandle adapts *exec.Cmd to ChildHandle, the concrete SpawnFunc
// result real supervised children use. Test doubles implement
// ChildHandle directly without spawning a real process.
type CmdHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// NewCmdHandle starts cmd and wraps it. The caller still owns cmd's
// Stdout/Stderr/Env/Dir configuration; NewCmdHandle only starts it.
func NewCmdHandle(cmd *exec.Cmd) (*CmdHandle, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &CmdHandle{cmd: cmd, done: make(chan struct{})}, nil
}

func (h *CmdHandle) Pid() int { return h.cmd.Process.Pid }

func (h *CmdHandle) Wait() error {
	err := h.cmd.Wait()
	close(h.done)
	return err
}

// TryWait reports whether Wait has already reaped this child, without
// issuing a second wait4 on its pid: doing so would race the blocking
// Wait call the supervisor goroutine may have in flight, and could
// return ECHILD for one of the two callers or, worse, collide with pid
// reuse once the kernel recycles the pid.
func (h *CmdHandle) TryWait() (exited bool, err error) {
	select {
	case <-h.done:
		return true, nil
	default:
		return false, nil
	}
}

// Kill sends SIGKILL directly via the raw syscall rather than
// (*os.Process).Kill, retrying on EINTR, since a signal delivered mid
// syscall is expected to require a retry, not a caller-visible failure.
func (h *CmdHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	pid := h.cmd.Process.Pid
	for {
		err := unix.Kill(pid, unix.SIGKILL)
		switch err {
		case unix.EINTR:
			continue
		case unix.ESRCH:
			return nil
		case nil:
			return nil
		default:
			return err
		}
	}
}
