// SPDX-License-Identifier: MPL-2.0

//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// interrupt sends SIGINT to p, or to its whole process group when group is
// set. os.ErrProcessDone tells exec.Cmd the child is already gone.
func interrupt(p *os.Process, group bool) error {
	if p == nil {
		return os.ErrProcessDone
	}
	if group && p.Pid > 0 {
		err := unix.Kill(-p.Pid, unix.SIGINT)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		if err == nil {
			return nil
		}
	}
	return p.Signal(os.Interrupt)
}
