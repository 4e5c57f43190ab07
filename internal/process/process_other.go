// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// interrupt kills p. Windows has no SIGINT delivery to another console process.
func interrupt(p *os.Process, _ bool) error {
	if p == nil {
		return os.ErrProcessDone
	}
	return p.Kill()
}
