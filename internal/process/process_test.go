// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"
)

// helperCommand re-executes the test binary as a child that behaves as
// described by mode.
func helperCommand(ctx context.Context, mode string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", mode}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}

	switch args[1] {
	case "output":
		// Interleave enough output on both streams to fill a pipe buffer.
		chunk := strings.Repeat("x", 1024)
		for i := range 256 {
			fmt.Fprintf(os.Stdout, "out %d %s\n", i, chunk)
			fmt.Fprintf(os.Stderr, "err %d %s\n", i, chunk)
		}
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[2])
		os.Exit(code)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func TestRun_RelaysBothStreams(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := helperCommand(context.Background(), "output")
	if err := Run(cmd, &stdout, &stderr); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if got := strings.Count(stdout.String(), "\n"); got != 256 {
		t.Errorf("stdout lines = %d, want 256", got)
	}
	if got := strings.Count(stderr.String(), "\n"); got != 256 {
		t.Errorf("stderr lines = %d, want 256", got)
	}
	if strings.Contains(stdout.String(), "err ") || strings.Contains(stderr.String(), "out ") {
		t.Error("streams were mixed")
	}
}

func TestRun_NilWritersDiscard(t *testing.T) {
	t.Parallel()

	if err := Run(helperCommand(context.Background(), "output"), nil, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRun_ExitCode(t *testing.T) {
	t.Parallel()

	for _, want := range []int{0, 1, 101, 255} {
		err := Run(helperCommand(context.Background(), "exit", strconv.Itoa(want)), nil, nil)
		got, ok := ExitCode(err)
		if !ok || got != want {
			t.Errorf("exit %d: ExitCode() = %d, %v (err %v)", want, got, ok, err)
		}
	}
}

func TestRun_StartFailure(t *testing.T) {
	t.Parallel()

	cmd := exec.CommandContext(context.Background(), "/nonexistent/crossrun-test-binary")
	err := Run(cmd, nil, nil)
	if err == nil {
		t.Fatal("Run() should fail for a missing binary")
	}
	if _, ok := ExitCode(err); ok {
		t.Error("a start failure carries no exit status")
	}
}

func TestExitCode_NonExitError(t *testing.T) {
	t.Parallel()

	if _, ok := ExitCode(errors.New("boom")); ok {
		t.Error("ExitCode() should not accept arbitrary errors")
	}
	if code, ok := ExitCode(nil); !ok || code != 0 {
		t.Errorf("ExitCode(nil) = %d, %v", code, ok)
	}
}
