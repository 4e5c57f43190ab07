// SPDX-License-Identifier: MPL-2.0

package runtime

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

	"github.com/crossrun/crossrun/internal/issue"
)

// helperExec re-executes the test binary as TestHelperProcess in place of the
// named tool. It records the argv it was asked to run.
func helperExec(recorded *[]string) ExecCommandFunc {
	return func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		*recorded = append([]string{name}, arg...)
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, arg...)
		return exec.CommandContext(ctx, os.Args[0], cs...)
	}
}

func helperEnv(exitCode int, extra ...string) func() []string {
	return func() []string {
		return append([]string{"GO_WANT_HELPER_PROCESS=1", "GO_HELPER_EXIT_CODE=" + strconv.Itoa(exitCode)}, extra...)
	}
}

// TestHelperProcess prints its arguments to stdout, a marker to stderr, and
// exits with GO_HELPER_EXIT_CODE. GO_HELPER_SLEEP keeps it running.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	fmt.Fprintln(os.Stdout, strings.Join(args, " "))
	fmt.Fprintln(os.Stderr, "helper stderr")

	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil {
		time.Sleep(d)
	}
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}

func TestNativeRuntime_Run(t *testing.T) {
	t.Parallel()

	for _, code := range []int{0, 1, 101} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			t.Parallel()

			var recorded []string
			r := &NativeRuntime{Environ: helperEnv(code), execCommand: helperExec(&recorded)}
			var stdout, stderr bytes.Buffer
			argv := []string{"cargo", "+nightly", "build", "--target", "x86_64-unknown-linux-gnu"}

			got, err := r.Run(t.Context(), argv, Streams{Stdout: &stdout, Stderr: &stderr})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if got != code {
				t.Errorf("Run() = %d, want %d", got, code)
			}
			if want := strings.Join(argv, " ") + "\n"; stdout.String() != want {
				t.Errorf("stdout = %q, want %q", stdout.String(), want)
			}
			if stderr.String() != "helper stderr\n" {
				t.Errorf("stderr = %q", stderr.String())
			}
			if strings.Join(recorded, " ") != strings.Join(argv, " ") {
				t.Errorf("executed %v, want %v", recorded, argv)
			}
		})
	}
}

func TestNativeRuntime_Interrupted(t *testing.T) {
	t.Parallel()

	var recorded []string
	r := &NativeRuntime{Environ: helperEnv(0, "GO_HELPER_SLEEP=30s"), execCommand: helperExec(&recorded)}

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.Run(ctx, []string{"cargo", "test"}, Streams{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("interrupt took %v", elapsed)
	}
}

func TestNativeRuntime_ToolNotFound(t *testing.T) {
	t.Parallel()

	r := NewNativeRuntime()
	_, err := r.Run(t.Context(), []string{"crossrun-test-no-such-tool"}, Streams{})
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("Run() error = %v, want exec.ErrNotFound", err)
	}
	if got := issue.KindOf(err); got != issue.KindExecutionBackend {
		t.Errorf("KindOf() = %v", got)
	}
	if r.Name() != "native" {
		t.Errorf("Name() = %q", r.Name())
	}
}

func TestNativeRuntime_EmptyCommand(t *testing.T) {
	t.Parallel()

	if _, err := NewNativeRuntime().Run(t.Context(), nil, Streams{}); err == nil {
		t.Error("Run(nil) should fail")
	}
}
