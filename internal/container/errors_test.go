// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/crossrun/crossrun/internal/issue"
)

func TestExecutionBackendError(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 125")
	err := &ExecutionBackendError{Engine: "docker", Op: "run", ExitCode: 125, Stderr: "  no space left on device\n", Cause: cause}

	if got, want := err.Error(), "docker run failed (exit status 125): no space left on device"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrExecutionBackend) || !errors.Is(err, cause) {
		t.Error("error should match both the sentinel and the cause")
	}

	wrapped := fmt.Errorf("launch: %w", err)
	if got := issue.KindOf(wrapped); got != issue.KindExecutionBackend {
		t.Errorf("KindOf() = %v", got)
	}

	noExit := &ExecutionBackendError{Engine: "docker-api", Op: "create container", Cause: errors.New("daemon unreachable")}
	if got, want := noExit.Error(), "docker-api create container failed: daemon unreachable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsEngineFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"backend error", &ExecutionBackendError{Engine: "podman", Op: "pull"}, true},
		{"wrapped backend error", fmt.Errorf("x: %w", &ExecutionBackendError{}), true},
		{"canceled", context.Canceled, false},
		{"canceled backend error", &ExecutionBackendError{Cause: context.Canceled}, false},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsEngineFailure(tt.err); got != tt.want {
				t.Errorf("IsEngineFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	b := newTailBuffer(8)
	for _, s := range []string{"abc", "defg", "hijk"} {
		if n, err := b.Write([]byte(s)); err != nil || n != len(s) {
			t.Fatalf("Write(%q) = %d, %v", s, n, err)
		}
	}
	if got := b.String(); got != "defghijk" {
		t.Errorf("String() = %q", got)
	}

	b = newTailBuffer(4)
	_, _ = b.Write([]byte(strings.Repeat("x", 10) + "tail"))
	if got := b.String(); got != "tail" {
		t.Errorf("String() after oversized write = %q", got)
	}

	b = newTailBuffer(64)
	_, _ = b.Write([]byte("\n  error: denied \n"))
	if got := b.String(); got != "error: denied" {
		t.Errorf("String() = %q, want trimmed", got)
	}
}

func TestEngineErrorsKinds(t *testing.T) {
	t.Parallel()

	if got := issue.KindOf(&EngineNotAvailableError{Engine: "docker", Reason: "x"}); got != issue.KindExecutionBackend {
		t.Errorf("EngineNotAvailableError kind = %v", got)
	}
	if got := issue.KindOf(&InvalidRunOptionsError{Reason: "x"}); got != issue.KindInternal {
		t.Errorf("InvalidRunOptionsError kind = %v", got)
	}
	_, err := NewEngine("lxc")
	if got := issue.KindOf(err); got != issue.KindConfig {
		t.Errorf("NewEngine(lxc) kind = %v", got)
	}
	if !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("NewEngine(lxc) error = %v", err)
	}
}
