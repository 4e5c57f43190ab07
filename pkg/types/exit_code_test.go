// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitCode
		wantValid bool
	}{
		{name: "zero is valid", value: 0, wantValid: true},
		{name: "cargo failure is valid", value: 101, wantValid: true},
		{name: "255 is valid", value: 255, wantValid: true},
		{name: "negative is invalid", value: -1, wantValid: false},
		{name: "256 is invalid", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ExitCode(%d).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if !tt.wantValid && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
			}
		})
	}
}

func TestExitCodeIsReserved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ExitCode
		want bool
	}{
		{0, false},
		{101, false},
		{119, false},
		{ExitCodeConfig, true},
		{ExitCodeUnsupportedTarget, true},
		{ExitCodeEmulationUnavailable, true},
		{ExitCodeExecutionBackend, true},
		{ExitCodeInternal, true},
		{125, false},
		{ExitCodeInterrupted, false},
	}

	for _, tt := range tests {
		if got := tt.code.IsReserved(); got != tt.want {
			t.Errorf("ExitCode(%d).IsReserved() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestExitCodeIsSuccess(t *testing.T) {
	t.Parallel()

	if !ExitCode(0).IsSuccess() {
		t.Error("0 should be success")
	}
	if ExitCode(1).IsSuccess() {
		t.Error("1 should not be success")
	}
	if got := ExitCode(42).String(); got != "42" {
		t.Errorf("String() = %q, want %q", got, "42")
	}
}
