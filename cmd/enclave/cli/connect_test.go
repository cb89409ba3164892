// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/enclave-foundation/enclave/lib/service"
)

func TestCategorize_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		category ErrorCategory
	}{
		{"missing field", "id is required", CategoryValidation},
		{"invalid value", "invalid access mode", CategoryValidation},
		{"not loaded", `component "adder" is not loaded`, CategoryNotFound},
		{"missing export", `component "adder" has no export "multiply"`, CategoryNotFound},
		{"already loaded", `component "adder" is already loaded`, CategoryConflict},
		{"unrecognized message", "wasm trap: unreachable instruction", CategoryInternal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wireErr := &service.ServiceError{Action: "component.invoke", Message: test.message}
			err := categorize("/run/enclave/admin.sock", wireErr)

			var toolErr *ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("categorize returned %T, want *ToolError", err)
			}
			if toolErr.Category != test.category {
				t.Errorf("Category = %q, want %q", toolErr.Category, test.category)
			}
			if !strings.Contains(err.Error(), test.message) {
				t.Errorf("error = %q, should preserve daemon message %q", err.Error(), test.message)
			}
		})
	}
}

func TestCategorize_ConnectionRefused(t *testing.T) {
	dialErr := fmt.Errorf("dial unix /run/enclave/admin.sock: %w", syscall.ECONNREFUSED)
	err := categorize("/run/enclave/admin.sock", dialErr)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("categorize returned %T, want *ToolError", err)
	}
	if toolErr.Category != CategoryTransient {
		t.Errorf("Category = %q, want %q", toolErr.Category, CategoryTransient)
	}
	if !strings.Contains(err.Error(), "/run/enclave/admin.sock") {
		t.Errorf("error = %q, should name the socket path", err.Error())
	}
	if !strings.Contains(err.Error(), "enclave-host") {
		t.Errorf("error = %q, hint should name the daemon binary", err.Error())
	}
}

func TestCategorize_SocketMissing(t *testing.T) {
	dialErr := fmt.Errorf("dial unix /run/enclave/admin.sock: %w", syscall.ENOENT)
	err := categorize("/run/enclave/admin.sock", dialErr)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("categorize returned %T, want *ToolError", err)
	}
	if toolErr.Category != CategoryTransient {
		t.Errorf("Category = %q, want %q", toolErr.Category, CategoryTransient)
	}
}

func TestCategorize_DeadlineExceeded(t *testing.T) {
	err := categorize("/run/enclave/admin.sock", context.DeadlineExceeded)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("categorize returned %T, want *ToolError", err)
	}
	if toolErr.Category != CategoryTransient {
		t.Errorf("Category = %q, want %q", toolErr.Category, CategoryTransient)
	}
}

func TestCategorize_UnknownErrorPassedThrough(t *testing.T) {
	sentinel := errors.New("unexpected transport failure")
	err := categorize("/run/enclave/admin.sock", sentinel)
	if err != sentinel {
		t.Errorf("categorize rewrote an unrecognized error: got %v, want the original", err)
	}
}
