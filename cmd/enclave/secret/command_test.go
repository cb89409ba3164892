// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"strings"
	"testing"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
)

func TestBufferFromFileBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value", "hunter2", "hunter2"},
		{"trailing newline", "hunter2\n", "hunter2"},
		{"windows line ending", "hunter2\r\n", "hunter2"},
		{"multiple trailing newlines", "hunter2\n\n", "hunter2"},
		{"interior newlines preserved", "-----BEGIN KEY-----\nabc\n-----END KEY-----\n", "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buffer, err := bufferFromFileBytes([]byte(test.input), "--from-file")
			if err != nil {
				t.Fatalf("bufferFromFileBytes: %v", err)
			}
			defer buffer.Close()

			if got := buffer.String(); got != test.want {
				t.Errorf("value = %q, want %q", got, test.want)
			}
		})
	}
}

func TestBufferFromFileBytes_Empty(t *testing.T) {
	replacer := strings.NewReplacer("\n", "\\n", "\r", "\\r")
	for _, input := range []string{"", "\n", "\r\n", "\n\n\n"} {
		t.Run("value_"+replacer.Replace(input), func(t *testing.T) {
			_, err := bufferFromFileBytes([]byte(input), "--from-file")
			if err == nil {
				t.Fatal("expected error for empty value")
			}
			var toolErr *cli.ToolError
			if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
				t.Errorf("error should be a validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), "--from-file") {
				t.Errorf("error = %q, should name the value source", err.Error())
			}
		})
	}
}
