// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"testing"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
)

func TestPortPointer(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		want    *uint16
		wantErr bool
	}{
		{"zero means any port", 0, nil, false},
		{"lowest valid", 1, uint16Ptr(1), false},
		{"https", 443, uint16Ptr(443), false},
		{"highest valid", 65535, uint16Ptr(65535), false},
		{"too large", 65536, nil, true},
		{"negative", -1, nil, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := portPointer(test.value)
			if test.wantErr {
				if err == nil {
					t.Fatalf("portPointer(%d) = %v, want error", test.value, got)
				}
				var toolErr *cli.ToolError
				if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
					t.Errorf("portPointer(%d) error should be a validation error, got %v", test.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("portPointer(%d): %v", test.value, err)
			}
			switch {
			case test.want == nil && got != nil:
				t.Errorf("portPointer(%d) = %d, want nil", test.value, *got)
			case test.want != nil && got == nil:
				t.Errorf("portPointer(%d) = nil, want %d", test.value, *test.want)
			case test.want != nil && *got != *test.want:
				t.Errorf("portPointer(%d) = %d, want %d", test.value, *got, *test.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1 << 20, "1.0 MB"},
		{64 << 20, "64.0 MB"},
		{1 << 30, "1.0 GB"},
		{uint64(3)<<30 + uint64(512)<<20, "3.5 GB"},
	}

	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			got := formatBytes(test.bytes)
			if got != test.want {
				t.Errorf("formatBytes(%d) = %q, want %q", test.bytes, got, test.want)
			}
		})
	}
}

func uint16Ptr(value uint16) *uint16 {
	return &value
}
