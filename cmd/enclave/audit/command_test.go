// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
)

func TestParseTimeFlag_Empty(t *testing.T) {
	bound, err := parseTimeFlag("")
	if err != nil {
		t.Fatalf("parseTimeFlag(\"\"): %v", err)
	}
	if bound != nil {
		t.Errorf("parseTimeFlag(\"\") = %v, want nil (unbounded)", bound)
	}
}

func TestParseTimeFlag_Duration(t *testing.T) {
	before := time.Now()
	bound, err := parseTimeFlag("15m")
	if err != nil {
		t.Fatalf("parseTimeFlag(\"15m\"): %v", err)
	}
	if bound == nil {
		t.Fatal("parseTimeFlag(\"15m\") = nil, want a time 15 minutes ago")
	}

	want := before.Add(-15 * time.Minute)
	offset := bound.Sub(want)
	if offset < 0 {
		offset = -offset
	}
	if offset > time.Minute {
		t.Errorf("parseTimeFlag(\"15m\") = %v, want about %v", bound, want)
	}
}

func TestParseTimeFlag_RFC3339(t *testing.T) {
	bound, err := parseTimeFlag("2026-08-01T12:00:00Z")
	if err != nil {
		t.Fatalf("parseTimeFlag: %v", err)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if bound == nil || !bound.Equal(want) {
		t.Errorf("parseTimeFlag(\"2026-08-01T12:00:00Z\") = %v, want %v", bound, want)
	}
}

func TestParseTimeFlag_Invalid(t *testing.T) {
	for _, input := range []string{"yesterday", "2026-08-01", "12:00"} {
		t.Run(input, func(t *testing.T) {
			_, err := parseTimeFlag(input)
			if err == nil {
				t.Fatalf("parseTimeFlag(%q) = nil error, want validation error", input)
			}
			var toolErr *cli.ToolError
			if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
				t.Errorf("parseTimeFlag(%q) error should be a validation error, got %v", input, err)
			}
			if !strings.Contains(err.Error(), "neither a duration") {
				t.Errorf("error = %q, should explain the accepted formats", err.Error())
			}
		})
	}
}
