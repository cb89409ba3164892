// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared helpers for Enclave tests.
package testutil

import (
	"testing"
	"time"
)

// RequireReceive reads a value from ch, failing the test if nothing
// arrives within the timeout. Use for asserting that a goroutine under
// test produces a value without hanging the test run on failure.
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for %s", timeout, what)
		panic("unreachable")
	}
}

// RequireClosed asserts that ch is closed (or closes) within the
// timeout. A value arriving on the channel before close fails the test.
func RequireClosed[T any](t *testing.T, ch <-chan T, timeout time.Duration, what string) {
	t.Helper()
	select {
	case value, ok := <-ch:
		if ok {
			t.Fatalf("expected %s to be closed, received value %v", what, value)
		}
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for %s to close", timeout, what)
	}
}
