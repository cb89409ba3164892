// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"strings"
	"testing"

	"github.com/enclave-foundation/enclave/lib/artifact"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "simple", id: "echo"},
		{name: "with dash", id: "web-fetch"},
		{name: "with underscore and digits", id: "tool_v2"},
		{name: "with dot", id: "echo.v2"},
		{name: "digit first", id: "7zip"},
		{name: "empty", id: "", wantErr: true},
		{name: "uppercase", id: "Echo", wantErr: true},
		{name: "space", id: "web fetch", wantErr: true},
		{name: "slash", id: "tools/echo", wantErr: true},
		{name: "leading dash", id: "-echo", wantErr: true},
		{name: "leading dot", id: ".echo", wantErr: true},
		{name: "dot dot", id: "echo..v2", wantErr: true},
		{name: "too long", id: strings.Repeat("a", MaxIDLength+1), wantErr: true},
		{name: "at limit", id: strings.Repeat("a", MaxIDLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateID(%q) succeeded, want error", tt.id)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateID(%q): %v", tt.id, err)
			}
		})
	}
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr bool
	}{
		{name: "plain file", locator: "/opt/tools/echo.wasm", want: "echo"},
		{name: "uppercase and space", locator: "/opt/tools/WebFetch v2.wasm", want: "webfetch-v2"},
		{name: "https URL", locator: "https://artifacts.example.com/tools/mailer.wasm", want: "mailer"},
		{name: "versioned", locator: "/tools/archive.v2.wasm", want: "archive.v2"},
		{name: "hidden file", locator: "/tools/.env.wasm", want: "env"},
		{name: "nothing usable", locator: "/tools/___.wasm", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator, err := artifact.ParseLocator(tt.locator)
			if err != nil {
				t.Fatalf("parsing locator: %v", err)
			}
			id, err := DeriveID(locator)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DeriveID(%q) = %q, want error", tt.locator, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveID(%q): %v", tt.locator, err)
			}
			if id != tt.want {
				t.Errorf("DeriveID(%q) = %q, want %q", tt.locator, id, tt.want)
			}
			if err := ValidateID(id); err != nil {
				t.Errorf("derived ID %q fails validation: %v", id, err)
			}
		})
	}
}

func TestDeriveIDFromCacheLocator(t *testing.T) {
	digest := artifact.DigestBytes([]byte("component"))
	locator, err := artifact.ParseLocator("cache:" + digest.String())
	if err != nil {
		t.Fatalf("parsing locator: %v", err)
	}
	id, err := DeriveID(locator)
	if err != nil {
		t.Fatalf("deriving from cache locator: %v", err)
	}
	if id != digest.Short() {
		t.Errorf("DeriveID = %q, want digest prefix %q", id, digest.Short())
	}
}
