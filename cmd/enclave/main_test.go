// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/cmd/enclave/commands"
)

// TestCommandTreeAnnotations walks the full production command tree
// and validates that every tool-visible command (one with Params and
// Run) declares Annotations. Without annotations, agents cannot tell
// whether a tool is read-only, destructive, or idempotent, and must
// assume the worst.
//
// Use cli.ReadOnly(), cli.Idempotent(), cli.Create(), or
// cli.Destructive() to set appropriate annotations on each command.
func TestCommandTreeAnnotations(t *testing.T) {
	root := commands.Root()
	walkCommands(root, nil, func(command *cli.Command, path []string) {
		if command.Params == nil || command.Run == nil {
			return
		}
		if command.Annotations == nil {
			t.Errorf("%s: tool-visible command missing Annotations", strings.Join(path, " "))
		}
	})
}

// TestCommandTreeToolNames validates the descriptor listing the
// describe command serves: names must be unique, and the core
// operations must be present under their expected names.
func TestCommandTreeToolNames(t *testing.T) {
	descriptors := cli.Descriptors(commands.Root())

	seen := make(map[string]bool, len(descriptors))
	for _, descriptor := range descriptors {
		if seen[descriptor.Name] {
			t.Errorf("duplicate tool name %q", descriptor.Name)
		}
		seen[descriptor.Name] = true
	}

	for _, want := range []string{
		"enclave_component_load",
		"enclave_component_list",
		"enclave_component_invoke",
		"enclave_component_unload",
		"enclave_policy_grant_storage",
		"enclave_policy_revoke_network",
		"enclave_policy_show",
		"enclave_secret_set",
		"enclave_secret_export",
		"enclave_check_storage",
		"enclave_audit",
		"enclave_status",
	} {
		if !seen[want] {
			t.Errorf("tool %q missing from command tree", want)
		}
	}

	// The version and describe commands are CLI conveniences, not
	// tools.
	for name := range seen {
		if strings.HasPrefix(name, "enclave_describe") || name == "enclave_version" {
			t.Errorf("%q should not be tool-visible", name)
		}
	}
}

// walkCommands recursively visits every command in the tree,
// calling visit for each node with the accumulated command path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := make([]string, len(path)+1)
	copy(current, path)
	current[len(path)] = command.Name
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}
