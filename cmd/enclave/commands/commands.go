// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete enclave CLI command tree.
// Keeping the tree in one package gives tool discovery a single
// source of truth: "enclave describe" and any embedding tool server
// walk the same root the binary executes.
package commands

import (
	"fmt"

	auditcmd "github.com/enclave-foundation/enclave/cmd/enclave/audit"
	checkcmd "github.com/enclave-foundation/enclave/cmd/enclave/check"
	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	componentcmd "github.com/enclave-foundation/enclave/cmd/enclave/component"
	describecmd "github.com/enclave-foundation/enclave/cmd/enclave/describe"
	policycmd "github.com/enclave-foundation/enclave/cmd/enclave/policy"
	secretcmd "github.com/enclave-foundation/enclave/cmd/enclave/secret"
	statuscmd "github.com/enclave-foundation/enclave/cmd/enclave/status"
	"github.com/enclave-foundation/enclave/lib/version"
)

// Root builds and returns the complete enclave CLI command tree.
// Tool discovery walks root.Subcommands, so the describe command is
// added last (after the tree is constructed) and receives the root
// pointer for introspection.
func Root() *cli.Command {
	root := &cli.Command{
		Name: "enclave",
		Description: `Enclave: capability-secured hosting for WebAssembly tool components.

Talks to a running enclave-host daemon over its admin socket. Load
untrusted components, grant them capabilities one rule at a time,
invoke their exports, and audit every decision the sandbox made.`,
		Subcommands: []*cli.Command{
			componentcmd.Command(),
			policycmd.Command(),
			secretcmd.Command(),
			checkcmd.Command(),
			auditcmd.Command(),
			statuscmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("enclave %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Load a component (starts with deny-all)",
				Command:     "enclave component load /srv/components/notes.wasm",
			},
			{
				Description: "Grant it a data directory and one host",
				Command:     "enclave policy grant storage notes /data/notes/ --access read,write",
			},
			{
				Description: "Dry-run an access before the component tries it",
				Command:     "enclave check storage notes /etc/passwd --access read",
			},
			{
				Description: "Call an export",
				Command:     "enclave component invoke notes add 2 3",
			},
			{
				Description: "See what was denied recently",
				Command:     "enclave audit --decision deny --since 15m",
			},
		},
	}

	// Added after the tree is constructed: describe walks
	// root.Subcommands for tool discovery.
	root.Subcommands = append(root.Subcommands,
		describecmd.Command(root),
	)

	return root
}
