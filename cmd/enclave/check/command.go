// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package check implements the "enclave check" CLI subcommands for
// dry-running capability requests against a component's policy.
package check

import (
	"fmt"
	"strconv"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/ipc"
	"github.com/enclave-foundation/enclave/lib/policy"
)

// Command returns the top-level "check" command with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "check",
		Summary: "Evaluate a capability request without performing it",
		Description: `Dry-run a capability request against a component's policy document.

The decision is computed by the same engine that guards the sandbox
and audited exactly like a real access, so dry runs are visible in
"enclave audit". Nothing is read, written, or connected.

The exit code is 0 for allow and 1 for deny, so checks compose in
shell scripts.`,
		Subcommands: []*cli.Command{
			storageCommand(),
			networkCommand(),
			envCommand(),
			memoryCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Would the component be allowed to write here?",
				Command:     "enclave check storage notes /data/notes/today.md --access write",
			},
			{
				Description: "Is https to this host open?",
				Command:     "enclave check network notes api.example.com --port 443",
			},
			{
				Description: "Where would this variable's value come from?",
				Command:     "enclave check env notes API_TOKEN",
			},
		},
	}
}

// --- storage ---

type storageParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Access []string `json:"access" flag:"access" desc:"modes to test: read, write, or read,write"`
}

func storageCommand() *cli.Command {
	var params storageParams

	return &cli.Command{
		Name:        "storage",
		Summary:     "Check filesystem access to a path",
		Usage:       "enclave check storage <id> <path> --access <modes> [flags]",
		Description: `Check whether the component could access an absolute path with the given modes. A rule must cover every requested mode to allow.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and path arguments required\n\nUsage: enclave check storage <id> <path> --access <modes> [flags]")
			}
			if len(params.Access) == 0 {
				return cli.Validation("--access is required (read, write, or read,write)")
			}
			access, err := policy.ParseAccess(params.Access)
			if err != nil {
				return cli.Validation("%v", err)
			}

			return runCheck(&params.DaemonConnection, &params.JSONOutput,
				args[0], capability.Storage(args[1], access))
		},
	}
}

// --- network ---

type networkParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Port int `json:"port" flag:"port" desc:"destination port (omit to test a portless request)"`
}

func networkCommand() *cli.Command {
	var params networkParams

	return &cli.Command{
		Name:    "network",
		Summary: "Check an outbound connection",
		Usage:   "enclave check network <id> <host> [flags]",
		Description: `Check whether the component could connect to a host. A portless
request only matches portless rules; against a port-specific rule it
is a mismatch, not a wildcard.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and host arguments required\n\nUsage: enclave check network <id> <host> [flags]")
			}
			var port *uint16
			if params.Port != 0 {
				if params.Port < 1 || params.Port > 65535 {
					return cli.Validation("port %d out of range (1-65535)", params.Port)
				}
				value := uint16(params.Port)
				port = &value
			}

			return runCheck(&params.DaemonConnection, &params.JSONOutput,
				args[0], capability.Network(args[1], port))
		},
	}
}

// --- env ---

type envParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func envCommand() *cli.Command {
	var params envParams

	return &cli.Command{
		Name:    "env",
		Summary: "Check environment variable visibility",
		Usage:   "enclave check env <id> <key> [flags]",
		Description: `Check whether the component could see an environment variable. An
allowed check also reports where the value would come from: "fixed",
"secret", "inherited" from the host environment, or "absent". The
value itself is never returned.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and key arguments required\n\nUsage: enclave check env <id> <key> [flags]")
			}
			return runCheck(&params.DaemonConnection, &params.JSONOutput,
				args[0], capability.Environment(args[1]))
		},
	}
}

// --- memory ---

type memoryParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func memoryCommand() *cli.Command {
	var params memoryParams

	return &cli.Command{
		Name:        "memory",
		Summary:     "Check a memory reservation",
		Usage:       "enclave check memory <id> <bytes> [flags]",
		Description: `Check whether the component could reserve the given number of bytes of linear memory under its policy ceiling.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and bytes arguments required\n\nUsage: enclave check memory <id> <bytes> [flags]")
			}
			bytes, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return cli.Validation("bytes %q is not a non-negative integer", args[1])
			}
			return runCheck(&params.DaemonConnection, &params.JSONOutput,
				args[0], capability.Memory(bytes))
		},
	}
}

// runCheck sends the request and renders the decision. Denials exit 1
// so checks compose in shell scripts; with --json the decision field
// carries the outcome and the exit code stays 0.
func runCheck(connection *cli.DaemonConnection, output *cli.JSONOutput, id string, request capability.Request) error {
	var result ipc.CheckResult
	err := connection.Call(ipc.ActionCheck, ipc.CheckParams{
		ID:      id,
		Request: request,
	}, &result)
	if err != nil {
		return err
	}

	if done, err := output.EmitJSON(result); done {
		return err
	}

	if result.Decision == "allow" {
		line := "allow"
		if result.Rule != "" {
			line += fmt.Sprintf(" (rule: %s", result.Rule)
			if result.ValueSource != "" {
				line += fmt.Sprintf(", source: %s", result.ValueSource)
			}
			line += ")"
		}
		fmt.Println(line)
		return nil
	}

	fmt.Printf("deny: %s\n", result.Reason)
	return &cli.ExitError{Code: 1}
}
