// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the "enclave policy" CLI subcommands for
// granting, revoking, and inspecting component capabilities.
package policy

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/ipc"
	"github.com/enclave-foundation/enclave/lib/policy"
)

// Command returns the top-level "policy" command with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "Grant, revoke, and inspect component capabilities",
		Description: `Manage per-component policy documents.

Every component starts from deny-all: no paths, no hosts, no
environment variables, no memory ceiling beyond the runtime's. Each
grant adds one rule to the component's document, which persists across
unload and reload.

Storage prefixes match literally. A prefix ending in "/" covers the
directory's subtree but not the directory entry itself; grant both
forms to cover both. Network rules match one host, with an optional
single port. Environment rules make one variable visible, optionally
pinned to a fixed value that wins over secrets and the host
environment.`,
		Subcommands: []*cli.Command{
			grantCommand(),
			revokeCommand(),
			setMemoryCommand(),
			showCommand(),
			applyCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Let a component read its data directory",
				Command:     "enclave policy grant storage notes /data/notes/ --access read",
			},
			{
				Description: "Allow outbound https to one host",
				Command:     "enclave policy grant network notes api.example.com --port 443",
			},
			{
				Description: "Pin an environment variable to a fixed value",
				Command:     "enclave policy grant env notes APP_MODE --fixed production",
			},
			{
				Description: "Apply a preset file in one step",
				Command:     "enclave policy apply notes presets/doc-fetcher.jsonc",
			},
		},
	}
}

// --- grant ---

func grantCommand() *cli.Command {
	return &cli.Command{
		Name:    "grant",
		Summary: "Add a capability rule",
		Subcommands: []*cli.Command{
			grantStorageCommand(),
			grantNetworkCommand(),
			grantEnvCommand(),
		},
	}
}

type grantStorageParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Access []string `json:"access" flag:"access" desc:"modes to grant: read, write, or read,write"`
}

func grantStorageCommand() *cli.Command {
	var params grantStorageParams

	return &cli.Command{
		Name:    "storage",
		Summary: "Grant filesystem access under a path prefix",
		Usage:   "enclave policy grant storage <id> <prefix> --access <modes> [flags]",
		Description: `Grant a component read and/or write access under an absolute path
prefix. Granting a prefix that already has a rule widens the rule's
modes.`,
		Examples: []cli.Example{
			{
				Description: "Read-only access to a subtree",
				Command:     "enclave policy grant storage notes /data/notes/ --access read",
			},
			{
				Description: "Full access to one file",
				Command:     "enclave policy grant storage notes /data/notes.db --access read,write",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and prefix arguments required\n\nUsage: enclave policy grant storage <id> <prefix> --access <modes> [flags]")
			}
			if len(params.Access) == 0 {
				return cli.Validation("--access is required (read, write, or read,write)")
			}
			access, err := policy.ParseAccess(params.Access)
			if err != nil {
				return cli.Validation("%v", err)
			}

			var document policy.Document
			err = params.Call(ipc.ActionGrantStorage, ipc.GrantStorageParams{
				ID:     args[0],
				Prefix: args[1],
				Access: access,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			fmt.Printf("granted storage %s [%s] to %s\n", args[1], access, args[0])
			return nil
		},
	}
}

type grantNetworkParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Port int `json:"port" flag:"port" desc:"restrict the rule to one port (default: any port)"`
}

func grantNetworkCommand() *cli.Command {
	var params grantNetworkParams

	return &cli.Command{
		Name:    "network",
		Summary: "Grant outbound connections to a host",
		Usage:   "enclave policy grant network <id> <host> [flags]",
		Description: `Grant a component outbound connections to one host. Without --port any
port on the host is allowed; with --port only that port. Host matching
is exact, no wildcards.`,
		Examples: []cli.Example{
			{
				Description: "https only",
				Command:     "enclave policy grant network notes api.example.com --port 443",
			},
			{
				Description: "Any port on a local service",
				Command:     "enclave policy grant network notes localhost",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and host arguments required\n\nUsage: enclave policy grant network <id> <host> [flags]")
			}
			port, err := portPointer(params.Port)
			if err != nil {
				return err
			}

			var document policy.Document
			err = params.Call(ipc.ActionGrantNetwork, ipc.GrantNetworkParams{
				ID:   args[0],
				Host: args[1],
				Port: port,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			if port != nil {
				fmt.Printf("granted network %s:%d to %s\n", args[1], *port, args[0])
			} else {
				fmt.Printf("granted network %s to %s\n", args[1], args[0])
			}
			return nil
		},
	}
}

type grantEnvParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Fixed string `json:"fixed" flag:"fixed" desc:"pin the variable to this value (wins over secrets and the host environment)"`
}

func grantEnvCommand() *cli.Command {
	var params grantEnvParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "env",
		Summary: "Make an environment variable visible",
		Usage:   "enclave policy grant env <id> <key> [flags]",
		Description: `Make one environment variable visible to a component.

The value resolves at access time: a --fixed value wins, then a secret
under the same key, then the host environment. Granting without
--fixed leaves any existing fixed value in place; --fixed "" pins the
variable to the empty string.`,
		Examples: []cli.Example{
			{
				Description: "Expose a secret-backed token",
				Command:     "enclave policy grant env notes API_TOKEN",
			},
			{
				Description: "Pin a variable to a fixed value",
				Command:     "enclave policy grant env notes APP_MODE --fixed production",
			},
		},
		Params: func() any { return &params },
		Flags: func() *pflag.FlagSet {
			// Kept so Run can distinguish an unset --fixed from an
			// explicitly empty one.
			flagSet = cli.FlagsFromParams("env", &params)
			return flagSet
		},
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and key arguments required\n\nUsage: enclave policy grant env <id> <key> [flags]")
			}

			var fixed *string
			if flagSet != nil && flagSet.Changed("fixed") {
				fixed = &params.Fixed
			}

			var document policy.Document
			err := params.Call(ipc.ActionGrantEnv, ipc.GrantEnvParams{
				ID:         args[0],
				Key:        args[1],
				FixedValue: fixed,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			if fixed != nil {
				fmt.Printf("granted env %s to %s (fixed)\n", args[1], args[0])
			} else {
				fmt.Printf("granted env %s to %s\n", args[1], args[0])
			}
			return nil
		},
	}
}

// --- revoke ---

func revokeCommand() *cli.Command {
	return &cli.Command{
		Name:    "revoke",
		Summary: "Remove a capability rule",
		Subcommands: []*cli.Command{
			revokeStorageCommand(),
			revokeNetworkCommand(),
			revokeEnvCommand(),
		},
	}
}

type revokeStorageParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Access []string `json:"access" flag:"access" desc:"modes to remove: read, write, or read,write"`
}

func revokeStorageCommand() *cli.Command {
	var params revokeStorageParams

	return &cli.Command{
		Name:    "storage",
		Summary: "Remove filesystem access under a path prefix",
		Usage:   "enclave policy revoke storage <id> <prefix> --access <modes> [flags]",
		Description: `Remove access modes from a storage rule. Removing every granted mode
deletes the rule; revoking a prefix that has no rule succeeds without
effect. The prefix must match the granted rule exactly.`,
		Params:      func() any { return &params },
		Annotations: cli.Destructive(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and prefix arguments required\n\nUsage: enclave policy revoke storage <id> <prefix> --access <modes> [flags]")
			}
			if len(params.Access) == 0 {
				return cli.Validation("--access is required (read, write, or read,write)")
			}
			access, err := policy.ParseAccess(params.Access)
			if err != nil {
				return cli.Validation("%v", err)
			}

			var document policy.Document
			err = params.Call(ipc.ActionRevokeStorage, ipc.RevokeStorageParams{
				ID:     args[0],
				Prefix: args[1],
				Access: access,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			fmt.Printf("revoked storage %s [%s] from %s\n", args[1], access, args[0])
			return nil
		},
	}
}

type revokeNetworkParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Port int `json:"port" flag:"port" desc:"the granted rule's port (omit for a portless rule)"`
}

func revokeNetworkCommand() *cli.Command {
	var params revokeNetworkParams

	return &cli.Command{
		Name:    "network",
		Summary: "Remove a network rule",
		Usage:   "enclave policy revoke network <id> <host> [flags]",
		Description: `Remove the network rule matching host and port exactly. Revoking a
portless rule does not touch ported rules for the same host, nor the
reverse.`,
		Params:      func() any { return &params },
		Annotations: cli.Destructive(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and host arguments required\n\nUsage: enclave policy revoke network <id> <host> [flags]")
			}
			port, err := portPointer(params.Port)
			if err != nil {
				return err
			}

			var document policy.Document
			err = params.Call(ipc.ActionRevokeNetwork, ipc.RevokeNetworkParams{
				ID:   args[0],
				Host: args[1],
				Port: port,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			if port != nil {
				fmt.Printf("revoked network %s:%d from %s\n", args[1], *port, args[0])
			} else {
				fmt.Printf("revoked network %s from %s\n", args[1], args[0])
			}
			return nil
		},
	}
}

type revokeEnvParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func revokeEnvCommand() *cli.Command {
	var params revokeEnvParams

	return &cli.Command{
		Name:        "env",
		Summary:     "Remove an environment rule",
		Usage:       "enclave policy revoke env <id> <key> [flags]",
		Description: `Remove the environment rule for one variable, including any fixed value.`,
		Params:      func() any { return &params },
		Annotations: cli.Destructive(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and key arguments required\n\nUsage: enclave policy revoke env <id> <key> [flags]")
			}

			var document policy.Document
			err := params.Call(ipc.ActionRevokeEnv, ipc.RevokeEnvParams{
				ID:  args[0],
				Key: args[1],
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			fmt.Printf("revoked env %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

// --- set-memory ---

type setMemoryParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func setMemoryCommand() *cli.Command {
	var params setMemoryParams

	return &cli.Command{
		Name:    "set-memory",
		Summary: "Set or clear the memory ceiling",
		Usage:   "enclave policy set-memory <id> <bytes> [flags]",
		Description: `Set the component's linear memory ceiling in bytes. Instantiation and
every memory growth beyond the ceiling are denied. Zero clears the
limit.`,
		Examples: []cli.Example{
			{
				Description: "Cap memory at 32 MiB",
				Command:     "enclave policy set-memory notes 33554432",
			},
			{
				Description: "Remove the cap",
				Command:     "enclave policy set-memory notes 0",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and bytes arguments required\n\nUsage: enclave policy set-memory <id> <bytes> [flags]")
			}
			bytes, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return cli.Validation("bytes %q is not a non-negative integer", args[1])
			}

			var document policy.Document
			err = params.Call(ipc.ActionSetMemoryLimit, ipc.SetMemoryLimitParams{
				ID:    args[0],
				Bytes: bytes,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			if bytes == 0 {
				fmt.Printf("memory limit for %s cleared\n", args[0])
			} else {
				fmt.Printf("memory limit for %s: %s (%d bytes)\n", args[0], formatBytes(bytes), bytes)
			}
			return nil
		},
	}
}

// --- show ---

type showParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show a component's policy document",
		Usage:   "enclave policy show <id> [flags]",
		Description: `Display a component's policy document. An identity that has never been
granted anything shows the empty deny-all document.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave policy show <id> [flags]")
			}

			var document policy.Document
			err := params.Call(ipc.ActionGetPolicy, ipc.GetPolicyParams{ID: args[0]}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			printDocument(document)
			return nil
		},
	}
}

// --- apply ---

type applyParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func applyCommand() *cli.Command {
	var params applyParams

	return &cli.Command{
		Name:    "apply",
		Summary: "Apply a JSONC preset file",
		Usage:   "enclave policy apply <id> <preset-file> [flags]",
		Description: `Apply a preset's grants to a component in one mutation.

A preset is a JSONC file (JSON with comments and trailing commas)
bundling storage, network, environment, and memory grants. The file is
sent verbatim; the daemon parses and validates it, so every client's
presets are vetted by the same code. "-" reads the preset from stdin.`,
		Examples: []cli.Example{
			{
				Description: "Apply a reviewed preset",
				Command:     "enclave policy apply notes presets/doc-fetcher.jsonc",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and preset-file arguments required\n\nUsage: enclave policy apply <id> <preset-file> [flags]")
			}

			var preset []byte
			var err error
			if args[1] == "-" {
				preset, err = io.ReadAll(os.Stdin)
				if err != nil {
					return cli.Internal("reading stdin: %w", err)
				}
			} else {
				preset, err = os.ReadFile(args[1])
				if err != nil {
					return cli.Internal("reading %s: %w", args[1], err)
				}
			}

			var document policy.Document
			err = params.Call(ipc.ActionApplyPreset, ipc.ApplyPresetParams{
				ID:     args[0],
				Preset: preset,
			}, &document)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document); done {
				return err
			}

			fmt.Printf("applied preset to %s\n", args[0])
			printDocument(document)
			return nil
		},
	}
}

// --- rendering ---

// printDocument renders a policy document for human reading.
func printDocument(document policy.Document) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Version:\t%d\n", document.Version)
	if document.MemoryLimit != nil {
		fmt.Fprintf(writer, "Memory limit:\t%s (%d bytes)\n", formatBytes(*document.MemoryLimit), *document.MemoryLimit)
	}
	writer.Flush()

	if len(document.Storage) == 0 && len(document.Network) == 0 && len(document.Environment) == 0 {
		fmt.Println("No grants (deny-all).")
		return
	}

	if len(document.Storage) > 0 {
		fmt.Println("Storage:")
		for _, rule := range document.Storage {
			fmt.Printf("  %s [%s]\n", rule.Prefix, rule.Access)
		}
	}
	if len(document.Network) > 0 {
		fmt.Println("Network:")
		for _, rule := range document.Network {
			if rule.Port != nil {
				fmt.Printf("  %s:%d\n", rule.Host, *rule.Port)
			} else {
				fmt.Printf("  %s (any port)\n", rule.Host)
			}
		}
	}
	if len(document.Environment) > 0 {
		fmt.Println("Environment:")
		for _, rule := range document.Environment {
			if rule.FixedValue != nil {
				fmt.Printf("  %s = %s (fixed)\n", rule.Key, *rule.FixedValue)
			} else {
				fmt.Printf("  %s\n", rule.Key)
			}
		}
	}
}

// portPointer validates an optional port flag value. Zero means no
// port restriction.
func portPointer(value int) (*uint16, error) {
	if value == 0 {
		return nil, nil
	}
	if value < 1 || value > 65535 {
		return nil, cli.Validation("port %d out of range (1-65535)", value)
	}
	port := uint16(value)
	return &port, nil
}

// formatBytes returns a human-readable byte count.
func formatBytes(bytes uint64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
