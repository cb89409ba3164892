// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package component implements the "enclave component" CLI subcommands
// for loading, inspecting, and invoking components over the admin
// socket.
package component

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/component"
	"github.com/enclave-foundation/enclave/lib/ipc"
)

// Command returns the top-level "component" command with all
// subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "component",
		Summary: "Manage loaded components (load, list, invoke, unload)",
		Description: `Manage the daemon's loaded components.

A component is a WebAssembly module loaded from an artifact locator: a
file path, an https URL, or a cache reference ("cache:" followed by the
artifact digest). Its identity defaults to the artifact's base name and
keys its policy document and secret record, which survive unload.

A freshly loaded component can do nothing: every capability must be
granted through "enclave policy" before the sandbox lets it through.`,
		Subcommands: []*cli.Command{
			loadCommand(),
			listCommand(),
			toolsCommand(),
			invokeCommand(),
			reloadCommand(),
			unloadCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Load a component from a local file",
				Command:     "enclave component load /srv/components/adder.wasm",
			},
			{
				Description: "Load from a URL under an explicit identity",
				Command:     "enclave component load https://example.com/tools/adder.wasm --id adder",
			},
			{
				Description: "See what a component exports",
				Command:     "enclave component tools adder",
			},
			{
				Description: "Call an export with two arguments",
				Command:     "enclave component invoke adder add 2 3",
			},
		},
	}
}

// --- load ---

type loadParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	ID      string `json:"id"      flag:"id"      desc:"component identity (default: artifact base name)"`
	Replace bool   `json:"replace" flag:"replace" desc:"reload in place if the identity is already loaded"`
}

func loadCommand() *cli.Command {
	var params loadParams

	return &cli.Command{
		Name:    "load",
		Summary: "Fetch, validate, and instantiate a component",
		Usage:   "enclave component load <locator> [flags]",
		Description: `Load a component from an artifact locator.

The locator is a file path, an https URL, or a cache reference
("cache:" followed by the hex digest of an artifact already in the
local cache). Relative paths resolve against the current directory.
The daemon fetches the artifact, verifies its digest, validates the
module, and instantiates it under the component's policy document.

The component identity defaults to the artifact's base name without
extension; --id overrides it. Loading an identity that is already
loaded fails unless --replace is set.`,
		Examples: []cli.Example{
			{
				Description: "Load from a file",
				Command:     "enclave component load /srv/components/adder.wasm",
			},
			{
				Description: "Replace a running component with a new build",
				Command:     "enclave component load /srv/components/adder.wasm --replace",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Create(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("locator argument required\n\nUsage: enclave component load <locator> [flags]")
			}
			locator, err := resolveLocator(args[0])
			if err != nil {
				return err
			}

			var record component.Record
			err = params.Call(ipc.ActionLoad, ipc.LoadParams{
				Locator: locator,
				ID:      params.ID,
				Replace: params.Replace,
			}, &record)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(record); done {
				return err
			}

			fmt.Printf("loaded %s (digest %s)\n", record.ID, record.Digest.Short())
			for _, tool := range record.Tools {
				fmt.Printf("  %s\n", tool.Signature())
			}
			return nil
		},
	}
}

// --- list ---

type listParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:        "list",
		Summary:     "List loaded components",
		Usage:       "enclave component list [flags]",
		Description: `List every registered component with its lifecycle state, artifact digest, and export count.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			var result ipc.ListResult
			if err := params.Call(ipc.ActionList, nil, &result); err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(result.Components) == 0 {
				fmt.Println("No components loaded.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "ID\tSTATE\tDIGEST\tLOADED\tTOOLS\n")
			for _, record := range result.Components {
				loaded := "-"
				if !record.LoadedAt.IsZero() {
					loaded = record.LoadedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\n",
					record.ID,
					record.State,
					record.Digest.Short(),
					loaded,
					len(record.Tools),
				)
			}
			writer.Flush()
			return nil
		},
	}
}

// --- tools ---

type toolsParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func toolsCommand() *cli.Command {
	var params toolsParams

	return &cli.Command{
		Name:    "tools",
		Summary: "List a component's exported functions",
		Usage:   "enclave component tools <id> [flags]",
		Description: `List the exported functions of a loaded component, one signature per
line. The parameter and result types are core-wasm value types (i32,
i64, f32, f64); "invoke" takes arguments in the same order.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave component tools <id> [flags]")
			}

			var result ipc.ToolsResult
			err := params.Call(ipc.ActionTools, ipc.ToolsParams{ID: args[0]}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(result.Tools) == 0 {
				fmt.Println("No exported functions.")
				return nil
			}
			for _, tool := range result.Tools {
				fmt.Println(tool.Signature())
			}
			return nil
		},
	}
}

// --- invoke ---

type invokeParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func invokeCommand() *cli.Command {
	var params invokeParams

	return &cli.Command{
		Name:    "invoke",
		Summary: "Call an exported function",
		Usage:   "enclave component invoke <id> <function> [args...] [flags]",
		Description: `Call an exported function of a loaded component.

Arguments are raw core-wasm stack values, decimal or 0x-prefixed hex,
one per export parameter in call order. Results are printed the same
way, space-separated. Run "enclave component tools <id>" to see each
export's expected types.

Everything the function does runs under the component's policy
document; a capability the policy does not grant fails inside the
sandbox and lands in the audit log.`,
		Examples: []cli.Example{
			{
				Description: "Call add with two i32 arguments",
				Command:     "enclave component invoke adder add 2 3",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Create(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and function arguments required\n\nUsage: enclave component invoke <id> <function> [args...] [flags]")
			}

			stackArgs := make([]uint64, 0, len(args)-2)
			for _, arg := range args[2:] {
				value, err := strconv.ParseUint(arg, 0, 64)
				if err != nil {
					return cli.Validation("argument %q is not a stack value (decimal or 0x hex)", arg)
				}
				stackArgs = append(stackArgs, value)
			}

			var result ipc.InvokeResult
			err := params.Call(ipc.ActionInvoke, ipc.InvokeParams{
				ID:       args[0],
				Function: args[1],
				Args:     stackArgs,
			}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(result.Results) == 0 {
				return nil
			}
			values := make([]string, len(result.Results))
			for i, value := range result.Results {
				values[i] = strconv.FormatUint(value, 10)
			}
			fmt.Println(strings.Join(values, " "))
			return nil
		},
	}
}

// --- reload ---

type reloadParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func reloadCommand() *cli.Command {
	var params reloadParams

	return &cli.Command{
		Name:    "reload",
		Summary: "Swap a component's instance for a fresh one",
		Usage:   "enclave component reload <id> [locator] [flags]",
		Description: `Reload a component, optionally from a new artifact locator.

Without a locator the current artifact is fetched and instantiated
again. The previous instance keeps serving until the replacement is
ready; on any failure the previous instance stays in place.`,
		Examples: []cli.Example{
			{
				Description: "Reload from the current artifact",
				Command:     "enclave component reload adder",
			},
			{
				Description: "Reload from a new build",
				Command:     "enclave component reload adder /srv/components/adder-v2.wasm",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave component reload <id> [locator] [flags]")
			}

			reload := ipc.ReloadParams{ID: args[0]}
			if len(args) > 1 {
				locator, err := resolveLocator(args[1])
				if err != nil {
					return err
				}
				reload.Locator = locator
			}

			var record component.Record
			if err := params.Call(ipc.ActionReload, reload, &record); err != nil {
				return err
			}

			if done, err := params.EmitJSON(record); done {
				return err
			}

			fmt.Printf("reloaded %s (digest %s)\n", record.ID, record.Digest.Short())
			return nil
		},
	}
}

// --- unload ---

type unloadParams struct {
	cli.DaemonConnection
}

func unloadCommand() *cli.Command {
	var params unloadParams

	return &cli.Command{
		Name:    "unload",
		Summary: "Stop a component and remove it from the registry",
		Usage:   "enclave component unload <id> [flags]",
		Description: `Unload a component. Its policy document and secret record survive, so
loading the same identity later resumes under the same grants.`,
		Params:      func() any { return &params },
		Annotations: cli.Destructive(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave component unload <id> [flags]")
			}

			if err := params.Call(ipc.ActionUnload, ipc.UnloadParams{ID: args[0]}, nil); err != nil {
				return err
			}

			fmt.Printf("unloaded %s\n", args[0])
			return nil
		},
	}
}

// resolveLocator absolutizes bare file paths before they cross the
// socket: the daemon's working directory is not the caller's. URL and
// cache forms pass through untouched.
func resolveLocator(text string) (string, error) {
	if strings.Contains(text, "://") || strings.HasPrefix(text, "cache:") {
		return text, nil
	}
	absolute, err := filepath.Abs(text)
	if err != nil {
		return "", cli.Validation("resolving path %q: %v", text, err)
	}
	return absolute, nil
}
