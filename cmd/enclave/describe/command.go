// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package describe implements the "enclave describe" CLI command,
// which renders the command tree as agent-facing tool descriptors.
package describe

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
)

// Command returns the "describe" command. It takes the fully
// assembled root so it can walk every sibling; the caller appends it
// last.
func Command(root *cli.Command) *cli.Command {
	var output cli.JSONOutput

	return &cli.Command{
		Name:    "describe",
		Summary: "Describe the CLI as agent-facing tools",
		Usage:   "enclave describe [flags]",
		Description: `Render every runnable command as a tool descriptor: name, summary,
JSON input schema derived from the command's parameters, and
behavioral annotations (read-only, idempotent, destructive).

Tool servers feed the --json form to agents; the schemas name exactly
the parameters the flags accept, minus connection config. Runs
entirely locally, no daemon required.`,
		Examples: []cli.Example{
			{
				Description: "Full descriptors for a tool server",
				Command:     "enclave describe --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("describe", &output)
		},
		Run: func(args []string) error {
			descriptors := cli.Descriptors(root)

			if done, err := output.EmitJSON(descriptors); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "TOOL\tSUMMARY\n")
			for _, descriptor := range descriptors {
				fmt.Fprintf(writer, "%s\t%s\n", descriptor.Name, descriptor.Description)
			}
			writer.Flush()
			return nil
		},
	}
}
