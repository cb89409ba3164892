// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package status implements the "enclave status" CLI command.
package status

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/ipc"
)

type statusParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

// Command returns the "status" command.
func Command() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:        "status",
		Summary:     "Show daemon status",
		Usage:       "enclave status [flags]",
		Description: `Show the daemon's version, uptime, component count, and audit counters. Doubles as a liveness check: a daemon that answers is serving.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			var result ipc.StatusResult
			if err := params.Call(ipc.ActionStatus, nil, &result); err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "Version:\t%s\n", result.Version)
			fmt.Fprintf(writer, "Uptime:\t%s (since %s)\n",
				time.Since(result.StartedAt).Round(time.Second),
				result.StartedAt.Local().Format("2006-01-02 15:04:05"),
			)
			fmt.Fprintf(writer, "Components:\t%d\n", result.Components)
			if result.DefaultMemoryLimit > 0 {
				fmt.Fprintf(writer, "Default memory limit:\t%d bytes\n", result.DefaultMemoryLimit)
			}
			if result.Audit != nil {
				fmt.Fprintf(writer, "Audit:\t%d recorded, %d dropped\n", result.Audit.Recorded, result.Audit.Dropped)
			} else {
				fmt.Fprintf(writer, "Audit:\tdisabled\n")
			}
			writer.Flush()
			return nil
		},
	}
}
