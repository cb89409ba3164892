// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements the "enclave audit" CLI command for
// querying the daemon's capability decision log.
package audit

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/ipc"
)

type queryParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Component string `json:"component" flag:"component" desc:"only this component"`
	Kind      string `json:"kind"      flag:"kind"      desc:"only this capability kind: storage, network, environment, or memory"`
	Decision  string `json:"decision"  flag:"decision"  desc:"only allow or only deny"`
	Since     string `json:"since"     flag:"since"     desc:"drop entries before this time (RFC 3339, or a duration like 15m meaning that long ago)"`
	Until     string `json:"until"     flag:"until"     desc:"drop entries after this time (RFC 3339 or a duration)"`
	Limit     int    `json:"limit"     flag:"limit"     desc:"maximum entries (default: 100)"`
}

// Command returns the "audit" command.
func Command() *cli.Command {
	var params queryParams

	return &cli.Command{
		Name:    "audit",
		Summary: "Query the capability decision log",
		Usage:   "enclave audit [flags]",
		Description: `Query recorded capability decisions, newest first.

Every sandboxed access attempt and every "enclave check" dry run lands
here with its decision, the matched rule or the denial reason, and the
resource it touched. Filters combine with AND.`,
		Examples: []cli.Example{
			{
				Description: "Denials in the last fifteen minutes",
				Command:     "enclave audit --decision deny --since 15m",
			},
			{
				Description: "Everything one component did",
				Command:     "enclave audit --component notes",
			},
			{
				Description: "Network decisions since a fixed point",
				Command:     "enclave audit --kind network --since 2026-08-23T00:00:00Z",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			switch params.Decision {
			case "", "allow", "deny":
			default:
				return cli.Validation("--decision must be allow or deny, got %q", params.Decision)
			}
			switch params.Kind {
			case "", "storage", "network", "environment", "memory":
			default:
				return cli.Validation("--kind must be storage, network, environment, or memory, got %q", params.Kind)
			}

			since, err := parseTimeFlag(params.Since)
			if err != nil {
				return err
			}
			until, err := parseTimeFlag(params.Until)
			if err != nil {
				return err
			}

			var result ipc.AuditQueryResult
			err = params.Call(ipc.ActionAuditQuery, ipc.AuditQueryParams{
				Component: params.Component,
				Kind:      params.Kind,
				Decision:  params.Decision,
				Since:     since,
				Until:     until,
				Limit:     params.Limit,
			}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(result.Entries) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "TIME\tCOMPONENT\tKIND\tRESOURCE\tDECISION\tDETAIL\n")
			for _, entry := range result.Entries {
				detail := entry.Rule
				if entry.Decision == "deny" {
					detail = entry.Reason
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Time.Local().Format("2006-01-02 15:04:05"),
					entry.Component,
					entry.Kind,
					entry.Resource,
					entry.Decision,
					detail,
				)
			}
			writer.Flush()
			return nil
		},
	}
}

// parseTimeFlag accepts an RFC 3339 timestamp or a duration meaning
// "that long before now". Empty means unbounded.
func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if duration, err := time.ParseDuration(value); err == nil {
		bound := time.Now().Add(-duration)
		return &bound, nil
	}
	bound, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, cli.Validation("time %q is neither a duration (15m) nor RFC 3339", value)
	}
	return &bound, nil
}
