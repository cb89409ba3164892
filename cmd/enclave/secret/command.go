// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret implements the "enclave secret" CLI subcommands for
// managing per-component secrets and sealed transfers between hosts.
package secret

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/enclave-foundation/enclave/cmd/enclave/cli"
	"github.com/enclave-foundation/enclave/lib/ipc"
	"github.com/enclave-foundation/enclave/lib/sealed"
	"github.com/enclave-foundation/enclave/lib/secret"
)

// Command returns the top-level "secret" command with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "secret",
		Summary: "Manage component secrets (set, list, export, import)",
		Description: `Manage per-component secrets.

Secrets are key-value pairs stored in the daemon's encrypted secret
store, keyed by component identity. A component sees a secret only
when its policy also grants the environment variable of the same name;
the secret value then wins over the host environment.

Values never leave the daemon in listings. Moving secrets between
hosts goes through "export", which seals them to age recipients before
they cross the socket, and "import", which unseals locally with the
recipient identity.`,
		Subcommands: []*cli.Command{
			setCommand(),
			listCommand(),
			deleteCommand(),
			exportCommand(),
			importCommand(),
			keygenCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Set a secret with an interactive prompt",
				Command:     "enclave secret set notes API_TOKEN",
			},
			{
				Description: "Make the secret visible inside the sandbox",
				Command:     "enclave policy grant env notes API_TOKEN",
			},
			{
				Description: "Move secrets to another host",
				Command:     "enclave secret export notes --recipient age1abc... > notes.bundle",
			},
		},
	}
}

// --- set ---

type setParams struct {
	cli.DaemonConnection
	Value    string `json:"value" flag:"value"     desc:"the secret value (visible in shell history; prefer --from-file or a prompt)"`
	FromFile string `json:"-"     flag:"from-file" desc:"read the value from this file, or - for stdin"`
	Prompt   bool   `json:"-"     flag:"prompt"    desc:"prompt for the value with echo disabled"`
}

func setCommand() *cli.Command {
	var params setParams

	return &cli.Command{
		Name:    "set",
		Summary: "Set one secret value",
		Usage:   "enclave secret set <id> <key> [flags]",
		Description: `Set a secret for a component. The value comes from --value, from a
file with --from-file ("-" reads stdin), or from an interactive prompt
with echo disabled. With no source flag the prompt is the default.

Setting an existing key overwrites it.`,
		Examples: []cli.Example{
			{
				Description: "Prompt for the value",
				Command:     "enclave secret set notes API_TOKEN",
			},
			{
				Description: "Read the value from a pipeline",
				Command:     "pass show api-token | enclave secret set notes API_TOKEN --from-file -",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and key arguments required\n\nUsage: enclave secret set <id> <key> [flags]")
			}

			sources := 0
			if params.Value != "" {
				sources++
			}
			if params.FromFile != "" {
				sources++
			}
			if params.Prompt {
				sources++
			}
			if sources > 1 {
				return cli.Validation("--value, --from-file, and --prompt are mutually exclusive")
			}

			value, err := readSecretValue(&params, args[1])
			if err != nil {
				return err
			}
			defer value.Close()

			err = params.Call(ipc.ActionSecretSet, ipc.SecretSetParams{
				ID:    args[0],
				Key:   args[1],
				Value: value.String(),
			}, nil)
			if err != nil {
				return err
			}

			fmt.Printf("set %s for %s\n", args[1], args[0])
			return nil
		},
	}
}

// readSecretValue resolves the secret value from the chosen source.
// With no source flag it prompts, matching --prompt.
func readSecretValue(params *setParams, key string) (*secret.Buffer, error) {
	switch {
	case params.Value != "":
		return secret.NewFromBytes([]byte(params.Value))
	case params.FromFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, cli.Internal("reading stdin: %w", err)
		}
		return bufferFromFileBytes(data, "stdin")
	case params.FromFile != "":
		data, err := os.ReadFile(params.FromFile)
		if err != nil {
			return nil, cli.Internal("reading %s: %w", params.FromFile, err)
		}
		return bufferFromFileBytes(data, params.FromFile)
	default:
		return promptSecretValue(key)
	}
}

// bufferFromFileBytes strips trailing newlines (common with echo and
// printf pipelines) and moves the value into protected memory.
func bufferFromFileBytes(data []byte, source string) (*secret.Buffer, error) {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		secret.Zero(data)
		return nil, cli.Validation("%s is empty (after stripping trailing newlines)", source)
	}
	buffer, err := secret.NewFromBytes(data)
	if err != nil {
		secret.Zero(data)
		return nil, err
	}
	return buffer, nil
}

// promptSecretValue reads the value from the terminal with echo
// disabled.
func promptSecretValue(key string) (*secret.Buffer, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, cli.Validation("no terminal available for interactive prompt (use --value or --from-file)")
	}

	fmt.Fprintf(os.Stderr, "Value for %s: ", key)
	valueBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, cli.Internal("reading value: %w", err)
	}
	if len(valueBytes) == 0 {
		return nil, cli.Validation("value must not be empty")
	}

	buffer, err := secret.NewFromBytes(valueBytes)
	if err != nil {
		secret.Zero(valueBytes)
		return nil, err
	}
	return buffer, nil
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
		Summary:     "List a component's secret keys",
		Usage:       "enclave secret list <id> [flags]",
		Description: `List the secret key names of a component, sorted. Values never appear.`,
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave secret list <id> [flags]")
			}

			var result ipc.SecretListResult
			err := params.Call(ipc.ActionSecretList, ipc.SecretListParams{ID: args[0]}, &result)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(result.Keys) == 0 {
				fmt.Println("No secrets.")
				return nil
			}
			for _, key := range result.Keys {
				fmt.Println(key)
			}
			return nil
		},
	}
}

// --- delete ---

type deleteParams struct {
	cli.DaemonConnection
}

func deleteCommand() *cli.Command {
	var params deleteParams

	return &cli.Command{
		Name:        "delete",
		Summary:     "Delete one secret",
		Usage:       "enclave secret delete <id> <key> [flags]",
		Description: `Delete a secret key from a component's record. Deleting an absent key succeeds without effect.`,
		Params:      func() any { return &params },
		Annotations: cli.Destructive(),
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("id and key arguments required\n\nUsage: enclave secret delete <id> <key> [flags]")
			}

			err := params.Call(ipc.ActionSecretDelete, ipc.SecretDeleteParams{
				ID:  args[0],
				Key: args[1],
			}, nil)
			if err != nil {
				return err
			}

			fmt.Printf("deleted %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

// --- export ---

type exportParams struct {
	cli.DaemonConnection
	cli.JSONOutput
	Recipients []string `json:"recipients" flag:"recipient" desc:"age public key to seal to (repeatable)"`
	Out        string   `json:"-"          flag:"out,o"     desc:"write the sealed bundle to this file (default: stdout)"`
}

func exportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Export secrets sealed to age recipients",
		Usage:   "enclave secret export <id> --recipient <age1...> [flags]",
		Description: `Export a component's secrets as a sealed bundle.

The daemon seals the secret map to the given age recipients before
answering, so plaintext never crosses the socket outward and the
bundle is safe to store or ship. Only a recipient's identity file can
open it, via "enclave secret import".

Seal to more than one recipient to add an escrow key.`,
		Examples: []cli.Example{
			{
				Description: "Export for another host",
				Command:     "enclave secret export notes --recipient age1abc... -o notes.bundle",
			},
			{
				Description: "Export with an escrow recipient",
				Command:     "enclave secret export notes --recipient age1abc... --recipient age1escrow...",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.ReadOnly(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave secret export <id> --recipient <age1...> [flags]")
			}
			if len(params.Recipients) == 0 {
				return cli.Validation("at least one --recipient is required")
			}
			for _, recipient := range params.Recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return cli.Validation("%v", err)
				}
			}

			var result ipc.SecretExportResult
			err := params.Call(ipc.ActionSecretExport, ipc.SecretExportParams{
				ID:         args[0],
				Recipients: params.Recipients,
			}, &result)
			if err != nil {
				return err
			}

			if params.Out != "" {
				if err := os.WriteFile(params.Out, []byte(result.Bundle+"\n"), 0o600); err != nil {
					return cli.Internal("writing %s: %w", params.Out, err)
				}
				fmt.Printf("sealed bundle written to %s\n", params.Out)
				return nil
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			fmt.Println(result.Bundle)
			return nil
		},
	}
}

// --- import ---

type importParams struct {
	cli.DaemonConnection
	Identity string `json:"-" flag:"identity,i" desc:"age identity file that can open the bundle"`
}

func importCommand() *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Import secrets from a sealed bundle",
		Usage:   "enclave secret import <id> [bundle-file] --identity <file> [flags]",
		Description: `Unseal an exported bundle and merge its secrets into a component.

The bundle is unsealed locally with the age identity file, where the
private key lives; the daemon never sees the identity. Imported keys
overwrite existing ones; keys absent from the bundle are left alone.
"-" or no bundle-file reads the bundle from stdin.`,
		Examples: []cli.Example{
			{
				Description: "Import a shipped bundle",
				Command:     "enclave secret import notes notes.bundle --identity ~/.config/enclave/identity.txt",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Idempotent(),
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("id argument required\n\nUsage: enclave secret import <id> [bundle-file] --identity <file> [flags]")
			}
			if params.Identity == "" {
				return cli.Validation("--identity is required")
			}

			var bundleBytes []byte
			var err error
			if len(args) < 2 || args[1] == "-" {
				bundleBytes, err = io.ReadAll(os.Stdin)
				if err != nil {
					return cli.Internal("reading stdin: %w", err)
				}
			} else {
				bundleBytes, err = os.ReadFile(args[1])
				if err != nil {
					return cli.Internal("reading %s: %w", args[1], err)
				}
			}
			bundle := strings.TrimSpace(string(bundleBytes))
			if bundle == "" {
				return cli.Validation("bundle is empty")
			}

			identity, err := sealed.ReadIdentityFile(params.Identity)
			if err != nil {
				return cli.Validation("%v", err)
			}
			defer identity.Close()

			values, err := sealed.Unseal(bundle, identity)
			if err != nil {
				return cli.Validation("%v", err)
			}

			err = params.Call(ipc.ActionSecretImport, ipc.SecretImportParams{
				ID:     args[0],
				Values: values,
			}, nil)
			if err != nil {
				return err
			}

			fmt.Printf("imported %d secrets into %s\n", len(values), args[0])
			return nil
		},
	}
}

// --- keygen ---

type keygenParams struct {
	Out string `json:"-" flag:"out,o" desc:"write the identity file here (default: print to stdout)"`
}

func keygenCommand() *cli.Command {
	var params keygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity for secret transfers",
		Usage:   "enclave secret keygen [flags]",
		Description: `Generate an age x25519 identity.

The public key goes into "enclave secret export --recipient"; the
identity file opens bundles with "enclave secret import --identity".
With --out the identity file is written with owner-only permissions
and the public key is printed; without it the whole identity goes to
stdout, "age-keygen" style.`,
		Examples: []cli.Example{
			{
				Description: "Write an identity file",
				Command:     "enclave secret keygen -o ~/.config/enclave/identity.txt",
			},
		},
		Params:      func() any { return &params },
		Annotations: cli.Create(),
		Run: func(args []string) error {
			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return cli.Internal("%v", err)
			}
			defer keypair.Close()

			identity := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
				time.Now().UTC().Format(time.RFC3339),
				keypair.PublicKey,
				keypair.PrivateKey.String(),
			)

			if params.Out == "" {
				fmt.Print(identity)
				return nil
			}

			identityBytes := []byte(identity)
			defer secret.Zero(identityBytes)
			if err := os.WriteFile(params.Out, identityBytes, 0o600); err != nil {
				return cli.Internal("writing %s: %w", params.Out, err)
			}
			fmt.Printf("public key: %s\n", keypair.PublicKey)
			fmt.Fprintf(os.Stderr, "identity written to %s\n", params.Out)
			return nil
		},
	}
}
