// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/enclave-foundation/enclave/lib/config"
	"github.com/enclave-foundation/enclave/lib/service"
)

// DaemonConnection manages the admin socket flags shared by every
// command that talks to enclave-host. It implements [FlagBinder] so
// it integrates with the params struct system while handling the
// dynamic socket default: the ENCLAVE_SOCKET environment variable
// wins, then the configured default path.
//
// Fields carry json:"-" so generated tool schemas exclude them;
// agents invoking commands as tools do not choose socket paths.
type DaemonConnection struct {
	SocketPath string        `json:"-"`
	Timeout    time.Duration `json:"-"`
}

// AddFlags registers --socket and --timeout.
func (c *DaemonConnection) AddFlags(flagSet *pflag.FlagSet) {
	socketDefault := config.Default().Paths.Socket
	if envSocket := os.Getenv("ENCLAVE_SOCKET"); envSocket != "" {
		socketDefault = envSocket
	}

	flagSet.StringVar(&c.SocketPath, "socket", socketDefault, "admin socket path")
	flagSet.DurationVar(&c.Timeout, "timeout", 30*time.Second, "call deadline")
}

// Call sends one admin action to the daemon under the configured
// deadline and decodes the result. Errors come back categorized for
// tool consumers.
func (c *DaemonConnection) Call(action string, params any, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	client := service.NewClient(c.SocketPath)
	if err := client.Call(ctx, action, params, result); err != nil {
		return categorize(c.SocketPath, err)
	}
	return nil
}

// categorize maps wire and transport errors onto tool error
// categories. The daemon's error strings are stable: validation
// failures say "x is required" or start with "invalid", lifecycle
// misses say "is not loaded", duplicate loads say "is already
// loaded".
func categorize(socketPath string, err error) error {
	var serviceErr *service.ServiceError
	if errors.As(err, &serviceErr) {
		message := serviceErr.Message
		switch {
		case strings.Contains(message, "is required"),
			strings.Contains(message, "invalid"):
			return Validation("%s", message)
		case strings.Contains(message, "is not loaded"),
			strings.Contains(message, "not found"),
			strings.Contains(message, "no such"),
			strings.Contains(message, "has no export"):
			return NotFound("%s", message)
		case strings.Contains(message, "is already loaded"):
			return Conflict("%s", message)
		default:
			return Internal("%s", message)
		}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, fs.ErrNotExist):
		return Transient("cannot reach the daemon at %s", socketPath).
			WithHint("Start it with 'enclave-host run', or point --socket (or ENCLAVE_SOCKET) at its admin socket.")
	case errors.Is(err, context.DeadlineExceeded):
		return Transient("%v", err)
	default:
		return err
	}
}
