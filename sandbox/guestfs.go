// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"io/fs"
	"os"

	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/policy"
)

// guardFS is the filesystem a component sees as "/": a read-only view
// over a host directory where every open first passes a storage read
// check for the guest-visible path. Denials surface as permission
// errors; the underlying host layout never leaks through error text.
type guardFS struct {
	engine *capability.Engine
	id     string
	root   fs.FS
}

func newGuardFS(engine *capability.Engine, id, root string) *guardFS {
	return &guardFS{engine: engine, id: id, root: os.DirFS(root)}
}

func (g *guardFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	guestPath := "/" + name
	if name == "." {
		guestPath = "/"
	}

	result, err := g.engine.CheckStorage(g.id, guestPath, policy.AccessRead)
	if err != nil || result.Decision != capability.Allow {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return g.root.Open(name)
}
