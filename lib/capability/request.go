// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/enclave-foundation/enclave/lib/policy"
)

// Kind identifies which resource class a request touches.
type Kind int

const (
	// KindStorage is a filesystem access under an absolute path.
	KindStorage Kind = iota

	// KindNetwork is an outbound connection to a host and port.
	KindNetwork

	// KindEnvironment is visibility of one environment variable.
	KindEnvironment

	// KindMemory is a linear memory reservation in bytes.
	KindMemory
)

var kindNames = map[Kind]string{
	KindStorage:     "storage",
	KindNetwork:     "network",
	KindEnvironment: "environment",
	KindMemory:      "memory",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind name. Audit records and RPC payloads
// carry kinds as strings.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown capability kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown capability kind %q", text)
}

// Request is one resource-access attempt awaiting a decision. It is a
// tagged union: Kind selects which fields are meaningful.
type Request struct {
	Kind Kind `json:"kind" cbor:"kind"`

	// Path and Access describe a storage request.
	Path   string        `json:"path,omitempty" cbor:"path,omitempty"`
	Access policy.Access `json:"access,omitempty" cbor:"access,omitempty"`

	// Host and Port describe a network request. A nil Port means the
	// component did not name one.
	Host string  `json:"host,omitempty" cbor:"host,omitempty"`
	Port *uint16 `json:"port,omitempty" cbor:"port,omitempty"`

	// Key names the environment variable of an environment request.
	Key string `json:"key,omitempty" cbor:"key,omitempty"`

	// Bytes is the reservation size of a memory request.
	Bytes uint64 `json:"bytes,omitempty" cbor:"bytes,omitempty"`
}

// Storage builds a storage request for path with the given access
// modes.
func Storage(path string, access policy.Access) Request {
	return Request{Kind: KindStorage, Path: path, Access: access}
}

// Network builds a network request. Pass a nil port when the component
// did not name one; against a port-specific rule that is a mismatch,
// not a wildcard.
func Network(host string, port *uint16) Request {
	return Request{Kind: KindNetwork, Host: host, Port: port}
}

// Environment builds an environment visibility request for key.
func Environment(key string) Request {
	return Request{Kind: KindEnvironment, Key: key}
}

// Memory builds a memory reservation request for the given byte count.
func Memory(bytes uint64) Request {
	return Request{Kind: KindMemory, Bytes: bytes}
}

// Resource renders the resource identifier the request touches, for
// denials, audit records, and listings.
func (r Request) Resource() string {
	switch r.Kind {
	case KindStorage:
		return fmt.Sprintf("%s [%s]", r.Path, r.Access)
	case KindNetwork:
		if r.Port != nil {
			return fmt.Sprintf("%s:%d", r.Host, *r.Port)
		}
		return r.Host
	case KindEnvironment:
		return r.Key
	case KindMemory:
		return fmt.Sprintf("%d bytes", r.Bytes)
	default:
		return "unknown"
	}
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Kind, r.Resource())
}
