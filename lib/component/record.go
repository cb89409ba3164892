// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/enclave-foundation/enclave/lib/artifact"
)

// State is a component's position in the lifecycle.
type State int

const (
	// StateNotLoaded is the implicit state of any ID absent from the
	// registry. It never appears on a registered Record.
	StateNotLoaded State = iota

	// StateLoading covers a first load in flight and the fetch,
	// validate, instantiate phase of a reload. During a reload the
	// previous instance keeps serving.
	StateLoading

	// StateReady means the instance is serving invocations.
	StateReady

	// StateUnloaded marks a Record snapshot taken by Unload on its way
	// out of the registry.
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnloaded:
		return "unloaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name for listings and transport.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateNotLoaded, StateLoading, StateReady, StateUnloaded} {
		if string(text) == candidate.String() {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown component state %q", text)
}

// Tool describes one exported function of a loaded component: the
// callable surface an agent sees.
type Tool struct {
	// Name is the export name.
	Name string `json:"name" cbor:"name"`

	// Params are the parameter value types ("i32", "i64", "f32",
	// "f64") in call order.
	Params []string `json:"params,omitempty" cbor:"params,omitempty"`

	// Results are the result value types in return order.
	Results []string `json:"results,omitempty" cbor:"results,omitempty"`
}

// Signature renders the tool as "name(i32, i32) -> i64" for listings.
func (t Tool) Signature() string {
	var builder strings.Builder
	builder.WriteString(t.Name)
	builder.WriteString("(")
	builder.WriteString(strings.Join(t.Params, ", "))
	builder.WriteString(")")
	if len(t.Results) > 0 {
		builder.WriteString(" -> ")
		builder.WriteString(strings.Join(t.Results, ", "))
	}
	return builder.String()
}

// Record is a snapshot of one registered component. Records returned
// by the registry are private copies; the policy document and secret
// record for the ID live in their stores and outlast the Record.
type Record struct {
	// ID is the component's stable identity, unique among loaded
	// components and the key for its policy and secret records.
	ID string `json:"id" cbor:"id"`

	// Locator is the artifact source the instance was loaded from.
	Locator artifact.Locator `json:"locator" cbor:"locator"`

	// Digest is the content digest of the loaded artifact bytes.
	Digest artifact.Digest `json:"digest" cbor:"digest"`

	// State is the lifecycle state at snapshot time.
	State State `json:"state" cbor:"state"`

	// LoadedAt is when the current instance reached Ready. Zero while
	// a first load is in flight.
	LoadedAt time.Time `json:"loaded_at,omitzero" cbor:"loaded_at,omitempty"`

	// Tools are the instance's exported functions.
	Tools []Tool `json:"tools,omitempty" cbor:"tools,omitempty"`
}

// clone returns a copy sharing no mutable state with the original.
func (r Record) clone() Record {
	r.Tools = slices.Clone(r.Tools)
	return r
}
