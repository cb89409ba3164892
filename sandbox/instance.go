// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/enclave-foundation/enclave/lib/component"
)

// reservedExports are exported functions that belong to the ABI, not
// the tool surface: the response allocator and the module lifecycle
// hooks.
var reservedExports = map[string]bool{
	"allocate":     true,
	"deallocate":   true,
	"free":         true,
	"cabi_realloc": true,
	"_start":       true,
	"_initialize":  true,
}

// Instance is one running component inside its own runtime.
type Instance struct {
	id      string
	runtime wazero.Runtime
	module  api.Module
}

// ID returns the component ID the instance runs as.
func (i *Instance) ID() string { return i.id }

// Tools lists the instance's callable exports, sorted by name.
func (i *Instance) Tools() []component.Tool {
	definitions := i.module.ExportedFunctionDefinitions()
	tools := make([]component.Tool, 0, len(definitions))
	for name, definition := range definitions {
		if reservedExports[name] {
			continue
		}
		tools = append(tools, component.Tool{
			Name:    name,
			Params:  valueTypeNames(definition.ParamTypes()),
			Results: valueTypeNames(definition.ResultTypes()),
		})
	}
	sort.Slice(tools, func(a, b int) bool { return tools[a].Name < tools[b].Name })
	return tools
}

// Invoke calls an exported function with raw stack values. Cancelling
// ctx aborts guest execution.
func (i *Instance) Invoke(ctx context.Context, function string, args []uint64) ([]uint64, error) {
	if reservedExports[function] {
		return nil, fmt.Errorf("function %q is not a callable tool", function)
	}
	exported := i.module.ExportedFunction(function)
	if exported == nil {
		return nil, fmt.Errorf("component %q has no export %q", i.id, function)
	}
	results, err := exported.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("invoking %s.%s: %w", i.id, function, err)
	}
	return results, nil
}

// Close tears down the instance's runtime and everything in it.
func (i *Instance) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}

func valueTypeNames(types []api.ValueType) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for index, valueType := range types {
		names[index] = api.ValueTypeName(valueType)
	}
	return names
}
