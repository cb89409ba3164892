// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// ToolDescriptor is the agent-facing description of one CLI command:
// its tool name, what it does, the JSON schema of its parameters, and
// behavioral annotations. Tool servers translate descriptors into
// their protocol's tool listing.
type ToolDescriptor struct {
	// Name is the underscore-joined command path, e.g.
	// "enclave_component_load". Underscores keep the name a single
	// token for protocols that forbid spaces in tool identifiers.
	Name string `json:"name"`

	// Description is the command's summary line.
	Description string `json:"description,omitempty"`

	// InputSchema describes the command's parameter struct as a JSON
	// Schema object. Connection config and output-mode flags are
	// excluded; agents provide domain parameters only.
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`

	// Annotations carry the command's behavioral hints.
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// Descriptors walks the command tree and returns a descriptor for
// every runnable command that declares a parameter struct. Group
// commands (pure subcommand containers) produce no descriptor.
func Descriptors(root *Command) []ToolDescriptor {
	var descriptors []ToolDescriptor

	var walk func(prefix string, command *Command)
	walk = func(prefix string, command *Command) {
		name := command.Name
		if prefix != "" {
			name = prefix + "_" + command.Name
		}
		if command.Run != nil && command.Params != nil {
			descriptors = append(descriptors, ToolDescriptor{
				Name:        name,
				Description: command.Summary,
				InputSchema: ParamsSchema(command.Params()),
				Annotations: command.Annotations,
			})
		}
		for _, sub := range command.Subcommands {
			walk(name, sub)
		}
	}
	walk("", root)
	return descriptors
}

// ParamsSchema reflects a parameter struct into a JSON Schema object.
// Property names come from json tags and descriptions from desc tags,
// the same tags [BindFlags] uses, so flags and schemas never drift
// apart. Fields tagged json:"-" (connection config, the --json flag)
// are excluded by reflection.
func ParamsSchema(params any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(params)

	structType := reflect.TypeOf(params)
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	applyDescriptions(schema, structType)
	return schema
}

// applyDescriptions copies desc struct tags onto the schema's
// property descriptions, recursing through embedded structs whose
// fields invopop inlines into the parent object.
func applyDescriptions(schema *jsonschema.Schema, structType reflect.Type) {
	if schema.Properties == nil {
		return
	}

	for i := range structType.NumField() {
		field := structType.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			applyDescriptions(schema, field.Type)
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		name, _, _ := strings.Cut(jsonTag, ",")

		description := field.Tag.Get("desc")
		if description == "" {
			continue
		}
		if property, ok := schema.Properties.Get(name); ok {
			property.Description = description
		}
	}
}
