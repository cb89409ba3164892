// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParamsSchema_PropertiesFromTags(t *testing.T) {
	type loadParams struct {
		DaemonConnection
		JSONOutput
		ID      string `json:"id" flag:"id" desc:"identity for the loaded component"`
		Replace bool   `json:"replace" flag:"replace" desc:"replace an already-loaded component"`
	}

	schema := ParamsSchema(&loadParams{})
	if schema == nil {
		t.Fatal("ParamsSchema returned nil")
	}
	if schema.Properties == nil {
		t.Fatal("schema has no properties")
	}

	id, ok := schema.Properties.Get("id")
	if !ok {
		t.Fatal("property \"id\" missing")
	}
	if id.Type != "string" {
		t.Errorf("id.Type = %q, want %q", id.Type, "string")
	}
	if id.Description != "identity for the loaded component" {
		t.Errorf("id.Description = %q, want desc tag text", id.Description)
	}

	replace, ok := schema.Properties.Get("replace")
	if !ok {
		t.Fatal("property \"replace\" missing")
	}
	if replace.Type != "boolean" {
		t.Errorf("replace.Type = %q, want %q", replace.Type, "boolean")
	}

	// Connection and output flags are json:"-" and must not leak into
	// the agent-facing schema.
	if schema.Properties.Len() != 2 {
		names := make([]string, 0, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			names = append(names, pair.Key)
		}
		t.Errorf("schema has %d properties %v, want exactly [id replace]",
			schema.Properties.Len(), names)
	}
}

func TestParamsSchema_EmbeddedStructDescriptions(t *testing.T) {
	type pagingParams struct {
		Limit int `json:"limit" flag:"limit" desc:"maximum entries to return"`
	}
	type queryParams struct {
		pagingParams
		Component string `json:"component" flag:"component" desc:"filter by component identity"`
	}

	schema := ParamsSchema(&queryParams{})
	if schema.Properties == nil {
		t.Fatal("schema has no properties")
	}

	limit, ok := schema.Properties.Get("limit")
	if !ok {
		t.Fatal("embedded property \"limit\" missing")
	}
	if limit.Description != "maximum entries to return" {
		t.Errorf("limit.Description = %q, want desc tag from embedded struct", limit.Description)
	}

	component, ok := schema.Properties.Get("component")
	if !ok {
		t.Fatal("property \"component\" missing")
	}
	if component.Description != "filter by component identity" {
		t.Errorf("component.Description = %q, want desc tag text", component.Description)
	}
}

func TestDescriptors(t *testing.T) {
	type loadParams struct {
		ID string `json:"id" flag:"id" desc:"component identity"`
	}
	type listParams struct {
		JSONOutput
	}

	loadAnnotations := Create()
	listAnnotations := ReadOnly()

	root := &Command{
		Name: "enclave",
		Subcommands: []*Command{
			{
				Name: "component",
				Subcommands: []*Command{
					{
						Name:        "load",
						Summary:     "Load a component",
						Params:      func() any { return &loadParams{} },
						Annotations: loadAnnotations,
						Run:         func(args []string) error { return nil },
					},
					{
						Name:        "list",
						Summary:     "List loaded components",
						Params:      func() any { return &listParams{} },
						Annotations: listAnnotations,
						Run:         func(args []string) error { return nil },
					},
				},
			},
			{
				// Run without Params: not a tool, stays CLI-only.
				Name:    "version",
				Summary: "Print version information",
				Run:     func(args []string) error { return nil },
			},
		},
	}

	descriptors := Descriptors(root)
	if len(descriptors) != 2 {
		names := make([]string, len(descriptors))
		for i, d := range descriptors {
			names[i] = d.Name
		}
		t.Fatalf("got %d descriptors %v, want 2", len(descriptors), names)
	}

	load := descriptors[0]
	if load.Name != "enclave_component_load" {
		t.Errorf("Name = %q, want %q", load.Name, "enclave_component_load")
	}
	if load.Description != "Load a component" {
		t.Errorf("Description = %q, want the command summary", load.Description)
	}
	if load.Annotations != loadAnnotations {
		t.Error("load annotations not carried onto descriptor")
	}
	if load.InputSchema == nil || load.InputSchema.Properties == nil {
		t.Fatal("load descriptor has no input schema")
	}
	if _, ok := load.InputSchema.Properties.Get("id"); !ok {
		t.Error("load input schema missing property \"id\"")
	}

	list := descriptors[1]
	if list.Name != "enclave_component_list" {
		t.Errorf("Name = %q, want %q", list.Name, "enclave_component_list")
	}
	if list.Annotations != listAnnotations {
		t.Error("list annotations not carried onto descriptor")
	}
}

func TestDescriptors_DeepNesting(t *testing.T) {
	type grantParams struct {
		ID string `json:"id" flag:"id" desc:"component identity"`
	}

	root := &Command{
		Name: "enclave",
		Subcommands: []*Command{
			{
				Name: "policy",
				Subcommands: []*Command{
					{
						Name: "grant",
						Subcommands: []*Command{
							{
								Name:    "storage",
								Summary: "Grant filesystem access",
								Params:  func() any { return &grantParams{} },
								Run:     func(args []string) error { return nil },
							},
						},
					},
				},
			},
		},
	}

	descriptors := Descriptors(root)
	if len(descriptors) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(descriptors))
	}
	if descriptors[0].Name != "enclave_policy_grant_storage" {
		t.Errorf("Name = %q, want %q", descriptors[0].Name, "enclave_policy_grant_storage")
	}
}

func TestToolDescriptor_JSONFieldNames(t *testing.T) {
	yes := true
	descriptor := ToolDescriptor{
		Name:        "enclave_component_list",
		Description: "List loaded components",
		Annotations: &ToolAnnotations{ReadOnly: &yes},
	}

	encoded, err := json.Marshal(descriptor)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text := string(encoded)

	for _, want := range []string{`"name"`, `"description"`, `"annotations"`, `"read_only"`} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded descriptor missing %s: %s", want, text)
		}
	}
	if strings.Contains(text, "ReadOnly") {
		t.Errorf("encoded descriptor leaks Go field names: %s", text)
	}
}
