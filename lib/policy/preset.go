// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Preset is a named batch of grants authored as a JSONC file (JSON
// extended with // line comments, /* block comments */, and trailing
// commas). Applying a preset is equivalent to issuing each of its
// grants individually: rules union into the target document, and the
// memory limit, when the preset sets one, replaces the document's.
//
// Presets never revoke. A preset cannot tighten a document.
type Preset struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description,omitempty"`
	Storage     []StorageRule     `json:"storage,omitempty" validate:"dive"`
	Network     []NetworkRule     `json:"network,omitempty" validate:"dive"`
	Environment []EnvironmentRule `json:"environment,omitempty" validate:"dive"`
	MemoryLimit *uint64           `json:"memory_limit,omitempty"`
}

// ParsePreset strips JSONC comments and trailing commas from data,
// unmarshals the result, and validates the rule shapes.
func ParsePreset(data []byte) (*Preset, error) {
	stripped := jsonc.ToJSON(data)

	var preset Preset
	if err := json.Unmarshal(stripped, &preset); err != nil {
		return nil, fmt.Errorf("parsing preset: %w", err)
	}
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	return &preset, nil
}

// ReadPresetFile reads and parses a JSONC preset file. When the preset
// has no name of its own, the file's base name (extension stripped)
// becomes the name.
func ReadPresetFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset %s: %w", path, err)
	}

	stripped := jsonc.ToJSON(data)
	var preset Preset
	if err := json.Unmarshal(stripped, &preset); err != nil {
		return nil, fmt.Errorf("parsing preset %s: %w", path, err)
	}
	if preset.Name == "" {
		base := filepath.Base(path)
		preset.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := preset.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &preset, nil
}

// Validate checks the preset's rule shapes with the same rules applied
// to policy documents.
func (p *Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("preset has no name")
	}
	if err := documentValidator.Struct(p); err != nil {
		return fmt.Errorf("invalid preset %q: %w", p.Name, err)
	}
	for _, rule := range p.Storage {
		if _, err := NormalizePrefix(rule.Prefix); err != nil {
			return fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}
	return nil
}

// Apply unions the preset's rules into doc. Intended for use inside
// Store.Mutate.
func (p *Preset) Apply(doc *Document) error {
	for _, rule := range p.Storage {
		if err := doc.GrantStorage(rule.Prefix, rule.Access); err != nil {
			return fmt.Errorf("applying preset %q: %w", p.Name, err)
		}
	}
	for _, rule := range p.Network {
		if err := doc.GrantNetwork(rule.Host, rule.Port); err != nil {
			return fmt.Errorf("applying preset %q: %w", p.Name, err)
		}
	}
	for _, rule := range p.Environment {
		if err := doc.GrantEnv(rule.Key, rule.FixedValue); err != nil {
			return fmt.Errorf("applying preset %q: %w", p.Name, err)
		}
	}
	if p.MemoryLimit != nil {
		doc.SetMemoryLimit(*p.MemoryLimit)
	}
	return nil
}
