// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseRecord decodes a record file into a key-to-value map. Records
// are flat YAML maps; anything nested, typed, or keyed outside the
// environment variable shape is corruption.
func parseRecord(data []byte) (map[string]string, error) {
	values := map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing secret record: %w", err)
	}
	for key := range values {
		if !keyPattern.MatchString(key) {
			return nil, fmt.Errorf("invalid secret key %q in record", key)
		}
	}
	return values, nil
}

// encodeRecord renders a record file. yaml.Marshal emits map keys
// sorted, so records are byte-stable across rewrites of the same
// values.
func encodeRecord(values map[string]string) ([]byte, error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encoding secret record: %w", err)
	}
	return data, nil
}
