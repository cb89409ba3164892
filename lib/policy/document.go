// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy defines the durable per-component policy document and
// its file-backed store.
//
// A policy document is an allow-list: it enumerates every storage
// prefix, network host, and environment variable a component may touch,
// plus an optional memory ceiling. Absence of a rule means denial.
// There is no deny entry type and no wildcard or glob support.
package policy

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the policy document format version this build
// reads and writes. Documents with any other version fail to load.
const CurrentVersion = 1

// Access is a set of storage access modes.
type Access uint8

const (
	// AccessRead grants read access under a storage prefix.
	AccessRead Access = 1 << iota

	// AccessWrite grants write access under a storage prefix.
	AccessWrite
)

// accessNames maps single modes to their wire/document names.
var accessNames = []struct {
	mode Access
	name string
}{
	{AccessRead, "read"},
	{AccessWrite, "write"},
}

// ParseAccess converts mode names ("read", "write") into an Access
// set. Empty input or an unknown name is an error: a storage rule must
// grant at least one mode.
func ParseAccess(modes []string) (Access, error) {
	if len(modes) == 0 {
		return 0, fmt.Errorf("access modes must not be empty")
	}
	var access Access
	for _, mode := range modes {
		matched := false
		for _, known := range accessNames {
			if mode == known.name {
				access |= known.mode
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown access mode %q (want read or write)", mode)
		}
	}
	return access, nil
}

// Has reports whether every mode in sub is present in a.
func (a Access) Has(sub Access) bool { return a&sub == sub }

// Modes returns the mode names in a, in declaration order.
func (a Access) Modes() []string {
	var modes []string
	for _, known := range accessNames {
		if a&known.mode != 0 {
			modes = append(modes, known.name)
		}
	}
	return modes
}

func (a Access) String() string {
	if a == 0 {
		return "none"
	}
	return strings.Join(a.Modes(), ",")
}

// MarshalText renders a as comma-joined mode names ("read,write").
func (a Access) MarshalText() ([]byte, error) {
	if a == 0 {
		return nil, fmt.Errorf("cannot marshal empty access set")
	}
	return []byte(strings.Join(a.Modes(), ",")), nil
}

// UnmarshalText parses comma-joined mode names.
func (a *Access) UnmarshalText(text []byte) error {
	parsed, err := ParseAccess(strings.Split(string(text), ","))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON renders the access set as a list of mode names, the same
// form the YAML documents and JSONC presets use.
func (a Access) MarshalJSON() ([]byte, error) {
	if a == 0 {
		return nil, fmt.Errorf("cannot marshal empty access set")
	}
	return json.Marshal(a.Modes())
}

// UnmarshalJSON parses a list of mode names.
func (a *Access) UnmarshalJSON(data []byte) error {
	var modes []string
	if err := json.Unmarshal(data, &modes); err != nil {
		return err
	}
	parsed, err := ParseAccess(modes)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalYAML renders the access set as a list of mode names, the
// document form ("access: [read, write]").
func (a Access) MarshalYAML() (any, error) {
	if a == 0 {
		return nil, fmt.Errorf("cannot marshal empty access set")
	}
	return a.Modes(), nil
}

// UnmarshalYAML parses a list of mode names.
func (a *Access) UnmarshalYAML(value *yaml.Node) error {
	var modes []string
	if err := value.Decode(&modes); err != nil {
		return err
	}
	parsed, err := ParseAccess(modes)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// StorageRule grants access modes under one normalized absolute path
// prefix. Matching is a literal prefix comparison against the
// normalized request path; a trailing slash on the prefix therefore
// confines the grant to that directory subtree.
type StorageRule struct {
	Prefix string `yaml:"prefix" json:"prefix" cbor:"prefix" validate:"required,startswith=/"`
	Access Access `yaml:"access" json:"access" cbor:"access" validate:"required"`
}

// NetworkRule grants access to one host. A nil Port matches any port;
// a set Port requires an exact match. Hosts compare case-insensitively.
type NetworkRule struct {
	Host string  `yaml:"host" json:"host" cbor:"host" validate:"required"`
	Port *uint16 `yaml:"port,omitempty" json:"port,omitempty" cbor:"port,omitempty" validate:"omitempty,gt=0"`
}

// EnvironmentRule grants visibility of one environment variable.
// FixedValue, when set, is authoritative: it overrides both the secret
// store and the inherited process environment.
type EnvironmentRule struct {
	Key        string  `yaml:"key" json:"key" cbor:"key" validate:"required,env_key"`
	FixedValue *string `yaml:"fixed_value,omitempty" json:"fixed_value,omitempty" cbor:"fixed_value,omitempty"`
}

// Document is the durable per-component policy. The zero-rule document
// denies everything. Instances returned by Store.Load are shared and
// must be treated as immutable; all mutation goes through Store.Mutate.
type Document struct {
	Version     int               `yaml:"version" json:"version" cbor:"version"`
	Storage     []StorageRule     `yaml:"storage,omitempty" json:"storage,omitempty" cbor:"storage,omitempty" validate:"dive"`
	Network     []NetworkRule     `yaml:"network,omitempty" json:"network,omitempty" cbor:"network,omitempty" validate:"dive"`
	Environment []EnvironmentRule `yaml:"environment,omitempty" json:"environment,omitempty" cbor:"environment,omitempty" validate:"dive"`
	MemoryLimit *uint64           `yaml:"memory_limit,omitempty" json:"memory_limit,omitempty" cbor:"memory_limit,omitempty"`
}

// NewDocument returns an empty deny-everything document at the current
// format version.
func NewDocument() *Document {
	return &Document{Version: CurrentVersion}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	clone := &Document{
		Version:     d.Version,
		Storage:     slices.Clone(d.Storage),
		Network:     slices.Clone(d.Network),
		Environment: slices.Clone(d.Environment),
	}
	for i := range clone.Network {
		if clone.Network[i].Port != nil {
			port := *clone.Network[i].Port
			clone.Network[i].Port = &port
		}
	}
	for i := range clone.Environment {
		if clone.Environment[i].FixedValue != nil {
			value := *clone.Environment[i].FixedValue
			clone.Environment[i].FixedValue = &value
		}
	}
	if d.MemoryLimit != nil {
		limit := *d.MemoryLimit
		clone.MemoryLimit = &limit
	}
	return clone
}

// envKeyPattern is the accepted environment variable key shape.
var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// documentValidator is the shared validator for document and preset
// shapes. The registered env_key validation backs the
// validate:"env_key" tag.
var documentValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("env_key", func(fl validator.FieldLevel) bool {
		return envKeyPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("policy: registering env_key validation: " + err.Error())
	}
	return v
}

// Validate checks the document's version and rule shapes. It does not
// normalize; Store.Load normalizes before validating so that documents
// edited by hand still load.
func (d *Document) Validate() error {
	if d.Version != CurrentVersion {
		return fmt.Errorf("unsupported policy document version %d (this build reads version %d)", d.Version, CurrentVersion)
	}
	if err := documentValidator.Struct(d); err != nil {
		return fmt.Errorf("invalid policy document: %w", err)
	}
	for _, rule := range d.Storage {
		if _, err := NormalizePrefix(rule.Prefix); err != nil {
			return err
		}
	}
	return nil
}

// normalize rewrites rules into canonical form: storage prefixes
// cleaned with trailing slashes preserved, hosts lowercased. Called on
// load so hand-edited documents compare the same way granted ones do.
func (d *Document) normalize() error {
	for i, rule := range d.Storage {
		normalized, err := NormalizePrefix(rule.Prefix)
		if err != nil {
			return err
		}
		d.Storage[i].Prefix = normalized
	}
	for i, rule := range d.Network {
		d.Network[i].Host = strings.ToLower(rule.Host)
	}
	return nil
}

// NormalizePrefix resolves "." and ".." segments in an absolute storage
// prefix, preserving a trailing slash. The trailing slash matters:
// "/data/" only matches paths inside the directory, while "/data"
// also matches "/database" under literal prefix comparison.
func NormalizePrefix(prefix string) (string, error) {
	if !strings.HasPrefix(prefix, "/") {
		return "", fmt.Errorf("storage prefix must be an absolute path, got %q", prefix)
	}
	trailing := strings.HasSuffix(prefix, "/")
	cleaned := path.Clean(prefix)
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned, nil
}

// GrantStorage adds or widens a storage rule. Granting an existing
// prefix unions the access modes into the existing entry rather than
// duplicating it; granting an identical rule is a no-op.
func (d *Document) GrantStorage(prefix string, access Access) error {
	if access == 0 {
		return fmt.Errorf("storage grant must include at least one access mode")
	}
	normalized, err := NormalizePrefix(prefix)
	if err != nil {
		return err
	}
	for i, rule := range d.Storage {
		if rule.Prefix == normalized {
			d.Storage[i].Access |= access
			return nil
		}
	}
	d.Storage = append(d.Storage, StorageRule{Prefix: normalized, Access: access})
	return nil
}

// RevokeStorage narrows or removes a storage rule. Revoking modes a
// rule still retains narrows its access set; revoking the last mode
// removes the entry. Revoking a prefix that has no rule succeeds
// silently.
func (d *Document) RevokeStorage(prefix string, access Access) error {
	normalized, err := NormalizePrefix(prefix)
	if err != nil {
		return err
	}
	for i, rule := range d.Storage {
		if rule.Prefix != normalized {
			continue
		}
		remaining := rule.Access &^ access
		if remaining == 0 {
			d.Storage = slices.Delete(d.Storage, i, i+1)
		} else {
			d.Storage[i].Access = remaining
		}
		return nil
	}
	return nil
}

// GrantNetwork adds a network rule. Granting an identical host/port
// pair is a no-op. A nil port grants every port on the host; it
// coexists with port-specific rules rather than replacing them.
func (d *Document) GrantNetwork(host string, port *uint16) error {
	if host == "" {
		return fmt.Errorf("network grant requires a host")
	}
	lowered := strings.ToLower(host)
	for _, rule := range d.Network {
		if rule.Host == lowered && portsEqual(rule.Port, port) {
			return nil
		}
	}
	rule := NetworkRule{Host: lowered}
	if port != nil {
		value := *port
		rule.Port = &value
	}
	d.Network = append(d.Network, rule)
	return nil
}

// RevokeNetwork removes the exactly matching host/port rule. A nil
// port removes only the any-port rule, not port-specific rules for the
// same host. Revoking an absent rule succeeds silently.
func (d *Document) RevokeNetwork(host string, port *uint16) {
	lowered := strings.ToLower(host)
	for i, rule := range d.Network {
		if rule.Host == lowered && portsEqual(rule.Port, port) {
			d.Network = slices.Delete(d.Network, i, i+1)
			return
		}
	}
}

func portsEqual(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GrantEnv grants visibility of an environment variable. When the key
// is already visible, a non-nil fixedValue replaces the stored fixed
// value; a nil fixedValue leaves an existing fixed value in place (to
// clear a fixed value, revoke the key and grant it again).
func (d *Document) GrantEnv(key string, fixedValue *string) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment variable key %q", key)
	}
	for i, rule := range d.Environment {
		if rule.Key != key {
			continue
		}
		if fixedValue != nil {
			value := *fixedValue
			d.Environment[i].FixedValue = &value
		}
		return nil
	}
	rule := EnvironmentRule{Key: key}
	if fixedValue != nil {
		value := *fixedValue
		rule.FixedValue = &value
	}
	d.Environment = append(d.Environment, rule)
	return nil
}

// RevokeEnv removes visibility of an environment variable, including
// any fixed value. Revoking an absent key succeeds silently.
func (d *Document) RevokeEnv(key string) {
	for i, rule := range d.Environment {
		if rule.Key == key {
			d.Environment = slices.Delete(d.Environment, i, i+1)
			return
		}
	}
}

// SetMemoryLimit sets the memory ceiling in bytes. Zero clears the
// limit, returning the component to unbounded-by-policy.
func (d *Document) SetMemoryLimit(bytes uint64) {
	if bytes == 0 {
		d.MemoryLimit = nil
		return
	}
	d.MemoryLimit = &bytes
}
