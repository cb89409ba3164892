// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/enclave-foundation/enclave/lib/artifact"
	"github.com/enclave-foundation/enclave/lib/audit"
	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/codec"
	"github.com/enclave-foundation/enclave/lib/component"
	"github.com/enclave-foundation/enclave/lib/ipc"
	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/sealed"
	"github.com/enclave-foundation/enclave/lib/secret"
	"github.com/enclave-foundation/enclave/lib/service"
	"github.com/enclave-foundation/enclave/lib/version"
)

// Daemon holds the wired collaborators behind the admin socket. All
// shared state lives in the stores and the registry, which are safe
// for concurrent use; the daemon adds none of its own, so handlers
// run concurrently without coordination.
type Daemon struct {
	registry *component.Registry
	policies *policy.Store
	secrets  *secret.Store
	engine   *capability.Engine

	// recorder is nil when auditing is disabled.
	recorder *audit.Recorder

	// defaultMemoryLimit mirrors the sandbox host's configured
	// ceiling so status can report it.
	defaultMemoryLimit uint64

	startedAt time.Time
	logger    *slog.Logger
}

// register wires every admin action onto the socket server.
func (d *Daemon) register(server *service.SocketServer) {
	server.Handle(ipc.ActionLoad, d.handleLoad)
	server.Handle(ipc.ActionUnload, d.handleUnload)
	server.Handle(ipc.ActionReload, d.handleReload)
	server.Handle(ipc.ActionList, d.handleList)
	server.Handle(ipc.ActionTools, d.handleTools)
	server.Handle(ipc.ActionInvoke, d.handleInvoke)
	server.Handle(ipc.ActionGrantStorage, d.handleGrantStorage)
	server.Handle(ipc.ActionRevokeStorage, d.handleRevokeStorage)
	server.Handle(ipc.ActionGrantNetwork, d.handleGrantNetwork)
	server.Handle(ipc.ActionRevokeNetwork, d.handleRevokeNetwork)
	server.Handle(ipc.ActionGrantEnv, d.handleGrantEnv)
	server.Handle(ipc.ActionRevokeEnv, d.handleRevokeEnv)
	server.Handle(ipc.ActionSetMemoryLimit, d.handleSetMemoryLimit)
	server.Handle(ipc.ActionGetPolicy, d.handleGetPolicy)
	server.Handle(ipc.ActionApplyPreset, d.handleApplyPreset)
	server.Handle(ipc.ActionSecretSet, d.handleSecretSet)
	server.Handle(ipc.ActionSecretDelete, d.handleSecretDelete)
	server.Handle(ipc.ActionSecretList, d.handleSecretList)
	server.Handle(ipc.ActionSecretExport, d.handleSecretExport)
	server.Handle(ipc.ActionSecretImport, d.handleSecretImport)
	server.Handle(ipc.ActionCheck, d.handleCheck)
	server.Handle(ipc.ActionAuditQuery, d.handleAuditQuery)
	server.Handle(ipc.ActionStatus, d.handleStatus)
}

// decodeParams decodes an action's parameter struct from the raw
// params payload. Actions that take parameters treat a missing
// payload as a protocol error.
func decodeParams(params []byte, target any) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required field: params")
	}
	if err := codec.Unmarshal(params, target); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func (d *Daemon) handleLoad(ctx context.Context, params []byte) (any, error) {
	var request ipc.LoadParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.Locator == "" {
		return nil, fmt.Errorf("locator is required")
	}
	locator, err := artifact.ParseLocator(request.Locator)
	if err != nil {
		return nil, fmt.Errorf("invalid locator: %w", err)
	}
	return d.registry.Load(ctx, locator, component.LoadOptions{
		ID:      request.ID,
		Replace: request.Replace,
	})
}

func (d *Daemon) handleUnload(ctx context.Context, params []byte) (any, error) {
	var request ipc.UnloadParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if err := d.registry.Unload(ctx, request.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Daemon) handleReload(ctx context.Context, params []byte) (any, error) {
	var request ipc.ReloadParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	var locator artifact.Locator
	if request.Locator != "" {
		parsed, err := artifact.ParseLocator(request.Locator)
		if err != nil {
			return nil, fmt.Errorf("invalid locator: %w", err)
		}
		locator = parsed
	}
	return d.registry.Reload(ctx, request.ID, locator)
}

func (d *Daemon) handleList(ctx context.Context, params []byte) (any, error) {
	return &ipc.ListResult{Components: d.registry.List()}, nil
}

func (d *Daemon) handleTools(ctx context.Context, params []byte) (any, error) {
	var request ipc.ToolsParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	tools, err := d.registry.Tools(request.ID)
	if err != nil {
		return nil, err
	}
	return &ipc.ToolsResult{Tools: tools}, nil
}

func (d *Daemon) handleInvoke(ctx context.Context, params []byte) (any, error) {
	var request ipc.InvokeParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Function == "" {
		return nil, fmt.Errorf("function is required")
	}
	results, err := d.registry.Invoke(ctx, request.ID, request.Function, request.Args)
	if err != nil {
		return nil, err
	}
	return &ipc.InvokeResult{Results: results}, nil
}

// Policy mutations return the updated document so clients render the
// result without a second round trip. The grants take effect on the
// component's next capability check; no reload is involved.

func (d *Daemon) handleGrantStorage(ctx context.Context, params []byte) (any, error) {
	var request ipc.GrantStorageParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if request.Access == 0 {
		return nil, fmt.Errorf("access is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		return doc.GrantStorage(request.Prefix, request.Access)
	})
}

func (d *Daemon) handleRevokeStorage(ctx context.Context, params []byte) (any, error) {
	var request ipc.RevokeStorageParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if request.Access == 0 {
		return nil, fmt.Errorf("access is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		return doc.RevokeStorage(request.Prefix, request.Access)
	})
}

func (d *Daemon) handleGrantNetwork(ctx context.Context, params []byte) (any, error) {
	var request ipc.GrantNetworkParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		return doc.GrantNetwork(request.Host, request.Port)
	})
}

func (d *Daemon) handleRevokeNetwork(ctx context.Context, params []byte) (any, error) {
	var request ipc.RevokeNetworkParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		doc.RevokeNetwork(request.Host, request.Port)
		return nil
	})
}

func (d *Daemon) handleGrantEnv(ctx context.Context, params []byte) (any, error) {
	var request ipc.GrantEnvParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		return doc.GrantEnv(request.Key, request.FixedValue)
	})
}

func (d *Daemon) handleRevokeEnv(ctx context.Context, params []byte) (any, error) {
	var request ipc.RevokeEnvParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		doc.RevokeEnv(request.Key)
		return nil
	})
}

func (d *Daemon) handleSetMemoryLimit(ctx context.Context, params []byte) (any, error) {
	var request ipc.SetMemoryLimitParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	return d.policies.Mutate(request.ID, func(doc *policy.Document) error {
		doc.SetMemoryLimit(request.Bytes)
		return nil
	})
}

func (d *Daemon) handleGetPolicy(ctx context.Context, params []byte) (any, error) {
	var request ipc.GetPolicyParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	return d.policies.Load(request.ID)
}

func (d *Daemon) handleApplyPreset(ctx context.Context, params []byte) (any, error) {
	var request ipc.ApplyPresetParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if len(request.Preset) == 0 {
		return nil, fmt.Errorf("preset is required")
	}
	preset, err := policy.ParsePreset(request.Preset)
	if err != nil {
		return nil, err
	}
	doc, err := d.policies.Mutate(request.ID, preset.Apply)
	if err != nil {
		return nil, err
	}
	d.logger.Info("preset applied",
		"component", request.ID,
		"preset", preset.Name,
		"storage_rules", len(preset.Storage),
		"network_rules", len(preset.Network),
		"environment_rules", len(preset.Environment),
	)
	return doc, nil
}

func (d *Daemon) handleSecretSet(ctx context.Context, params []byte) (any, error) {
	var request ipc.SecretSetParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if request.Value == "" {
		return nil, fmt.Errorf("value is required")
	}
	if err := d.secrets.Set(request.ID, request.Key, request.Value); err != nil {
		return nil, err
	}
	d.logger.Info("secret set", "component", request.ID, "key", request.Key)
	return nil, nil
}

func (d *Daemon) handleSecretDelete(ctx context.Context, params []byte) (any, error) {
	var request ipc.SecretDeleteParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if request.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if err := d.secrets.Delete(request.ID, request.Key); err != nil {
		return nil, err
	}
	d.logger.Info("secret deleted", "component", request.ID, "key", request.Key)
	return nil, nil
}

func (d *Daemon) handleSecretList(ctx context.Context, params []byte) (any, error) {
	var request ipc.SecretListParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	keys, err := d.secrets.Keys(request.ID)
	if err != nil {
		return nil, err
	}
	return &ipc.SecretListResult{Keys: keys}, nil
}

// handleSecretExport seals the component's secret map to the caller's
// recipient keys before it leaves the daemon. The plaintext never
// crosses the socket outward.
func (d *Daemon) handleSecretExport(ctx context.Context, params []byte) (any, error) {
	var request ipc.SecretExportParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if len(request.Recipients) == 0 {
		return nil, fmt.Errorf("recipients is required")
	}
	values, err := d.secrets.Export(request.ID)
	if err != nil {
		return nil, err
	}
	bundle, err := sealed.Seal(values, request.Recipients)
	if err != nil {
		return nil, err
	}
	d.logger.Info("secrets exported",
		"component", request.ID,
		"keys", len(values),
		"recipients", len(request.Recipients),
	)
	return &ipc.SecretExportResult{Bundle: bundle}, nil
}

func (d *Daemon) handleSecretImport(ctx context.Context, params []byte) (any, error) {
	var request ipc.SecretImportParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if len(request.Values) == 0 {
		return nil, fmt.Errorf("values is required")
	}
	if err := d.secrets.Import(request.ID, request.Values); err != nil {
		return nil, err
	}
	d.logger.Info("secrets imported", "component", request.ID, "keys", len(request.Values))
	return nil, nil
}

// handleCheck evaluates a capability request without performing it.
// The decision is audited exactly like a real access, so dry runs are
// visible in the log.
func (d *Daemon) handleCheck(ctx context.Context, params []byte) (any, error) {
	var request ipc.CheckParams
	if err := decodeParams(params, &request); err != nil {
		return nil, err
	}
	if request.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	result, err := d.engine.Check(request.ID, request.Request)
	if err != nil {
		return nil, err
	}
	answer := ipc.CheckResult{Decision: result.Decision.String()}
	if result.Decision == capability.Allow {
		answer.Rule = result.MatchedRule()
		if request.Request.Kind == capability.KindEnvironment {
			answer.ValueSource = result.Source.String()
		}
	} else {
		answer.Reason = result.Reason.String()
	}
	return &answer, nil
}

func (d *Daemon) handleAuditQuery(ctx context.Context, params []byte) (any, error) {
	if d.recorder == nil {
		return nil, fmt.Errorf("audit log is disabled")
	}
	// Every filter field is optional, so the params payload is too.
	var request ipc.AuditQueryParams
	if len(params) > 0 {
		if err := codec.Unmarshal(params, &request); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	filter := audit.Filter{
		Component: request.Component,
		Kind:      request.Kind,
		Decision:  request.Decision,
		Limit:     request.Limit,
	}
	if request.Since != nil {
		filter.Since = *request.Since
	}
	if request.Until != nil {
		filter.Until = *request.Until
	}

	// Flush the queue first so the query sees every decision made
	// before the request arrived.
	d.recorder.Sync()
	entries, err := d.recorder.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ipc.AuditQueryResult{Entries: entries}, nil
}

func (d *Daemon) handleStatus(ctx context.Context, params []byte) (any, error) {
	status := ipc.StatusResult{
		Version:            version.Version,
		StartedAt:          d.startedAt,
		Components:         len(d.registry.List()),
		DefaultMemoryLimit: d.defaultMemoryLimit,
	}
	if d.recorder != nil {
		stats := d.recorder.Stats()
		status.Audit = &stats
	}
	return &status, nil
}
