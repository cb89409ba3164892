// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/enclave-foundation/enclave/lib/capability"
)

// Host-function error codes surfaced to guests in response payloads.
const (
	errorInvalidRequest   = "invalid_request"
	errorPermissionDenied = "permission_denied"
	errorRequestFailed    = "request_failed"
)

// envResult is the env_get response payload. A key that is denied,
// not visible, or simply unset all produce {"present": false}; the
// guest cannot distinguish them, and does not need to.
type envResult struct {
	Present bool   `json:"present"`
	Value   string `json:"value,omitempty"`
}

// fetchRequest is the http_fetch request payload.
type fetchRequest struct {
	// Method defaults to GET.
	Method string `json:"method,omitempty"`

	// URL is the target. Only http and https schemes are accepted.
	URL string `json:"url"`

	// Headers are set on the outgoing request.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the request body, base64 in the JSON form.
	Body []byte `json:"body,omitempty"`
}

// fetchResponse is the http_fetch response payload. Either Error is
// set or the response fields are.
type fetchResponse struct {
	StatusCode    int                 `json:"status_code,omitempty"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          []byte              `json:"body,omitempty"`
	BodyTruncated bool                `json:"body_truncated,omitempty"`
	Error         *hostError          `json:"error,omitempty"`
}

// hostError carries a machine-readable code and a human-readable
// message. Denials include what grant would resolve them.
type hostError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// logMessage is the log_write request payload.
type logMessage struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

// instantiateHostModule installs the enclave_host import namespace
// for one component. Every function uses the packed pointer+length
// i64 ABI.
func (h *Host) instantiateHostModule(ctx context.Context, runtime wazero.Runtime, id string) error {
	builder := runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			payload, ok := h.readGuest(mod, id, "env_get", stack[0])
			if !ok {
				stack[0] = 0
				return
			}
			stack[0] = h.writeGuest(ctx, mod, id, h.resolveEnv(id, string(payload)))
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("env_get")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			payload, ok := h.readGuest(mod, id, "http_fetch", stack[0])
			if !ok {
				stack[0] = 0
				return
			}
			stack[0] = h.writeGuest(ctx, mod, id, h.performFetch(ctx, id, payload))
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("http_fetch")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			payload, ok := h.readGuest(mod, id, "log_write", stack[0])
			if !ok {
				return
			}
			h.writeGuestLog(ctx, id, payload)
		}), []api.ValueType{api.ValueTypeI64}, nil).
		Export("log_write")

	_, err := builder.Instantiate(ctx)
	return err
}

// resolveEnv produces the env_get response for one key. The engine
// records the decision; the response never explains a denial.
func (h *Host) resolveEnv(id, key string) []byte {
	value, result, err := h.engine.ResolveEnv(id, key)
	if err != nil || result.Decision != capability.Allow || !value.Present {
		data, _ := json.Marshal(envResult{})
		return data
	}
	data, _ := json.Marshal(envResult{Present: true, Value: value.Value})
	return data
}

// performFetch produces the http_fetch response for one request: the
// network capability check, then the request itself.
func (h *Host) performFetch(ctx context.Context, id string, payload []byte) []byte {
	var request fetchRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return fetchFailure(errorInvalidRequest, fmt.Sprintf("decoding request: %v", err))
	}
	if request.URL == "" {
		return fetchFailure(errorInvalidRequest, "url is required")
	}

	parsed, err := url.Parse(request.URL)
	if err != nil {
		return fetchFailure(errorInvalidRequest, fmt.Sprintf("invalid url: %v", err))
	}
	port, err := requestPort(parsed)
	if err != nil {
		return fetchFailure(errorInvalidRequest, err.Error())
	}
	host := parsed.Hostname()
	if host == "" {
		return fetchFailure(errorInvalidRequest, "url has no host")
	}

	result, err := h.engine.CheckNetwork(id, host, &port)
	if err != nil {
		return fetchFailure(errorPermissionDenied, err.Error())
	}
	if denied := result.Err(id, capability.Network(host, &port)); denied != nil {
		return fetchFailure(errorPermissionDenied, denied.Error())
	}

	method := strings.ToUpper(request.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return fetchFailure(errorInvalidRequest, fmt.Sprintf("building request: %v", err))
	}
	for name, value := range request.Headers {
		httpRequest.Header.Set(name, value)
	}

	httpResponse, err := h.httpClient.Do(httpRequest)
	if err != nil {
		return fetchFailure(errorRequestFailed, err.Error())
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpResponse.Body, h.maxResponseBytes+1))
	if err != nil {
		return fetchFailure(errorRequestFailed, fmt.Sprintf("reading response body: %v", err))
	}
	truncated := int64(len(responseBody)) > h.maxResponseBytes
	if truncated {
		responseBody = responseBody[:h.maxResponseBytes]
	}

	data, _ := json.Marshal(fetchResponse{
		StatusCode:    httpResponse.StatusCode,
		Headers:       httpResponse.Header,
		Body:          responseBody,
		BodyTruncated: truncated,
	})
	return data
}

// writeGuestLog forwards a guest log_write payload to the host
// logger. Unparseable payloads are logged raw rather than dropped.
func (h *Host) writeGuestLog(ctx context.Context, id string, payload []byte) {
	var message logMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		h.log.LogAttrs(ctx, slog.LevelInfo, string(payload), slog.String("component", id))
		return
	}
	h.log.LogAttrs(ctx, guestLogLevel(message.Level), message.Message, slog.String("component", id))
}

// guestLogLevel maps a guest level name to a slog level, defaulting
// to info.
func guestLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// requestPort derives the concrete port a fetch would dial: the URL's
// explicit port, or the scheme default. Network rules are checked
// against this port, so a portless allow rule covers both defaults
// and a ported rule pins one.
func requestPort(parsed *url.URL) (uint16, error) {
	if explicit := parsed.Port(); explicit != "" {
		number, err := strconv.ParseUint(explicit, 10, 16)
		if err != nil || number == 0 {
			return 0, fmt.Errorf("invalid port %q", explicit)
		}
		return uint16(number), nil
	}
	switch parsed.Scheme {
	case "https":
		return 443, nil
	case "http":
		return 80, nil
	default:
		return 0, fmt.Errorf("unsupported scheme %q (use http or https)", parsed.Scheme)
	}
}

// fetchFailure encodes an error-only http_fetch response.
func fetchFailure(code, message string) []byte {
	data, _ := json.Marshal(fetchResponse{Error: &hostError{Code: code, Message: message}})
	return data
}

// readGuest copies a request payload out of guest memory. The copy
// matters: a later allocate call may grow and move the guest's
// memory, invalidating views into it.
func (h *Host) readGuest(mod api.Module, id, function string, packed uint64) ([]byte, bool) {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return nil, true
	}
	if length > h.maxRequestBytes {
		h.log.Warn("host function request over size limit",
			"component", id,
			"function", function,
			"size", length,
			"limit", h.maxRequestBytes)
		return nil, false
	}
	view, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.log.Warn("host function request outside guest memory",
			"component", id,
			"function", function)
		return nil, false
	}
	payload := make([]byte, len(view))
	copy(payload, view)
	return payload, true
}

// writeGuest places a response payload into guest memory via the
// component's allocate export and returns the packed pointer+length.
// Returns 0 when the guest cannot receive it.
func (h *Host) writeGuest(ctx context.Context, mod api.Module, id string, data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		h.log.Warn("guest has no allocate export", "component", id)
		return 0
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		h.log.Warn("guest allocate failed", "component", id, "error", err)
		return 0
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		h.log.Warn("response does not fit in guest memory", "component", id)
		return 0
	}
	return packPtrLen(ptr, uint32(len(data)))
}

// packPtrLen packs a guest pointer and length into one i64: pointer
// in the upper 32 bits, length in the lower.
func packPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// unpackPtrLen splits a packed i64 into pointer and length.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}
