// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"errors"
	"fmt"
)

// DeniedError carries a denial back to the caller of a capability
// check as a value, never as a fault: a denied capability is expected
// during normal operation and must not take the host down. It names
// the capability kind and resource so the administrative surface can
// say exactly which grant would resolve it.
type DeniedError struct {
	ComponentID string
	Request     Request
	Reason      DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("capability denied for component %q: %s (%s)", e.ComponentID, e.Request, e.Reason)
}

// IsDenied reports whether err is or wraps a *DeniedError.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// Err converts a result into an error: nil for an allow, a
// *DeniedError describing the request for a deny.
func (r Result) Err(componentID string, request Request) error {
	if r.Decision == Allow {
		return nil
	}
	return &DeniedError{ComponentID: componentID, Request: request, Reason: r.Reason}
}
