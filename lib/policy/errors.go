// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
)

// MalformedError reports a policy document on disk that cannot be
// parsed, validated, or normalized. A component whose policy load
// fails with this error must not transition to Ready.
type MalformedError struct {
	// ID is the component identity the document belongs to.
	ID string

	// Path is the on-disk location of the document.
	Path string

	// Err is the underlying parse or validation failure.
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("policy document for %q at %s is malformed: %v", e.ID, e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is (or wraps) a MalformedError.
func IsMalformed(err error) bool {
	var malformed *MalformedError
	return errors.As(err, &malformed)
}
