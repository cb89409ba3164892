// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
)

// IOError reports a secret record that could not be read or parsed.
// Callers that resolve secrets opportunistically (the permission
// engine's environment lookup) treat it as "no secrets available"
// rather than a fatal condition; callers mutating the record surface
// it.
type IOError struct {
	ID   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("secret record for %q at %s: %v", e.ID, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIO reports whether err is or wraps an *IOError.
func IsIO(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
