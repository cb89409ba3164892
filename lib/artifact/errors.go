// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
)

// FetchError reports a locator that could not be resolved to bytes: a
// missing file, an unreachable host, a cache miss, an oversized
// remote. Lifecycle operations surface it without touching other
// components.
type FetchError struct {
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching artifact %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetch reports whether err is or wraps a *FetchError.
func IsFetch(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
