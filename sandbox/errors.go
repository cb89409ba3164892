// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// MemoryLimitError reports a component whose declared memory minimum
// cannot fit under its ceiling. The load fails before any guest code
// runs.
type MemoryLimitError struct {
	ID             string
	RequestedBytes uint64
	LimitBytes     uint64
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("component %q requires %d bytes of memory, limit is %d", e.ID, e.RequestedBytes, e.LimitBytes)
}

// IsMemoryLimit reports whether err is a MemoryLimitError.
func IsMemoryLimit(err error) bool {
	var limit *MemoryLimitError
	return errors.As(err, &limit)
}
