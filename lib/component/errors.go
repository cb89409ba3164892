// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"errors"
	"fmt"
)

// NotFoundError reports an operation against a component ID that is
// not currently registered.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component %q is not loaded", e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// AlreadyLoadedError reports a load of an ID that is already serving.
// Callers that want in-place replacement set [LoadOptions.Replace] or
// call [Registry.Reload].
type AlreadyLoadedError struct {
	ID string
}

func (e *AlreadyLoadedError) Error() string {
	return fmt.Sprintf("component %q is already loaded", e.ID)
}

// IsAlreadyLoaded reports whether err is an AlreadyLoadedError.
func IsAlreadyLoaded(err error) bool {
	var already *AlreadyLoadedError
	return errors.As(err, &already)
}

// InvalidArtifactError reports artifact bytes the execution host
// rejected as not a well-formed component binary.
type InvalidArtifactError struct {
	ID      string
	Locator string
	Err     error
}

func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("artifact %s for component %q is not a valid component binary: %v", e.Locator, e.ID, e.Err)
}

func (e *InvalidArtifactError) Unwrap() error { return e.Err }

// IsInvalidArtifact reports whether err is an InvalidArtifactError.
func IsInvalidArtifact(err error) bool {
	var invalid *InvalidArtifactError
	return errors.As(err, &invalid)
}
