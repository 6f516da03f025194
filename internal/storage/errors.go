// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// ErrKeyNotFound is returned by KV.Get when a key has never been written.
// Use errors.Is(err, ErrKeyNotFound) to check for this error.
var ErrKeyNotFound = &StorageError{Message: "key not found"}

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// CorruptStateError is returned by SessionStore.Load when the stored blob
// exists but cannot be decoded. Load still returns a usable default state.
type CorruptStateError struct {
	Key string
	Err error

	// Backup is the key the raw blob was copied to, empty if the copy failed.
	Backup string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("stored state %q is corrupt: %v", e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
