// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/rigchat/internal/util"
)

// KV is a minimal string-keyed blob store.
type KV interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the backend named by backend rooted at path. For the file
// backend path is a directory; for sqlite it is the database file.
func Open(backend, path string) (KV, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileKV(path)
	case BackendSQLite:
		return OpenSQLiteKV(path)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want file, sqlite or memory)", backend)
	}
}

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileKV stores each key as <BaseDir>/<key>.json.
type FileKV struct {
	// BaseDir is the directory holding the blobs
	// Default: ~/.rigchat/
	BaseDir string
}

// NewFileKV creates the directory if needed and returns a file backend.
func NewFileKV(baseDir string) (*FileKV, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get reads the blob for key.
func (f *FileKV) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.filePath(key))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	return data, err
}

// Set writes the blob atomically with owner-only permissions; it may hold
// an API key.
func (f *FileKV) Set(key string, value []byte) error {
	return util.AtomicWriteFile(f.filePath(key), value, 0600)
}

// Delete removes the blob for key.
func (f *FileKV) Delete(key string) error {
	err := os.Remove(f.filePath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileKV) Close() error { return nil }

func (f *FileKV) filePath(key string) string {
	return filepath.Join(f.BaseDir, sanitizeKey(key)+".json")
}

// sanitizeKey keeps keys from escaping BaseDir.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	key = replacer.Replace(key)
	if key == "" {
		return "_"
	}
	return key
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryKV keeps blobs in a map. Nothing survives the process.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }
