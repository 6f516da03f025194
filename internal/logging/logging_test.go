// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_ReturnsSameLogger(t *testing.T) {
	assert.Same(t, For("test-same"), For("test-same"))
}

func TestSetOutput_RedirectsExistingLoggers(t *testing.T) {
	l := For("test-redirect")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nopWriter{}) })

	l.Info("hello", "key", "value")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "key=value")
	assert.Contains(t, buf.String(), "test-redirect")
}

func TestSetLevel_AppliesToExistingLoggers(t *testing.T) {
	l := For("test-level")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		SetLevel(log.InfoLevel)
	})

	SetLevel(log.WarnLevel)
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", FileName)
	require.NoError(t, Init(path, "debug"))
	t.Cleanup(func() {
		Close()
		SetLevel(log.InfoLevel)
	})

	For("test-file").Debug("to disk")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to disk")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, lvl)

	lvl, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
