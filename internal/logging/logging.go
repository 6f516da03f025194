// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides component loggers backed by charmbracelet/log.
//
// Output goes nowhere until Init is called, so libraries and tests stay
// quiet. The TUI owns the terminal, so the CLI points logs at a file.
//
// Usage:
//
//	if err := logging.Init(path, "info"); err != nil { ... }
//	defer logging.Close()
//	log := logging.For("cloud")
//	log.Info("request sent", "model", model)
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// FileName is the log file name inside the config directory.
const FileName = "rigchat.log"

var (
	mu      sync.Mutex
	out     = &switchWriter{w: io.Discard}
	level   = log.InfoLevel
	loggers = make(map[string]*log.Logger)
	logFile *os.File
)

// switchWriter lets Init redirect loggers handed out before it ran.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// For returns the logger for a component, creating it on first use.
func For(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[component]; ok {
		return l
	}
	l := log.NewWithOptions(out, log.Options{
		Prefix:          component,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	loggers[component] = l
	return l
}

// Init opens (or creates) the log file at path and sets the level.
// Calling Init again switches to the new file.
func Init(path, levelName string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	mu.Lock()
	old := logFile
	logFile = f
	mu.Unlock()

	out.set(f)
	SetLevel(lvl)
	if old != nil {
		old.Close()
	}

	For("logging").Debug("logger initialized", "path", path)
	return nil
}

// SetOutput redirects every logger to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	out.set(w)
}

// SetLevel changes the level of every logger, including future ones.
func SetLevel(lvl log.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
}

// ParseLevel maps a config string to a level. Empty means info.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// Close flushes and closes the log file, discarding further output.
func Close() error {
	mu.Lock()
	f := logFile
	logFile = nil
	mu.Unlock()

	out.set(io.Discard)
	if f == nil {
		return nil
	}
	return f.Close()
}
