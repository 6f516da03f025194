// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat/internal/model"
)

// CurrentVersion is written into saved config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Cloud (OpenRouter) configuration
	Cloud CloudConfig `toml:"cloud" json:"cloud"`

	// Defaults for new sessions
	Defaults DefaultsConfig `toml:"defaults" json:"defaults"`

	// Session persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log file configuration
	Log LogConfig `toml:"log" json:"log"`

	// User-defined assistant roles, merged over the built-ins
	Roles []Role `toml:"roles" json:"roles"`
}

// CloudConfig contains OpenRouter settings.
type CloudConfig struct {
	APIKey       string `toml:"api_key" json:"api_key"`
	BaseURL      string `toml:"base_url" json:"base_url"`
	Referer      string `toml:"referer" json:"referer"`
	Title        string `toml:"title" json:"title"`
	TimeoutSecs  int    `toml:"timeout_secs" json:"timeout_secs"`
	DefaultModel string `toml:"default_model" json:"default_model"`
}

// DefaultsConfig seeds the settings of a fresh session.
type DefaultsConfig struct {
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	Role         string `toml:"role" json:"role"`
}

// StorageConfig selects where the session blob lives.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory"
	Backend string `toml:"backend" json:"backend"`

	// Path is a directory for "file" and a database file for "sqlite".
	// Empty means a default inside the config directory.
	Path string `toml:"path" json:"path"`
}

// UIConfig contains display settings.
type UIConfig struct {
	// Theme is "auto", "dark", "light" or "notty"
	Theme string `toml:"theme" json:"theme"`

	// CodeStyle is a chroma style name for code blocks
	CodeStyle string `toml:"code_style" json:"code_style"`

	// WordWrap is the markdown wrap width; 0 follows the terminal
	WordWrap int `toml:"word_wrap" json:"word_wrap"`

	// RenderFPS caps transcript repaints while a reply streams
	RenderFPS int `toml:"render_fps" json:"render_fps"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a config with every field set to its built-in value.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Cloud: CloudConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			Referer:      "https://github.com/jeranaias/rigchat",
			Title:        "rigchat",
			TimeoutSecs:  60,
			DefaultModel: model.DefaultModel,
		},
		Defaults: DefaultsConfig{
			SystemPrompt: model.DefaultSystemPrompt,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		UI: UIConfig{
			Theme:     "auto",
			CodeStyle: "monokai",
			RenderFPS: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults fills any zero-valued field with its default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = d.Cloud.BaseURL
	}
	if c.Cloud.Referer == "" {
		c.Cloud.Referer = d.Cloud.Referer
	}
	if c.Cloud.Title == "" {
		c.Cloud.Title = d.Cloud.Title
	}
	if c.Cloud.TimeoutSecs == 0 {
		c.Cloud.TimeoutSecs = d.Cloud.TimeoutSecs
	}
	if c.Cloud.DefaultModel == "" {
		c.Cloud.DefaultModel = d.Cloud.DefaultModel
	}
	if c.Defaults.SystemPrompt == "" {
		c.Defaults.SystemPrompt = d.Defaults.SystemPrompt
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = d.UI.CodeStyle
	}
	if c.UI.RenderFPS == 0 {
		c.UI.RenderFPS = d.UI.RenderFPS
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the rigchat configuration directory.
func Dir() (string, error) {
	if dir := os.Getenv("RIGCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StoragePath returns where the session backend lives, resolving an empty
// storage.path to a default inside the config directory.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if strings.EqualFold(c.Storage.Backend, "sqlite") {
		return filepath.Join(dir, "session.db"), nil
	}
	return dir, nil
}

// LogPath returns the log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rigchat.log"), nil
}

// Timeout returns the response-header timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Cloud.TimeoutSecs) * time.Second
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: The file may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file if it exists, then applies environment
// overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit file. A missing file yields defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !os.IsNotExist(statErr) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, statErr)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep their
// current values.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# rigchat configuration file")
	fmt.Fprintln(file, "# Generated by rigchat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the config and returns every problem at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Cloud.BaseURL != "" {
		u, err := url.Parse(c.Cloud.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "cloud.base_url",
				Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host/...", c.Cloud.BaseURL),
			})
		}
	}
	if c.Cloud.TimeoutSecs < 0 || c.Cloud.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "cloud.timeout_secs",
			Message: fmt.Sprintf("must be between 0 and 3600, got %d", c.Cloud.TimeoutSecs),
		})
	}

	validBackends := map[string]bool{"": true, "file": true, "sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}

	validThemes := map[string]bool{"": true, "auto": true, "dark": true, "light": true, "notty": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{Field: "ui.word_wrap", Message: "must not be negative"})
	}
	if c.UI.RenderFPS < 0 || c.UI.RenderFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.render_fps",
			Message: fmt.Sprintf("must be between 0 and 120, got %d", c.UI.RenderFPS),
		})
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	errs = append(errs, validateRoles(c.Roles)...)
	if c.Defaults.Role != "" {
		if _, ok := c.FindRole(c.Defaults.Role); !ok {
			errs = append(errs, ValidationError{
				Field:   "defaults.role",
				Message: fmt.Sprintf("unknown role '%s'", c.Defaults.Role),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables over file values.
func (c *Config) ApplyEnvOverrides() {
	// RIGCHAT_API_KEY wins over the generic OPENROUTER_API_KEY
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Cloud.APIKey = key
	}
	if key := os.Getenv("RIGCHAT_API_KEY"); key != "" {
		c.Cloud.APIKey = key
	}

	if m := os.Getenv("RIGCHAT_MODEL"); m != "" {
		c.Cloud.DefaultModel = model.ResolveModel(m)
	}
	if u := os.Getenv("RIGCHAT_BASE_URL"); u != "" {
		c.Cloud.BaseURL = u
	}
	if backend := os.Getenv("RIGCHAT_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("RIGCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// SESSION SEEDING
// =============================================================================

// DefaultSettings returns the settings a fresh session starts with. The
// default role's prompt replaces the system prompt when one is set.
func (c *Config) DefaultSettings() model.Settings {
	s := model.DefaultSettings()
	s.APIKey = strings.TrimSpace(c.Cloud.APIKey)
	if c.Cloud.DefaultModel != "" {
		s.Model = c.Cloud.DefaultModel
	}
	if c.Defaults.SystemPrompt != "" {
		s.SystemPrompt = c.Defaults.SystemPrompt
	}
	if c.Defaults.Role != "" {
		if role, ok := c.FindRole(c.Defaults.Role); ok {
			s.ActiveRoleID = role.ID
			s.SystemPrompt = role.Prompt
		}
	}
	switch strings.ToLower(c.UI.Theme) {
	case "light":
		s.DarkMode = false
	case "dark":
		s.DarkMode = true
	}
	return s
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "cloud.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct || field.Kind() == reflect.Slice {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		section := strings.Split(f.Tag.Get("toml"), ",")[0]
		switch f.Type.Kind() {
		case reflect.Struct:
			for j := 0; j < f.Type.NumField(); j++ {
				sub := strings.Split(f.Type.Field(j).Tag.Get("toml"), ",")[0]
				keys = append(keys, section+"."+sub)
			}
		case reflect.Slice:
		default:
			keys = append(keys, section)
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Roles != nil {
		clone.Roles = make([]Role, len(c.Roles))
		copy(clone.Roles, c.Roles)
	}
	return &clone
}

// String returns the config as indented JSON with the API key redacted.
// SECURITY: Safe to print or log.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Cloud.APIKey != "" {
		safe.Cloud.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
