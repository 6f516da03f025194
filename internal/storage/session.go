// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
)

const (
	// StateKey is the single key the session blob lives under.
	StateKey = "rigchat.session"

	// BackupKey holds the last blob that failed to decode.
	BackupKey = "rigchat.session.corrupt"

	// SchemaVersion is written into every saved envelope.
	SchemaVersion = 1
)

// envelope is the current on-disk shape.
type envelope struct {
	Version       int                   `json:"version"`
	Settings      model.Settings        `json:"settings"`
	Conversations []*model.Conversation `json:"conversations"`
	ActiveID      string                `json:"active_id"`
}

// legacyBlob holds the non-settings part of the browser client's shape.
// Its settings sit at the top level and decode straight into model.Settings.
type legacyBlob struct {
	Chats         []*model.Conversation `json:"chats"`
	CurrentChatID string                `json:"currentChatId"`
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore reads and writes the whole session state as one blob.
type SessionStore struct {
	kv       KV
	defaults model.Settings
}

// NewSessionStore wraps kv. Fields missing from a stored blob take their
// value from defaults.
func NewSessionStore(kv KV, defaults model.Settings) *SessionStore {
	return &SessionStore{kv: kv, defaults: defaults}
}

// Defaults returns the settings used for missing fields.
func (s *SessionStore) Defaults() model.Settings {
	return s.defaults
}

// Load returns the stored state. When nothing is stored it returns a
// default state and a nil error. When the blob is unreadable or corrupt it
// logs, returns a default state and the error; the state is always usable.
// A corrupt blob is first copied to BackupKey so a later Save cannot lose it.
// The returned state may have no conversations.
func (s *SessionStore) Load() (*model.State, error) {
	log := logging.For("storage")

	data, err := s.kv.Get(StateKey)
	if errors.Is(err, ErrKeyNotFound) {
		log.Debug("no stored session, starting fresh")
		return s.defaultState(), nil
	}
	if err != nil {
		log.Warn("failed to read stored session", "err", err)
		return s.defaultState(), fmt.Errorf("failed to read session: %w", err)
	}

	st, err := s.decode(data)
	if err != nil {
		cerr := &CorruptStateError{Key: StateKey, Err: err}
		if berr := s.kv.Set(BackupKey, data); berr != nil {
			log.Error("failed to back up corrupt session", "err", berr)
		} else {
			cerr.Backup = BackupKey
		}
		log.Warn("stored session is corrupt, using defaults", "err", err, "bytes", len(data), "backup", cerr.Backup)
		return s.defaultState(), cerr
	}

	s.fillCredential(st)
	log.Debug("session loaded", "conversations", len(st.Conversations), "active", st.ActiveID)
	return st, nil
}

// Save writes the full state under StateKey.
func (s *SessionStore) Save(st *model.State) error {
	env := envelope{
		Version:       SchemaVersion,
		Settings:      st.Settings,
		Conversations: st.Conversations,
		ActiveID:      st.ActiveID,
	}
	if env.Conversations == nil {
		env.Conversations = make([]*model.Conversation, 0)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(StateKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Reset erases the stored state.
func (s *SessionStore) Reset() error {
	if err := s.kv.Delete(StateKey); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	logging.For("storage").Info("session reset")
	return nil
}

// Close closes the backend.
func (s *SessionStore) Close() error {
	return s.kv.Close()
}

// =============================================================================
// DECODING
// =============================================================================

func (s *SessionStore) decode(data []byte) (*model.State, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, errors.New("stored session is null")
	}
	if _, ok := probe["version"]; ok {
		return s.decodeEnvelope(data)
	}
	return s.decodeLegacy(data)
}

// decodeEnvelope unmarshals onto a defaults-populated envelope, so absent
// settings fields keep their default values.
func (s *SessionStore) decodeEnvelope(data []byte) (*model.State, error) {
	env := envelope{Settings: s.defaults}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Version > SchemaVersion {
		logging.For("storage").Warn("session written by a newer version", "version", env.Version)
	}
	return &model.State{
		Settings:      env.Settings,
		Conversations: nonNil(env.Conversations),
		ActiveID:      env.ActiveID,
	}, nil
}

func (s *SessionStore) decodeLegacy(data []byte) (*model.State, error) {
	settings := s.defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	var legacy legacyBlob
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	logging.For("storage").Info("read legacy session blob", "chats", len(legacy.Chats))
	return &model.State{
		Settings:      settings,
		Conversations: nonNil(legacy.Chats),
		ActiveID:      legacy.CurrentChatID,
	}, nil
}

// fillCredential uses the configured key when the stored one is blank, so
// an environment-provided key survives a blob saved without one.
func (s *SessionStore) fillCredential(st *model.State) {
	if !st.Settings.HasCredential() && s.defaults.HasCredential() {
		st.Settings.APIKey = s.defaults.APIKey
	}
}

func (s *SessionStore) defaultState() *model.State {
	return model.NewState(s.defaults)
}

func nonNil(convs []*model.Conversation) []*model.Conversation {
	if convs == nil {
		return make([]*model.Conversation, 0)
	}
	return convs
}
