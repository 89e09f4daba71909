package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Settings is the bot configuration persisted as JSON and edited at runtime
// through admin commands.
type Settings struct {
	AllowedGroups        []string `json:"allowedGroups"`
	AutoProcessAllGroups bool     `json:"autoProcessAllGroups"`
	BotName              string   `json:"botName"`
	LogLevel             string   `json:"logLevel"`
	AllowedChatIDs       []string `json:"allowedChatIds,omitempty"`
	BackupGroups         []string `json:"backupGroups,omitempty"`
	AdminIDs             []string `json:"adminIds,omitempty"`
	AIEnabled            bool     `json:"aiEnabled"`
	AIAPIKey             string   `json:"aiApiKey,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		AllowedGroups: []string{},
		BotName:       "FinanceBot",
		LogLevel:      "info",
	}
}

func (s Settings) clone() Settings {
	s.AllowedGroups = slices.Clone(s.AllowedGroups)
	s.AllowedChatIDs = slices.Clone(s.AllowedChatIDs)
	s.BackupGroups = slices.Clone(s.BackupGroups)
	s.AdminIDs = slices.Clone(s.AdminIDs)
	return s
}

// SettingsStore is the single owner of Settings. Every mutation is persisted
// before it returns; an empty path keeps the settings in memory only.
type SettingsStore struct {
	path        string
	fallbackKey string

	mu       sync.RWMutex
	settings Settings
}

// OpenSettings loads path, creating it from defaults when it does not exist.
func OpenSettings(path string, defaults Settings) (*SettingsStore, error) {
	st := &SettingsStore{path: path, settings: defaults.clone()}
	if path == "" {
		return st, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := st.persist(st.settings); err != nil {
			return nil, err
		}
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	loaded := defaults.clone()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if loaded.AllowedGroups == nil {
		loaded.AllowedGroups = []string{}
	}
	st.settings = loaded
	return st, nil
}

// NewMemorySettings returns a store that never touches disk.
func NewMemorySettings(s Settings) *SettingsStore {
	return &SettingsStore{settings: s.clone()}
}

// SetFallbackAPIKey sets the key used when no key was configured at runtime,
// typically GEMINI_API_KEY from the environment.
func (st *SettingsStore) SetFallbackAPIKey(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.fallbackKey = strings.TrimSpace(key)
}

// Snapshot returns a copy of the current settings.
func (st *SettingsStore) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings.clone()
}

// Update applies fn to a copy of the settings and persists the result. The
// in-memory state only changes when the write succeeds.
func (st *SettingsStore) Update(fn func(s *Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings.clone()
	fn(&next)
	if err := st.persist(next); err != nil {
		return err
	}
	st.settings = next
	return nil
}

// Replace swaps in s wholesale, used when restoring a backup.
func (st *SettingsStore) Replace(s Settings) error {
	return st.Update(func(cur *Settings) { *cur = s.clone() })
}

func (st *SettingsStore) persist(s Settings) error {
	if st.path == "" {
		return nil
	}
	if dir := filepath.Dir(st.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (st *SettingsStore) AIEnabled() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings.AIEnabled
}

// AIAPIKey returns the runtime key, or the fallback key when none is set.
func (st *SettingsStore) AIAPIKey() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.settings.AIAPIKey != "" {
		return st.settings.AIAPIKey
	}
	return st.fallbackKey
}

func (st *SettingsStore) SetAIEnabled(enabled bool) error {
	return st.Update(func(s *Settings) { s.AIEnabled = enabled })
}

func (st *SettingsStore) SetAIAPIKey(key string) error {
	return st.Update(func(s *Settings) { s.AIAPIKey = strings.TrimSpace(key) })
}

// AddAllowedGroup reports false when the group was already allowed.
func (st *SettingsStore) AddAllowedGroup(id string) (bool, error) {
	return st.addTo(id, func(s *Settings) *[]string { return &s.AllowedGroups })
}

// RemoveAllowedGroup reports false when the group was not in the list.
func (st *SettingsStore) RemoveAllowedGroup(id string) (bool, error) {
	id = strings.TrimSpace(id)
	removed := false
	err := st.Update(func(s *Settings) {
		if i := slices.Index(s.AllowedGroups, id); i >= 0 {
			s.AllowedGroups = slices.Delete(s.AllowedGroups, i, i+1)
			removed = true
		}
	})
	return removed, err
}

// AddBackupGroup reports false when the group was already a backup target.
func (st *SettingsStore) AddBackupGroup(id string) (bool, error) {
	return st.addTo(id, func(s *Settings) *[]string { return &s.BackupGroups })
}

func (st *SettingsStore) addTo(id string, list func(s *Settings) *[]string) (bool, error) {
	id = strings.TrimSpace(id)
	added := false
	err := st.Update(func(s *Settings) {
		l := list(s)
		if !slices.Contains(*l, id) {
			*l = append(*l, id)
			added = true
		}
	})
	return added, err
}

// IsChatAllowed reports whether messages from chatID should be processed.
// Direct chats are always allowed.
func (st *SettingsStore) IsChatAllowed(chatID string, isGroup bool) bool {
	if !isGroup {
		return true
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := st.settings
	return s.AutoProcessAllGroups ||
		slices.Contains(s.AllowedGroups, chatID) ||
		slices.Contains(s.AllowedChatIDs, chatID)
}

// IsAdmin reports whether senderID may run admin commands. With no admins
// configured every sender is an admin.
func (st *SettingsStore) IsAdmin(senderID string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.settings.AdminIDs) == 0 || slices.Contains(st.settings.AdminIDs, senderID)
}
