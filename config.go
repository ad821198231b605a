package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	envDataJSON = "BOT_DATA_JSON"
	envDataDir  = "DATA_DIR"

	backupFileName = "bot_data.json"
	exportFileName = "bot_data_env_export.txt"
)

// Group is one monitored group: the keywords it watches and the subreddits
// they are watched in.
type Group struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	Subreddits []string `json:"subreddits"`
}

// WorkspaceLink is a chat workspace integration, typically a Slack incoming
// webhook the bot posts matches to.
type WorkspaceLink struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
}

// Config is the bot's full data set as one JSON document. Groups and
// workspace links are typed; every other top-level key the bot writes
// (processed item ids, last search times, ...) is carried through untouched
// so a save never drops data this tool doesn't know about.
type Config struct {
	Groups         []Group
	WorkspaceLinks []WorkspaceLink

	extra map[string]json.RawMessage
}

func newConfig() *Config {
	return &Config{Groups: []Group{}, WorkspaceLinks: []WorkspaceLink{}}
}

func (c Config) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(c.extra)+2)
	for k, v := range c.extra {
		m[k] = v
	}
	groups := c.Groups
	if groups == nil {
		groups = []Group{}
	}
	links := c.WorkspaceLinks
	if links == nil {
		links = []WorkspaceLink{}
	}
	var err error
	if m["groups"], err = json.Marshal(groups); err != nil {
		return nil, err
	}
	if m["workspace_links"], err = json.Marshal(links); err != nil {
		return nil, err
	}
	// Maps marshal with sorted keys, so output is deterministic.
	return json.Marshal(m)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.Groups = []Group{}
	c.WorkspaceLinks = []WorkspaceLink{}
	c.extra = nil
	for k, v := range m {
		switch k {
		case "groups":
			if err := json.Unmarshal(v, &c.Groups); err != nil {
				return fmt.Errorf("invalid groups: %v", err)
			}
		case "workspace_links":
			if err := json.Unmarshal(v, &c.WorkspaceLinks); err != nil {
				return fmt.Errorf("invalid workspace_links: %v", err)
			}
		default:
			if c.extra == nil {
				c.extra = make(map[string]json.RawMessage)
			}
			c.extra[k] = v
		}
	}
	if c.Groups == nil {
		c.Groups = []Group{}
	}
	if c.WorkspaceLinks == nil {
		c.WorkspaceLinks = []WorkspaceLink{}
	}
	return nil
}

// ExtraKeys lists the untyped top-level keys, sorted.
func (c *Config) ExtraKeys() []string {
	keys := make([]string, 0, len(c.extra))
	for k := range c.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Extra returns the raw JSON stored under an untyped top-level key.
func (c *Config) Extra(key string) (json.RawMessage, bool) {
	v, ok := c.extra[key]
	return v, ok
}

// SetExtra stores raw JSON under an untyped top-level key. The value must be
// valid JSON; it is written out verbatim on the next save.
func (c *Config) SetExtra(key string, value json.RawMessage) {
	if c.extra == nil {
		c.extra = make(map[string]json.RawMessage)
	}
	c.extra[key] = value
}

// MalformedConfigError reports a config source that is not valid JSON. The
// operator has to fix the source; there is no automatic recovery and no
// fallback to another source.
type MalformedConfigError struct {
	Source string // "env:BOT_DATA_JSON" or a file path
	Err    error
}

func (e *MalformedConfigError) Error() string {
	return fmt.Sprintf("malformed config in %s: %v", e.Source, e.Err)
}

func (e *MalformedConfigError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write of one of the two save artifacts.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the single authoritative holder of the bot's configuration. It
// resolves the initial state from BOT_DATA_JSON or the backup file, keeps the
// in-memory copy, and flushes it to both on-disk artifacts on save. All
// mutate+save cycles are serialized by the store's lock.
type Store struct {
	mu      sync.Mutex
	dataDir string
	getenv  func(string) string // swapped out in tests
	cfg     *Config
	source  string
}

func NewStore(dataDir string) *Store {
	if dataDir == "" {
		dataDir = os.Getenv(envDataDir)
	}
	if dataDir == "" {
		dataDir = "data"
	}
	return &Store{dataDir: dataDir, getenv: os.Getenv}
}

func (s *Store) DataDir() string { return s.dataDir }

func (s *Store) BackupPath() string { return filepath.Join(s.dataDir, backupFileName) }

func (s *Store) ExportPath() string { return filepath.Join(s.dataDir, exportFileName) }

// Source describes where the last Load got its data from.
func (s *Store) Source() string { return s.source }

// Config returns the in-memory configuration from the last Load. Callers that
// mutate it concurrently must go through Update instead.
func (s *Store) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		s.cfg = newConfig()
	}
	return s.cfg
}

// Load resolves the initial configuration. BOT_DATA_JSON wins when set and
// non-empty; a parse failure there surfaces immediately and never falls back
// to the file, so stale disk data can't masquerade as the operator's intent.
// A missing backup file means a fresh install: empty config, no error.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Config, error) {
	if raw := s.getenv(envDataJSON); raw != "" {
		cfg := newConfig()
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil, &MalformedConfigError{Source: "env:" + envDataJSON, Err: err}
		}
		s.cfg = cfg
		s.source = "env:" + envDataJSON
		return cfg, nil
	}

	path := s.BackupPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.cfg = newConfig()
		s.source = "fresh (no " + envDataJSON + ", no " + backupFileName + ")"
		return s.cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}
	cfg := newConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &MalformedConfigError{Source: path, Err: err}
	}
	s.cfg = cfg
	s.source = "file " + path
	return cfg, nil
}

// Save flushes the in-memory configuration to both artifacts: the
// pretty-printed backup the loader falls back to, and the minified export the
// operator pastes into BOT_DATA_JSON. Both are overwritten unconditionally.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.cfg == nil {
		s.cfg = newConfig()
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return &PersistenceError{Path: s.dataDir, Err: err}
	}

	pretty, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(s.BackupPath(), pretty, 0644); err != nil {
		return &PersistenceError{Path: s.BackupPath(), Err: err}
	}

	compact, err := json.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(s.ExportPath(), compact, 0644); err != nil {
		return &PersistenceError{Path: s.ExportPath(), Err: err}
	}
	return nil
}

// Update runs a mutation against the in-memory configuration and saves the
// result, all under the store's lock. This is the only safe entry point when
// multiple command handlers can mutate at once.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		s.cfg = newConfig()
	}
	fn(s.cfg)
	return s.saveLocked()
}

// ExportText returns the minified JSON for the current in-memory
// configuration, byte-identical to the contents of the export file.
func (s *Store) ExportText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		s.cfg = newConfig()
	}
	compact, err := json.Marshal(s.cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %v", err)
	}
	return string(compact), nil
}
