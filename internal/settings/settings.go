// Package settings persists per-provider enable flags and API keys.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/EditMySave/HyOS-sub001/internal/fsutil"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

// FileName is the settings file inside the state directory.
const FileName = "mod-providers.json"

// Provider is the stored configuration of one provider.
type Provider struct {
	Enabled bool    `json:"enabled"`
	APIKey  *string `json:"apiKey"`
}

// HasKey reports whether a non-empty key is set.
func (p Provider) HasKey() bool {
	return p.APIKey != nil && *p.APIKey != ""
}

// Key returns the API key or "".
func (p Provider) Key() string {
	if p.APIKey == nil {
		return ""
	}
	return *p.APIKey
}

// Settings holds every provider's configuration.
type Settings map[provider.ID]Provider

// Defaults returns every provider disabled with no key.
func Defaults() Settings {
	s := make(Settings, len(provider.Order))
	for _, id := range provider.Order {
		s[id] = Provider{}
	}
	return s
}

// Key sources reported in the public view.
const (
	KeySourceFile = "file"
	KeySourceEnv  = "env"
)

// PublicProvider is the secret-free view returned to clients.
type PublicProvider struct {
	ID        provider.ID `json:"id"`
	Enabled   bool        `json:"enabled"`
	HasAPIKey bool        `json:"hasApiKey"`
	KeyHint   string      `json:"keyHint,omitempty"`
	KeySource string      `json:"keySource,omitempty"`
}

// Update is a partial change to one provider. Nil fields are left alone.
type Update struct {
	Enabled *bool   `json:"enabled"`
	APIKey  *string `json:"apiKey"`
}

// Store reads and writes the settings file. Writes are serialized within the
// process and atomic on disk.
type Store struct {
	path string
	// envKeys are used when the file holds no key for a provider.
	envKeys map[provider.ID]string
	mu      sync.Mutex
}

// NewStore returns a store for <stateDir>/mod-providers.json.
func NewStore(stateDir string, envKeys map[provider.ID]string) *Store {
	return &Store{path: filepath.Join(stateDir, FileName), envKeys: envKeys}
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load returns the stored settings merged over the defaults. A missing or
// invalid file yields the defaults.
func (s *Store) Load() Settings {
	out := Defaults()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("reading provider settings", "path", s.path, "error", err)
		}
		return out
	}

	var stored map[string]Provider
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("provider settings file is invalid, using defaults", "path", s.path, "error", err)
		return out
	}
	for _, id := range provider.Order {
		if p, ok := stored[string(id)]; ok {
			out[id] = p
		}
	}
	return out
}

// Effective returns the stored settings with environment keys filled in for
// providers whose file entry has none. Use it for outbound calls only.
func (s *Store) Effective() Settings {
	out := s.Load()
	for id, p := range out {
		if p.HasKey() {
			continue
		}
		if k := s.envKeys[id]; k != "" {
			p.APIKey = &k
			out[id] = p
		}
	}
	return out
}

// Public returns the secret-free view in provider priority order.
func (s *Store) Public() []PublicProvider {
	stored := s.Load()
	out := make([]PublicProvider, 0, len(provider.Order))
	for _, id := range provider.Order {
		p := stored[id]
		pub := PublicProvider{ID: id, Enabled: p.Enabled}
		switch {
		case p.HasKey():
			pub.HasAPIKey, pub.KeyHint, pub.KeySource = true, hint(p.Key()), KeySourceFile
		case s.envKeys[id] != "":
			pub.HasAPIKey, pub.KeyHint, pub.KeySource = true, hint(s.envKeys[id]), KeySourceEnv
		}
		out = append(out, pub)
	}
	return out
}

// Save merges u into the stored entry for id and writes the file.
func (s *Store) Save(id provider.ID, u Update) (Settings, error) {
	if id.Priority() < 0 {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Load()
	p := next[id]
	if u.Enabled != nil {
		p.Enabled = *u.Enabled
	}
	if u.APIKey != nil {
		if *u.APIKey == "" {
			p.APIKey = nil
		} else {
			key := *u.APIKey
			p.APIKey = &key
		}
	}
	next[id] = p

	if err := s.write(next); err != nil {
		return nil, err
	}
	slog.Info("provider settings saved", "provider", id, "enabled", p.Enabled, "has_api_key", p.HasKey())
	return next, nil
}

// ResetKey clears the stored key for id. Installed mods are not affected.
func (s *Store) ResetKey(id provider.ID) (Settings, error) {
	empty := ""
	return s.Save(id, Update{APIKey: &empty})
}

func (s *Store) write(st Settings) error {
	byName := make(map[string]Provider, len(st))
	for id, p := range st {
		byName[string(id)] = p
	}
	data, err := json.MarshalIndent(byName, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling provider settings: %w", err)
	}
	// The file holds secrets.
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("saving provider settings: %w", err)
	}
	return nil
}

// hint exposes the last four characters of a key.
func hint(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
