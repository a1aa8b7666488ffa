// Package registry tracks which installed archives came from which provider.
// The registry is a single pretty-printed JSON file inside the mods directory,
// keyed by archive filename.
//
// Every operation is a full read-modify-write with no locking. Concurrent
// writers may race and the last writer wins.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/EditMySave/HyOS-sub001/internal/fsutil"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

// FileName is the registry sidecar inside the mods directory.
const FileName = ".mod-registry.json"

// Entry records the provider origin of one installed archive.
type Entry struct {
	Provider         provider.ID `json:"provider"`
	ProviderModID    string      `json:"providerModId"`
	FileID           string      `json:"fileId"`
	InstalledVersion string      `json:"installedVersion"`
	Authors          []string    `json:"authors"`
	Summary          string      `json:"summary"`
	IconURL          *string     `json:"iconUrl"`
	WebsiteURL       string      `json:"websiteUrl"`
	InstalledAt      time.Time   `json:"installedAt"`
}

// Registry maps archive filename to its entry.
type Registry map[string]Entry

// Path returns the registry file path for a mods directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the registry. A missing or unreadable file yields an empty registry.
func Load(dir string) Registry {
	reg, err := read(dir)
	if err != nil {
		slog.Warn("reading mod registry, starting empty", "dir", dir, "error", err)
		return Registry{}
	}
	return reg
}

// read is Load for writers: a file that exists but cannot be read is an
// error, so a mutation never replaces it blindly. A corrupt file still
// reads as empty and is overwritten.
func read(dir string) (Registry, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Registry{}, nil
		}
		return nil, fmt.Errorf("reading mod registry: %w", err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		slog.Warn("mod registry is corrupt, starting empty", "dir", dir, "error", err)
		return Registry{}, nil
	}
	if reg == nil {
		reg = Registry{}
	}
	return reg, nil
}

// Save atomically replaces the registry file.
func Save(dir string, reg Registry) error {
	if reg == nil {
		reg = Registry{}
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling mod registry: %w", err)
	}
	if err := fsutil.WriteFileAtomic(Path(dir), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving mod registry: %w", err)
	}
	return nil
}

// Register upserts the entry for filename.
func Register(dir, filename string, entry Entry) error {
	reg, err := read(dir)
	if err != nil {
		return err
	}
	reg[filename] = entry
	return Save(dir, reg)
}

// Unregister removes filename. Removing an absent key is a no-op.
func Unregister(dir, filename string) error {
	reg, err := read(dir)
	if err != nil {
		return err
	}
	if _, ok := reg[filename]; !ok {
		return nil
	}
	delete(reg, filename)
	return Save(dir, reg)
}

// Rename moves an entry to a new filename, used when an archive is replaced
// by a newer file from the same mod.
func Rename(dir, from, to string) error {
	reg, err := read(dir)
	if err != nil {
		return err
	}
	entry, ok := reg[from]
	if !ok {
		return nil
	}
	delete(reg, from)
	reg[to] = entry
	return Save(dir, reg)
}
