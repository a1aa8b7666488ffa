// Package mods manages the archives in the server's mods directory: listing,
// upload, install from a provider, enable/disable, patching and deletion.
package mods

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/EditMySave/HyOS-sub001/internal/fsutil"
	"github.com/EditMySave/HyOS-sub001/internal/jar"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/registry"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
)

const (
	// DisabledDir holds archives the server should not load.
	DisabledDir = ".disabled"
	// MaxArchiveSize caps uploads and downloads.
	MaxArchiveSize = 100 << 20

	archiveExt = ".jar"
)

var (
	ErrNotFound      = errors.New("mod not found")
	ErrNotAFile      = errors.New("not a file")
	ErrConflict      = errors.New("destination already exists")
	ErrNotArchive    = errors.New("only .jar files are allowed")
	ErrTooLarge      = fmt.Errorf("archive exceeds %d MiB", MaxArchiveSize>>20)
	ErrInvalidSource = errors.New("invalid download source")
)

// Resolver returns a configured adapter for a provider.
type Resolver interface {
	Resolve(id provider.ID, apiKey string) (provider.Provider, error)
}

// SettingsSource yields provider settings with effective keys.
type SettingsSource interface {
	Effective() settings.Settings
}

// Mod is one installed archive as seen on disk.
type Mod struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FileName    string    `json:"fileName"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint,omitempty"`

	NeedsPatch   bool              `json:"needsPatch"`
	IsPatched    bool              `json:"isPatched"`
	ManifestInfo *jar.ManifestInfo `json:"manifestInfo"`

	Registry *registry.Entry `json:"registry,omitempty"`
}

// Manager operates on one mods directory.
type Manager struct {
	dir       string
	providers Resolver
	settings  SettingsSource
	now       func() time.Time
}

// NewManager returns a manager for dir.
func NewManager(dir string, providers Resolver, st SettingsSource) *Manager {
	return &Manager{dir: dir, providers: providers, settings: st, now: time.Now}
}

// Dir returns the mods directory.
func (m *Manager) Dir() string { return m.dir }

// archivePath maps a mod ID to its archive in dir. Any directory part of id
// is discarded.
func archivePath(dir, id string) (string, string) {
	name := filepath.Base(filepath.Clean("/" + id))
	if !strings.HasSuffix(strings.ToLower(name), archiveExt) {
		name += archiveExt
	}
	return filepath.Join(dir, name), name
}

func isArchive(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), archiveExt)
}

// List returns the installed archives sorted by name. A missing directory
// yields an empty list.
func (m *Manager) List() ([]Mod, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Mod{}, nil
		}
		return nil, fmt.Errorf("reading mods directory: %w", err)
	}

	reg := registry.Load(m.dir)
	out := []Mod{}
	for _, e := range entries {
		if e.IsDir() || !isArchive(e.Name()) {
			continue
		}
		mod, err := m.describe(filepath.Join(m.dir, e.Name()))
		if err != nil {
			slog.Warn("skipping mod", "file", e.Name(), "error", err)
			continue
		}
		if entry, ok := reg[e.Name()]; ok {
			mod.Registry = &entry
		}
		out = append(out, *mod)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get describes a single installed archive.
func (m *Manager) Get(id string) (*Mod, error) {
	path, name := archivePath(m.dir, id)
	mod, err := m.describe(path)
	if err != nil {
		return nil, err
	}
	if entry, ok := registry.Load(m.dir)[name]; ok {
		mod.Registry = &entry
	}
	return mod, nil
}

// describe stats and inspects path. Inspection and fingerprint failures are
// logged and leave the corresponding fields empty.
func (m *Manager) describe(path string) (*Mod, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, filepath.Base(path))
	}

	name := st.Name()
	mod := &Mod{
		ID:       strings.TrimSuffix(name, filepath.Ext(name)),
		Name:     name,
		FileName: name,
		Size:     st.Size(),
		Modified: st.ModTime().UTC(),
		Path:     path,
	}

	if insp, err := jar.Inspect(path); err != nil {
		slog.Warn("inspecting mod failed", "file", name, "error", err)
	} else {
		mod.NeedsPatch = insp.NeedsPatch
		mod.IsPatched = insp.IsPatched
		mod.ManifestInfo = insp.Manifest
	}

	if sum, err := fingerprint(path); err != nil {
		slog.Warn("fingerprinting mod failed", "file", name, "error", err)
	} else {
		mod.Fingerprint = sum
	}
	return mod, nil
}

// fingerprint returns the hex BLAKE3 digest of the file at path.
func fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Delete removes an installed archive, then drops its registry entry.
// A registry failure is logged and does not fail the delete.
func (m *Manager) Delete(id string) error {
	path, name := archivePath(m.dir, id)
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotAFile, name)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	if err := registry.Unregister(m.dir, name); err != nil {
		slog.Warn("removing registry entry failed", "file", name, "error", err)
	}
	slog.Info("mod deleted", "file", name)
	return nil
}

// Patch injects the stub entry point into a content-only archive and returns
// the archive's new state.
func (m *Manager) Patch(id string) (*Mod, error) {
	path, name := archivePath(m.dir, id)
	if err := jar.Patch(path); err != nil {
		return nil, err
	}
	slog.Info("mod patched", "file", name)
	return m.describe(path)
}

// Toggle moves an archive between the mods directory and DisabledDir.
func (m *Manager) Toggle(id string, enabled bool) error {
	disabled := filepath.Join(m.dir, DisabledDir)
	src, name := archivePath(disabled, id)
	dst := filepath.Join(m.dir, name)
	if !enabled {
		src, dst = dst, src
	}

	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			state := "mod"
			if enabled {
				state = "disabled mod"
			}
			return fmt.Errorf("%w: %s %s", ErrNotFound, state, name)
		}
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrConflict, name)
	}
	if err := os.MkdirAll(disabled, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", DisabledDir, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s: %w", name, err)
	}
	slog.Info("mod toggled", "file", name, "enabled", enabled)
	return nil
}

// Disabled lists the archive names in DisabledDir.
func (m *Manager) Disabled() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, DisabledDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() && isArchive(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Upload stores r as fileName in the mods directory, replacing any archive of
// the same name. It reports whether a file was replaced.
func (m *Manager) Upload(fileName string, r io.Reader) (mod *Mod, replaced bool, err error) {
	name := filepath.Base(filepath.Clean("/" + fileName))
	if !isArchive(name) {
		return nil, false, ErrNotArchive
	}
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err == nil {
		replaced = true
	}

	if err := writeArchive(path, r); err != nil {
		return nil, false, err
	}
	slog.Info("mod uploaded", "file", name, "replaced", replaced)

	mod, err = m.describe(path)
	return mod, replaced, err
}

// writeArchive streams r into path, failing with ErrTooLarge past
// MaxArchiveSize. Nothing is left behind on failure.
func writeArchive(path string, r io.Reader) error {
	return fsutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		n, err := io.Copy(w, io.LimitReader(r, MaxArchiveSize+1))
		if err != nil {
			return err
		}
		if n > MaxArchiveSize {
			return ErrTooLarge
		}
		return nil
	})
}
