package mods

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/EditMySave/HyOS-sub001/internal/jar"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/registry"
)

// ModInfo is the provider-side description recorded in the registry.
type ModInfo struct {
	ID         string   `json:"id"`
	Authors    []string `json:"authors"`
	Summary    string   `json:"summary"`
	IconURL    *string  `json:"iconUrl"`
	WebsiteURL string   `json:"websiteUrl"`
}

// InstallRequest downloads one provider file into the mods directory.
type InstallRequest struct {
	Provider provider.ID      `json:"provider"`
	Version  provider.Version `json:"version"`
	// Mod, when set, is recorded in the registry.
	Mod *ModInfo `json:"mod,omitempty"`
	// Replaces names an installed archive that the new file supersedes.
	Replaces string `json:"replaces,omitempty"`
}

// LinkRequest attaches an installed archive to a provider mod.
type LinkRequest struct {
	Provider      provider.ID `json:"provider"`
	ProviderModID string      `json:"providerModId"`
	WebsiteURL    string      `json:"websiteUrl"`
	IconURL       *string     `json:"iconUrl"`
	Authors       []string    `json:"authors"`
	Summary       string      `json:"summary"`
}

// adapter returns a configured, enabled adapter for id.
func (m *Manager) adapter(id provider.ID) (provider.Provider, error) {
	pc, ok := m.settings.Effective()[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, id)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", provider.ErrNotConfigured, id)
	}
	p, err := m.providers.Resolve(id, pc.Key())
	if err != nil {
		return nil, err
	}
	if p.RequiresKey() && !p.Configured() {
		return nil, fmt.Errorf("%w: %s has no API key", provider.ErrNotConfigured, id)
	}
	return p, nil
}

// Install downloads req.Version through its provider and writes it to the
// mods directory. Registry bookkeeping is best effort.
func (m *Manager) Install(ctx context.Context, req InstallRequest) (*Mod, error) {
	p, err := m.adapter(req.Provider)
	if err != nil {
		return nil, err
	}

	dl, err := p.Download(ctx, req.Version)
	if err != nil {
		return nil, fmt.Errorf("downloading from %s: %w", req.Provider, err)
	}
	defer dl.Body.Close()

	name := installName(dl.FileName, req.Version.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: no file name", ErrInvalidSource)
	}
	path := filepath.Join(m.dir, name)
	if err := writeArchive(path, dl.Body); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("mod installed", "provider", req.Provider, "file", name, "file_id", req.Version.FileID)

	if old := strings.TrimSpace(req.Replaces); old != "" {
		m.removeReplaced(old, name)
	}

	switch {
	case req.Mod != nil && req.Mod.ID != "":
		entry := registry.Entry{
			Provider:         req.Provider,
			ProviderModID:    req.Mod.ID,
			FileID:           req.Version.FileID,
			InstalledVersion: req.Version.DisplayName,
			Authors:          req.Mod.Authors,
			Summary:          req.Mod.Summary,
			IconURL:          req.Mod.IconURL,
			WebsiteURL:       req.Mod.WebsiteURL,
			InstalledAt:      m.now().UTC(),
		}
		if err := registry.Register(m.dir, name, entry); err != nil {
			slog.Warn("registering installed mod failed", "file", name, "error", err)
		}
	default:
		// An update without mod info keeps the link carried over from the
		// replaced archive.
		entry, ok := registry.Load(m.dir)[name]
		if !ok || entry.Provider != req.Provider {
			break
		}
		entry.FileID = req.Version.FileID
		entry.InstalledVersion = req.Version.DisplayName
		entry.InstalledAt = m.now().UTC()
		if err := registry.Register(m.dir, name, entry); err != nil {
			slog.Warn("updating registry entry failed", "file", name, "error", err)
		}
	}

	return m.describe(path)
}

func (m *Manager) removeReplaced(old, name string) {
	oldPath, oldName := archivePath(m.dir, old)
	if oldName == name {
		return
	}
	if err := registry.Rename(m.dir, oldName, name); err != nil {
		slog.Warn("moving registry entry failed", "from", oldName, "to", name, "error", err)
	}
	if err := m.Delete(oldName); err != nil {
		slog.Warn("removing replaced mod failed", "file", oldPath, "error", err)
	}
}

// installName picks the archive name for a download and forces the .jar
// extension.
func installName(names ...string) string {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		base := filepath.Base(filepath.Clean("/" + n))
		if base == "/" || base == "." {
			continue
		}
		if !isArchive(base) {
			base += archiveExt
		}
		return base
	}
	return ""
}

// Link records that the installed archive id came from a provider mod. The
// archive's own version is matched against the provider's files to learn the
// file ID; when nothing matches the entry is stored without one.
func (m *Manager) Link(ctx context.Context, id string, req LinkRequest) (*registry.Entry, error) {
	path, name := archivePath(m.dir, id)
	insp, err := jar.Inspect(path)
	if err != nil {
		return nil, err
	}

	var version string
	if insp.Manifest != nil {
		version = insp.Manifest.Version
	}

	entry := registry.Entry{
		Provider:         req.Provider,
		ProviderModID:    req.ProviderModID,
		InstalledVersion: version,
		Authors:          req.Authors,
		Summary:          req.Summary,
		IconURL:          req.IconURL,
		WebsiteURL:       req.WebsiteURL,
		InstalledAt:      m.now().UTC(),
	}
	if entry.Authors == nil {
		entry.Authors = []string{}
	}

	if p, err := m.adapter(req.Provider); err != nil {
		slog.Warn("linking without version lookup", "file", name, "error", err)
	} else if versions, err := p.ModVersions(ctx, req.ProviderModID); err != nil {
		slog.Warn("fetching provider versions failed", "file", name, "provider", req.Provider, "error", err)
	} else if v := matchVersion(versions, version); v != nil {
		entry.FileID = v.FileID
		if entry.InstalledVersion == "" {
			entry.InstalledVersion = v.DisplayName
		}
	}

	if err := registry.Register(m.dir, name, entry); err != nil {
		return nil, err
	}
	slog.Info("mod linked", "file", name, "provider", req.Provider, "provider_mod_id", req.ProviderModID, "file_id", entry.FileID)
	return &entry, nil
}

// matchVersion finds the provider file for an archive version: an exact
// display name first, then a display name or file name containing it.
func matchVersion(versions []provider.Version, version string) *provider.Version {
	if version == "" {
		return nil
	}
	for i := range versions {
		if versions[i].DisplayName == version {
			return &versions[i]
		}
	}
	for i := range versions {
		if strings.Contains(versions[i].DisplayName, version) || strings.Contains(versions[i].FileName, version) {
			return &versions[i]
		}
	}
	return nil
}
