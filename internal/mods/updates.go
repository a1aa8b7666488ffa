package mods

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/registry"
)

const updateConcurrency = 4

// Update describes a newer provider file for an installed archive.
type Update struct {
	FileName         string           `json:"fileName"`
	CurrentVersion   string           `json:"currentVersion"`
	LatestVersion    string           `json:"latestVersion"`
	LatestFileID     string           `json:"latestFileId"`
	Provider         provider.ID      `json:"provider"`
	ProviderModID    string           `json:"providerModId"`
	LatestModVersion provider.Version `json:"latestModVersion"`
	// IsCritical marks a release with a higher major version.
	IsCritical bool `json:"isCritical"`
}

// UpdateReport is the answer of one update check.
type UpdateReport struct {
	Updates   []Update  `json:"updates"`
	CheckedAt time.Time `json:"checkedAt"`
}

// CheckUpdates compares every registered archive with its provider's newest
// file. Entries whose provider is disabled, unconfigured or failing are
// skipped.
func (m *Manager) CheckUpdates(ctx context.Context) *UpdateReport {
	reg := registry.Load(m.dir)
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)

	found := make([]*Update, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(updateConcurrency)
	for i, name := range names {
		g.Go(func() error {
			found[i] = m.checkOne(gctx, name, reg[name])
			return nil
		})
	}
	_ = g.Wait()

	report := &UpdateReport{Updates: []Update{}, CheckedAt: m.now().UTC()}
	for _, u := range found {
		if u != nil {
			report.Updates = append(report.Updates, *u)
		}
	}
	slog.Info("update check complete", "registered", len(names), "updates", len(report.Updates))
	return report
}

func (m *Manager) checkOne(ctx context.Context, name string, entry registry.Entry) *Update {
	p, err := m.adapter(entry.Provider)
	if err != nil {
		slog.Debug("skipping update check", "file", name, "reason", err)
		return nil
	}
	versions, err := p.ModVersions(ctx, entry.ProviderModID)
	if err != nil {
		slog.Warn("update check failed", "file", name, "provider", entry.Provider, "error", err)
		return nil
	}
	latest, latestIdx := latestVersion(versions)
	if latest == nil || !isNewer(entry, versions, latest, latestIdx) {
		return nil
	}

	return &Update{
		FileName:         name,
		CurrentVersion:   entry.InstalledVersion,
		LatestVersion:    latest.DisplayName,
		LatestFileID:     latest.FileID,
		Provider:         entry.Provider,
		ProviderModID:    entry.ProviderModID,
		LatestModVersion: *latest,
		IsCritical:       isCritical(entry.InstalledVersion, latest),
	}
}

func isCritical(installed string, latest *provider.Version) bool {
	if latest.ReleaseType != provider.ReleaseTypeRelease {
		return false
	}
	cur := major(installed)
	return cur >= 0 && major(latest.DisplayName) > cur
}

// latestVersion returns the newest release, or the newest file of any type
// when there is no release. versions are ordered newest first.
func latestVersion(versions []provider.Version) (*provider.Version, int) {
	if len(versions) == 0 {
		return nil, -1
	}
	for i := range versions {
		if versions[i].ReleaseType == provider.ReleaseTypeRelease {
			return &versions[i], i
		}
	}
	return &versions[0], 0
}

// isNewer reports whether latest supersedes the installed entry. File IDs
// decide when known; the installed file's position in the newest-first list
// is compared with latest's. Without a file ID the version strings decide.
func isNewer(entry registry.Entry, versions []provider.Version, latest *provider.Version, latestIdx int) bool {
	if entry.FileID != "" {
		if entry.FileID == latest.FileID {
			return false
		}
		for i := range versions {
			if versions[i].FileID == entry.FileID {
				return i > latestIdx
			}
		}
		return true
	}
	installed := trimVersion(entry.InstalledVersion)
	if installed == "" {
		return false
	}
	return installed != trimVersion(latest.DisplayName)
}

func trimVersion(v string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "v")
}

// major extracts the first number in v, or -1.
func major(v string) int {
	start := strings.IndexFunc(v, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return -1
	}
	end := start
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(v[start:end])
	if err != nil {
		return -1
	}
	return n
}
