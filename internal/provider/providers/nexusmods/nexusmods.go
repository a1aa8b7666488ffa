package nexusmods

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EditMySave/HyOS-sub001/internal/htmlutil"
	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

const (
	defaultBaseURL = "https://api.nexusmods.com/v1"
	gameDomain     = "hytale"

	// The public API has no search endpoint. Search scans the mods updated
	// in the last month instead.
	maxModsToFetch     = 50
	detailsConcurrency = 5

	placeholderName = "Unknown Mod"
	maxSummary      = 300
)

func init() {
	provider.Register(provider.NexusMods, func() provider.Provider { return &NexusMods{} })
}

// NexusMods adapter searches recently updated Hytale mods on Nexus Mods.
type NexusMods struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (n *NexusMods) ID() provider.ID             { return provider.NexusMods }
func (n *NexusMods) Name() string                { return "NexusMods" }
func (n *NexusMods) AuthType() provider.AuthType { return provider.AuthAPIKey }
func (n *NexusMods) RequiresKey() bool           { return true }
func (n *NexusMods) Configured() bool            { return n.apiKey != "" }

// Configure sets up the adapter with API credentials and HTTP client.
func (n *NexusMods) Configure(apiKey, baseURL string, client *httpclient.Client) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	n.apiKey = apiKey
	n.baseURL = strings.TrimRight(baseURL, "/")
	n.client = client
}

// Nexus Mods API response types.
type apiMod struct {
	ModID            int     `json:"mod_id"`
	DomainName       string  `json:"domain_name"`
	Name             *string `json:"name"`
	Summary          string  `json:"summary"`
	Version          string  `json:"version"`
	Author           string  `json:"author"`
	PictureURL       *string `json:"picture_url"`
	ModDownloads     int64   `json:"mod_downloads"`
	UpdatedTimestamp int64   `json:"updated_timestamp"`
}

type apiFile struct {
	FileID       int     `json:"file_id"`
	Name         string  `json:"name"`
	FileName     string  `json:"file_name"`
	ModVersion   string  `json:"mod_version"`
	CategoryName *string `json:"category_name"`
	SizeKB       int64   `json:"size_kb"`
}

type filesResponse struct {
	Files []apiFile `json:"files"`
}

type downloadLink struct {
	Name string `json:"name"`
	URI  string `json:"URI"`
}

// updatedEntry accepts both {"mod_id": n} objects and bare ids.
type updatedEntry struct {
	ModID int `json:"mod_id"`
}

func (u *updatedEntry) UnmarshalJSON(data []byte) error {
	if id, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		u.ModID = id
		return nil
	}
	type plain updatedEntry
	return json.Unmarshal(data, (*plain)(u))
}

func parseUpdated(data []byte) ([]updatedEntry, error) {
	var list []updatedEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Updates []updatedEntry `json:"updates"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing updated mods: %w", err)
	}
	return wrapped.Updates, nil
}

func (n *NexusMods) headers() map[string]string {
	return map[string]string{"apikey": n.apiKey}
}

func (n *NexusMods) get(ctx context.Context, path string, out any) error {
	if !n.Configured() {
		return fmt.Errorf("nexusmods: %w", provider.ErrNotConfigured)
	}
	resp, err := n.client.Get(ctx, n.baseURL+path, n.headers())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parsing nexusmods response: %w", err)
	}
	return nil
}

func (n *NexusMods) Search(ctx context.Context, params provider.SearchParams) (*provider.Page, error) {
	params = params.Normalize()

	mods, err := n.recentMods(ctx)
	if err != nil {
		return nil, fmt.Errorf("nexusmods search: %w", err)
	}
	mods = filterMods(mods, params.Query)

	start := min(params.Page*params.PageSize, len(mods))
	end := min(start+params.PageSize, len(mods))

	page := &provider.Page{
		Provider:   provider.NexusMods,
		Results:    make([]provider.Mod, 0, end-start),
		TotalCount: len(mods),
		HasMore:    start+params.PageSize < len(mods),
	}
	for _, m := range mods[start:end] {
		page.Results = append(page.Results, toMod(m))
	}

	slog.Debug("nexusmods search complete", "query", params.Query, "scanned", len(mods), "results", len(page.Results))
	return page, nil
}

// recentMods lists mods updated in the last month and fetches their details.
// Mods whose details fail upstream are skipped. Running out of time or rate
// limit fails the whole search so the caller reports it.
func (n *NexusMods) recentMods(ctx context.Context) ([]apiMod, error) {
	if !n.Configured() {
		return nil, provider.ErrNotConfigured
	}
	resp, err := n.client.Get(ctx, n.baseURL+"/games/"+gameDomain+"/mods/updated.json?period=1m", n.headers())
	if err != nil {
		return nil, err
	}
	updates, err := parseUpdated(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(updates) > maxModsToFetch {
		updates = updates[:maxModsToFetch]
	}

	seen := make(map[int]bool, len(updates))
	var ids []int
	for _, u := range updates {
		if !seen[u.ModID] {
			seen[u.ModID] = true
			ids = append(ids, u.ModID)
		}
	}

	details := make([]*apiMod, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			m, err := n.modDetails(gctx, id)
			if err != nil {
				if errors.Is(err, httpclient.ErrRateLimited) || gctx.Err() != nil {
					return fmt.Errorf("mod %d details: %w", id, err)
				}
				slog.Warn("nexusmods mod details failed, skipping", "mod_id", id, "error", err)
				return nil
			}
			details[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mods := make([]apiMod, 0, len(ids))
	for _, m := range details {
		if m == nil || m.Name == nil || *m.Name == placeholderName {
			continue
		}
		mods = append(mods, *m)
	}
	return mods, nil
}

func filterMods(mods []apiMod, query string) []apiMod {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return mods
	}
	var out []apiMod
	for _, m := range mods {
		if strings.Contains(strings.ToLower(*m.Name), query) || strings.Contains(strings.ToLower(m.Summary), query) {
			out = append(out, m)
		}
	}
	return out
}

func (n *NexusMods) modDetails(ctx context.Context, id int) (*apiMod, error) {
	var m apiMod
	if err := n.get(ctx, fmt.Sprintf("/games/%s/mods/%d.json", gameDomain, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (n *NexusMods) ModDetails(ctx context.Context, modID string) (*provider.Mod, error) {
	id, err := strconv.Atoi(modID)
	if err != nil {
		return nil, fmt.Errorf("nexusmods mod id %q: %w", modID, err)
	}
	m, err := n.modDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("nexusmods mod %d: %w", id, err)
	}
	mod := toMod(*m)
	return &mod, nil
}

func (n *NexusMods) ModVersions(ctx context.Context, modID string) ([]provider.Version, error) {
	id, err := strconv.Atoi(modID)
	if err != nil {
		return nil, fmt.Errorf("nexusmods mod id %q: %w", modID, err)
	}
	files, err := n.files(ctx, id)
	if err != nil {
		return nil, err
	}
	versions := make([]provider.Version, 0, len(files))
	for _, f := range files {
		versions = append(versions, toVersion(f, id))
	}
	return versions, nil
}

// Download resolves a CDN link for the "modId-fileId" version and streams it.
// Non-premium accounts may be refused a link by the API.
func (n *NexusMods) Download(ctx context.Context, v provider.Version) (*provider.Download, error) {
	modID, fileID, err := splitFileID(v.FileID)
	if err != nil {
		return nil, err
	}
	fileName := v.FileName
	if fileID == 0 {
		f, err := n.mainFile(ctx, modID)
		if err != nil {
			return nil, err
		}
		fileID, fileName = f.FileID, f.FileName
	}

	var links []downloadLink
	path := fmt.Sprintf("/games/%s/mods/%d/files/%d/download_link.json", gameDomain, modID, fileID)
	if err := n.get(ctx, path, &links); err != nil {
		return nil, fmt.Errorf("nexusmods download link: %w", err)
	}
	if len(links) == 0 || links[0].URI == "" {
		return nil, fmt.Errorf("nexusmods file %s: %w", v.FileID, provider.ErrNoDownloadURL)
	}

	body, err := n.client.Stream(ctx, links[0].URI, n.headers())
	if err != nil {
		return nil, fmt.Errorf("nexusmods download: %w", err)
	}
	return &provider.Download{FileName: fileName, Body: body}, nil
}

func (n *NexusMods) files(ctx context.Context, modID int) ([]apiFile, error) {
	var fr filesResponse
	if err := n.get(ctx, fmt.Sprintf("/games/%s/mods/%d/files.json", gameDomain, modID), &fr); err != nil {
		return nil, fmt.Errorf("nexusmods files for %d: %w", modID, err)
	}
	return fr.Files, nil
}

// mainFile picks the newest MAIN file of a mod, or the newest file when no
// file is marked MAIN.
func (n *NexusMods) mainFile(ctx context.Context, modID int) (*apiFile, error) {
	files, err := n.files(ctx, modID)
	if err != nil {
		return nil, err
	}
	var best, newest *apiFile
	for i := range files {
		f := &files[i]
		if newest == nil || f.FileID > newest.FileID {
			newest = f
		}
		if f.CategoryName != nil && *f.CategoryName == "MAIN" && (best == nil || f.FileID > best.FileID) {
			best = f
		}
	}
	if best == nil {
		best = newest
	}
	if best == nil {
		return nil, fmt.Errorf("nexusmods mod %d has no files: %w", modID, provider.ErrNoDownloadURL)
	}
	return best, nil
}

func splitFileID(s string) (modID, fileID int, err error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("nexusmods file id %q: want modId-fileId", s)
	}
	if modID, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("nexusmods file id %q: %w", s, err)
	}
	if fileID, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("nexusmods file id %q: %w", s, err)
	}
	return modID, fileID, nil
}

func toMod(m apiMod) provider.Mod {
	domain := m.DomainName
	if domain == "" {
		domain = gameDomain
	}
	name := placeholderName
	if m.Name != nil {
		name = *m.Name
	}
	author := m.Author
	if author == "" {
		author = "Unknown"
	}
	display := m.Version
	if display == "" {
		display = "Latest"
	}

	// Search results carry no file list. File id 0 stands for the newest
	// main file; Download resolves it through the mod's file list.
	latest := &provider.Version{
		FileID:       fmt.Sprintf("%d-0", m.ModID),
		FileName:     "mod.jar",
		DisplayName:  display,
		GameVersions: []string{},
		ReleaseType:  provider.ReleaseTypeRelease,
	}

	icon := m.PictureURL
	if icon == nil {
		if src := htmlutil.FirstImage(m.Summary); src != "" {
			icon = &src
		}
	}

	return provider.Mod{
		ID:            strconv.Itoa(m.ModID),
		Provider:      provider.NexusMods,
		Name:          name,
		Summary:       htmlutil.Truncate(htmlutil.Text(m.Summary), maxSummary),
		Authors:       []string{author},
		DownloadCount: m.ModDownloads,
		Categories:    []string{},
		IconURL:       icon,
		WebsiteURL:    fmt.Sprintf("https://www.nexusmods.com/%s/mods/%d", domain, m.ModID),
		LatestVersion: latest,
		UpdatedAt:     time.Unix(m.UpdatedTimestamp, 0).UTC().Format(time.RFC3339),
	}
}

func toVersion(f apiFile, modID int) provider.Version {
	rt := provider.ReleaseTypeBeta
	if f.CategoryName != nil && *f.CategoryName == "MAIN" {
		rt = provider.ReleaseTypeRelease
	}
	gameVersions := []string{}
	if f.ModVersion != "" {
		gameVersions = append(gameVersions, f.ModVersion)
	}
	return provider.Version{
		FileID:       fmt.Sprintf("%d-%d", modID, f.FileID),
		FileName:     f.FileName,
		DisplayName:  f.Name,
		GameVersions: gameVersions,
		ReleaseType:  rt,
		FileSize:     f.SizeKB * 1024,
	}
}
