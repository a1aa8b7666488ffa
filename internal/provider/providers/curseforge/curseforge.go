package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/EditMySave/HyOS-sub001/internal/htmlutil"
	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

const (
	defaultBaseURL = "https://api.curseforge.com/v1"
	hytaleGameID   = 70216
)

var sortFields = map[provider.SortOrder]int{
	provider.SortRelevance: 1,
	provider.SortDownloads: 2,
	provider.SortUpdated:   3,
	provider.SortName:      4,
}

func init() {
	provider.Register(provider.CurseForge, func() provider.Provider { return &CurseForge{} })
}

// CurseForge adapter searches the CurseForge Core API.
type CurseForge struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (c *CurseForge) ID() provider.ID             { return provider.CurseForge }
func (c *CurseForge) Name() string                { return "CurseForge" }
func (c *CurseForge) AuthType() provider.AuthType { return provider.AuthAPIKey }
func (c *CurseForge) RequiresKey() bool           { return true }
func (c *CurseForge) Configured() bool            { return c.apiKey != "" }

// Configure sets up the adapter with API credentials and HTTP client.
func (c *CurseForge) Configure(apiKey, baseURL string, client *httpclient.Client) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c.apiKey = apiKey
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.client = client
}

// CurseForge API response types.
type searchResponse struct {
	Data       []apiMod       `json:"data"`
	Pagination *apiPagination `json:"pagination"`
}

type modResponse struct {
	Data apiMod `json:"data"`
}

type filesResponse struct {
	Data []apiFile `json:"data"`
}

type descriptionResponse struct {
	Data string `json:"data"`
}

type apiPagination struct {
	Index      int `json:"index"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

type apiMod struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Summary       string `json:"summary"`
	DownloadCount int64  `json:"downloadCount"`
	Links         struct {
		WebsiteURL string `json:"websiteUrl"`
	} `json:"links"`
	Categories []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Logo *struct {
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"logo"`
	LatestFiles  []apiFile `json:"latestFiles"`
	DateModified string    `json:"dateModified"`
}

type apiFile struct {
	ID           int      `json:"id"`
	DisplayName  string   `json:"displayName"`
	FileName     string   `json:"fileName"`
	ReleaseType  int      `json:"releaseType"`
	FileLength   int64    `json:"fileLength"`
	DownloadURL  *string  `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
}

func (c *CurseForge) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}

func (c *CurseForge) get(ctx context.Context, path string, out any) error {
	if !c.Configured() {
		return fmt.Errorf("curseforge: %w", provider.ErrNotConfigured)
	}
	resp, err := c.client.Get(ctx, c.baseURL+path, c.headers())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parsing curseforge response: %w", err)
	}
	return nil
}

func (c *CurseForge) Search(ctx context.Context, params provider.SearchParams) (*provider.Page, error) {
	params = params.Normalize()

	q := url.Values{}
	q.Set("gameId", strconv.Itoa(hytaleGameID))
	q.Set("searchFilter", params.Query)
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	q.Set("index", strconv.Itoa(params.Page*params.PageSize))
	q.Set("sortField", strconv.Itoa(sortFields[params.Sort]))
	q.Set("sortOrder", "desc")
	if len(params.Categories) > 0 {
		// The API filters on numeric category ids only.
		if _, err := strconv.Atoi(params.Categories[0]); err == nil {
			q.Set("categoryId", params.Categories[0])
		}
	}

	var sr searchResponse
	if err := c.get(ctx, "/mods/search?"+q.Encode(), &sr); err != nil {
		return nil, fmt.Errorf("curseforge search: %w", err)
	}

	page := &provider.Page{
		Provider:   provider.CurseForge,
		Results:    make([]provider.Mod, 0, len(sr.Data)),
		TotalCount: len(sr.Data),
	}
	for _, m := range sr.Data {
		page.Results = append(page.Results, toMod(m))
	}
	if p := sr.Pagination; p != nil {
		page.TotalCount = p.TotalCount
		page.HasMore = p.Index+p.PageSize < p.TotalCount
	}

	slog.Debug("curseforge search complete", "query", params.Query, "results", len(page.Results), "total", page.TotalCount)
	return page, nil
}

func (c *CurseForge) ModDetails(ctx context.Context, modID string) (*provider.Mod, error) {
	id, err := strconv.Atoi(modID)
	if err != nil {
		return nil, fmt.Errorf("curseforge mod id %q: %w", modID, err)
	}
	var mr modResponse
	if err := c.get(ctx, fmt.Sprintf("/mods/%d", id), &mr); err != nil {
		return nil, fmt.Errorf("curseforge mod %d: %w", id, err)
	}
	m := toMod(mr.Data)
	return &m, nil
}

func (c *CurseForge) ModVersions(ctx context.Context, modID string) ([]provider.Version, error) {
	id, err := strconv.Atoi(modID)
	if err != nil {
		return nil, fmt.Errorf("curseforge mod id %q: %w", modID, err)
	}
	var fr filesResponse
	if err := c.get(ctx, fmt.Sprintf("/mods/%d/files?pageSize=50", id), &fr); err != nil {
		return nil, fmt.Errorf("curseforge files for %d: %w", id, err)
	}
	versions := make([]provider.Version, 0, len(fr.Data))
	for _, f := range fr.Data {
		versions = append(versions, toVersion(f))
	}
	return versions, nil
}

// ModDescription returns the mod's long description flattened to plain text.
func (c *CurseForge) ModDescription(ctx context.Context, modID string) (string, error) {
	id, err := strconv.Atoi(modID)
	if err != nil {
		return "", fmt.Errorf("curseforge mod id %q: %w", modID, err)
	}
	var dr descriptionResponse
	if err := c.get(ctx, fmt.Sprintf("/mods/%d/description", id), &dr); err != nil {
		return "", fmt.Errorf("curseforge description for %d: %w", id, err)
	}
	return htmlutil.Text(dr.Data), nil
}

func (c *CurseForge) Download(ctx context.Context, v provider.Version) (*provider.Download, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("curseforge: %w", provider.ErrNotConfigured)
	}
	if v.DownloadURL == nil || *v.DownloadURL == "" {
		// Authors can opt out of third-party distribution.
		return nil, fmt.Errorf("curseforge file %s: %w", v.FileID, provider.ErrNoDownloadURL)
	}
	u, err := provider.CheckDownloadURL(*v.DownloadURL, "forgecdn.net", "curseforge.com", provider.Hostname(c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("curseforge file %s: %w", v.FileID, err)
	}
	body, err := c.client.Stream(ctx, u.String(), c.headers())
	if err != nil {
		return nil, fmt.Errorf("curseforge download: %w", err)
	}
	return &provider.Download{FileName: v.FileName, Body: body}, nil
}

func toMod(m apiMod) provider.Mod {
	mod := provider.Mod{
		ID:            strconv.Itoa(m.ID),
		Provider:      provider.CurseForge,
		Name:          m.Name,
		Summary:       m.Summary,
		Authors:       make([]string, 0, len(m.Authors)),
		DownloadCount: m.DownloadCount,
		Categories:    make([]string, 0, len(m.Categories)),
		WebsiteURL:    m.Links.WebsiteURL,
		UpdatedAt:     m.DateModified,
	}
	for _, a := range m.Authors {
		mod.Authors = append(mod.Authors, a.Name)
	}
	for _, cat := range m.Categories {
		mod.Categories = append(mod.Categories, cat.Name)
	}
	if m.Logo != nil {
		mod.IconURL = provider.StrPtr(m.Logo.ThumbnailURL)
	}
	if f := latestFile(m.LatestFiles); f != nil {
		v := toVersion(*f)
		mod.LatestVersion = &v
	}
	return mod
}

// latestFile prefers the first release-type file, then any file.
func latestFile(files []apiFile) *apiFile {
	for i := range files {
		if files[i].ReleaseType == 1 {
			return &files[i]
		}
	}
	if len(files) > 0 {
		return &files[0]
	}
	return nil
}

func toVersion(f apiFile) provider.Version {
	gameVersions := f.GameVersions
	if gameVersions == nil {
		gameVersions = []string{}
	}
	return provider.Version{
		FileID:       strconv.Itoa(f.ID),
		FileName:     f.FileName,
		DisplayName:  f.DisplayName,
		DownloadURL:  f.DownloadURL,
		GameVersions: gameVersions,
		ReleaseType:  releaseType(f.ReleaseType),
		FileSize:     f.FileLength,
	}
}

func releaseType(n int) string {
	switch n {
	case 1:
		return provider.ReleaseTypeRelease
	case 2:
		return provider.ReleaseTypeBeta
	default:
		return provider.ReleaseTypeAlpha
	}
}
