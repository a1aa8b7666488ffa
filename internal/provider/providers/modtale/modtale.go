package modtale

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

const (
	defaultBaseURL = "https://api.modtale.net/api/v1"
	cdnBaseURL     = "https://cdn.modtale.net/"
	siteBaseURL    = "https://modtale.net/project/"
)

func init() {
	provider.Register(provider.Modtale, func() provider.Provider { return &Modtale{} })
}

// Modtale adapter searches the Modtale project index. An API key raises
// rate limits but is not required.
type Modtale struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (m *Modtale) ID() provider.ID             { return provider.Modtale }
func (m *Modtale) Name() string                { return "Modtale" }
func (m *Modtale) AuthType() provider.AuthType { return provider.AuthAPIKey }
func (m *Modtale) RequiresKey() bool           { return false }
func (m *Modtale) Configured() bool            { return true }

// Configure sets up the adapter with API credentials and HTTP client.
func (m *Modtale) Configure(apiKey, baseURL string, client *httpclient.Client) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	m.apiKey = apiKey
	m.baseURL = strings.TrimRight(baseURL, "/")
	m.client = client
}

// Modtale API response types. List items come in a summary or a full shape,
// so most fields are optional.
type pageResponse struct {
	Content       []apiProject `json:"content"`
	TotalPages    int          `json:"totalPages"`
	TotalElements int          `json:"totalElements"`
}

type apiProject struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Slug          *string      `json:"slug"`
	Author        string       `json:"author"`
	Description   *string      `json:"description"`
	ImageURL      *string      `json:"imageUrl"`
	Downloads     *int64       `json:"downloads"`
	DownloadCount *int64       `json:"downloadCount"`
	Tags          []string     `json:"tags"`
	Categories    []string     `json:"categories"`
	UpdatedAt     string       `json:"updatedAt"`
	Versions      []apiVersion `json:"versions"`
}

type apiVersion struct {
	ID                string   `json:"id"`
	VersionNumber     string   `json:"versionNumber"`
	FileURL           string   `json:"fileUrl"`
	DownloadURL       string   `json:"downloadUrl"`
	DownloadCount     int64    `json:"downloadCount"`
	Channel           string   `json:"channel"`
	SupportedVersions []string `json:"supportedVersions"`
}

func (m *Modtale) headers() map[string]string {
	if m.apiKey == "" {
		return nil
	}
	return map[string]string{"X-MODTALE-KEY": m.apiKey}
}

func (m *Modtale) get(ctx context.Context, p string, out any) error {
	resp, err := m.client.Get(ctx, m.baseURL+p, m.headers())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parsing modtale response: %w", err)
	}
	return nil
}

func (m *Modtale) Search(ctx context.Context, params provider.SearchParams) (*provider.Page, error) {
	params = params.Normalize()

	q := url.Values{}
	q.Set("search", params.Query)
	q.Set("sort", string(params.Sort))
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("size", strconv.Itoa(params.PageSize))
	if len(params.Categories) > 0 {
		q.Set("tags", strings.Join(params.Categories, ","))
	}

	var pr pageResponse
	if err := m.get(ctx, "/projects?"+q.Encode(), &pr); err != nil {
		return nil, fmt.Errorf("modtale search: %w", err)
	}

	page := &provider.Page{
		Provider:   provider.Modtale,
		Results:    make([]provider.Mod, 0, len(pr.Content)),
		TotalCount: pr.TotalElements,
		HasMore:    pr.TotalPages > 0 && params.Page+1 < pr.TotalPages,
	}
	for _, p := range pr.Content {
		page.Results = append(page.Results, toMod(p))
	}

	slog.Debug("modtale search complete", "query", params.Query, "results", len(page.Results), "total", page.TotalCount)
	return page, nil
}

func (m *Modtale) project(ctx context.Context, modID string) (*apiProject, error) {
	var p apiProject
	if err := m.get(ctx, "/projects/"+url.PathEscape(modID), &p); err != nil {
		return nil, fmt.Errorf("modtale project %s: %w", modID, err)
	}
	return &p, nil
}

func (m *Modtale) ModDetails(ctx context.Context, modID string) (*provider.Mod, error) {
	p, err := m.project(ctx, modID)
	if err != nil {
		return nil, err
	}
	mod := toMod(*p)
	return &mod, nil
}

func (m *Modtale) ModVersions(ctx context.Context, modID string) ([]provider.Version, error) {
	p, err := m.project(ctx, modID)
	if err != nil {
		return nil, err
	}
	versions := make([]provider.Version, 0, len(p.Versions))
	for _, v := range p.Versions {
		versions = append(versions, toVersion(v))
	}
	return versions, nil
}

func (m *Modtale) Download(ctx context.Context, v provider.Version) (*provider.Download, error) {
	if v.DownloadURL == nil || *v.DownloadURL == "" {
		return nil, fmt.Errorf("modtale version %s: %w", v.FileID, provider.ErrNoDownloadURL)
	}
	u, err := provider.CheckDownloadURL(resolveFileURL(*v.DownloadURL), "modtale.net", provider.Hostname(m.baseURL))
	if err != nil {
		return nil, fmt.Errorf("modtale version %s: %w", v.FileID, err)
	}
	body, err := m.client.Stream(ctx, u.String(), m.headers())
	if err != nil {
		return nil, fmt.Errorf("modtale download: %w", err)
	}
	return &provider.Download{FileName: v.FileName, Body: body}, nil
}

func toMod(p apiProject) provider.Mod {
	mod := provider.Mod{
		ID:         p.ID,
		Provider:   provider.Modtale,
		Name:       p.Title,
		Authors:    []string{p.Author},
		Categories: p.Tags,
		IconURL:    p.ImageURL,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.Description != nil {
		mod.Summary = *p.Description
	}
	if mod.Categories == nil {
		mod.Categories = p.Categories
	}
	if mod.Categories == nil {
		mod.Categories = []string{}
	}

	switch {
	case p.Downloads != nil:
		mod.DownloadCount = *p.Downloads
	case p.DownloadCount != nil:
		mod.DownloadCount = *p.DownloadCount
	default:
		for _, v := range p.Versions {
			mod.DownloadCount += v.DownloadCount
		}
	}

	slug := p.ID
	if p.Slug != nil && *p.Slug != "" {
		slug = *p.Slug
	}
	mod.WebsiteURL = siteBaseURL + slug

	if len(p.Versions) > 0 {
		v := toVersion(p.Versions[0])
		mod.LatestVersion = &v
	}
	return mod
}

func toVersion(v apiVersion) provider.Version {
	fileURL := v.FileURL
	if fileURL == "" {
		fileURL = v.DownloadURL
	}

	fileName := v.VersionNumber + ".jar"
	var downloadURL *string
	if fileURL != "" {
		if base := path.Base(fileURL); base != "." && base != "/" {
			fileName = base
		}
		u := resolveFileURL(fileURL)
		downloadURL = &u
	}

	gameVersions := v.SupportedVersions
	if gameVersions == nil {
		gameVersions = []string{}
	}

	return provider.Version{
		FileID:       v.ID,
		FileName:     fileName,
		DisplayName:  v.VersionNumber,
		DownloadURL:  downloadURL,
		GameVersions: gameVersions,
		ReleaseType:  releaseType(v.Channel),
	}
}

func releaseType(channel string) string {
	switch channel {
	case "BETA":
		return provider.ReleaseTypeBeta
	case "ALPHA":
		return provider.ReleaseTypeAlpha
	default:
		return provider.ReleaseTypeRelease
	}
}

// resolveFileURL makes CDN-relative paths absolute.
func resolveFileURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return cdnBaseURL + strings.TrimLeft(u, "/")
}
