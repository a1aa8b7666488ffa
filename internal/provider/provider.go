package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
)

// ID names a mod-hosting provider.
type ID string

const (
	CurseForge ID = "curseforge"
	Modtale    ID = "modtale"
	NexusMods  ID = "nexusmods"
)

// Order is the fixed provider priority used when merging results.
var Order = []ID{CurseForge, Modtale, NexusMods}

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotConfigured   = errors.New("provider not configured")
	ErrNoDownloadURL   = errors.New("download URL not available")
	ErrUntrustedURL    = errors.New("download URL is not on a provider host")
)

// ParseID validates s against the closed provider set.
func ParseID(s string) (ID, error) {
	for _, id := range Order {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Priority returns the merge position of id, or -1 if unknown.
func (id ID) Priority() int {
	for i, o := range Order {
		if o == id {
			return i
		}
	}
	return -1
}

// AuthType describes how a provider authenticates requests.
type AuthType string

const AuthAPIKey AuthType = "api_key"

// SortOrder is the result ordering requested from providers.
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortDownloads SortOrder = "downloads"
	SortUpdated   SortOrder = "updated"
	SortName      SortOrder = "name"
)

// Sorts lists the accepted sort orders.
var Sorts = []SortOrder{SortRelevance, SortDownloads, SortUpdated, SortName}

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// SearchParams is the validated input of a search.
type SearchParams struct {
	Query      string    `json:"query"`
	Providers  []ID      `json:"providers,omitempty"`
	Sort       SortOrder `json:"sort,omitempty"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize,omitempty"`
	Categories []string  `json:"categories,omitempty"`
}

// UnmarshalJSON accepts "limit" as an alias of "pageSize".
func (p *SearchParams) UnmarshalJSON(data []byte) error {
	type plain SearchParams
	aux := struct {
		*plain
		Limit int `json:"limit"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.PageSize == 0 && aux.Limit > 0 {
		p.PageSize = aux.Limit
	}
	return nil
}

// Normalize fills defaults for unset fields.
func (p SearchParams) Normalize() SearchParams {
	if p.Sort == "" {
		p.Sort = SortDownloads
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Wants reports whether id is selected by the params' provider filter.
// An empty filter selects every provider.
func (p SearchParams) Wants(id ID) bool {
	if len(p.Providers) == 0 {
		return true
	}
	for _, want := range p.Providers {
		if want == id {
			return true
		}
	}
	return false
}

// Version identifies one downloadable file of a mod.
type Version struct {
	FileID       string   `json:"fileId"`
	FileName     string   `json:"fileName"`
	DisplayName  string   `json:"displayName"`
	DownloadURL  *string  `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
	ReleaseType  string   `json:"releaseType"`
	FileSize     int64    `json:"fileSize"`
}

// Release types.
const (
	ReleaseTypeRelease = "release"
	ReleaseTypeBeta    = "beta"
	ReleaseTypeAlpha   = "alpha"
)

// Mod is a normalized search hit. Every provider maps to this shape.
type Mod struct {
	ID            string   `json:"id"`
	Provider      ID       `json:"provider"`
	Name          string   `json:"name"`
	Summary       string   `json:"summary"`
	Authors       []string `json:"authors"`
	DownloadCount int64    `json:"downloadCount"`
	Categories    []string `json:"categories"`
	IconURL       *string  `json:"iconUrl"`
	WebsiteURL    string   `json:"websiteUrl"`
	LatestVersion *Version `json:"latestVersion"`
	UpdatedAt     string   `json:"updatedAt"`
}

// Page is one provider's answer to a search.
type Page struct {
	Provider   ID    `json:"provider"`
	Results    []Mod `json:"results"`
	TotalCount int   `json:"totalCount"`
	HasMore    bool  `json:"hasMore"`
}

// Download is an open archive stream. The caller closes Body.
type Download struct {
	FileName string
	Body     io.ReadCloser
}

// Provider searches and downloads mods from one hosting service.
type Provider interface {
	ID() ID
	// Name returns the display name (e.g., "CurseForge").
	Name() string
	AuthType() AuthType
	// RequiresKey reports whether the provider refuses to work without an API key.
	RequiresKey() bool
	// Configure sets up the adapter with API credentials and HTTP client.
	// An empty baseURL keeps the provider's public endpoint.
	Configure(apiKey, baseURL string, client *httpclient.Client)
	Configured() bool

	Search(ctx context.Context, params SearchParams) (*Page, error)
	ModDetails(ctx context.Context, modID string) (*Mod, error)
	ModVersions(ctx context.Context, modID string) ([]Version, error)
	Download(ctx context.Context, v Version) (*Download, error)
}

// Describer is implemented by providers that serve a long description
// separately from the mod details.
type Describer interface {
	ModDescription(ctx context.Context, modID string) (string, error)
}

// CheckDownloadURL returns the parsed URL when its host is one of hosts or a
// subdomain of one. Provider credentials are only sent to such URLs.
func CheckDownloadURL(raw string, hosts ...string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		h = strings.ToLower(h)
		if h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUntrustedURL, host)
}

// Hostname returns the host of rawURL without port, or "" if it does not parse.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
