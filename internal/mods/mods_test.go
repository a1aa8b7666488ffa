package mods

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/jar"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/registry"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
)

func jarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeJar(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, jarBytes(t, files), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func contentOnly(version string) map[string]string {
	return map[string]string{
		"manifest.json":               `{"Group":"acme","Name":"Blocks","Version":"` + version + `"}`,
		"Server/Item/Items/block.json": `{}`,
	}
}

type fakeProvider struct {
	id          provider.ID
	key         string
	requiresKey bool
	versions    []provider.Version
	versionsErr error
	payload     []byte
	fileName    string

	// When set, Download streams from url through client.
	client *httpclient.Client
	url    string
}

func (f *fakeProvider) ID() provider.ID                               { return f.id }
func (f *fakeProvider) Name() string                                  { return string(f.id) }
func (f *fakeProvider) AuthType() provider.AuthType                   { return provider.AuthAPIKey }
func (f *fakeProvider) RequiresKey() bool                             { return f.requiresKey }
func (f *fakeProvider) Configured() bool                              { return f.key != "" }
func (f *fakeProvider) Configure(key, _ string, _ *httpclient.Client) { f.key = key }

func (f *fakeProvider) Search(context.Context, provider.SearchParams) (*provider.Page, error) {
	return &provider.Page{Provider: f.id}, nil
}

func (f *fakeProvider) ModDetails(_ context.Context, modID string) (*provider.Mod, error) {
	return &provider.Mod{ID: modID, Provider: f.id, Name: "Mod " + modID}, nil
}

func (f *fakeProvider) ModVersions(context.Context, string) ([]provider.Version, error) {
	return f.versions, f.versionsErr
}

func (f *fakeProvider) Download(ctx context.Context, v provider.Version) (*provider.Download, error) {
	name := f.fileName
	if name == "" {
		name = v.FileName
	}
	if f.url != "" {
		body, err := f.client.Stream(ctx, f.url, nil)
		if err != nil {
			return nil, err
		}
		return &provider.Download{FileName: name, Body: body}, nil
	}
	return &provider.Download{FileName: name, Body: io.NopCloser(bytes.NewReader(f.payload))}, nil
}

type fakeResolver map[provider.ID]*fakeProvider

func (r fakeResolver) Resolve(id provider.ID, key string) (provider.Provider, error) {
	p, ok := r[id]
	if !ok {
		return nil, provider.ErrUnknownProvider
	}
	cp := *p
	cp.Configure(key, "", nil)
	return &cp, nil
}

type staticSettings settings.Settings

func (s staticSettings) Effective() settings.Settings { return settings.Settings(s) }

func key(s string) *string { return &s }

func newTestManager(t *testing.T, r fakeResolver, st settings.Settings) *Manager {
	t.Helper()
	if st == nil {
		st = settings.Defaults()
	}
	m := NewManager(t.TempDir(), r, staticSettings(st))
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestListMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"), fakeResolver{}, staticSettings(settings.Defaults()))
	mods, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if mods == nil || len(mods) != 0 {
		t.Errorf("List = %v, want empty non-nil", mods)
	}
}

func TestList(t *testing.T) {
	m := newTestManager(t, nil, nil)
	writeJar(t, m.Dir(), "zeta.jar", contentOnly("1.0"))
	writeJar(t, m.Dir(), "alpha.jar", contentOnly("2.0"))
	os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(m.Dir(), "broken.jar"), []byte("not a zip"), 0o644)
	os.Mkdir(filepath.Join(m.Dir(), "dir.jar"), 0o755)

	if err := registry.Register(m.Dir(), "alpha.jar", registry.Entry{Provider: provider.Modtale, ProviderModID: "p1"}); err != nil {
		t.Fatal(err)
	}

	mods, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	var names []string
	for _, mod := range mods {
		names = append(names, mod.Name)
	}
	// broken.jar is listed without inspection results.
	want := []string{"alpha.jar", "broken.jar", "zeta.jar"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}

	alpha := mods[0]
	if alpha.ID != "alpha" {
		t.Errorf("ID = %q, want alpha", alpha.ID)
	}
	if !alpha.NeedsPatch || alpha.IsPatched {
		t.Errorf("alpha needsPatch=%v isPatched=%v, want true/false", alpha.NeedsPatch, alpha.IsPatched)
	}
	if alpha.ManifestInfo == nil || alpha.ManifestInfo.Version != "2.0" {
		t.Errorf("ManifestInfo = %+v, want version 2.0", alpha.ManifestInfo)
	}
	if len(alpha.Fingerprint) != 64 {
		t.Errorf("Fingerprint = %q, want 64 hex chars", alpha.Fingerprint)
	}
	if alpha.Registry == nil || alpha.Registry.ProviderModID != "p1" {
		t.Errorf("Registry = %+v, want providerModId p1", alpha.Registry)
	}
	if mods[1].ManifestInfo != nil {
		t.Errorf("broken.jar ManifestInfo = %+v, want nil", mods[1].ManifestInfo)
	}
	if mods[2].Registry != nil {
		t.Errorf("zeta.jar Registry = %+v, want nil", mods[2].Registry)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t, nil, nil)
	writeJar(t, m.Dir(), "gone.jar", contentOnly("1.0"))
	registry.Register(m.Dir(), "gone.jar", registry.Entry{Provider: provider.CurseForge})
	registry.Register(m.Dir(), "kept.jar", registry.Entry{Provider: provider.CurseForge})

	if err := m.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "gone.jar")); !os.IsNotExist(err) {
		t.Errorf("archive still present: %v", err)
	}
	reg := registry.Load(m.Dir())
	if _, ok := reg["gone.jar"]; ok {
		t.Error("registry entry not removed")
	}
	if _, ok := reg["kept.jar"]; !ok {
		t.Error("unrelated registry entry removed")
	}

	if err := m.Delete("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteStaysInDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "mods")
	os.Mkdir(dir, 0o755)
	outside := writeJar(t, root, "outside.jar", contentOnly("1"))

	m := NewManager(dir, fakeResolver{}, staticSettings(settings.Defaults()))
	if err := m.Delete("../outside"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(../outside) = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside mods dir touched: %v", err)
	}
}

func TestDeleteDirectory(t *testing.T) {
	m := newTestManager(t, nil, nil)
	os.Mkdir(filepath.Join(m.Dir(), "folder.jar"), 0o755)
	if err := m.Delete("folder"); !errors.Is(err, ErrNotAFile) {
		t.Errorf("Delete(folder) = %v, want ErrNotAFile", err)
	}
}

func TestPatch(t *testing.T) {
	m := newTestManager(t, nil, nil)
	writeJar(t, m.Dir(), "content.jar", contentOnly("1.0"))

	mod, err := m.Patch("content")
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if !mod.IsPatched || mod.NeedsPatch {
		t.Errorf("after patch isPatched=%v needsPatch=%v", mod.IsPatched, mod.NeedsPatch)
	}

	if _, err := m.Patch("content"); !errors.Is(err, jar.ErrAlreadyPatched) {
		t.Errorf("second Patch = %v, want ErrAlreadyPatched", err)
	}
	if _, err := m.Patch("missing"); !errors.Is(err, jar.ErrNotFound) {
		t.Errorf("Patch(missing) = %v, want jar.ErrNotFound", err)
	}
}

func TestToggle(t *testing.T) {
	m := newTestManager(t, nil, nil)
	writeJar(t, m.Dir(), "mod.jar", contentOnly("1.0"))
	disabled := filepath.Join(m.Dir(), DisabledDir, "mod.jar")

	if err := m.Toggle("mod", false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if _, err := os.Stat(disabled); err != nil {
		t.Fatalf("archive not in %s: %v", DisabledDir, err)
	}
	if names, _ := m.Disabled(); len(names) != 1 || names[0] != "mod.jar" {
		t.Errorf("Disabled = %v, want [mod.jar]", names)
	}
	if err := m.Toggle("mod", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("disable twice = %v, want ErrNotFound", err)
	}

	// A fresh copy in the active dir blocks re-enabling.
	writeJar(t, m.Dir(), "mod.jar", contentOnly("2.0"))
	if err := m.Toggle("mod", true); !errors.Is(err, ErrConflict) {
		t.Errorf("enable over existing = %v, want ErrConflict", err)
	}

	os.Remove(filepath.Join(m.Dir(), "mod.jar"))
	if err := m.Toggle("mod", true); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "mod.jar")); err != nil {
		t.Errorf("archive not restored: %v", err)
	}
}

func TestUpload(t *testing.T) {
	m := newTestManager(t, nil, nil)
	data := jarBytes(t, contentOnly("1.0"))

	if _, _, err := m.Upload("readme.txt", bytes.NewReader(data)); !errors.Is(err, ErrNotArchive) {
		t.Errorf("Upload(readme.txt) = %v, want ErrNotArchive", err)
	}

	mod, replaced, err := m.Upload("../../Upload.JAR", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if replaced {
		t.Error("first upload reported replaced")
	}
	if mod.Path != filepath.Join(m.Dir(), "Upload.JAR") {
		t.Errorf("Path = %q, want inside mods dir", mod.Path)
	}
	if mod.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", mod.Size, len(data))
	}

	_, replaced, err = m.Upload("Upload.JAR", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("second Upload failed: %v", err)
	}
	if !replaced {
		t.Error("second upload should report replaced")
	}
}

func enabled(ids ...provider.ID) settings.Settings {
	st := settings.Defaults()
	for _, id := range ids {
		st[id] = settings.Provider{Enabled: true, APIKey: key("k-" + string(id))}
	}
	return st
}

func TestInstall(t *testing.T) {
	payload := jarBytes(t, contentOnly("1.4.0"))
	r := fakeResolver{provider.CurseForge: {id: provider.CurseForge, requiresKey: true, payload: payload, fileName: "blocks-1.4.0"}}
	m := newTestManager(t, r, enabled(provider.CurseForge))
	writeJar(t, m.Dir(), "blocks-1.3.0.jar", contentOnly("1.3.0"))
	registry.Register(m.Dir(), "blocks-1.3.0.jar", registry.Entry{Provider: provider.CurseForge, ProviderModID: "77"})

	mod, err := m.Install(context.Background(), InstallRequest{
		Provider: provider.CurseForge,
		Version:  provider.Version{FileID: "501", DisplayName: "Blocks 1.4.0"},
		Mod:      &ModInfo{ID: "77", Authors: []string{"acme"}, WebsiteURL: "https://example.com/blocks"},
		Replaces: "blocks-1.3.0.jar",
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if mod.FileName != "blocks-1.4.0.jar" {
		t.Errorf("FileName = %q, want blocks-1.4.0.jar", mod.FileName)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "blocks-1.3.0.jar")); !os.IsNotExist(err) {
		t.Error("replaced archive still present")
	}

	reg := registry.Load(m.Dir())
	entry, ok := reg["blocks-1.4.0.jar"]
	if !ok {
		t.Fatalf("registry = %v, want entry for blocks-1.4.0.jar", reg)
	}
	if entry.FileID != "501" || entry.ProviderModID != "77" || entry.InstalledVersion != "Blocks 1.4.0" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.InstalledAt.Equal(m.now()) {
		t.Errorf("InstalledAt = %v, want %v", entry.InstalledAt, m.now())
	}
	if _, ok := reg["blocks-1.3.0.jar"]; ok {
		t.Error("replaced archive still registered")
	}
}

func TestInstallCarriesLink(t *testing.T) {
	payload := jarBytes(t, contentOnly("1.4.0"))
	r := fakeResolver{provider.CurseForge: {id: provider.CurseForge, requiresKey: true, payload: payload}}
	m := newTestManager(t, r, enabled(provider.CurseForge))
	writeJar(t, m.Dir(), "blocks-1.3.0.jar", contentOnly("1.3.0"))
	registry.Register(m.Dir(), "blocks-1.3.0.jar", registry.Entry{Provider: provider.CurseForge, ProviderModID: "77", FileID: "400", Authors: []string{"acme"}})

	_, err := m.Install(context.Background(), InstallRequest{
		Provider: provider.CurseForge,
		Version:  provider.Version{FileID: "501", FileName: "blocks-1.4.0.jar", DisplayName: "1.4.0"},
		Replaces: "blocks-1.3.0.jar",
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	reg := registry.Load(m.Dir())
	entry, ok := reg["blocks-1.4.0.jar"]
	if !ok {
		t.Fatalf("registry = %v, want entry for blocks-1.4.0.jar", reg)
	}
	if entry.ProviderModID != "77" || entry.FileID != "501" || entry.InstalledVersion != "1.4.0" {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Authors) != 1 || entry.Authors[0] != "acme" {
		t.Errorf("Authors = %v, want carried over", entry.Authors)
	}
	if _, ok := reg["blocks-1.3.0.jar"]; ok {
		t.Error("replaced archive still registered")
	}
}

func TestInstallSlowDownload(t *testing.T) {
	payload := jarBytes(t, contentOnly("1.0.0"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := len(payload)/4 + 1
		for off := 0; off < len(payload); off += chunk {
			w.Write(payload[off:min(off+chunk, len(payload))])
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithTimeout(60 * time.Millisecond))
	r := fakeResolver{provider.Modtale: {id: provider.Modtale, client: client, url: srv.URL}}
	m := newTestManager(t, r, enabled(provider.Modtale))

	mod, err := m.Install(context.Background(), InstallRequest{
		Provider: provider.Modtale,
		Version:  provider.Version{FileID: "v1", FileName: "slow.jar"},
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if mod.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", mod.Size, len(payload))
	}
}

func TestRegistryFailureDoesNotFailOperation(t *testing.T) {
	payload := jarBytes(t, contentOnly("1.0.0"))
	r := fakeResolver{provider.CurseForge: {id: provider.CurseForge, requiresKey: true, payload: payload}}
	m := newTestManager(t, r, enabled(provider.CurseForge))
	writeJar(t, m.Dir(), "blocks.jar", contentOnly("1.0.0"))
	if err := os.Mkdir(registry.Path(m.Dir()), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete("blocks.jar"); err != nil {
		t.Fatalf("Delete = %v, want nil", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "blocks.jar")); !os.IsNotExist(err) {
		t.Error("archive still present after delete")
	}

	mod, err := m.Install(context.Background(), InstallRequest{
		Provider: provider.CurseForge,
		Version:  provider.Version{FileID: "9", FileName: "walls.jar", DisplayName: "1.0.0"},
		Mod:      &ModInfo{ID: "42"},
	})
	if err != nil {
		t.Fatalf("Install = %v, want nil", err)
	}
	if mod == nil || mod.FileName != "walls.jar" {
		t.Fatalf("Install returned %+v", mod)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "walls.jar")); err != nil {
		t.Errorf("installed archive missing: %v", err)
	}
}

func TestInstallUnconfigured(t *testing.T) {
	r := fakeResolver{provider.NexusMods: {id: provider.NexusMods, requiresKey: true}}

	tests := []struct {
		name string
		st   settings.Settings
	}{
		{"disabled", settings.Defaults()},
		{"no key", settings.Settings{provider.NexusMods: {Enabled: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, r, tt.st)
			_, err := m.Install(context.Background(), InstallRequest{Provider: provider.NexusMods, Version: provider.Version{FileID: "1", FileName: "a.jar"}})
			if !errors.Is(err, provider.ErrNotConfigured) {
				t.Errorf("Install = %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestLink(t *testing.T) {
	r := fakeResolver{provider.Modtale: {id: provider.Modtale, versions: []provider.Version{
		{FileID: "v3", DisplayName: "2.1.0", FileName: "blocks-2.1.0.jar"},
		{FileID: "v2", DisplayName: "Blocks 2.0.0", FileName: "blocks-2.0.0.jar"},
		{FileID: "v1", DisplayName: "1.0.0", FileName: "blocks-1.0.0.jar"},
	}}}
	m := newTestManager(t, r, enabled(provider.Modtale))
	writeJar(t, m.Dir(), "blocks.jar", contentOnly("2.0.0"))

	entry, err := m.Link(context.Background(), "blocks", LinkRequest{Provider: provider.Modtale, ProviderModID: "proj-1"})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if entry.FileID != "v2" {
		t.Errorf("FileID = %q, want v2", entry.FileID)
	}
	if entry.InstalledVersion != "2.0.0" {
		t.Errorf("InstalledVersion = %q, want 2.0.0", entry.InstalledVersion)
	}
	if got := registry.Load(m.Dir())["blocks.jar"]; got.ProviderModID != "proj-1" {
		t.Errorf("registered entry = %+v", got)
	}

	if _, err := m.Link(context.Background(), "absent", LinkRequest{Provider: provider.Modtale, ProviderModID: "x"}); !errors.Is(err, jar.ErrNotFound) {
		t.Errorf("Link(absent) = %v, want jar.ErrNotFound", err)
	}
}

func TestDetails(t *testing.T) {
	r := fakeResolver{provider.Modtale: {id: provider.Modtale, versions: []provider.Version{{FileID: "v1"}}}}
	m := newTestManager(t, r, settings.Settings{provider.Modtale: {Enabled: true}, provider.CurseForge: {Enabled: false}})

	d, err := m.Details(context.Background(), provider.Modtale, "proj-1")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if d.Mod == nil || d.Mod.ID != "proj-1" {
		t.Errorf("Mod = %+v", d.Mod)
	}
	if len(d.Versions) != 1 || d.Versions[0].FileID != "v1" {
		t.Errorf("Versions = %+v", d.Versions)
	}

	r[provider.Modtale].versionsErr = errors.New("upstream down")
	if _, err := m.Details(context.Background(), provider.Modtale, "proj-1"); err == nil {
		t.Error("expected error when versions fail")
	}
	if _, err := m.Details(context.Background(), provider.CurseForge, "1"); !errors.Is(err, provider.ErrNotConfigured) {
		t.Errorf("Details on disabled provider = %v, want ErrNotConfigured", err)
	}
}

func TestMatchVersion(t *testing.T) {
	versions := []provider.Version{
		{FileID: "a", DisplayName: "Mod 1.2.3"},
		{FileID: "b", DisplayName: "1.2.3"},
		{FileID: "c", DisplayName: "beta", FileName: "mod-0.9.jar"},
	}
	tests := []struct {
		version string
		want    string
	}{
		{"1.2.3", "b"},
		{"0.9", "c"},
		{"3.0", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := matchVersion(versions, tt.version)
		gotID := ""
		if got != nil {
			gotID = got.FileID
		}
		if gotID != tt.want {
			t.Errorf("matchVersion(%q) = %q, want %q", tt.version, gotID, tt.want)
		}
	}
}

func TestCheckUpdates(t *testing.T) {
	versions := []provider.Version{
		{FileID: "f4", DisplayName: "2.1.0-beta", ReleaseType: provider.ReleaseTypeBeta},
		{FileID: "f3", DisplayName: "2.0.0", ReleaseType: provider.ReleaseTypeRelease},
		{FileID: "f2", DisplayName: "1.1.0", ReleaseType: provider.ReleaseTypeRelease},
	}
	r := fakeResolver{
		provider.CurseForge: {id: provider.CurseForge, requiresKey: true, versions: versions},
		provider.NexusMods:  {id: provider.NexusMods, requiresKey: true, versions: versions},
		provider.Modtale:    {id: provider.Modtale, versionsErr: errors.New("boom")},
	}
	st := enabled(provider.CurseForge, provider.Modtale)
	m := newTestManager(t, r, st)

	entries := map[string]registry.Entry{
		"old.jar":      {Provider: provider.CurseForge, ProviderModID: "1", FileID: "f2", InstalledVersion: "1.1.0"},
		"current.jar":  {Provider: provider.CurseForge, ProviderModID: "2", FileID: "f3", InstalledVersion: "2.0.0"},
		"beta.jar":     {Provider: provider.CurseForge, ProviderModID: "3", FileID: "f4", InstalledVersion: "2.1.0-beta"},
		"noid.jar":     {Provider: provider.CurseForge, ProviderModID: "4", InstalledVersion: "v1.9"},
		"disabled.jar": {Provider: provider.NexusMods, ProviderModID: "5", FileID: "f2"},
		"failing.jar":  {Provider: provider.Modtale, ProviderModID: "6", FileID: "f2"},
	}
	for name, e := range entries {
		if err := registry.Register(m.Dir(), name, e); err != nil {
			t.Fatal(err)
		}
	}

	report := m.CheckUpdates(context.Background())
	if !report.CheckedAt.Equal(m.now()) {
		t.Errorf("CheckedAt = %v", report.CheckedAt)
	}

	got := map[string]Update{}
	for _, u := range report.Updates {
		got[u.FileName] = u
	}
	if len(got) != 2 {
		t.Fatalf("updates = %+v, want old.jar and noid.jar", report.Updates)
	}
	old, ok := got["old.jar"]
	if !ok {
		t.Fatal("missing update for old.jar")
	}
	if old.LatestFileID != "f3" || !old.IsCritical || old.CurrentVersion != "1.1.0" {
		t.Errorf("old.jar update = %+v", old)
	}
	noid, ok := got["noid.jar"]
	if !ok {
		t.Fatal("missing update for noid.jar")
	}
	if !noid.IsCritical {
		t.Errorf("noid.jar should be critical (1 -> 2): %+v", noid)
	}
}

func TestMajor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2.0.0", 2},
		{"v10.1", 10},
		{"Blocks 3.4", 3},
		{"release", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := major(tt.in); got != tt.want {
			t.Errorf("major(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
