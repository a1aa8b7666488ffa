// Package jar inspects mod archives and patches content-only archives with
// a stub entry point so the server's plugin loader accepts them.
package jar

import (
	"archive/zip"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

const (
	ManifestPath = "META-INF/MANIFEST.MF"
	// PluginManifestPath is the server's own plugin manifest.
	PluginManifestPath = "manifest.json"

	StubClass = "hyos.stub.ContentModStub"
	StubPath  = "hyos/stub/ContentModStub.class"

	// maxMetadataBytes bounds how much of a metadata entry is read.
	maxMetadataBytes = 1 << 20
)

//go:embed stub/ContentModStub.class
var stubClass []byte

var (
	ErrNotFound           = errors.New("archive not found")
	ErrInvalidArchive     = errors.New("not a valid archive")
	ErrAlreadyPatched     = errors.New("archive is already patched")
	ErrNoPatchNeeded      = errors.New("archive has a valid entry point, no patch needed")
	ErrVerificationFailed = errors.New("patched archive failed verification")
)

// ManifestInfo is what the archive says about itself. MainClass is the
// resolved entry point; PluginMain is manifest.json Main, which may differ
// from Main-Class. Source names the entry the name and version came from.
type ManifestInfo struct {
	HasManifest   bool     `json:"hasManifest"`
	MainClass     string   `json:"mainClass,omitempty"`
	PluginMain    string   `json:"pluginMain,omitempty"`
	Group         string   `json:"group,omitempty"`
	Name          string   `json:"name,omitempty"`
	Version       string   `json:"version,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	ServerVersion string   `json:"serverVersion,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// Inspection is derived from archive bytes on every call and never stored.
type Inspection struct {
	IsPatched  bool          `json:"isPatched"`
	NeedsPatch bool          `json:"needsPatch"`
	Manifest   *ManifestInfo `json:"manifest"`
}

// Inspect opens the archive at path and classifies its entry point.
func Inspect(path string) (*Inspection, error) {
	r, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return inspect(&r.Reader)
}

func openArchive(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, path, err)
	}
	return r, nil
}

func inspect(zr *zip.Reader) (*Inspection, error) {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	info, err := readManifestInfo(entries)
	if err != nil {
		return nil, err
	}

	_, stubPresent := entries[StubPath]

	res := &Inspection{Manifest: info}
	switch {
	case info.MainClass == StubClass && stubPresent:
		res.IsPatched = true
	case resolveEntryPoint(info, entries):
		// A third-party entry point; leave the archive alone.
	default:
		res.NeedsPatch = true
	}
	return res, nil
}

// resolveEntryPoint reports whether Main-Class or manifest.json Main names a
// class present in the archive, and records the one that does.
func resolveEntryPoint(info *ManifestInfo, entries map[string]*zip.File) bool {
	for _, class := range []string{info.MainClass, info.PluginMain} {
		if class == "" || class == StubClass || entries[classPath(class)] == nil {
			continue
		}
		info.MainClass = class
		return true
	}
	return false
}

// classPath maps a binary class name to its archive entry.
func classPath(class string) string {
	return strings.ReplaceAll(class, ".", "/") + ".class"
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxMetadataBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}
